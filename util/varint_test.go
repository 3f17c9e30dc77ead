// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util_test

import (
	"bytes"
	"testing"

	"github.com/nextworks-it/pkgmarketd/util"
)

// main varints test
func TestVarint64(t *testing.T) {

	items := []struct {
		value   uint64
		encoded []byte
	}{
		{0x00, []byte{0x00}},
		{0x01, []byte{0x01}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x80, 0x01}},
		{0xff, []byte{0xff, 0x01}},
		{0x100, []byte{0x80, 0x02}},
		{0x3fff, []byte{0xff, 0x7f}},
		{0x4000, []byte{0x80, 0x80, 0x01}},
		{0xffffffffffffffff, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}

	for i, item := range items {
		encoded := util.ToVarint64(item.value)
		if !bytes.Equal(encoded, item.encoded) {
			t.Errorf("%d: encode: %d  got: %x  expected: %x", i, item.value, encoded, item.encoded)
		}

		value, count := util.FromVarint64(item.encoded)
		if count != len(item.encoded) {
			t.Errorf("%d: decode count: %d  expected: %d", i, count, len(item.encoded))
		}
		if value != item.value {
			t.Errorf("%d: decode: %x  got: %d  expected: %d", i, item.encoded, value, item.value)
		}
	}
}

// truncated buffer must decode as zero with zero count
func TestVarint64Truncated(t *testing.T) {
	value, count := util.FromVarint64([]byte{0x80})
	if 0 != value || 0 != count {
		t.Errorf("truncated decode: got: %d, %d  expected: 0, 0", value, count)
	}
}

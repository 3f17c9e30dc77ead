// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package digest_test

import (
	"fmt"
	"testing"

	"github.com/nextworks-it/pkgmarketd/digest"
)

// sha3-256 of "abc"
const expectedHex = "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532"

func TestDigest(t *testing.T) {
	d := digest.NewDigest([]byte("abc"))

	if expectedHex != d.String() {
		t.Fatalf("digest: %s  expected: %s", d, expectedHex)
	}

	text, err := d.MarshalText()
	if nil != err {
		t.Fatalf("marshal error: %s", err)
	}
	if expectedHex != string(text) {
		t.Fatalf("marshal: %s  expected: %s", text, expectedHex)
	}

	var back digest.Digest
	err = back.UnmarshalText(text)
	if nil != err {
		t.Fatalf("unmarshal error: %s", err)
	}
	if back != d {
		t.Fatalf("unmarshal: %v  expected: %v", back, d)
	}
}

func TestDigestScan(t *testing.T) {
	var d digest.Digest
	n, err := fmt.Sscan(expectedHex, &d)
	if nil != err {
		t.Fatalf("scan error: %s", err)
	}
	if 1 != n {
		t.Fatalf("scanned %d items expected 1", n)
	}
	if expectedHex != d.String() {
		t.Fatalf("scan: %s  expected: %s", d, expectedHex)
	}
}

func TestFromBytes(t *testing.T) {
	d := digest.NewDigest([]byte("abc"))

	var back digest.Digest
	err := digest.FromBytes(&back, d[:])
	if nil != err {
		t.Fatalf("from bytes error: %s", err)
	}
	if back != d {
		t.Fatalf("from bytes: %v  expected: %v", back, d)
	}

	err = digest.FromBytes(&back, d[:digest.Length-1])
	if nil == err {
		t.Fatal("unexpected success on short buffer")
	}
}

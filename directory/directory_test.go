// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package directory_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/directory"
	"github.com/nextworks-it/pkgmarketd/fault"
)

const testingDirName = "testing"

func TestMain(m *testing.M) {
	os.RemoveAll(testingDirName)
	os.Mkdir(testingDirName, 0700)

	logging := logger.Configuration{
		Directory: testingDirName,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}
	if err := logger.Initialise(logging); nil != err {
		panic(fmt.Sprintf("logger initialise failed: %s", err))
	}

	rc := m.Run()
	logger.Finalise()
	os.RemoveAll(testingDirName)
	os.Exit(rc)
}

func TestDirectory(t *testing.T) {
	d := directory.New("directory")

	_, err := d.Account("buyer")
	if fault.ErrNotFoundIdentity != err {
		t.Errorf("unknown party: got: %v  expected: %v", err, fault.ErrNotFoundIdentity)
	}
	_, _, err = d.Notary()
	if fault.ErrNotFoundNotary != err {
		t.Errorf("no notary: got: %v  expected: %v", err, fault.ErrNotFoundNotary)
	}

	buyer, _ := account.NewPrivateKey(true)
	repo, _ := account.NewPrivateKey(true)
	notary, _ := account.NewPrivateKey(true)

	d.Register("buyer", buyer.Account())
	d.Register("repository", repo.Account())
	d.Register("notary", notary.Account())
	d.SetRepository("repository")
	d.SetNotary("notary")

	acc, err := d.Account("buyer")
	if nil != err {
		t.Fatalf("account error: %s", err)
	}
	if acc.String() != buyer.Account().String() {
		t.Errorf("account mismatch")
	}

	name, acc, err := d.Notary()
	if nil != err {
		t.Fatalf("notary error: %s", err)
	}
	if "notary" != name || acc.String() != notary.Account().String() {
		t.Errorf("notary mismatch: %q", name)
	}

	name, acc, err = d.Repository()
	if nil != err {
		t.Fatalf("repository error: %s", err)
	}
	if "repository" != name || acc.String() != repo.Account().String() {
		t.Errorf("repository mismatch: %q", name)
	}
}

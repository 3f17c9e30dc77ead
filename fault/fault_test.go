// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault_test

import (
	"testing"

	"github.com/nextworks-it/pkgmarketd/fault"
)

// test that constant errors carry their class
func TestClasses(t *testing.T) {
	if !fault.IsErrInvalid(fault.ErrInsufficientFunds) {
		t.Errorf("not invalid class: %s", fault.ErrInsufficientFunds)
	}
	if !fault.IsErrExists(fault.ErrTransactionAlreadyExists) {
		t.Errorf("not exists class: %s", fault.ErrTransactionAlreadyExists)
	}
	if !fault.IsErrProcess(fault.ErrSessionTimeout) {
		t.Errorf("not process class: %s", fault.ErrSessionTimeout)
	}
}

// ensure that the parameterised errors embed their data
func TestParameterised(t *testing.T) {
	notFound := fault.PackageNotFoundError("123456")
	if "package not found: 123456" != notFound.Error() {
		t.Errorf("unexpected message: %q", notFound.Error())
	}
	if !fault.IsErrPackageNotFound(notFound) {
		t.Errorf("not detected as package not found: %s", notFound)
	}

	rejected := fault.RejectedError("over limit")
	if "rejected: over limit" != rejected.Error() {
		t.Errorf("unexpected message: %q", rejected.Error())
	}
	if !fault.IsErrRejected(rejected) {
		t.Errorf("not detected as rejected: %s", rejected)
	}

	verification := fault.VerificationFailedError("value not conserved")
	if !fault.IsErrVerificationFailed(verification) {
		t.Errorf("not detected as verification failure: %s", verification)
	}

	if !fault.IsErrConsensusConflict(fault.ErrConsensusConflict) {
		t.Errorf("not detected as consensus conflict: %s", fault.ErrConsensusConflict)
	}
}

// ensure classes do not overlap
func TestClassSeparation(t *testing.T) {
	if fault.IsErrNotFound(fault.PackageNotFoundError("x")) {
		t.Errorf("package not found must not match the generic not-found class")
	}
	if fault.IsErrInvalid(fault.RejectedError("x")) {
		t.Errorf("rejected must not match the invalid class")
	}
}

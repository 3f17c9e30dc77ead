// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package contract_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/contract"
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

// a context that satisfies the purchase rules
func validPurchase() contract.Context {
	return contract.Context{
		Operation:        "purchase",
		InputTotal:       2000, // 20.00
		AuthorAmount:     1350, // 13.50
		FeeAmount:        150,  //  1.50
		ChangeAmount:     500,  //  5.00
		Price:            1500, // 15.00
		FeeDue:           150,
		InputCount:       1,
		LicenseCount:     1,
		BuyerSigned:      true,
		RepositorySigned: true,
	}
}

func TestPurchaseAccepted(t *testing.T) {
	v, err := contract.New("verifier", contract.PurchaseRules)
	if nil != err {
		t.Fatalf("compile error: %s", err)
	}

	err = v.Verify(validPurchase())
	if nil != err {
		t.Errorf("valid purchase rejected: %s", err)
	}
}

func TestPurchaseRejections(t *testing.T) {
	v, err := contract.New("verifier", contract.PurchaseRules)
	if nil != err {
		t.Fatalf("compile error: %s", err)
	}

	testCases := []struct {
		name   string
		mutate func(*contract.Context)
		rule   string
	}{
		{"value leak", func(c *contract.Context) { c.ChangeAmount = 499 }, "value is conserved"},
		{"underpayment", func(c *contract.Context) { c.AuthorAmount = 1349; c.ChangeAmount = 501 }, "payments meet the offer price"},
		{"wrong fee", func(c *contract.Context) { c.FeeAmount = 149; c.AuthorAmount = 1351 }, "fee matches the agreement"},
		{"no inputs", func(c *contract.Context) { c.InputCount = 0 }, "at least one cash input"},
		{"no license", func(c *contract.Context) { c.LicenseCount = 0 }, "exactly one license is granted"},
		{"two licenses", func(c *contract.Context) { c.LicenseCount = 2 }, "exactly one license is granted"},
		{"unsigned buyer", func(c *contract.Context) { c.BuyerSigned = false }, "buyer signed"},
		{"no countersignature", func(c *contract.Context) { c.RepositorySigned = false }, "repository countersigned"},
	}

	for _, testCase := range testCases {
		ctx := validPurchase()
		testCase.mutate(&ctx)

		err := v.Verify(ctx)
		if !fault.IsErrVerificationFailed(err) {
			t.Errorf("%s: got: %v  expected verification failure", testCase.name, err)
			continue
		}
		expected := fault.VerificationFailedError(testCase.rule)
		if expected != err {
			t.Errorf("%s: got: %v  expected: %v", testCase.name, err, expected)
		}
	}
}

func TestDeleteRules(t *testing.T) {
	v, err := contract.New("verifier", contract.DeleteRules)
	if nil != err {
		t.Fatalf("compile error: %s", err)
	}

	ctx := contract.Context{
		Operation:        "delete",
		AuthorSigned:     true,
		RepositorySigned: true,
	}
	err = v.Verify(ctx)
	if nil != err {
		t.Errorf("valid delete rejected: %s", err)
	}

	ctx.AuthorSigned = false
	err = v.Verify(ctx)
	if fault.VerificationFailedError("author signed") != err {
		t.Errorf("got: %v  expected author signed failure", err)
	}

	ctx.AuthorSigned = true
	ctx.InputTotal = 100
	err = v.Verify(ctx)
	if fault.VerificationFailedError("no payments") != err {
		t.Errorf("got: %v  expected no payments failure", err)
	}
}

// custom rule sets are supported
func TestCustomRules(t *testing.T) {
	rules := []contract.Rule{
		{"price cap", "Price <= 100000"},
	}
	v, err := contract.New("verifier", rules)
	if nil != err {
		t.Fatalf("compile error: %s", err)
	}

	err = v.Verify(contract.Context{Price: 99999})
	if nil != err {
		t.Errorf("capped price rejected: %s", err)
	}
	err = v.Verify(contract.Context{Price: 100001})
	if fault.VerificationFailedError("price cap") != err {
		t.Errorf("got: %v  expected price cap failure", err)
	}
}

// a malformed expression must fail at compile time
func TestBadExpression(t *testing.T) {
	_, err := contract.New("verifier", []contract.Rule{
		{"broken", "Price +"},
	})
	if nil == err {
		t.Errorf("malformed expression compiled")
	}
}

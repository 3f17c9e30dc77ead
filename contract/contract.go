// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package contract - rule based verification of composed transactions
//
// every rule is a boolean expression over the fields of a Context;
// a transaction is acceptable only when every rule of its rule set
// holds. rules are compiled once when the verifier is created and
// evaluated before any signature is produced.
package contract

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/fault"
)

// Context - the facts a rule may refer to
//
// amounts are in hundredths of the currency unit so the expressions
// stay in integer arithmetic
type Context struct {
	Operation        string // "purchase" or "delete"
	InputTotal       uint64 // sum of consumed cash records
	AuthorAmount     uint64 // payment output to the author
	FeeAmount        uint64 // payment output to the repository
	ChangeAmount     uint64 // payment output back to the buyer
	Price            uint64 // price named by the offer
	FeeDue           uint64 // fee computed from the current agreement
	InputCount       int    // number of consumed cash records
	LicenseCount     int    // number of license grant outputs
	BuyerSigned      bool
	AuthorSigned     bool
	RepositorySigned bool
}

// Rule - one named boolean expression
type Rule struct {
	Name       string
	Expression string
}

// PurchaseRules - the rule set for purchase transactions
var PurchaseRules = []Rule{
	{"value is conserved", "InputTotal == AuthorAmount + FeeAmount + ChangeAmount"},
	{"payments meet the offer price", "AuthorAmount + FeeAmount == Price"},
	{"fee matches the agreement", "FeeAmount == FeeDue"},
	{"at least one cash input", "InputCount >= 1"},
	{"exactly one license is granted", "LicenseCount == 1"},
	{"buyer signed", "BuyerSigned"},
	{"repository countersigned", "RepositorySigned"},
}

// DeleteRules - the rule set for delete transactions
var DeleteRules = []Rule{
	{"no payments", "InputTotal == 0 and AuthorAmount == 0 and FeeAmount == 0 and ChangeAmount == 0"},
	{"no license is granted", "LicenseCount == 0"},
	{"author signed", "AuthorSigned"},
	{"repository countersigned", "RepositorySigned"},
}

type compiledRule struct {
	name    string
	program *exprvm.Program
}

// Verifier - a compiled rule set
type Verifier struct {
	log   *logger.L
	rules []compiledRule
}

// New - compile a rule set
func New(name string, rules []Rule) (*Verifier, error) {

	v := &Verifier{
		log:   logger.New(name),
		rules: make([]compiledRule, 0, len(rules)),
	}

	for _, rule := range rules {
		program, err := exprlang.Compile(
			rule.Expression,
			exprlang.Env(environment(Context{})),
			exprlang.AsBool(),
		)
		if nil != err {
			return nil, err
		}
		v.rules = append(v.rules, compiledRule{
			name:    rule.Name,
			program: program,
		})
	}
	return v, nil
}

// Verify - run every rule against a context
//
// the first failing rule yields fault.VerificationFailedError
// carrying that rule's name
func (v *Verifier) Verify(ctx Context) error {

	env := environment(ctx)
	for _, rule := range v.rules {
		result, err := exprlang.Run(rule.program, env)
		if nil != err {
			return err
		}
		ok, isBool := result.(bool)
		if !isBool || !ok {
			v.log.Warnf("%s: rule failed: %q", ctx.Operation, rule.name)
			return fault.VerificationFailedError(rule.name)
		}
	}
	return nil
}

// flatten a context to the expression environment
func environment(ctx Context) map[string]interface{} {
	return map[string]interface{}{
		"Operation":        ctx.Operation,
		"InputTotal":       ctx.InputTotal,
		"AuthorAmount":     ctx.AuthorAmount,
		"FeeAmount":        ctx.FeeAmount,
		"ChangeAmount":     ctx.ChangeAmount,
		"Price":            ctx.Price,
		"FeeDue":           ctx.FeeDue,
		"InputCount":       ctx.InputCount,
		"LicenseCount":     ctx.LicenseCount,
		"BuyerSigned":      ctx.BuyerSigned,
		"AuthorSigned":     ctx.AuthorSigned,
		"RepositorySigned": ctx.RepositorySigned,
	}
}

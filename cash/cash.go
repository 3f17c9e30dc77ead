// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cash - select unconsumed cash records to fund a payment
package cash

import (
	"sort"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/currency"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/vault"
)

// Select - choose cash records covering a required total
//
// largest first so the input count stays small; returns the selected
// records and the change that a spend of exactly the required amount
// would return to the owner
func Select(items []vault.CashItem, required currency.Amount) ([]vault.CashItem, currency.Amount, error) {

	sorted := make([]vault.CashItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Cash.Amount > sorted[j].Cash.Amount
	})

	selected := []vault.CashItem{}
	total := currency.Amount(0)
	var err error
	for _, item := range sorted {
		if total >= required {
			break
		}
		total, err = total.Add(item.Cash.Amount)
		if nil != err {
			return nil, 0, err
		}
		selected = append(selected, item)
	}

	if total < required {
		return nil, 0, fault.ErrInsufficientFunds
	}
	return selected, total - required, nil
}

// SelectAndCombine - select from an owner's vault holdings
//
// returns the identifiers of the selected records, in the order they
// must appear as transaction inputs, and the change
func SelectAndCombine(v *vault.Vault, owner *account.Account, c currency.Currency, required currency.Amount) ([]digest.Digest, currency.Amount, error) {

	items, err := v.CashFor(owner, c)
	if nil != err {
		return nil, 0, err
	}

	selected, change, err := Select(items, required)
	if nil != err {
		return nil, 0, err
	}

	ids := make([]digest.Digest, len(selected))
	for i, item := range selected {
		ids[i] = item.Id
	}
	return ids, change, nil
}

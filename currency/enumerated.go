// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package currency - currency enumeration and exact monetary amounts
package currency

import (
	"strings"

	"github.com/nextworks-it/pkgmarketd/fault"
)

// Currency - an enumerated currency
type Currency uint64

// possible currency values
const (
	Nothing Currency = iota // must be first
	EUR
	USD
	GBP
	maximumValue // this item must be last
)

// Count - number of valid currencies
const Count = int(maximumValue) - 1

// String - convert a currency to its ISO text form
func (currency Currency) String() string {
	switch currency {
	case EUR:
		return "EUR"
	case USD:
		return "USD"
	case GBP:
		return "GBP"
	default:
		return ""
	}
}

// GoString - convert a currency for use by the fmt package (for %#v)
func (currency Currency) GoString() string {
	return "<currency:" + currency.String() + ">"
}

// Uint64 - convert the currency to a number
func (currency Currency) Uint64() uint64 {
	return uint64(currency)
}

// FromUint64 - convert a number to a currency
func FromUint64(n uint64) (Currency, error) {
	if Currency(n) > Nothing && Currency(n) < maximumValue {
		return Currency(n), nil
	}
	return Nothing, fault.ErrInvalidCurrency
}

// FromString - convert an ISO text form to a currency
func FromString(s string) (Currency, error) {
	switch strings.ToUpper(s) {
	case "EUR":
		return EUR, nil
	case "USD":
		return USD, nil
	case "GBP":
		return GBP, nil
	default:
		return Nothing, fault.ErrInvalidCurrency
	}
}

// MarshalText - convert a currency to its text form
func (currency Currency) MarshalText() ([]byte, error) {
	return []byte(currency.String()), nil
}

// UnmarshalText - convert a text form to a currency
func (currency *Currency) UnmarshalText(s []byte) error {
	c, err := FromString(string(s))
	if nil != err {
		return err
	}
	*currency = c
	return nil
}

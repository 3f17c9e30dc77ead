// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package currency

import (
	"strconv"

	"github.com/nextworks-it/pkgmarketd/fault"
)

// Amount - monetary value in hundredths of the currency unit
//
// i.e. Amount(1500) represents 15.00
type Amount uint64

// decimal places carried by Amount
const decimalPlaces = 2

// AmountFromByteString - convert a decimal string to an Amount
//
// i.e. "15.00" will convert to Amount(1500)
//
// Note: Invalid characters are simply ignored and the conversion
//       simply stops after 2 decimal places have been processed.
//       Extra decimal points will also be ignored.
func AmountFromByteString(value []byte) Amount {

	a := uint64(0)
	point := false
	decimals := 0

get_digits:
	for _, b := range value {
		if b >= '0' && b <= '9' {
			a *= 10
			a += uint64(b - '0')
			if point {
				decimals += 1
				if decimals >= decimalPlaces {
					break get_digits
				}
			}
		} else if '.' == b {
			point = true
		}
	}
	for decimals < decimalPlaces {
		a *= 10
		decimals += 1
	}

	return Amount(a)
}

// AmountFromString - string wrapper for AmountFromByteString
func AmountFromString(value string) Amount {
	return AmountFromByteString([]byte(value))
}

// String - convert an amount to its decimal text form
func (amount Amount) String() string {
	units := uint64(amount) / 100
	cents := uint64(amount) % 100
	s := strconv.FormatUint(units, 10) + "."
	if cents < 10 {
		s += "0"
	}
	return s + strconv.FormatUint(cents, 10)
}

// MarshalText - convert an amount to its decimal text form
func (amount Amount) MarshalText() ([]byte, error) {
	return []byte(amount.String()), nil
}

// UnmarshalText - convert decimal text to an amount
func (amount *Amount) UnmarshalText(s []byte) error {
	*amount = AmountFromByteString(s)
	return nil
}

// Add - checked addition
func (amount Amount) Add(other Amount) (Amount, error) {
	sum := amount + other
	if sum < amount {
		return 0, fault.ErrInvalidAmount
	}
	return sum, nil
}

// Fee - the platform share of a price at the given integer percentage
//
// the computation path is fixed: rescale the price divided by 100 to
// exactly 4 decimal places, multiply by the percentage, then round the
// final value back to 2 decimal places using round-half-to-even; with a
// 2 decimal place price and an integer percentage every intermediate
// value is exact
func (amount Amount) Fee(percent uint64) Amount {

	// price/100 in units of 10^-4 is numerically equal to the price
	// in hundredths, so the 4 decimal place intermediate is the plain
	// product
	v := uint64(amount) * percent

	fee := v / 100
	remainder := v % 100
	if remainder > 50 || (50 == remainder && 1 == fee&1) {
		fee += 1
	}
	return Amount(fee)
}

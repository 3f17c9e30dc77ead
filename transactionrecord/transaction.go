// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package transactionrecord - definition of the marketplace records
//
// the offer, license, cash and fee agreement records stored in the
// ledger and the two countersigned transactions that consume them
package transactionrecord

import (
	"encoding/hex"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/currency"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/util"
)

// TagType - type code for transactions
type TagType uint64

// enumerate the possible transaction record types
// this is encoded a Varint64 at start of "Packed"
const (
	// null marks beginning of list - not used as a record type
	NullTag = TagType(iota)

	// valid record types
	PackageOfferTag    = TagType(iota) // priced offer of an on-boarded package
	LicenseGrantTag    = TagType(iota) // license produced by a purchase
	CashTag            = TagType(iota) // fungible monetary record
	FeeAgreementTag    = TagType(iota) // author / repository fee split agreement
	PackagePurchaseTag = TagType(iota) // two signature purchase of an offer
	PackageDeleteTag   = TagType(iota) // two signature deletion of an offer

	// this item must be last
	InvalidTag = TagType(iota)
)

// Packed - packed records are just a byte slice
type Packed []byte

// Transaction - generic transaction interface
type Transaction interface {
	Pack(address *account.Account) (Packed, error)
}

// byte sizes for various fields
const (
	maxNameLength        = 64
	maxDescriptionLength = 2048
	maxVersionLength     = 64
	maxLinkLength        = 1024
	maxSignatureLength   = 1024
	maxCashInputs        = 100
	maxFeePercent        = 100
)

// PackageOffer - the priced offer of an on-boarded package
//
// created by the external registration procedure; its record digest is
// the linear identifier for the whole consume/replace lineage
type PackageOffer struct {
	Name        string            `json:"name"`        // utf-8
	Description string            `json:"description"` // utf-8
	Version     string            `json:"version"`     // utf-8
	Link        string            `json:"link"`        // utf-8: package info location
	Author      *account.Account  `json:"author"`      // base58
	Repository  *account.Account  `json:"repository"`  // base58
	Currency    currency.Currency `json:"currency"`    // utf-8 → Enum
	Price       currency.Amount   `json:"price"`       // 2 decimal places
	Nonce       uint64            `json:"nonce,string"`
	Signature   account.Signature `json:"signature"` // hex: corresponds to author
}

// LicenseGrant - license over a package, sole output of a purchase
//
// carries the consumed offer's priced details and the buyer identity;
// derived from the purchase transaction at commit, so it is covered by
// that transaction's signatures and carries none of its own
type LicenseGrant struct {
	PkgId    digest.Digest     `json:"pkgId"` // linear identifier of the offer
	Name     string            `json:"name"`
	Version  string            `json:"version"`
	Link     string            `json:"link"`
	Buyer    *account.Account  `json:"buyer"` // base58
	Currency currency.Currency `json:"currency"`
	Price    currency.Amount   `json:"price"`
}

// Cash - fungible monetary record
//
// either issued by the external cash procedure or derived as the
// output of a purchase; fully consumed when used as an input
type Cash struct {
	Owner    *account.Account  `json:"owner"` // base58
	Currency currency.Currency `json:"currency"`
	Amount   currency.Amount   `json:"amount"`
	Nonce    uint64            `json:"nonce,string"` // distinguishes equal issues
}

// FeeAgreement - established fee split between author and repository
type FeeAgreement struct {
	Author     *account.Account  `json:"author"`     // base58
	Repository *account.Account  `json:"repository"` // base58
	Percent    uint64            `json:"percent"`    // integer percentage of the price
	Signature  account.Signature `json:"signature"`  // hex: corresponds to author
}

// PackagePurchase - atomic exchange of an offer's license for payment
//
// consumes the offer (by linear identifier) and the listed buyer cash
// records; the cash outputs all use the price currency and their
// owners are implied: author payment to the offer's author, fee to the
// offer's repository, change back to the buyer
type PackagePurchase struct {
	PkgId            digest.Digest     `json:"pkgId"`   // offer being consumed
	Buyer            *account.Account  `json:"buyer"`   // base58
	CashIds          []digest.Digest   `json:"cashIds"` // buyer cash records consumed
	Currency         currency.Currency `json:"currency"`
	AuthorPayment    currency.Amount   `json:"authorPayment"`
	RepositoryFee    currency.Amount   `json:"repositoryFee"`
	Change           currency.Amount   `json:"change"`           // zero when the selection is exact
	Signature        account.Signature `json:"signature"`        // hex: corresponds to buyer
	Countersignature account.Signature `json:"countersignature"` // hex: corresponds to repository
}

// PackageDelete - removal of an offer from the marketplace
//
// consumes the offer and produces nothing
type PackageDelete struct {
	PkgId            digest.Digest     `json:"pkgId"`  // offer being consumed
	Author           *account.Account  `json:"author"` // base58
	Signature        account.Signature `json:"signature"`        // hex: corresponds to author
	Countersignature account.Signature `json:"countersignature"` // hex: corresponds to repository
}

// Type - returns the record type code
func (record Packed) Type() TagType {
	recordType, n := util.FromVarint64(record)
	if 0 == n {
		return NullTag
	}
	return TagType(recordType)
}

// RecordName - returns the name of a transaction record as a string
func RecordName(record interface{}) (string, bool) {
	switch record.(type) {
	case *PackageOffer, PackageOffer:
		return "PackageOffer", true

	case *LicenseGrant, LicenseGrant:
		return "LicenseGrant", true

	case *Cash, Cash:
		return "Cash", true

	case *FeeAgreement, FeeAgreement:
		return "FeeAgreement", true

	case *PackagePurchase, PackagePurchase:
		return "PackagePurchase", true

	case *PackageDelete, PackageDelete:
		return "PackageDelete", true

	default:
		return "*unknown*", false
	}
}

// MakeLink - create the record id for a packed record
func (record Packed) MakeLink() digest.Digest {
	return digest.NewDigest(record)
}

// MarshalText - convert a packed to its hex JSON form
func (record Packed) MarshalText() ([]byte, error) {
	size := hex.EncodedLen(len(record))
	b := make([]byte, size)
	hex.Encode(b, record)
	return b, nil
}

// UnmarshalText - convert a packed from its hex JSON form
func (record *Packed) UnmarshalText(s []byte) error {
	size := hex.DecodedLen(len(s))
	*record = make([]byte, size)
	_, err := hex.Decode(*record, s)
	return err
}

// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

import (
	"unicode/utf8"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/util"
)

// Pack PackageOffer
//
// Pack Varint64(tag) followed by fields in order as struct above with
// signature last
//
// NOTE: returns the "unsigned" message on signature failure - for
//       receiving the bytes to sign
func (offer *PackageOffer) Pack(address *account.Account) (Packed, error) {
	if len(offer.Signature) > maxSignatureLength {
		return nil, fault.ErrSignatureTooLong
	}

	if nil == offer.Author || nil == offer.Repository || nil == address {
		return nil, fault.ErrInvalidOwnerOrRegistrant
	}

	if 0 == utf8.RuneCountInString(offer.Name) {
		return nil, fault.ErrNameTooShort
	}
	if utf8.RuneCountInString(offer.Name) > maxNameLength {
		return nil, fault.ErrNameTooLong
	}
	if utf8.RuneCountInString(offer.Description) > maxDescriptionLength {
		return nil, fault.ErrDescriptionTooLong
	}
	if utf8.RuneCountInString(offer.Version) > maxVersionLength {
		return nil, fault.ErrVersionTooLong
	}
	if utf8.RuneCountInString(offer.Link) > maxLinkLength {
		return nil, fault.ErrLinkTooLong
	}

	// concatenate bytes
	message := util.ToVarint64(uint64(PackageOfferTag))
	message = appendString(message, offer.Name)
	message = appendString(message, offer.Description)
	message = appendString(message, offer.Version)
	message = appendString(message, offer.Link)
	message = appendAccount(message, offer.Author)
	message = appendAccount(message, offer.Repository)
	message = appendUint64(message, offer.Currency.Uint64())
	message = appendUint64(message, uint64(offer.Price))
	message = appendUint64(message, offer.Nonce)

	// signature
	err := address.CheckSignature(message, offer.Signature)
	if nil != err {
		return message, err
	}

	// Signature Last
	return appendBytes(message, offer.Signature), nil
}

// Pack LicenseGrant
//
// a derived output record: canonical bytes only, integrity is provided
// by the signatures of the transaction that created it
func (license *LicenseGrant) Pack(address *account.Account) (Packed, error) {
	if nil == license.Buyer || nil == address {
		return nil, fault.ErrInvalidOwnerOrRegistrant
	}

	message := util.ToVarint64(uint64(LicenseGrantTag))
	message = appendBytes(message, license.PkgId[:])
	message = appendString(message, license.Name)
	message = appendString(message, license.Version)
	message = appendString(message, license.Link)
	message = appendAccount(message, license.Buyer)
	message = appendUint64(message, license.Currency.Uint64())
	message = appendUint64(message, uint64(license.Price))
	return message, nil
}

// Pack Cash
//
// canonical bytes only; issued records are stored by the external
// issue procedure, derived outputs by the finality commit
func (cash *Cash) Pack(address *account.Account) (Packed, error) {
	if nil == cash.Owner || nil == address {
		return nil, fault.ErrInvalidOwnerOrRegistrant
	}

	message := util.ToVarint64(uint64(CashTag))
	message = appendAccount(message, cash.Owner)
	message = appendUint64(message, cash.Currency.Uint64())
	message = appendUint64(message, uint64(cash.Amount))
	message = appendUint64(message, cash.Nonce)
	return message, nil
}

// Pack FeeAgreement
//
// NOTE: returns the "unsigned" message on signature failure - for
//       receiving the bytes to sign
func (agreement *FeeAgreement) Pack(address *account.Account) (Packed, error) {
	if len(agreement.Signature) > maxSignatureLength {
		return nil, fault.ErrSignatureTooLong
	}

	if nil == agreement.Author || nil == agreement.Repository || nil == address {
		return nil, fault.ErrInvalidOwnerOrRegistrant
	}

	if agreement.Percent > maxFeePercent {
		return nil, fault.ErrInvalidFeePercentage
	}

	message := util.ToVarint64(uint64(FeeAgreementTag))
	message = appendAccount(message, agreement.Author)
	message = appendAccount(message, agreement.Repository)
	message = appendUint64(message, agreement.Percent)

	// signature
	err := address.CheckSignature(message, agreement.Signature)
	if nil != err {
		return message, err
	}

	// Signature Last
	return appendBytes(message, agreement.Signature), nil
}

// Pack PackagePurchase
//
// the signature is by the buyer over the base message; the
// countersignature is by the repository (the address parameter) over
// the message including the buyer signature
//
// NOTE: returns the unsigned or partly signed message on signature
//       failure - the returned bytes are exactly what the missing
//       signature must cover
func (purchase *PackagePurchase) Pack(address *account.Account) (Packed, error) {
	if len(purchase.Signature) > maxSignatureLength ||
		len(purchase.Countersignature) > maxSignatureLength {
		return nil, fault.ErrSignatureTooLong
	}

	if nil == purchase.Buyer || nil == address {
		return nil, fault.ErrInvalidOwnerOrRegistrant
	}

	if 0 == len(purchase.CashIds) || len(purchase.CashIds) > maxCashInputs {
		return nil, fault.ErrInvalidCount
	}

	// concatenate bytes
	message := util.ToVarint64(uint64(PackagePurchaseTag))
	message = appendBytes(message, purchase.PkgId[:])
	message = appendAccount(message, purchase.Buyer)
	message = appendUint64(message, uint64(len(purchase.CashIds)))
	for _, cashId := range purchase.CashIds {
		message = appendBytes(message, cashId[:])
	}
	message = appendUint64(message, purchase.Currency.Uint64())
	message = appendUint64(message, uint64(purchase.AuthorPayment))
	message = appendUint64(message, uint64(purchase.RepositoryFee))
	message = appendUint64(message, uint64(purchase.Change))

	// signature
	err := purchase.Buyer.CheckSignature(message, purchase.Signature)
	if nil != err {
		return message, err
	}

	// add signature
	message = appendBytes(message, purchase.Signature)

	// countersignature
	err = address.CheckSignature(message, purchase.Countersignature)
	if nil != err {
		return message, err
	}

	// Countersignature Last
	return appendBytes(message, purchase.Countersignature), nil
}

// Pack PackageDelete
//
// the signature is by the author over the base message; the
// countersignature is by the repository (the address parameter) over
// the message including the author signature
//
// NOTE: returns the unsigned or partly signed message on signature
//       failure - the returned bytes are exactly what the missing
//       signature must cover
func (del *PackageDelete) Pack(address *account.Account) (Packed, error) {
	if len(del.Signature) > maxSignatureLength ||
		len(del.Countersignature) > maxSignatureLength {
		return nil, fault.ErrSignatureTooLong
	}

	if nil == del.Author || nil == address {
		return nil, fault.ErrInvalidOwnerOrRegistrant
	}

	// concatenate bytes
	message := util.ToVarint64(uint64(PackageDeleteTag))
	message = appendBytes(message, del.PkgId[:])
	message = appendAccount(message, del.Author)

	// signature
	err := del.Author.CheckSignature(message, del.Signature)
	if nil != err {
		return message, err
	}

	// add signature
	message = appendBytes(message, del.Signature)

	// countersignature
	err = address.CheckSignature(message, del.Countersignature)
	if nil != err {
		return message, err
	}

	// Countersignature Last
	return appendBytes(message, del.Countersignature), nil
}

// append a single field to a buffer
//
// the field is prefixed by Varint64(length)
func appendString(buffer Packed, s string) Packed {
	l := util.ToVarint64(uint64(len(s)))
	buffer = append(buffer, l...)
	return append(buffer, s...)
}

// append an address to a buffer
//
// the field is prefixed by Varint64(length)
func appendAccount(buffer Packed, address *account.Account) Packed {
	data := address.Bytes()
	l := util.ToVarint64(uint64(len(data)))
	buffer = append(buffer, l...)
	buffer = append(buffer, data...)
	return buffer
}

// append a bytes to a buffer
//
// the field is prefixed by Varint64(length)
func appendBytes(buffer Packed, data []byte) Packed {
	l := util.ToVarint64(uint64(len(data)))
	buffer = append(buffer, l...)
	buffer = append(buffer, data...)
	return buffer
}

// append a Varint64 to buffer
func appendUint64(buffer Packed, value uint64) Packed {
	valueBytes := util.ToVarint64(value)
	buffer = append(buffer, valueBytes...)
	return buffer
}

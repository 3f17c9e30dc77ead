// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

import (
	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/currency"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/util"
)

// Unpack - turn a byte slice into a record
//
// must cast result to correct type, e.g.
//
//	offer, ok := result.(*transactionrecord.PackageOffer)
//
// or:
//
//	switch tx := result.(type) {
//	case *transactionrecord.PackageOffer:
func (record Packed) Unpack(testnet bool) (t Transaction, n int, e error) {

	defer func() {
		if r := recover(); nil != r {
			e = fault.ErrNotAPackedTransaction
		}
	}()

	recordType, n := util.ClippedVarint64(record, 1, 8192)
	if 0 == n {
		return nil, 0, fault.ErrNotAPackedTransaction
	}

unpack_switch:
	switch TagType(recordType) {

	case PackageOfferTag:

		// name
		name, err := unpackString(record, &n, maxNameLength)
		if nil != err {
			break unpack_switch
		}

		// description
		description, err := unpackString(record, &n, maxDescriptionLength)
		if nil != err {
			break unpack_switch
		}

		// version
		version, err := unpackString(record, &n, maxVersionLength)
		if nil != err {
			break unpack_switch
		}

		// link
		link, err := unpackString(record, &n, maxLinkLength)
		if nil != err {
			break unpack_switch
		}

		// author public key
		author, err := unpackAccount(record, &n, testnet)
		if nil != err {
			return nil, 0, err
		}

		// repository public key
		repository, err := unpackAccount(record, &n, testnet)
		if nil != err {
			return nil, 0, err
		}

		// currency
		c, err := unpackCurrency(record, &n)
		if nil != err {
			return nil, 0, err
		}

		// price
		price, priceLength := util.FromVarint64(record[n:])
		if 0 == priceLength {
			break unpack_switch
		}
		n += priceLength

		// nonce
		nonce, nonceLength := util.FromVarint64(record[n:])
		if 0 == nonceLength {
			break unpack_switch
		}
		n += nonceLength

		// signature is remainder of record
		signature, err := unpackSignature(record, &n)
		if nil != err {
			break unpack_switch
		}

		r := &PackageOffer{
			Name:        name,
			Description: description,
			Version:     version,
			Link:        link,
			Author:      author,
			Repository:  repository,
			Currency:    c,
			Price:       currency.Amount(price),
			Nonce:       nonce,
			Signature:   signature,
		}
		return r, n, nil

	case LicenseGrantTag:

		// linear identifier of the offer
		var pkgId digest.Digest
		if err := unpackDigest(record, &n, &pkgId); nil != err {
			break unpack_switch
		}

		// name
		name, err := unpackString(record, &n, maxNameLength)
		if nil != err {
			break unpack_switch
		}

		// version
		version, err := unpackString(record, &n, maxVersionLength)
		if nil != err {
			break unpack_switch
		}

		// link
		link, err := unpackString(record, &n, maxLinkLength)
		if nil != err {
			break unpack_switch
		}

		// buyer public key
		buyer, err := unpackAccount(record, &n, testnet)
		if nil != err {
			return nil, 0, err
		}

		// currency
		c, err := unpackCurrency(record, &n)
		if nil != err {
			return nil, 0, err
		}

		// price
		price, priceLength := util.FromVarint64(record[n:])
		if 0 == priceLength {
			break unpack_switch
		}
		n += priceLength

		r := &LicenseGrant{
			PkgId:    pkgId,
			Name:     name,
			Version:  version,
			Link:     link,
			Buyer:    buyer,
			Currency: c,
			Price:    currency.Amount(price),
		}
		return r, n, nil

	case CashTag:

		// owner public key
		owner, err := unpackAccount(record, &n, testnet)
		if nil != err {
			return nil, 0, err
		}

		// currency
		c, err := unpackCurrency(record, &n)
		if nil != err {
			return nil, 0, err
		}

		// amount
		amount, amountLength := util.FromVarint64(record[n:])
		if 0 == amountLength {
			break unpack_switch
		}
		n += amountLength

		// nonce
		nonce, nonceLength := util.FromVarint64(record[n:])
		if 0 == nonceLength {
			break unpack_switch
		}
		n += nonceLength

		r := &Cash{
			Owner:    owner,
			Currency: c,
			Amount:   currency.Amount(amount),
			Nonce:    nonce,
		}
		return r, n, nil

	case FeeAgreementTag:

		// author public key
		author, err := unpackAccount(record, &n, testnet)
		if nil != err {
			return nil, 0, err
		}

		// repository public key
		repository, err := unpackAccount(record, &n, testnet)
		if nil != err {
			return nil, 0, err
		}

		// percent
		percent, percentLength := util.FromVarint64(record[n:])
		if 0 == percentLength {
			break unpack_switch
		}
		n += percentLength

		// signature is remainder of record
		signature, err := unpackSignature(record, &n)
		if nil != err {
			break unpack_switch
		}

		r := &FeeAgreement{
			Author:     author,
			Repository: repository,
			Percent:    percent,
			Signature:  signature,
		}
		return r, n, nil

	case PackagePurchaseTag:

		// linear identifier of the offer
		var pkgId digest.Digest
		if err := unpackDigest(record, &n, &pkgId); nil != err {
			break unpack_switch
		}

		// buyer public key
		buyer, err := unpackAccount(record, &n, testnet)
		if nil != err {
			return nil, 0, err
		}

		// consumed cash record count and ids
		cashCount, cashCountLength := util.ClippedVarint64(record[n:], 1, maxCashInputs)
		if 0 == cashCountLength {
			break unpack_switch
		}
		n += cashCountLength

		cashIds := make([]digest.Digest, cashCount)
		for i := 0; i < cashCount; i += 1 {
			if err := unpackDigest(record, &n, &cashIds[i]); nil != err {
				break unpack_switch
			}
		}

		// currency
		c, err := unpackCurrency(record, &n)
		if nil != err {
			return nil, 0, err
		}

		// author payment
		authorPayment, authorPaymentLength := util.FromVarint64(record[n:])
		if 0 == authorPaymentLength {
			break unpack_switch
		}
		n += authorPaymentLength

		// repository fee
		repositoryFee, repositoryFeeLength := util.FromVarint64(record[n:])
		if 0 == repositoryFeeLength {
			break unpack_switch
		}
		n += repositoryFeeLength

		// change
		change, changeLength := util.FromVarint64(record[n:])
		if 0 == changeLength {
			break unpack_switch
		}
		n += changeLength

		// signature
		signature, err := unpackSignature(record, &n)
		if nil != err {
			break unpack_switch
		}

		// countersignature
		countersignature, err := unpackSignature(record, &n)
		if nil != err {
			break unpack_switch
		}

		r := &PackagePurchase{
			PkgId:            pkgId,
			Buyer:            buyer,
			CashIds:          cashIds,
			Currency:         c,
			AuthorPayment:    currency.Amount(authorPayment),
			RepositoryFee:    currency.Amount(repositoryFee),
			Change:           currency.Amount(change),
			Signature:        signature,
			Countersignature: countersignature,
		}
		return r, n, nil

	case PackageDeleteTag:

		// linear identifier of the offer
		var pkgId digest.Digest
		if err := unpackDigest(record, &n, &pkgId); nil != err {
			break unpack_switch
		}

		// author public key
		author, err := unpackAccount(record, &n, testnet)
		if nil != err {
			return nil, 0, err
		}

		// signature
		signature, err := unpackSignature(record, &n)
		if nil != err {
			break unpack_switch
		}

		// countersignature
		countersignature, err := unpackSignature(record, &n)
		if nil != err {
			break unpack_switch
		}

		r := &PackageDelete{
			PkgId:            pkgId,
			Author:           author,
			Signature:        signature,
			Countersignature: countersignature,
		}
		return r, n, nil

	default: // also NullTag and InvalidTag
	}
	return nil, 0, fault.ErrNotAPackedTransaction
}

// read a Varint64 length prefixed string
func unpackString(record Packed, n *int, maximum int) (string, error) {
	length, offset := util.ClippedVarint64(record[*n:], 0, maximum)
	if 0 == offset {
		return "", fault.ErrNotAPackedTransaction
	}
	*n += offset
	s := string(record[*n : *n+length])
	*n += length
	return s, nil
}

// read a Varint64 currency code
func unpackCurrency(record Packed, n *int) (currency.Currency, error) {
	c, currencyLength := util.FromVarint64(record[*n:])
	if 0 == currencyLength {
		return currency.Nothing, fault.ErrNotAPackedTransaction
	}
	*n += currencyLength
	return currency.FromUint64(c)
}

// read a Varint64 length prefixed account
func unpackAccount(record Packed, n *int, testnet bool) (*account.Account, error) {
	length, offset := util.ClippedVarint64(record[*n:], 1, 8192)
	if 0 == offset {
		return nil, fault.ErrNotAPackedTransaction
	}
	*n += offset
	address, err := account.AccountFromBytes(record[*n : *n+length])
	if nil != err {
		return nil, err
	}
	if address.IsTesting() != testnet {
		return nil, fault.ErrWrongNetworkForPublicKey
	}
	*n += length
	return address, nil
}

// read a Varint64 length prefixed digest
func unpackDigest(record Packed, n *int, d *digest.Digest) error {
	length, offset := util.ClippedVarint64(record[*n:], 1, 8192)
	if 0 == offset || digest.Length != length {
		return fault.ErrNotAPackedTransaction
	}
	*n += offset
	err := digest.FromBytes(d, record[*n:*n+length])
	if nil != err {
		return err
	}
	*n += length
	return nil
}

// read a Varint64 length prefixed signature
func unpackSignature(record Packed, n *int) (account.Signature, error) {
	length, offset := util.ClippedVarint64(record[*n:], 1, maxSignatureLength)
	if 0 == offset {
		return nil, fault.ErrNotAPackedTransaction
	}
	*n += offset
	signature := make(account.Signature, length)
	copy(signature, record[*n:*n+length])
	*n += length
	return signature, nil
}

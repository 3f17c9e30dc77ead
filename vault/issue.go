// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
)

// StoreOffer - place a signed package offer on the ledger
//
// returns the linear identifier that purchase and delete sessions
// will use to name the package
func (v *Vault) StoreOffer(offer *transactionrecord.PackageOffer) (digest.Digest, error) {

	packed, err := offer.Pack(offer.Author)
	if nil != err {
		return digest.Digest{}, err
	}

	pkgId := packed.MakeLink()
	if v.store.Pool.Packages.Has(pkgId[:]) || v.store.Pool.Consumed.Has(pkgId[:]) {
		return digest.Digest{}, fault.ErrTransactionAlreadyExists
	}

	v.store.Pool.Packages.Put(pkgId[:], packed)
	v.log.Infof("offer stored: %v: %q version: %q", pkgId, offer.Name, offer.Version)
	return pkgId, nil
}

// IssueCash - place a cash record on the ledger
//
// external to the exchange protocol: funding of a buyer happens
// outside any session, the protocol only consumes what is issued here
func (v *Vault) IssueCash(cash *transactionrecord.Cash) (digest.Digest, error) {

	packed, err := cash.Pack(cash.Owner)
	if nil != err {
		return digest.Digest{}, err
	}

	cashId := packed.MakeLink()
	if v.store.Pool.Cash.Has(cashId[:]) || v.store.Pool.Consumed.Has(cashId[:]) {
		return digest.Digest{}, fault.ErrTransactionAlreadyExists
	}

	trx, err := v.store.NewDBTransaction()
	if nil != err {
		return digest.Digest{}, err
	}
	trx.Put(v.store.Pool.Cash, cashId[:], packed)
	ownerKey := append(append([]byte{}, cash.Owner.Bytes()...), cashId[:]...)
	trx.Put(v.store.Pool.OwnerCash, ownerKey, []byte{})
	err = trx.Commit()
	if nil != err {
		return digest.Digest{}, err
	}

	v.log.Infof("cash issued: %v: %s %s", cashId, cash.Currency, cash.Amount)
	return cashId, nil
}

// StoreFeeAgreement - record the platform fee percentage agreed
// between an author and the repository
//
// a later agreement for the same author replaces the earlier one
func (v *Vault) StoreFeeAgreement(agreement *transactionrecord.FeeAgreement) error {

	packed, err := agreement.Pack(agreement.Author)
	if nil != err {
		return err
	}

	v.store.Pool.FeeAgreements.Put(agreement.Author.Bytes(), packed)
	v.log.Infof("fee agreement stored: author: %s percent: %d", agreement.Author, agreement.Percent)
	return nil
}

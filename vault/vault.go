// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"bytes"

	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/currency"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/storage"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
	"github.com/nextworks-it/pkgmarketd/util"
)

// Vault - one party's ledger replica
type Vault struct {
	log     *logger.L
	store   *storage.Store
	testnet bool
}

// CashItem - an unconsumed cash record and its identifier
type CashItem struct {
	Id   digest.Digest
	Cash *transactionrecord.Cash
}

// LicenseItem - a license record and its identifier
type LicenseItem struct {
	Id      digest.Digest
	License *transactionrecord.LicenseGrant
}

// New - create a vault over an open store
func New(name string, store *storage.Store, testnet bool) *Vault {
	return &Vault{
		log:     logger.New(name),
		store:   store,
		testnet: testnet,
	}
}

// IsTesting - true when the vault holds test network records
func (v *Vault) IsTesting() bool {
	return v.testnet
}

// Store - the underlying record store
func (v *Vault) Store() *storage.Store {
	return v.store
}

// Resolve - map a linear identifier to its unconsumed package offer
//
// a consumed or unknown identifier yields fault.PackageNotFoundError
func (v *Vault) Resolve(pkgId digest.Digest) (*transactionrecord.PackageOffer, error) {

	if v.store.Pool.Consumed.Has(pkgId[:]) {
		return nil, fault.PackageNotFoundError(pkgId.String())
	}

	packed := v.store.Pool.Packages.Get(pkgId[:])
	if nil == packed {
		return nil, fault.PackageNotFoundError(pkgId.String())
	}

	record, _, err := transactionrecord.Packed(packed).Unpack(v.testnet)
	if nil != err {
		return nil, err
	}
	offer, ok := record.(*transactionrecord.PackageOffer)
	if !ok {
		return nil, fault.ErrNotAPackedTransaction
	}
	return offer, nil
}

// ResolveCash - map an identifier to its unconsumed cash record
func (v *Vault) ResolveCash(cashId digest.Digest) (*transactionrecord.Cash, error) {

	if v.store.Pool.Consumed.Has(cashId[:]) {
		return nil, fault.PackageNotFoundError(cashId.String())
	}

	packed := v.store.Pool.Cash.Get(cashId[:])
	if nil == packed {
		return nil, fault.PackageNotFoundError(cashId.String())
	}

	record, _, err := transactionrecord.Packed(packed).Unpack(v.testnet)
	if nil != err {
		return nil, err
	}
	cash, ok := record.(*transactionrecord.Cash)
	if !ok {
		return nil, fault.ErrNotAPackedTransaction
	}
	return cash, nil
}

// CashFor - all unconsumed cash of one owner in one currency
func (v *Vault) CashFor(owner *account.Account, c currency.Currency) ([]CashItem, error) {

	ownerBytes := owner.Bytes()

	items := []CashItem{}
	cursor := v.store.Pool.OwnerCash.NewFetchCursor()
	err := cursor.Map(func(key []byte, value []byte) error {
		if !bytes.HasPrefix(key, ownerBytes) {
			return nil
		}
		if len(key) != len(ownerBytes)+digest.Length {
			return nil
		}
		var cashId digest.Digest
		err := digest.FromBytes(&cashId, key[len(ownerBytes):])
		if nil != err {
			return err
		}
		cash, err := v.ResolveCash(cashId)
		if nil != err {
			return err
		}
		if cash.Currency != c {
			return nil
		}
		items = append(items, CashItem{
			Id:   cashId,
			Cash: cash,
		})
		return nil
	})
	if nil != err {
		return nil, err
	}
	return items, nil
}

// Balance - total unconsumed cash of one owner in one currency
func (v *Vault) Balance(owner *account.Account, c currency.Currency) (currency.Amount, error) {
	items, err := v.CashFor(owner, c)
	if nil != err {
		return 0, err
	}
	total := currency.Amount(0)
	for _, item := range items {
		total, err = total.Add(item.Cash.Amount)
		if nil != err {
			return 0, err
		}
	}
	return total, nil
}

// LicensesFor - all licenses held by one owner
func (v *Vault) LicensesFor(owner *account.Account) ([]LicenseItem, error) {

	ownerBytes := owner.Bytes()

	items := []LicenseItem{}
	cursor := v.store.Pool.Licenses.NewFetchCursor()
	err := cursor.Map(func(key []byte, value []byte) error {
		record, _, err := transactionrecord.Packed(value).Unpack(v.testnet)
		if nil != err {
			return err
		}
		license, ok := record.(*transactionrecord.LicenseGrant)
		if !ok {
			return fault.ErrNotAPackedTransaction
		}
		if !bytes.Equal(license.Buyer.Bytes(), ownerBytes) {
			return nil
		}
		var id digest.Digest
		err = digest.FromBytes(&id, key)
		if nil != err {
			return err
		}
		items = append(items, LicenseItem{
			Id:      id,
			License: license,
		})
		return nil
	})
	if nil != err {
		return nil, err
	}
	return items, nil
}

// CurrentFeePercent - the platform fee percentage agreed between an
// author and the repository
//
// a missing agreement yields fault.ErrNotFoundFeeAgreement
func (v *Vault) CurrentFeePercent(author *account.Account) (uint64, error) {

	packed := v.store.Pool.FeeAgreements.Get(author.Bytes())
	if nil == packed {
		return 0, fault.ErrNotFoundFeeAgreement
	}

	record, _, err := transactionrecord.Packed(packed).Unpack(v.testnet)
	if nil != err {
		return 0, err
	}
	agreement, ok := record.(*transactionrecord.FeeAgreement)
	if !ok {
		return 0, fault.ErrNotAPackedTransaction
	}
	return agreement.Percent, nil
}

// Transaction - fetch a committed transaction and its notary signature
func (v *Vault) Transaction(txId digest.Digest) (transactionrecord.Packed, account.Signature, bool) {

	envelope := v.store.Pool.Transactions.Get(txId[:])
	if nil == envelope {
		return nil, nil, false
	}

	sigLength, n := util.FromVarint64(envelope)
	if 0 == n || uint64(len(envelope)-n) < sigLength {
		v.log.Criticalf("corrupt transaction envelope for: %v", txId)
		return nil, nil, false
	}
	sig := account.Signature(envelope[n : n+int(sigLength)])
	packed := transactionrecord.Packed(envelope[n+int(sigLength):])
	return packed, sig, true
}

// TransactionCount - number of finalised transactions in the log
func (v *Vault) TransactionCount() uint64 {
	n, _ := v.store.Pool.Transactions.GetN(transactionCountKey)
	return n
}

// pack the notary signature in front of the transaction bytes
func makeEnvelope(packed transactionrecord.Packed, notarySignature account.Signature) []byte {
	envelope := util.ToVarint64(uint64(len(notarySignature)))
	envelope = append(envelope, notarySignature...)
	return append(envelope, packed...)
}

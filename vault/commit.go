// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"bytes"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/currency"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
	"github.com/nextworks-it/pkgmarketd/util"
)

// counter key in the transactions pool
//
// real transaction keys are 32 byte digests so a single byte key
// cannot collide
var transactionCountKey = []byte{'N'}

// output indexes of a purchase transaction
const (
	licenseOutput       = iota // the license grant
	authorPaymentOutput        // cash to the author
	repositoryFeeOutput        // cash to the repository
	changeOutput               // cash back to the buyer
)

// OutputId - derive the identifier of the nth output of a transaction
//
// every party must derive identical identifiers for the same
// transaction, so the derivation is fixed: digest of the transaction
// identifier followed by the varint encoded output index
func OutputId(txId digest.Digest, index uint64) digest.Digest {
	buffer := make([]byte, 0, digest.Length+2)
	buffer = append(buffer, txId[:]...)
	buffer = append(buffer, util.ToVarint64(index)...)
	return digest.NewDigest(buffer)
}

// CommitPurchase - atomically apply a finalised purchase transaction
//
// consumes the package offer and the cash inputs, stores the license
// grant and the payment outputs, and records the transaction with its
// notary signature
//
// replaying an already committed transaction is a no-op
func (v *Vault) CommitPurchase(
	txId digest.Digest,
	purchase *transactionrecord.PackagePurchase,
	packed transactionrecord.Packed,
	notarySignature account.Signature,
) error {

	if 0 == len(notarySignature) {
		return fault.ErrNotNotarised
	}

	if v.store.Pool.Transactions.Has(txId[:]) {
		v.log.Debugf("purchase: %v already committed", txId)
		return nil
	}

	offer, err := v.resolveForCommit(purchase.PkgId, txId)
	if nil != err {
		return err
	}

	trx, err := v.store.NewDBTransaction()
	if nil != err {
		return err
	}

	// consume the offer
	trx.Put(v.store.Pool.Consumed, purchase.PkgId[:], txId[:])
	trx.Delete(v.store.Pool.Packages, purchase.PkgId[:])

	// consume the cash inputs
	buyerBytes := purchase.Buyer.Bytes()
	for _, cashId := range purchase.CashIds {
		trx.Put(v.store.Pool.Consumed, cashId[:], txId[:])
		trx.Delete(v.store.Pool.Cash, cashId[:])
		trx.Delete(v.store.Pool.OwnerCash, append(append([]byte{}, buyerBytes...), cashId[:]...))
	}

	// the license grant output
	license := &transactionrecord.LicenseGrant{
		PkgId:    purchase.PkgId,
		Name:     offer.Name,
		Version:  offer.Version,
		Link:     offer.Link,
		Buyer:    purchase.Buyer,
		Currency: purchase.Currency,
		Price:    offer.Price,
	}
	packedLicense, err := license.Pack(purchase.Buyer)
	if nil != err {
		trx.Abort()
		return err
	}
	licenseId := OutputId(txId, licenseOutput)
	trx.Put(v.store.Pool.Licenses, licenseId[:], packedLicense)

	// the payment outputs
	type payment struct {
		index  uint64
		owner  *account.Account
		amount currency.Amount
	}
	payments := []payment{
		{authorPaymentOutput, offer.Author, purchase.AuthorPayment},
		{repositoryFeeOutput, offer.Repository, purchase.RepositoryFee},
		{changeOutput, purchase.Buyer, purchase.Change},
	}
	for _, p := range payments {
		if 0 == p.amount {
			continue
		}
		cash := &transactionrecord.Cash{
			Owner:    p.owner,
			Currency: purchase.Currency,
			Amount:   p.amount,
			Nonce:    p.index,
		}
		packedCash, err := cash.Pack(p.owner)
		if nil != err {
			trx.Abort()
			return err
		}
		cashId := OutputId(txId, p.index)
		trx.Put(v.store.Pool.Cash, cashId[:], packedCash)
		ownerKey := append(append([]byte{}, p.owner.Bytes()...), cashId[:]...)
		trx.Put(v.store.Pool.OwnerCash, ownerKey, []byte{})
	}

	// record the finalised transaction
	trx.Put(v.store.Pool.Transactions, txId[:], makeEnvelope(packed, notarySignature))
	trx.PutN(v.store.Pool.Transactions, transactionCountKey, v.TransactionCount()+1)

	err = trx.Commit()
	if nil != err {
		return err
	}
	v.log.Infof("purchase: %v committed: package: %v", txId, purchase.PkgId)
	return nil
}

// CommitDelete - atomically apply a finalised delete transaction
//
// consumes the package offer and records the transaction; a delete
// produces no outputs
//
// replaying an already committed transaction is a no-op
func (v *Vault) CommitDelete(
	txId digest.Digest,
	del *transactionrecord.PackageDelete,
	packed transactionrecord.Packed,
	notarySignature account.Signature,
) error {

	if 0 == len(notarySignature) {
		return fault.ErrNotNotarised
	}

	if v.store.Pool.Transactions.Has(txId[:]) {
		v.log.Debugf("delete: %v already committed", txId)
		return nil
	}

	_, err := v.resolveForCommit(del.PkgId, txId)
	if nil != err {
		return err
	}

	trx, err := v.store.NewDBTransaction()
	if nil != err {
		return err
	}

	trx.Put(v.store.Pool.Consumed, del.PkgId[:], txId[:])
	trx.Delete(v.store.Pool.Packages, del.PkgId[:])
	trx.Put(v.store.Pool.Transactions, txId[:], makeEnvelope(packed, notarySignature))
	trx.PutN(v.store.Pool.Transactions, transactionCountKey, v.TransactionCount()+1)

	err = trx.Commit()
	if nil != err {
		return err
	}
	v.log.Infof("delete: %v committed: package: %v", txId, del.PkgId)
	return nil
}

// resolve an offer during commit
//
// a notary sharing this store marks the inputs consumed before the
// commit runs, so a consumed mark carrying this very transaction id is
// not a conflict
func (v *Vault) resolveForCommit(pkgId digest.Digest, txId digest.Digest) (*transactionrecord.PackageOffer, error) {

	consumedBy := v.store.Pool.Consumed.Get(pkgId[:])
	if nil != consumedBy && !bytes.Equal(consumedBy, txId[:]) {
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

// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package flow

import (
	"encoding/json"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/cash"
	"github.com/nextworks-it/pkgmarketd/contract"
	"github.com/nextworks-it/pkgmarketd/currency"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/session"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
)

// Buy - purchase a license over the identified offer
//
// drives the purchase procedure against the repository named in the
// directory and returns the notarised transaction id; the price and
// currency must match the offer exactly
func (node *Node) Buy(pkgId digest.Digest, price currency.Amount, c currency.Currency) (digest.Digest, error) {
	var txId digest.Digest

	instance := instanceId(PurchaseCheckpoint, pkgId, node.Account())
	err := node.beginInstance(instance)
	if nil != err {
		return txId, err
	}
	defer node.endInstance(instance)

	checkpoint := &Checkpoint{
		Protocol: PurchaseCheckpoint,
		PkgId:    pkgId,
		Currency: c,
		Price:    price,
	}
	return node.runPurchase(instance, checkpoint)
}

func (node *Node) runPurchase(instance digest.Digest, c *Checkpoint) (digest.Digest, error) {
	var txId digest.Digest

	node.advance(instance, c, StageResolving)

	offer, err := node.vlt.Resolve(c.PkgId)
	if nil != err {
		node.finish(instance)
		return txId, err
	}
	if offer.Currency != c.Currency || offer.Price != c.Price {
		node.finish(instance)
		return txId, fault.ErrInvalidPriceMismatch
	}

	node.advance(instance, c, StageComposing)

	percent, err := node.vlt.CurrentFeePercent(offer.Author)
	if nil != err {
		node.finish(instance)
		return txId, err
	}
	fee := c.Price.Fee(percent)
	authorPayment := c.Price - fee

	inputs, change, err := cash.SelectAndCombine(node.vlt, node.Account(), c.Currency, c.Price)
	if nil != err {
		node.finish(instance)
		return txId, err
	}

	purchase := &transactionrecord.PackagePurchase{
		PkgId:         c.PkgId,
		Buyer:         node.Account(),
		CashIds:       inputs,
		Currency:      c.Currency,
		AuthorPayment: authorPayment,
		RepositoryFee: fee,
		Change:        change,
	}

	node.advance(instance, c, StageVerifying)

	// the signed flags assert the signatures the finished record will
	// carry; the responder checks the actual ones
	err = node.purchaseVerifier.Verify(contract.Context{
		Operation:        "purchase",
		InputTotal:       uint64(c.Price) + uint64(change),
		AuthorAmount:     uint64(authorPayment),
		FeeAmount:        uint64(fee),
		ChangeAmount:     uint64(change),
		Price:            uint64(offer.Price),
		FeeDue:           uint64(fee),
		InputCount:       len(inputs),
		LicenseCount:     1,
		BuyerSigned:      true,
		RepositorySigned: true,
	})
	if nil != err {
		node.finish(instance)
		return txId, err
	}

	repositoryName, repositoryAccount, err := node.dir.Repository()
	if nil != err {
		node.finish(instance)
		return txId, err
	}

	node.advance(instance, c, StageSigning)

	base, err := purchase.Pack(repositoryAccount)
	if fault.ErrInvalidSignature != err {
		node.finish(instance)
		return txId, err
	}
	purchase.Signature = node.key.Sign(base)

	node.advance(instance, c, StageCollecting)

	s, err := node.sessions.Open(node.name, repositoryName, PurchaseProtocol)
	if nil != err {
		node.finish(instance)
		return txId, err
	}
	defer s.Close()

	request, err := json.Marshal(purchase)
	if nil != err {
		node.finish(instance)
		return txId, err
	}
	err = s.Send(session.Message{Kind: session.SignRequestKind, Data: request})
	if nil != err {
		node.finish(instance)
		return txId, err
	}

	reply, err := s.Receive(node.timeout)
	if nil != err {
		node.finish(instance)
		return txId, err
	}
	switch reply.Kind {
	case session.CountersignatureKind:
		purchase.Countersignature = account.Signature(reply.Data)
	case session.RejectKind:
		node.finish(instance)
		return txId, reply.RejectError()
	default:
		node.finish(instance)
		return txId, fault.ErrSessionUnexpectedMessage
	}

	packed, err := purchase.Pack(repositoryAccount)
	if nil != err {
		node.finish(instance)
		return txId, err
	}
	txId = packed.MakeLink()

	c.Packed = packed
	node.advance(instance, c, StageFinalising)

	notarySignature, err := node.notariser.Notarise(txId, packed, purchaseInputs(purchase))
	if nil != err {
		node.abort(s, err)
		node.finish(instance)
		return txId, err
	}

	c.NotarySig = notarySignature
	node.advance(instance, c, StageDisseminating)

	err = node.vlt.CommitPurchase(txId, purchase, packed, notarySignature)
	if nil != err {
		return txId, err
	}

	err = node.disseminate(s, txId, packed, notarySignature)
	if nil != err {
		// the local commit stands; the checkpoint still holds the
		// envelope so a resume can re-deliver it
		return txId, err
	}

	node.finish(instance)
	node.log.Infof("instance: %v stage: %s transaction: %v", instance, StageDone, txId)
	return txId, nil
}

// the records a purchase consumes, offer first
func purchaseInputs(purchase *transactionrecord.PackagePurchase) []digest.Digest {
	inputs := make([]digest.Digest, 0, 1+len(purchase.CashIds))
	inputs = append(inputs, purchase.PkgId)
	return append(inputs, purchase.CashIds...)
}

// replay or re-initiate an interrupted purchase instance
func (node *Node) resumePurchase(instance digest.Digest, c *Checkpoint) (digest.Digest, error) {
	var txId digest.Digest

	err := node.beginInstance(instance)
	if nil != err {
		return txId, err
	}
	defer node.endInstance(instance)

	node.log.Infof("instance: %v resuming from stage: %s", instance, c.Stage)

	// before the notary was involved nothing external happened, so the
	// recorded request simply runs again
	if c.Stage < StageFinalising || 0 == len(c.Packed) {
		c.Packed = nil
		c.NotarySig = nil
		return node.runPurchase(instance, c)
	}

	record, _, err := c.Packed.Unpack(node.vlt.IsTesting())
	if nil != err {
		return txId, err
	}
	purchase, ok := record.(*transactionrecord.PackagePurchase)
	if !ok {
		return txId, fault.ErrNotACheckpoint
	}
	txId = c.Packed.MakeLink()

	notarySignature := c.NotarySig
	if 0 == len(notarySignature) {
		notarySignature, err = node.notariser.Notarise(txId, c.Packed, purchaseInputs(purchase))
		if nil != err {
			node.finish(instance)
			return txId, err
		}
		c.NotarySig = notarySignature
		node.advance(instance, c, StageDisseminating)
	}

	err = node.vlt.CommitPurchase(txId, purchase, c.Packed, notarySignature)
	if nil != err {
		return txId, err
	}

	repositoryName, _, err := node.dir.Repository()
	if nil != err {
		return txId, err
	}
	s, err := node.sessions.Open(node.name, repositoryName, PurchaseProtocol)
	if nil != err {
		return txId, err
	}
	defer s.Close()

	err = node.disseminate(s, txId, c.Packed, notarySignature)
	if nil != err {
		return txId, err
	}

	node.finish(instance)
	return txId, nil
}

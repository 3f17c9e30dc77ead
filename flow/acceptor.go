// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package flow

import (
	"bytes"
	"encoding/json"

	"github.com/nextworks-it/pkgmarketd/contract"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/session"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
)

// responder side of the purchase procedure
//
// nothing is committed until a verified finality envelope arrives; a
// countersigned request that never finalises leaves no trace
func (node *Node) acceptPurchase(peer string, s session.Session) {
	defer s.Close()

	m, err := s.Receive(node.timeout)
	if nil != err {
		node.log.Warnf("peer: %q receive error: %s", peer, err)
		return
	}
	switch m.Kind {
	case session.SignRequestKind:
	case session.FinalisedKind:
		// a restarted initiator re-delivering the envelope
		node.finalise(peer, s, m)
		return
	default:
		node.log.Errorf("peer: %q unexpected message kind: %d", peer, m.Kind)
		return
	}

	purchase := &transactionrecord.PackagePurchase{}
	err = json.Unmarshal(m.Data, purchase)
	if nil != err {
		node.reject(s, session.Declined, "malformed purchase request")
		return
	}

	offer, err := node.vlt.Resolve(purchase.PkgId)
	if nil != err {
		node.reject(s, session.NotFound, purchase.PkgId.String())
		return
	}
	if purchase.Currency != offer.Currency {
		node.reject(s, session.Declined, "currency does not match the offer")
		return
	}

	// the funding records must exist, belong to the buyer and be in
	// the offer currency
	inputTotal := uint64(0)
	for _, cashId := range purchase.CashIds {
		cashRecord, err := node.vlt.ResolveCash(cashId)
		if nil != err {
			node.reject(s, session.NotFound, cashId.String())
			return
		}
		if !bytes.Equal(cashRecord.Owner.Bytes(), purchase.Buyer.Bytes()) {
			node.reject(s, session.Declined, "cash record is not the buyer's")
			return
		}
		if cashRecord.Currency != offer.Currency {
			node.reject(s, session.Declined, "cash record currency mismatch")
			return
		}
		inputTotal += uint64(cashRecord.Amount)
	}

	percent, err := node.vlt.CurrentFeePercent(offer.Author)
	if nil != err {
		node.reject(s, session.Declined, err.Error())
		return
	}

	base, err := basePack(purchase, node)
	if nil != err {
		node.reject(s, session.Declined, err.Error())
		return
	}
	err = purchase.Buyer.CheckSignature(base, purchase.Signature)
	if nil != err {
		node.reject(s, session.Declined, "invalid buyer signature")
		return
	}

	err = node.purchaseVerifier.Verify(contract.Context{
		Operation:        "purchase",
		InputTotal:       inputTotal,
		AuthorAmount:     uint64(purchase.AuthorPayment),
		FeeAmount:        uint64(purchase.RepositoryFee),
		ChangeAmount:     uint64(purchase.Change),
		Price:            uint64(offer.Price),
		FeeDue:           uint64(offer.Price.Fee(percent)),
		InputCount:       len(purchase.CashIds),
		LicenseCount:     1,
		BuyerSigned:      true,
		RepositorySigned: true,
	})
	if nil != err {
		node.reject(s, session.Declined, err.Error())
		return
	}

	if nil != node.purchaseCheck {
		err = node.purchaseCheck(node, purchase, offer)
		if nil != err {
			node.reject(s, session.Declined, err.Error())
			return
		}
	}

	// countersign the message including the buyer signature
	partial, err := purchase.Pack(node.Account())
	if fault.ErrInvalidSignature != err {
		node.reject(s, session.Declined, "unsignable purchase request")
		return
	}
	err = s.Send(session.Message{
		Kind: session.CountersignatureKind,
		Data: node.key.Sign(partial),
	})
	if nil != err {
		node.log.Warnf("peer: %q send error: %s", peer, err)
		return
	}

	node.awaitFinality(peer, s)
}

// responder side of the delete procedure
func (node *Node) acceptDelete(peer string, s session.Session) {
	defer s.Close()

	m, err := s.Receive(node.timeout)
	if nil != err {
		node.log.Warnf("peer: %q receive error: %s", peer, err)
		return
	}
	switch m.Kind {
	case session.IdentifierKind:
	case session.FinalisedKind:
		node.finalise(peer, s, m)
		return
	default:
		node.log.Errorf("peer: %q unexpected message kind: %d", peer, m.Kind)
		return
	}

	var pkgId digest.Digest
	err = digest.FromBytes(&pkgId, m.Data)
	if nil != err {
		node.reject(s, session.Declined, "malformed identifier")
		return
	}
	offer, err := node.vlt.Resolve(pkgId)
	if nil != err {
		node.reject(s, session.NotFound, pkgId.String())
		return
	}
	err = s.Send(session.Message{Kind: session.AckKind})
	if nil != err {
		node.log.Warnf("peer: %q send error: %s", peer, err)
		return
	}

	m, err = s.Receive(node.timeout)
	if nil != err {
		node.log.Warnf("peer: %q receive error: %s", peer, err)
		return
	}
	if session.SignRequestKind != m.Kind {
		node.log.Errorf("peer: %q unexpected message kind: %d", peer, m.Kind)
		return
	}

	del := &transactionrecord.PackageDelete{}
	err = json.Unmarshal(m.Data, del)
	if nil != err {
		node.reject(s, session.Declined, "malformed delete request")
		return
	}
	if del.PkgId != pkgId {
		node.reject(s, session.Declined, "identifier mismatch")
		return
	}

	// only the offer's author may withdraw it
	if !bytes.Equal(del.Author.Bytes(), offer.Author.Bytes()) {
		node.reject(s, session.Declined, fault.ErrInvalidOwnerOrRegistrant.Error())
		return
	}

	base, err := basePack(del, node)
	if nil != err {
		node.reject(s, session.Declined, err.Error())
		return
	}
	err = del.Author.CheckSignature(base, del.Signature)
	if nil != err {
		node.reject(s, session.Declined, "invalid author signature")
		return
	}

	err = node.deleteVerifier.Verify(contract.Context{
		Operation:        "delete",
		AuthorSigned:     true,
		RepositorySigned: true,
	})
	if nil != err {
		node.reject(s, session.Declined, err.Error())
		return
	}

	if nil != node.deleteCheck {
		err = node.deleteCheck(node, del, offer)
		if nil != err {
			node.reject(s, session.Declined, err.Error())
			return
		}
	}

	partial, err := del.Pack(node.Account())
	if fault.ErrInvalidSignature != err {
		node.reject(s, session.Declined, "unsignable delete request")
		return
	}
	err = s.Send(session.Message{
		Kind: session.CountersignatureKind,
		Data: node.key.Sign(partial),
	})
	if nil != err {
		node.log.Warnf("peer: %q send error: %s", peer, err)
		return
	}

	node.awaitFinality(peer, s)
}

// wait for the envelope or an abort after countersigning
func (node *Node) awaitFinality(peer string, s session.Session) {
	m, err := s.Receive(node.timeout)
	if nil != err {
		node.log.Warnf("peer: %q finality receive error: %s", peer, err)
		return
	}
	switch m.Kind {
	case session.FinalisedKind:
		node.finalise(peer, s, m)
	case session.AbortKind:
		node.log.Warnf("peer: %q aborted: %s", peer, m.Reason)
	default:
		node.log.Errorf("peer: %q unexpected message kind: %d", peer, m.Kind)
	}
}

// verify a finality envelope and commit its transaction
//
// the transaction id must match the packed record and the notary
// signature must verify against the directory's notary account
func (node *Node) finalise(peer string, s session.Session, m session.Message) {

	txId, packed, notarySignature, err := unpackEnvelope(m.Data)
	if nil != err {
		node.reject(s, session.Declined, "corrupt finality envelope")
		return
	}
	if txId != packed.MakeLink() {
		node.reject(s, session.Declined, "transaction id mismatch")
		return
	}

	_, notaryAccount, err := node.dir.Notary()
	if nil != err {
		node.reject(s, session.Declined, err.Error())
		return
	}
	err = notaryAccount.CheckSignature(packed, notarySignature)
	if nil != err {
		node.reject(s, session.Declined, "invalid notary signature")
		return
	}

	record, _, err := packed.Unpack(node.vlt.IsTesting())
	if nil != err {
		node.reject(s, session.Declined, err.Error())
		return
	}
	switch tx := record.(type) {
	case *transactionrecord.PackagePurchase:
		err = node.vlt.CommitPurchase(txId, tx, packed, notarySignature)
	case *transactionrecord.PackageDelete:
		err = node.vlt.CommitDelete(txId, tx, packed, notarySignature)
	default:
		err = fault.ErrNotAPackedTransaction
	}
	if nil != err {
		node.log.Errorf("peer: %q commit error: %s", peer, err)
		node.reject(s, session.Declined, err.Error())
		return
	}

	err = s.Send(session.Message{Kind: session.AckKind})
	if nil != err {
		node.log.Warnf("peer: %q acknowledge error: %s", peer, err)
	}
	node.log.Infof("peer: %q transaction: %v committed", peer, txId)
}

func (node *Node) reject(s session.Session, code session.RejectCode, reason string) {
	err := s.Send(session.Message{
		Kind:   session.RejectKind,
		Reject: code,
		Reason: reason,
	})
	if nil != err {
		node.log.Warnf("reject send error: %s", err)
	}
}

// pack the unsigned base message of a two signature record
//
// the returned bytes are exactly what the initiator's signature must
// cover
func basePack(record interface{}, node *Node) ([]byte, error) {
	var base []byte
	var err error

	switch r := record.(type) {
	case *transactionrecord.PackagePurchase:
		unsigned := *r
		unsigned.Signature = nil
		unsigned.Countersignature = nil
		base, err = unsigned.Pack(node.Account())
	case *transactionrecord.PackageDelete:
		unsigned := *r
		unsigned.Signature = nil
		unsigned.Countersignature = nil
		base, err = unsigned.Pack(node.Account())
	default:
		return nil, fault.ErrNotAPackedTransaction
	}
	if fault.ErrInvalidSignature == err {
		return base, nil
	}
	if nil != err {
		return nil, err
	}
	return nil, fault.ErrInvalidSignature
}

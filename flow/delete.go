// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package flow

import (
	"bytes"
	"encoding/json"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/contract"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/session"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
)

// Delete - withdraw an offer this node authored
//
// drives the delete procedure against the repository named in the
// directory and returns the notarised transaction id; the offer must
// name this node as its author
func (node *Node) Delete(pkgId digest.Digest) (digest.Digest, error) {
	var txId digest.Digest

	instance := instanceId(DeleteCheckpoint, pkgId, node.Account())
	err := node.beginInstance(instance)
	if nil != err {
		return txId, err
	}
	defer node.endInstance(instance)

	checkpoint := &Checkpoint{
		Protocol: DeleteCheckpoint,
		PkgId:    pkgId,
	}
	return node.runDelete(instance, checkpoint)
}

func (node *Node) runDelete(instance digest.Digest, c *Checkpoint) (digest.Digest, error) {
	var txId digest.Digest

	node.advance(instance, c, StageResolving)

	offer, err := node.vlt.Resolve(c.PkgId)
	if nil != err {
		node.finish(instance)
		return txId, err
	}
	if !bytes.Equal(offer.Author.Bytes(), node.Account().Bytes()) {
		node.finish(instance)
		return txId, fault.ErrInvalidOwnerOrRegistrant
	}

	repositoryName, repositoryAccount, err := node.dir.Repository()
	if nil != err {
		node.finish(instance)
		return txId, err
	}

	s, err := node.sessions.Open(node.name, repositoryName, DeleteProtocol)
	if nil != err {
		node.finish(instance)
		return txId, err
	}
	defer s.Close()

	// confirm the responder can resolve the offer before composing
	err = s.Send(session.Message{Kind: session.IdentifierKind, Data: c.PkgId[:]})
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
	case session.AckKind:
	case session.RejectKind:
		node.finish(instance)
		return txId, reply.RejectError()
	default:
		node.finish(instance)
		return txId, fault.ErrSessionUnexpectedMessage
	}

	node.advance(instance, c, StageComposing)

	del := &transactionrecord.PackageDelete{
		PkgId:  c.PkgId,
		Author: node.Account(),
	}

	node.advance(instance, c, StageVerifying)

	err = node.deleteVerifier.Verify(contract.Context{
		Operation:        "delete",
		AuthorSigned:     true,
		RepositorySigned: true,
	})
	if nil != err {
		node.finish(instance)
		return txId, err
	}

	node.advance(instance, c, StageSigning)

	base, err := del.Pack(repositoryAccount)
	if fault.ErrInvalidSignature != err {
		node.finish(instance)
		return txId, err
	}
	del.Signature = node.key.Sign(base)

	node.advance(instance, c, StageCollecting)

	request, err := json.Marshal(del)
	if nil != err {
		node.finish(instance)
		return txId, err
	}
	err = s.Send(session.Message{Kind: session.SignRequestKind, Data: request})
	if nil != err {
		node.finish(instance)
		return txId, err
	}

	reply, err = s.Receive(node.timeout)
	if nil != err {
		node.finish(instance)
		return txId, err
	}
	switch reply.Kind {
	case session.CountersignatureKind:
		del.Countersignature = account.Signature(reply.Data)
	case session.RejectKind:
		node.finish(instance)
		return txId, reply.RejectError()
	default:
		node.finish(instance)
		return txId, fault.ErrSessionUnexpectedMessage
	}

	packed, err := del.Pack(repositoryAccount)
	if nil != err {
		node.finish(instance)
		return txId, err
	}
	txId = packed.MakeLink()

	c.Packed = packed
	node.advance(instance, c, StageFinalising)

	notarySignature, err := node.notariser.Notarise(txId, packed, []digest.Digest{c.PkgId})
	if nil != err {
		node.abort(s, err)
		node.finish(instance)
		return txId, err
	}

	c.NotarySig = notarySignature
	node.advance(instance, c, StageDisseminating)

	err = node.vlt.CommitDelete(txId, del, packed, notarySignature)
	if nil != err {
		return txId, err
	}

	err = node.disseminate(s, txId, packed, notarySignature)
	if nil != err {
		return txId, err
	}

	node.finish(instance)
	node.log.Infof("instance: %v stage: %s transaction: %v", instance, StageDone, txId)
	return txId, nil
}

// replay or re-initiate an interrupted delete instance
func (node *Node) resumeDelete(instance digest.Digest, c *Checkpoint) (digest.Digest, error) {
	var txId digest.Digest

	err := node.beginInstance(instance)
	if nil != err {
		return txId, err
	}
	defer node.endInstance(instance)

	node.log.Infof("instance: %v resuming from stage: %s", instance, c.Stage)

	if c.Stage < StageFinalising || 0 == len(c.Packed) {
		c.Packed = nil
		c.NotarySig = nil
		return node.runDelete(instance, c)
	}

	record, _, err := c.Packed.Unpack(node.vlt.IsTesting())
	if nil != err {
		return txId, err
	}
	del, ok := record.(*transactionrecord.PackageDelete)
	if !ok {
		return txId, fault.ErrNotACheckpoint
	}
	txId = c.Packed.MakeLink()

	notarySignature := c.NotarySig
	if 0 == len(notarySignature) {
		notarySignature, err = node.notariser.Notarise(txId, c.Packed, []digest.Digest{c.PkgId})
		if nil != err {
			node.finish(instance)
			return txId, err
		}
		c.NotarySig = notarySignature
		node.advance(instance, c, StageDisseminating)
	}

	err = node.vlt.CommitDelete(txId, del, c.Packed, notarySignature)
	if nil != err {
		return txId, err
	}

	repositoryName, _, err := node.dir.Repository()
	if nil != err {
		return txId, err
	}
	s, err := node.sessions.Open(node.name, repositoryName, DeleteProtocol)
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

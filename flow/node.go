// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package flow

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/contract"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/directory"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/session"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
	"github.com/nextworks-it/pkgmarketd/vault"
)

// protocol names on the session wire
const (
	PurchaseProtocol = "purchase"
	DeleteProtocol   = "delete"
)

// timeouts and in flight instance expiry
const (
	defaultTimeout = 30 * time.Second
	flightExpiry   = 2 * time.Hour
	flightSweep    = 10 * time.Minute
)

// Notariser - the uniqueness service an initiator submits to
//
// the single node notary satisfies this directly; a remote notary
// client would satisfy it over a transport
type Notariser interface {
	Account() *account.Account
	Notarise(txId digest.Digest, packed transactionrecord.Packed, inputs []digest.Digest) (account.Signature, error)
}

// PurchaseCheck - business level acceptance hook on the responding side
//
// runs after all protocol checks pass; a non nil return declines the
// request and its text travels back to the initiator as the reason
type PurchaseCheck func(node *Node, purchase *transactionrecord.PackagePurchase, offer *transactionrecord.PackageOffer) error

// DeleteCheck - business level acceptance hook for delete requests
type DeleteCheck func(node *Node, del *transactionrecord.PackageDelete, offer *transactionrecord.PackageOffer) error

// Config - everything a node needs to run flows
type Config struct {
	Name          string
	Key           *account.PrivateKey
	Vault         *vault.Vault
	Directory     *directory.Directory
	Sessions      session.Opener
	Notariser     Notariser
	PurchaseCheck PurchaseCheck // nil: accept whatever passes the rules
	DeleteCheck   DeleteCheck   // nil: accept any authorised delete
	Timeout       time.Duration // zero: default
}

// Node - one party of the marketplace
type Node struct {
	log              *logger.L
	name             string
	key              *account.PrivateKey
	vlt              *vault.Vault
	dir              *directory.Directory
	sessions         session.Opener
	notariser        Notariser
	purchaseVerifier *contract.Verifier
	deleteVerifier   *contract.Verifier
	purchaseCheck    PurchaseCheck
	deleteCheck      DeleteCheck
	inFlight         *gocache.Cache
	timeout          time.Duration
}

// NewNode - create a node and register its responder side
func NewNode(cfg Config) (*Node, error) {
	if nil == cfg.Key || nil == cfg.Vault || nil == cfg.Directory ||
		nil == cfg.Sessions || nil == cfg.Notariser {
		return nil, fault.ErrNotInitialised
	}

	purchaseVerifier, err := contract.New(cfg.Name+"-purchase", contract.PurchaseRules)
	if nil != err {
		return nil, err
	}
	deleteVerifier, err := contract.New(cfg.Name+"-delete", contract.DeleteRules)
	if nil != err {
		return nil, err
	}

	timeout := cfg.Timeout
	if 0 == timeout {
		timeout = defaultTimeout
	}

	node := &Node{
		log:              logger.New("flow-" + cfg.Name),
		name:             cfg.Name,
		key:              cfg.Key,
		vlt:              cfg.Vault,
		dir:              cfg.Directory,
		sessions:         cfg.Sessions,
		notariser:        cfg.Notariser,
		purchaseVerifier: purchaseVerifier,
		deleteVerifier:   deleteVerifier,
		purchaseCheck:    cfg.PurchaseCheck,
		deleteCheck:      cfg.DeleteCheck,
		inFlight:         gocache.New(flightExpiry, flightSweep),
		timeout:          timeout,
	}

	cfg.Sessions.Register(cfg.Name, node.Dispatch)

	return node, nil
}

// Name - the party name of this node
func (node *Node) Name() string {
	return node.name
}

// Account - the public account of this node
func (node *Node) Account() *account.Account {
	return node.key.Account()
}

// Vault - the record store of this node
func (node *Node) Vault() *vault.Vault {
	return node.vlt
}

// Dispatch - route an incoming session to its responder
//
// usable directly as a session handler for stream transports
func (node *Node) Dispatch(protocol string, peer string, s session.Session) {
	switch protocol {
	case PurchaseProtocol:
		node.acceptPurchase(peer, s)
	case DeleteProtocol:
		node.acceptDelete(peer, s)
	case NotariseProtocol:
		node.acceptNotarise(peer, s)
	default:
		node.log.Errorf("peer: %q unknown protocol: %q", peer, protocol)
		s.Close()
	}
}

// claim an instance slot; a second initiation of the same instance
// while the first is still running is refused
func (node *Node) beginInstance(instance digest.Digest) error {
	err := node.inFlight.Add(string(instance[:]), struct{}{}, gocache.DefaultExpiration)
	if nil != err {
		return fault.ErrTransactionAlreadyInFlight
	}
	return nil
}

func (node *Node) endInstance(instance digest.Digest) {
	node.inFlight.Delete(string(instance[:]))
}

// persist the stage transition before acting on it
func (node *Node) advance(instance digest.Digest, c *Checkpoint, stage Stage) {
	c.Stage = stage
	node.vlt.Store().Pool.Checkpoints.Put(instance[:], c.Pack())
	node.log.Infof("instance: %v stage: %s", instance, stage)
}

// drop the checkpoint once the instance has ended, completed or not
func (node *Node) finish(instance digest.Digest) {
	node.vlt.Store().Pool.Checkpoints.Delete(instance[:])
}

// Resume - pick up instances interrupted by a restart
//
// instances checkpointed at or after finalising are replayed to
// completion, which is safe as notarisation and commit are both
// idempotent; earlier instances are re-initiated from their recorded
// request. returns the transaction ids of the completed instances.
func (node *Node) Resume() ([]digest.Digest, error) {

	type stored struct {
		instance digest.Digest
		c        *Checkpoint
	}
	pending := []stored{}

	cursor := node.vlt.Store().Pool.Checkpoints.NewFetchCursor()
	err := cursor.Map(func(key []byte, value []byte) error {
		var instance digest.Digest
		err := digest.FromBytes(&instance, key)
		if nil != err {
			return err
		}
		c, err := UnpackCheckpoint(value)
		if nil != err {
			return err
		}
		pending = append(pending, stored{instance: instance, c: c})
		return nil
	})
	if nil != err {
		return nil, err
	}

	completed := []digest.Digest{}
	for _, p := range pending {
		var txId digest.Digest
		var err error
		switch p.c.Protocol {
		case PurchaseCheckpoint:
			txId, err = node.resumePurchase(p.instance, p.c)
		case DeleteCheckpoint:
			txId, err = node.resumeDelete(p.instance, p.c)
		default:
			err = fault.ErrNotACheckpoint
		}
		if fault.ErrTransactionAlreadyInFlight == err {
			// still running, not interrupted
			continue
		}
		if nil != err {
			node.log.Errorf("instance: %v resume error: %s", p.instance, err)
			return completed, err
		}
		completed = append(completed, txId)
	}
	return completed, nil
}

// deliver the finality envelope and wait for the acknowledgement
func (node *Node) disseminate(s session.Session, txId digest.Digest, packed transactionrecord.Packed, notarySignature account.Signature) error {
	err := s.Send(session.Message{
		Kind: session.FinalisedKind,
		Data: packEnvelope(txId, packed, notarySignature),
	})
	if nil != err {
		return err
	}
	reply, err := s.Receive(node.timeout)
	if nil != err {
		return err
	}
	if session.AckKind != reply.Kind {
		return fault.RejectedError(reply.Reason)
	}
	return nil
}

// tell the responder the instance is dead so it can forget it
func (node *Node) abort(s session.Session, reason error) {
	err := s.Send(session.Message{
		Kind:   session.AbortKind,
		Reject: session.Conflict,
		Reason: reason.Error(),
	})
	if nil != err {
		node.log.Warnf("abort send error: %s", err)
	}
}

// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package notary - single node conflict detection and finality
//
// the notary keeps the authoritative consumed set. a transaction is
// final once the notary has recorded every input as consumed by that
// transaction and signed the transaction bytes.
//
// requests are serialised, so of two racing transactions that share
// an input exactly one obtains a signature; the other receives a
// consensus conflict.
//
// notarisation is idempotent: a transaction whose inputs are already
// recorded against its own identifier is signed again, so an
// initiator that crashed before disseminating can simply retry.
package notary

import (
	"bytes"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/storage"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
)

// Notary - a single notarisation service
type Notary struct {
	sync.Mutex

	log   *logger.L
	key   *account.PrivateKey
	store *storage.Store
}

// New - create a notary over its own store
//
// the store records the consumed set so finality survives a restart
func New(name string, key *account.PrivateKey, store *storage.Store) *Notary {
	return &Notary{
		log:   logger.New(name),
		key:   key,
		store: store,
	}
}

// Account - the notary's public identity
func (n *Notary) Account() *account.Account {
	return n.key.Account()
}

// Notarise - record the inputs as consumed and sign the transaction
//
// any input already consumed by a different transaction yields
// fault.ErrConsensusConflict and nothing is recorded
func (n *Notary) Notarise(txId digest.Digest, packed transactionrecord.Packed, inputs []digest.Digest) (account.Signature, error) {

	if 0 == len(inputs) {
		return nil, fault.ErrInvalidCount
	}
	if txId != packed.MakeLink() {
		return nil, fault.ErrNotAPackedTransaction
	}

	n.Lock()
	defer n.Unlock()

	pending := make([]digest.Digest, 0, len(inputs))
	for _, input := range inputs {
		existing := n.store.Pool.Consumed.Get(input[:])
		if nil == existing {
			pending = append(pending, input)
			continue
		}
		if !bytes.Equal(existing, txId[:]) {
			n.log.Warnf("conflict: input: %v consumed by: %x requested by: %v", input, existing, txId)
			return nil, fault.ErrConsensusConflict
		}
	}

	if 0 != len(pending) {
		trx, err := n.store.NewDBTransaction()
		if nil != err {
			return nil, err
		}
		for _, input := range pending {
			trx.Put(n.store.Pool.Consumed, input[:], txId[:])
		}
		err = trx.Commit()
		if nil != err {
			return nil, err
		}
		n.log.Infof("notarised: %v inputs: %d", txId, len(inputs))
	} else {
		n.log.Infof("re-notarised: %v", txId)
	}

	return n.key.Sign(packed), nil
}

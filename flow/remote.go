// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package flow

import (
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/notary"
	"github.com/nextworks-it/pkgmarketd/session"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
	"github.com/nextworks-it/pkgmarketd/util"
)

// session protocol for submitting a transaction to the notary
const NotariseProtocol = "notarise"

// the offer identifier plus the cash input limit of a purchase
const maxNotariseInputs = 101

// RemoteNotary - submit notarisations to the notary's node over a session
//
// any returned signature is checked against the notary's account
// before it is handed back, so a compromised host cannot forge
// finality
type RemoteNotary struct {
	log      *logger.L
	sessions session.Opener
	from     string
	host     string
	owner    *account.Account
	timeout  time.Duration
}

// NewRemoteNotary - create a notariser client
//
// host is the party name running the notary; owner is the notary's
// account as recorded in the directory
func NewRemoteNotary(sessions session.Opener, from string, host string, owner *account.Account, timeout time.Duration) *RemoteNotary {
	if 0 == timeout {
		timeout = defaultTimeout
	}
	return &RemoteNotary{
		log:      logger.New("notary-client-" + from),
		sessions: sessions,
		from:     from,
		host:     host,
		owner:    owner,
		timeout:  timeout,
	}
}

// Account - the notary's public identity
func (r *RemoteNotary) Account() *account.Account {
	return r.owner
}

// Notarise - submit the transaction and await the notary's signature
func (r *RemoteNotary) Notarise(txId digest.Digest, packed transactionrecord.Packed, inputs []digest.Digest) (account.Signature, error) {

	s, err := r.sessions.Open(r.from, r.host, NotariseProtocol)
	if nil != err {
		return nil, err
	}
	defer s.Close()

	err = s.Send(session.Message{
		Kind: session.SignRequestKind,
		Data: packNotariseRequest(txId, packed, inputs),
	})
	if nil != err {
		return nil, err
	}

	reply, err := s.Receive(r.timeout)
	if nil != err {
		return nil, err
	}

	switch reply.Kind {
	case session.CountersignatureKind:
		signature := account.Signature(reply.Data)
		err = r.owner.CheckSignature(packed, signature)
		if nil != err {
			return nil, err
		}
		return signature, nil
	case session.RejectKind:
		return nil, reply.RejectError()
	default:
		r.log.Errorf("host: %q unexpected reply kind: %d", r.host, reply.Kind)
		return nil, fault.ErrSessionUnexpectedMessage
	}
}

// answer one notarise session with the locally hosted notary
func (node *Node) acceptNotarise(peer string, s session.Session) {
	defer s.Close()
	log := node.log

	local, ok := node.notariser.(*notary.Notary)
	if !ok {
		log.Errorf("peer: %q notarise request but no local notary", peer)
		node.reject(s, session.Declined, "not a notary host")
		return
	}

	m, err := s.Receive(node.timeout)
	if nil != err {
		log.Warnf("peer: %q receive error: %s", peer, err)
		return
	}
	if session.SignRequestKind != m.Kind {
		log.Errorf("peer: %q unexpected kind: %d", peer, m.Kind)
		return
	}

	txId, packed, inputs, err := unpackNotariseRequest(m.Data)
	if nil != err {
		node.reject(s, session.Declined, err.Error())
		return
	}

	signature, err := local.Notarise(txId, packed, inputs)
	if fault.ErrConsensusConflict == err {
		node.reject(s, session.Conflict, err.Error())
		return
	} else if nil != err {
		node.reject(s, session.Declined, err.Error())
		return
	}

	err = s.Send(session.Message{
		Kind: session.CountersignatureKind,
		Data: signature,
	})
	if nil != err {
		log.Warnf("peer: %q send error: %s", peer, err)
		return
	}
	log.Infof("peer: %q notarised: %v", peer, txId)
}

// notarise request: transaction id, packed record, consumed inputs
func packNotariseRequest(txId digest.Digest, packed transactionrecord.Packed, inputs []digest.Digest) []byte {
	buffer := append([]byte{}, txId[:]...)
	buffer = append(buffer, util.ToVarint64(uint64(len(packed)))...)
	buffer = append(buffer, packed...)
	buffer = append(buffer, util.ToVarint64(uint64(len(inputs)))...)
	for _, input := range inputs {
		buffer = append(buffer, input[:]...)
	}
	return buffer
}

func unpackNotariseRequest(buffer []byte) (digest.Digest, transactionrecord.Packed, []digest.Digest, error) {
	var txId digest.Digest

	if len(buffer) < digest.Length+1 {
		return txId, nil, nil, fault.ErrNotAPackedTransaction
	}
	err := digest.FromBytes(&txId, buffer[:digest.Length])
	if nil != err {
		return txId, nil, nil, err
	}
	n := digest.Length

	packedLength, lengthLength := util.FromVarint64(buffer[n:])
	if 0 == lengthLength {
		return txId, nil, nil, fault.ErrNotAPackedTransaction
	}
	n += lengthLength
	if 0 == packedLength || uint64(len(buffer)-n) < packedLength {
		return txId, nil, nil, fault.ErrNotAPackedTransaction
	}
	packed := make(transactionrecord.Packed, packedLength)
	copy(packed, buffer[n:n+int(packedLength)])
	n += int(packedLength)

	count, countLength := util.ClippedVarint64(buffer[n:], 0, maxNotariseInputs)
	if 0 == countLength {
		return txId, nil, nil, fault.ErrNotAPackedTransaction
	}
	n += countLength
	if len(buffer)-n != count*digest.Length {
		return txId, nil, nil, fault.ErrNotAPackedTransaction
	}

	inputs := make([]digest.Digest, count)
	for i := 0; i < count; i += 1 {
		err = digest.FromBytes(&inputs[i], buffer[n:n+digest.Length])
		if nil != err {
			return txId, nil, nil, err
		}
		n += digest.Length
	}

	return txId, packed, inputs, nil
}

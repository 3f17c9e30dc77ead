// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/util"
)

// Kind - message discriminator
type Kind byte

// message kinds
const (
	NullKind Kind = iota
	HelloKind
	IdentifierKind
	SignRequestKind
	CountersignatureKind
	RejectKind
	FinalisedKind
	AckKind
	AbortKind
)

// RejectCode - why a responder refused to countersign
type RejectCode byte

// reject codes
const (
	NoReject RejectCode = iota
	NotFound            // the identifier did not resolve on the responder side
	Declined            // the acceptance check said no
	Conflict            // the notary reported a consumed input
)

// Message - one protocol message
//
// the meaning of Data depends on Kind: the linear identifier for
// IdentifierKind, the packed transaction for SignRequestKind, the
// countersignature for CountersignatureKind and the finality envelope
// for FinalisedKind
type Message struct {
	Kind   Kind
	Reject RejectCode
	Reason string
	Data   []byte
}

// limits
const (
	maxReasonLength = 256
	maxDataLength   = 1048576
)

// Pack - serialise a message for a byte stream transport
func (m Message) Pack() []byte {
	buffer := []byte{byte(m.Kind), byte(m.Reject)}
	buffer = append(buffer, util.ToVarint64(uint64(len(m.Reason)))...)
	buffer = append(buffer, m.Reason...)
	buffer = append(buffer, util.ToVarint64(uint64(len(m.Data)))...)
	return append(buffer, m.Data...)
}

// UnpackMessage - deserialise one message
func UnpackMessage(buffer []byte) (Message, int, error) {
	if len(buffer) < 2 {
		return Message{}, 0, fault.ErrNotAPackedTransaction
	}
	m := Message{
		Kind:   Kind(buffer[0]),
		Reject: RejectCode(buffer[1]),
	}
	n := 2

	reasonLength, reasonOffset := util.ClippedVarint64(buffer[n:], 0, maxReasonLength)
	if 0 == reasonOffset {
		return Message{}, 0, fault.ErrNotAPackedTransaction
	}
	n += reasonOffset
	if len(buffer) < n+reasonLength {
		return Message{}, 0, fault.ErrNotAPackedTransaction
	}
	m.Reason = string(buffer[n : n+reasonLength])
	n += reasonLength

	dataLength, dataOffset := util.ClippedVarint64(buffer[n:], 0, maxDataLength)
	if 0 == dataOffset {
		return Message{}, 0, fault.ErrNotAPackedTransaction
	}
	n += dataOffset
	if len(buffer) < n+dataLength {
		return Message{}, 0, fault.ErrNotAPackedTransaction
	}
	if 0 != dataLength {
		m.Data = make([]byte, dataLength)
		copy(m.Data, buffer[n:n+dataLength])
	}
	n += dataLength

	return m, n, nil
}

// RejectError - map a reject message to its protocol error
func (m Message) RejectError() error {
	switch m.Reject {
	case NotFound:
		return fault.PackageNotFoundError(m.Reason)
	case Conflict:
		return fault.ConsensusConflictError(m.Reason)
	default:
		return fault.RejectedError(m.Reason)
	}
}

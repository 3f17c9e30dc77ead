// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package flow

import (
	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/currency"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
	"github.com/nextworks-it/pkgmarketd/util"
)

// checkpoint protocol tags
const (
	PurchaseCheckpoint byte = 0x01
	DeleteCheckpoint   byte = 0x02
)

const checkpointVersion byte = 0x01

// Checkpoint - the durable state of one initiated flow instance
//
// Packed is only present from the finalising stage on and NotarySig
// only from the disseminating stage on; earlier stages carry just the
// originating request so it can be recomposed
type Checkpoint struct {
	Protocol  byte
	Stage     Stage
	PkgId     digest.Digest
	Currency  currency.Currency
	Price     currency.Amount
	Packed    transactionrecord.Packed
	NotarySig account.Signature
}

// instanceId - the key of a flow instance
//
// the same party re-initiating the same operation on the same
// identifier is the same instance
func instanceId(protocol byte, pkgId digest.Digest, initiator *account.Account) digest.Digest {
	buffer := append([]byte{protocol}, pkgId[:]...)
	buffer = append(buffer, initiator.Bytes()...)
	return digest.NewDigest(buffer)
}

// Pack - serialise a checkpoint for the store
func (c *Checkpoint) Pack() []byte {
	buffer := []byte{checkpointVersion, c.Protocol, byte(c.Stage)}
	buffer = append(buffer, c.PkgId[:]...)
	buffer = append(buffer, util.ToVarint64(c.Currency.Uint64())...)
	buffer = append(buffer, util.ToVarint64(uint64(c.Price))...)
	buffer = append(buffer, util.ToVarint64(uint64(len(c.Packed)))...)
	buffer = append(buffer, c.Packed...)
	buffer = append(buffer, util.ToVarint64(uint64(len(c.NotarySig)))...)
	return append(buffer, c.NotarySig...)
}

// UnpackCheckpoint - deserialise a stored checkpoint
func UnpackCheckpoint(buffer []byte) (*Checkpoint, error) {
	if len(buffer) < 3+digest.Length {
		return nil, fault.ErrInvalidCheckpoint
	}
	if checkpointVersion != buffer[0] {
		return nil, fault.ErrNotACheckpoint
	}

	c := &Checkpoint{
		Protocol: buffer[1],
		Stage:    Stage(buffer[2]),
	}
	n := 3
	err := digest.FromBytes(&c.PkgId, buffer[n:n+digest.Length])
	if nil != err {
		return nil, err
	}
	n += digest.Length

	currencyValue, currencyLength := util.FromVarint64(buffer[n:])
	if 0 == currencyLength {
		return nil, fault.ErrInvalidCheckpoint
	}
	n += currencyLength
	c.Currency = currency.Currency(currencyValue)

	price, priceLength := util.FromVarint64(buffer[n:])
	if 0 == priceLength {
		return nil, fault.ErrInvalidCheckpoint
	}
	n += priceLength
	c.Price = currency.Amount(price)

	packed, n, err := unpackCounted(buffer, n)
	if nil != err {
		return nil, err
	}
	c.Packed = transactionrecord.Packed(packed)

	signature, n, err := unpackCounted(buffer, n)
	if nil != err {
		return nil, err
	}
	c.NotarySig = account.Signature(signature)

	if n != len(buffer) {
		return nil, fault.ErrInvalidCheckpoint
	}
	return c, nil
}

// read one length prefixed field
func unpackCounted(buffer []byte, n int) ([]byte, int, error) {
	length, lengthLength := util.FromVarint64(buffer[n:])
	if 0 == lengthLength {
		return nil, n, fault.ErrInvalidCheckpoint
	}
	n += lengthLength
	if uint64(len(buffer)-n) < length {
		return nil, n, fault.ErrInvalidCheckpoint
	}
	if 0 == length {
		return nil, n, nil
	}
	data := make([]byte, length)
	copy(data, buffer[n:n+int(length)])
	return data, n + int(length), nil
}

// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package flow

import (
	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
	"github.com/nextworks-it/pkgmarketd/util"
)

// finality envelope
//
// transaction id, notary signature and the fully countersigned record
// in one self checking blob; the receiver recomputes the id from the
// record and verifies the signature before committing
func packEnvelope(txId digest.Digest, packed transactionrecord.Packed, notarySignature account.Signature) []byte {
	buffer := append([]byte{}, txId[:]...)
	buffer = append(buffer, util.ToVarint64(uint64(len(notarySignature)))...)
	buffer = append(buffer, notarySignature...)
	return append(buffer, packed...)
}

func unpackEnvelope(buffer []byte) (digest.Digest, transactionrecord.Packed, account.Signature, error) {
	var txId digest.Digest

	if len(buffer) < digest.Length+1 {
		return txId, nil, nil, fault.ErrNotAPackedTransaction
	}
	err := digest.FromBytes(&txId, buffer[:digest.Length])
	if nil != err {
		return txId, nil, nil, err
	}
	n := digest.Length

	signatureLength, lengthLength := util.FromVarint64(buffer[n:])
	if 0 == lengthLength {
		return txId, nil, nil, fault.ErrNotAPackedTransaction
	}
	n += lengthLength
	if 0 == signatureLength || uint64(len(buffer)-n) < signatureLength {
		return txId, nil, nil, fault.ErrNotAPackedTransaction
	}
	signature := make(account.Signature, signatureLength)
	copy(signature, buffer[n:n+int(signatureLength)])
	n += int(signatureLength)

	if 0 == len(buffer[n:]) {
		return txId, nil, nil, fault.ErrNotAPackedTransaction
	}
	packed := make(transactionrecord.Packed, len(buffer[n:]))
	copy(packed, buffer[n:])

	return txId, packed, signature, nil
}

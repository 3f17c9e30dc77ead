// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package account_test

import (
	"bytes"
	"testing"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/fault"
)

// generate a key pair and round trip the account through its base58 form
func TestAccountRoundTrip(t *testing.T) {
	privateKey, err := account.NewPrivateKey(true)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}

	acc := privateKey.Account()
	text := acc.String()

	decoded, err := account.AccountFromBase58(text)
	if nil != err {
		t.Fatalf("decode error: %s", err)
	}
	if !bytes.Equal(decoded.Bytes(), acc.Bytes()) {
		t.Errorf("round trip mismatch: %q != %q", decoded, acc)
	}
	if !decoded.IsTesting() {
		t.Errorf("test flag lost in round trip")
	}
}

// a signature made by the private key must verify on the account
func TestCheckSignature(t *testing.T) {
	privateKey, err := account.NewPrivateKey(true)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}
	acc := privateKey.Account()

	message := []byte("transaction test data")
	signature := privateKey.Sign(message)

	err = acc.CheckSignature(message, signature)
	if nil != err {
		t.Errorf("check signature error: %s", err)
	}

	// corrupt the message
	message[0] ^= 0x01
	err = acc.CheckSignature(message, signature)
	if fault.ErrInvalidSignature != err {
		t.Errorf("corrupted message: got: %v  expected: %v", err, fault.ErrInvalidSignature)
	}

	// truncated signature
	err = acc.CheckSignature(message, signature[:10])
	if fault.ErrInvalidSignature != err {
		t.Errorf("short signature: got: %v  expected: %v", err, fault.ErrInvalidSignature)
	}
}

// private key text round trip
func TestPrivateKeyRoundTrip(t *testing.T) {
	privateKey, err := account.NewPrivateKey(false)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}

	decoded, err := account.PrivateKeyFromBase58(privateKey.String())
	if nil != err {
		t.Fatalf("decode error: %s", err)
	}
	if !bytes.Equal(decoded.PrivateKeyBytes(), privateKey.PrivateKeyBytes()) {
		t.Errorf("round trip mismatch")
	}
	if decoded.IsTesting() {
		t.Errorf("test flag set on live key")
	}
}

// damaged base58 text must not decode
func TestDamagedText(t *testing.T) {
	privateKey, err := account.NewPrivateKey(true)
	if nil != err {
		t.Fatalf("key generation error: %s", err)
	}
	text := privateKey.Account().String()

	_, err = account.AccountFromBase58(text[:len(text)-2])
	if nil == err {
		t.Errorf("truncated account text decoded without error")
	}

	_, err = account.AccountFromBase58("")
	if fault.ErrCannotDecodeAccount != err {
		t.Errorf("empty text: got: %v  expected: %v", err, fault.ErrCannotDecodeAccount)
	}
}

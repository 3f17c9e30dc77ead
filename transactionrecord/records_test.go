// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord_test

import (
	"bytes"
	"testing"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/currency"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
)

// test keys for the parties
var (
	author     *account.PrivateKey
	buyer      *account.PrivateKey
	repository *account.PrivateKey
)

func init() {
	author, _ = account.NewPrivateKey(true)
	buyer, _ = account.NewPrivateKey(true)
	repository, _ = account.NewPrivateKey(true)
}

// build a signed offer for use by the tests
func makeOffer(t *testing.T) (*transactionrecord.PackageOffer, transactionrecord.Packed) {
	r := &transactionrecord.PackageOffer{
		Name:        "firewall-vnf",
		Description: "stateful firewall network function",
		Version:     "1.2.0",
		Link:        "https://market.example.com/pkg/firewall-vnf",
		Author:      author.Account(),
		Repository:  repository.Account(),
		Currency:    currency.EUR,
		Price:       currency.AmountFromString("15.00"),
		Nonce:       1,
	}

	// pack without signature to obtain the bytes to sign
	partial, err := r.Pack(author.Account())
	if fault.ErrInvalidSignature != err {
		t.Fatalf("unsigned pack: got: %v  expected: %v", err, fault.ErrInvalidSignature)
	}
	r.Signature = author.Sign(partial)

	packed, err := r.Pack(author.Account())
	if nil != err {
		t.Fatalf("pack error: %s", err)
	}
	return r, packed
}

// offer record round trip
func TestPackPackageOffer(t *testing.T) {
	r, packed := makeOffer(t)

	if transactionrecord.PackageOfferTag != packed.Type() {
		t.Fatalf("record type: got: %d  expected: %d", packed.Type(), transactionrecord.PackageOfferTag)
	}

	unpacked, n, err := packed.Unpack(true)
	if nil != err {
		t.Fatalf("unpack error: %s", err)
	}
	if len(packed) != n {
		t.Errorf("unpack consumed: %d  expected: %d", n, len(packed))
	}

	offer, ok := unpacked.(*transactionrecord.PackageOffer)
	if !ok {
		t.Fatalf("unpack returned wrong type: %T", unpacked)
	}
	if offer.Name != r.Name || offer.Price != r.Price || offer.Currency != r.Currency {
		t.Errorf("unpack mismatch: %v != %v", offer, r)
	}
	if !bytes.Equal(offer.Author.Bytes(), r.Author.Bytes()) {
		t.Errorf("author mismatch")
	}

	// repack must reproduce the identical bytes
	repacked, err := offer.Pack(offer.Author)
	if nil != err {
		t.Fatalf("repack error: %s", err)
	}
	if !bytes.Equal(repacked, packed) {
		t.Errorf("repack: %x  expected: %x", repacked, packed)
	}
}

// a tampered offer must fail the signature check
func TestPackageOfferTamper(t *testing.T) {
	r, _ := makeOffer(t)
	r.Price = currency.AmountFromString("0.01")

	_, err := r.Pack(author.Account())
	if fault.ErrInvalidSignature != err {
		t.Errorf("tampered pack: got: %v  expected: %v", err, fault.ErrInvalidSignature)
	}
}

// purchase transaction: signature then countersignature
func TestPackPackagePurchase(t *testing.T) {
	_, packedOffer := makeOffer(t)
	pkgId := packedOffer.MakeLink()

	cashId := digest.NewDigest([]byte("cash one"))

	r := &transactionrecord.PackagePurchase{
		PkgId:         pkgId,
		Buyer:         buyer.Account(),
		CashIds:       []digest.Digest{cashId},
		Currency:      currency.EUR,
		AuthorPayment: currency.AmountFromString("13.50"),
		RepositoryFee: currency.AmountFromString("1.50"),
		Change:        0,
	}

	// pack without signature to obtain the bytes the buyer signs
	base, err := r.Pack(repository.Account())
	if fault.ErrInvalidSignature != err {
		t.Fatalf("unsigned pack: got: %v  expected: %v", err, fault.ErrInvalidSignature)
	}
	r.Signature = buyer.Sign(base)

	// pack again to obtain the bytes the repository countersigns
	partial, err := r.Pack(repository.Account())
	if fault.ErrInvalidSignature != err {
		t.Fatalf("partly signed pack: got: %v  expected: %v", err, fault.ErrInvalidSignature)
	}
	if !bytes.Equal(partial[:len(base)], base) {
		t.Fatalf("countersign bytes do not extend the signed bytes")
	}
	r.Countersignature = repository.Sign(partial)

	packed, err := r.Pack(repository.Account())
	if nil != err {
		t.Fatalf("pack error: %s", err)
	}

	unpacked, _, err := packed.Unpack(true)
	if nil != err {
		t.Fatalf("unpack error: %s", err)
	}
	purchase, ok := unpacked.(*transactionrecord.PackagePurchase)
	if !ok {
		t.Fatalf("unpack returned wrong type: %T", unpacked)
	}
	if purchase.PkgId != r.PkgId {
		t.Errorf("pkg id mismatch: %v != %v", purchase.PkgId, r.PkgId)
	}
	if 1 != len(purchase.CashIds) || purchase.CashIds[0] != cashId {
		t.Errorf("cash ids mismatch: %v", purchase.CashIds)
	}
	if purchase.AuthorPayment != r.AuthorPayment || purchase.RepositoryFee != r.RepositoryFee {
		t.Errorf("amounts mismatch")
	}

	// a wrong countersigner must fail
	r.Countersignature = buyer.Sign(partial)
	_, err = r.Pack(repository.Account())
	if fault.ErrInvalidSignature != err {
		t.Errorf("wrong countersigner: got: %v  expected: %v", err, fault.ErrInvalidSignature)
	}
}

// purchase must have at least one cash input
func TestPackagePurchaseNoCash(t *testing.T) {
	r := &transactionrecord.PackagePurchase{
		PkgId:         digest.NewDigest([]byte("offer")),
		Buyer:         buyer.Account(),
		CashIds:       []digest.Digest{},
		Currency:      currency.EUR,
		AuthorPayment: 100,
	}
	_, err := r.Pack(repository.Account())
	if fault.ErrInvalidCount != err {
		t.Errorf("no cash inputs: got: %v  expected: %v", err, fault.ErrInvalidCount)
	}
}

// delete transaction round trip with both signatures
func TestPackPackageDelete(t *testing.T) {
	_, packedOffer := makeOffer(t)
	pkgId := packedOffer.MakeLink()

	r := &transactionrecord.PackageDelete{
		PkgId:  pkgId,
		Author: author.Account(),
	}

	base, err := r.Pack(repository.Account())
	if fault.ErrInvalidSignature != err {
		t.Fatalf("unsigned pack: got: %v  expected: %v", err, fault.ErrInvalidSignature)
	}
	r.Signature = author.Sign(base)

	partial, err := r.Pack(repository.Account())
	if fault.ErrInvalidSignature != err {
		t.Fatalf("partly signed pack: got: %v  expected: %v", err, fault.ErrInvalidSignature)
	}
	r.Countersignature = repository.Sign(partial)

	packed, err := r.Pack(repository.Account())
	if nil != err {
		t.Fatalf("pack error: %s", err)
	}

	unpacked, _, err := packed.Unpack(true)
	if nil != err {
		t.Fatalf("unpack error: %s", err)
	}
	del, ok := unpacked.(*transactionrecord.PackageDelete)
	if !ok {
		t.Fatalf("unpack returned wrong type: %T", unpacked)
	}
	if del.PkgId != pkgId {
		t.Errorf("pkg id mismatch")
	}
}

// cash and license records have no signatures of their own
func TestPackDerivedRecords(t *testing.T) {
	cash := &transactionrecord.Cash{
		Owner:    buyer.Account(),
		Currency: currency.EUR,
		Amount:   currency.AmountFromString("15.00"),
		Nonce:    7,
	}
	packed, err := cash.Pack(buyer.Account())
	if nil != err {
		t.Fatalf("pack error: %s", err)
	}
	unpacked, _, err := packed.Unpack(true)
	if nil != err {
		t.Fatalf("unpack error: %s", err)
	}
	c, ok := unpacked.(*transactionrecord.Cash)
	if !ok {
		t.Fatalf("unpack returned wrong type: %T", unpacked)
	}
	if c.Amount != cash.Amount || c.Nonce != cash.Nonce {
		t.Errorf("cash mismatch: %v != %v", c, cash)
	}

	license := &transactionrecord.LicenseGrant{
		PkgId:    digest.NewDigest([]byte("offer")),
		Name:     "firewall-vnf",
		Version:  "1.2.0",
		Link:     "https://market.example.com/pkg/firewall-vnf",
		Buyer:    buyer.Account(),
		Currency: currency.EUR,
		Price:    currency.AmountFromString("15.00"),
	}
	packed, err = license.Pack(buyer.Account())
	if nil != err {
		t.Fatalf("pack error: %s", err)
	}
	unpacked, _, err = packed.Unpack(true)
	if nil != err {
		t.Fatalf("unpack error: %s", err)
	}
	l, ok := unpacked.(*transactionrecord.LicenseGrant)
	if !ok {
		t.Fatalf("unpack returned wrong type: %T", unpacked)
	}
	if l.PkgId != license.PkgId || l.Price != license.Price {
		t.Errorf("license mismatch: %v != %v", l, license)
	}
}

// network flag of embedded accounts must match the requested network
func TestWrongNetwork(t *testing.T) {
	_, packed := makeOffer(t)
	_, _, err := packed.Unpack(false)
	if fault.ErrWrongNetworkForPublicKey != err {
		t.Errorf("wrong network: got: %v  expected: %v", err, fault.ErrWrongNetworkForPublicKey)
	}
}

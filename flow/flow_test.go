// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package flow_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/currency"
	"github.com/nextworks-it/pkgmarketd/digest"
	"github.com/nextworks-it/pkgmarketd/directory"
	"github.com/nextworks-it/pkgmarketd/fault"
	"github.com/nextworks-it/pkgmarketd/flow"
	"github.com/nextworks-it/pkgmarketd/notary"
	"github.com/nextworks-it/pkgmarketd/session"
	"github.com/nextworks-it/pkgmarketd/storage"
	"github.com/nextworks-it/pkgmarketd/transactionrecord"
	"github.com/nextworks-it/pkgmarketd/vault"
)

const testingDirName = "testing"

var (
	authorKey     *account.PrivateKey
	buyerKey      *account.PrivateKey
	buyerTwoKey   *account.PrivateKey
	repositoryKey *account.PrivateKey
	notaryKey     *account.PrivateKey
)

func TestMain(m *testing.M) {
	os.RemoveAll(testingDirName)
	os.Mkdir(testingDirName, 0700)

	logging := logger.Configuration{
		Directory: testingDirName,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}
	if err := logger.Initialise(logging); nil != err {
		panic(fmt.Sprintf("logger initialise failed: %s", err))
	}

	authorKey, _ = account.NewPrivateKey(true)
	buyerKey, _ = account.NewPrivateKey(true)
	buyerTwoKey, _ = account.NewPrivateKey(true)
	repositoryKey, _ = account.NewPrivateKey(true)
	notaryKey, _ = account.NewPrivateKey(true)

	rc := m.Run()
	logger.Finalise()
	os.RemoveAll(testingDirName)
	os.Exit(rc)
}

// market - a complete in process marketplace
//
// every party runs on its own store so the tests can observe how the
// replicas converge
type market struct {
	exchange   *session.Exchange
	dir        *directory.Directory
	notary     *notary.Notary
	author     *flow.Node
	buyer      *flow.Node
	buyerTwo   *flow.Node
	repository *flow.Node
	closers    []func()
}

func newMarket(t *testing.T, name string, purchaseCheck flow.PurchaseCheck, deleteCheck flow.DeleteCheck) *market {
	m := &market{
		exchange: session.NewExchange(name),
		dir:      directory.New(name),
	}

	m.dir.Register("author", authorKey.Account())
	m.dir.Register("buyer", buyerKey.Account())
	m.dir.Register("buyer2", buyerTwoKey.Account())
	m.dir.Register("repository", repositoryKey.Account())
	m.dir.Register("notary", notaryKey.Account())
	m.dir.SetNotary("notary")
	m.dir.SetRepository("repository")

	m.notary = notary.New("notary", notaryKey, m.openStore(t, name+"-notary"))

	m.author = m.node(t, name, "author", authorKey, nil, nil)
	m.buyer = m.node(t, name, "buyer", buyerKey, nil, nil)
	m.buyerTwo = m.node(t, name, "buyer2", buyerTwoKey, nil, nil)
	m.repository = m.node(t, name, "repository", repositoryKey, purchaseCheck, deleteCheck)

	return m
}

func (m *market) openStore(t *testing.T, name string) *storage.Store {
	database := testingDirName + "/" + name
	os.RemoveAll(database + "-data.leveldb")
	store, err := storage.New(database)
	if nil != err {
		t.Fatalf("storage initialise error: %s", err)
	}
	m.closers = append(m.closers, func() {
		store.Close()
		os.RemoveAll(database + "-data.leveldb")
	})
	return store
}

func (m *market) node(t *testing.T, testName string, partyName string, key *account.PrivateKey, purchaseCheck flow.PurchaseCheck, deleteCheck flow.DeleteCheck) *flow.Node {
	v := vault.New(testName+"-"+partyName, m.openStore(t, testName+"-"+partyName), true)
	node, err := flow.NewNode(flow.Config{
		Name:          partyName,
		Key:           key,
		Vault:         v,
		Directory:     m.dir,
		Sessions:      m.exchange,
		Notariser:     m.notary,
		PurchaseCheck: purchaseCheck,
		DeleteCheck:   deleteCheck,
		Timeout:       5 * time.Second,
	})
	if nil != err {
		t.Fatalf("node %q error: %s", partyName, err)
	}
	return node
}

func (m *market) done() {
	for _, closer := range m.closers {
		closer()
	}
}

func (m *market) vaults() []*vault.Vault {
	return []*vault.Vault{
		m.author.Vault(),
		m.buyer.Vault(),
		m.buyerTwo.Vault(),
		m.repository.Vault(),
	}
}

// replicate a signed offer and its fee agreement to every party
func (m *market) seedOffer(t *testing.T, price string, percent uint64) digest.Digest {
	offer := &transactionrecord.PackageOffer{
		Name:        "firewall-vnf",
		Description: "stateful firewall network function",
		Version:     "1.2.0",
		Link:        "https://market.example.com/pkg/firewall-vnf",
		Author:      authorKey.Account(),
		Repository:  repositoryKey.Account(),
		Currency:    currency.EUR,
		Price:       currency.AmountFromString(price),
		Nonce:       1,
	}
	partial, err := offer.Pack(offer.Author)
	if fault.ErrInvalidSignature != err {
		t.Fatalf("unsigned pack: got: %v", err)
	}
	offer.Signature = authorKey.Sign(partial)

	agreement := &transactionrecord.FeeAgreement{
		Author:     authorKey.Account(),
		Repository: repositoryKey.Account(),
		Percent:    percent,
	}
	partial, err = agreement.Pack(agreement.Author)
	if fault.ErrInvalidSignature != err {
		t.Fatalf("unsigned pack: got: %v", err)
	}
	agreement.Signature = authorKey.Sign(partial)

	var pkgId digest.Digest
	for i, v := range m.vaults() {
		id, err := v.StoreOffer(offer)
		if nil != err {
			t.Fatalf("store offer error: %s", err)
		}
		if 0 == i {
			pkgId = id
		} else if pkgId != id {
			t.Fatalf("offer identifier diverged: %v  expected: %v", id, pkgId)
		}
		err = v.StoreFeeAgreement(agreement)
		if nil != err {
			t.Fatalf("store agreement error: %s", err)
		}
	}
	return pkgId
}

// replicate an issued cash record to every party
func (m *market) seedCash(t *testing.T, owner *account.PrivateKey, amount string, nonce uint64) digest.Digest {
	return m.seedCashIn(t, owner, currency.EUR, amount, nonce)
}

func (m *market) seedCashIn(t *testing.T, owner *account.PrivateKey, c currency.Currency, amount string, nonce uint64) digest.Digest {
	cash := &transactionrecord.Cash{
		Owner:    owner.Account(),
		Currency: c,
		Amount:   currency.AmountFromString(amount),
		Nonce:    nonce,
	}
	var cashId digest.Digest
	for i, v := range m.vaults() {
		id, err := v.IssueCash(cash)
		if nil != err {
			t.Fatalf("issue cash error: %s", err)
		}
		if 0 == i {
			cashId = id
		} else if cashId != id {
			t.Fatalf("cash identifier diverged: %v  expected: %v", id, cashId)
		}
	}
	return cashId
}

func checkBalance(t *testing.T, v *vault.Vault, owner *account.Account, expected string) {
	t.Helper()
	balance, err := v.Balance(owner, currency.EUR)
	if nil != err {
		t.Fatalf("balance error: %s", err)
	}
	if currency.AmountFromString(expected) != balance {
		t.Fatalf("balance: got: %s  expected: %s", balance, expected)
	}
}

func checkNoCheckpoints(t *testing.T, v *vault.Vault) {
	t.Helper()
	elements, err := v.Store().Pool.Checkpoints.NewFetchCursor().Fetch(1)
	if nil != err {
		t.Fatalf("checkpoint fetch error: %s", err)
	}
	if 0 != len(elements) {
		t.Fatalf("checkpoints remain: %d", len(elements))
	}
}

func TestBuy(t *testing.T) {
	m := newMarket(t, "buy", nil, nil)
	defer m.done()

	pkgId := m.seedOffer(t, "15.00", 10)
	m.seedCash(t, buyerKey, "15.00", 1)

	txId, err := m.buyer.Buy(pkgId, currency.AmountFromString("15.00"), currency.EUR)
	if nil != err {
		t.Fatalf("buy error: %s", err)
	}

	// the participants converge: consumed offer, one license, exact
	// payments
	for _, v := range []*vault.Vault{m.buyer.Vault(), m.repository.Vault()} {
		_, err = v.Resolve(pkgId)
		if !fault.IsErrPackageNotFound(err) {
			t.Fatalf("resolve after purchase: got: %v", err)
		}

		licenses, err := v.LicensesFor(buyerKey.Account())
		if nil != err {
			t.Fatalf("licenses error: %s", err)
		}
		if 1 != len(licenses) {
			t.Fatalf("licenses: got: %d  expected: 1", len(licenses))
		}
		if pkgId != licenses[0].License.PkgId {
			t.Fatalf("license package: got: %v  expected: %v", licenses[0].License.PkgId, pkgId)
		}
		if currency.AmountFromString("15.00") != licenses[0].License.Price {
			t.Fatalf("license price: got: %s", licenses[0].License.Price)
		}

		checkBalance(t, v, authorKey.Account(), "13.50")
		checkBalance(t, v, repositoryKey.Account(), "1.50")
		checkBalance(t, v, buyerKey.Account(), "0.00")

		_, _, found := v.Transaction(txId)
		if !found {
			t.Fatal("transaction record missing")
		}
	}

	// both stores hold the identical transaction bytes
	packedBuyer, sigBuyer, _ := m.buyer.Vault().Transaction(txId)
	packedRepo, sigRepo, _ := m.repository.Vault().Transaction(txId)
	if !bytes.Equal(packedBuyer, packedRepo) || !bytes.Equal(sigBuyer, sigRepo) {
		t.Fatal("transaction records diverged")
	}

	// a non participant keeps its stale view
	_, err = m.buyerTwo.Vault().Resolve(pkgId)
	if nil != err {
		t.Fatalf("non participant resolve error: %s", err)
	}

	checkNoCheckpoints(t, m.buyer.Vault())
}

func TestBuyWithChange(t *testing.T) {
	m := newMarket(t, "change", nil, nil)
	defer m.done()

	pkgId := m.seedOffer(t, "15.00", 10)
	m.seedCash(t, buyerKey, "20.00", 1)

	_, err := m.buyer.Buy(pkgId, currency.AmountFromString("15.00"), currency.EUR)
	if nil != err {
		t.Fatalf("buy error: %s", err)
	}

	for _, v := range []*vault.Vault{m.buyer.Vault(), m.repository.Vault()} {
		checkBalance(t, v, authorKey.Account(), "13.50")
		checkBalance(t, v, repositoryKey.Account(), "1.50")
		checkBalance(t, v, buyerKey.Account(), "5.00")
	}
}

func TestBuyPriceMismatch(t *testing.T) {
	m := newMarket(t, "mismatch", nil, nil)
	defer m.done()

	pkgId := m.seedOffer(t, "15.00", 10)
	m.seedCash(t, buyerKey, "20.00", 1)

	_, err := m.buyer.Buy(pkgId, currency.AmountFromString("14.00"), currency.EUR)
	if fault.ErrInvalidPriceMismatch != err {
		t.Fatalf("wrong price: got: %v  expected: %v", err, fault.ErrInvalidPriceMismatch)
	}

	_, err = m.buyer.Buy(pkgId, currency.AmountFromString("15.00"), currency.USD)
	if fault.ErrInvalidPriceMismatch != err {
		t.Fatalf("wrong currency: got: %v  expected: %v", err, fault.ErrInvalidPriceMismatch)
	}
}

func TestBuyInsufficientFunds(t *testing.T) {
	m := newMarket(t, "poor", nil, nil)
	defer m.done()

	pkgId := m.seedOffer(t, "15.00", 10)
	m.seedCash(t, buyerKey, "10.00", 1)

	_, err := m.buyer.Buy(pkgId, currency.AmountFromString("15.00"), currency.EUR)
	if fault.ErrInsufficientFunds != err {
		t.Fatalf("got: %v  expected: %v", err, fault.ErrInsufficientFunds)
	}

	// nothing was consumed
	checkBalance(t, m.buyer.Vault(), buyerKey.Account(), "10.00")
	_, err = m.buyer.Vault().Resolve(pkgId)
	if nil != err {
		t.Fatalf("resolve error: %s", err)
	}
}

func TestBuyNoFeeAgreement(t *testing.T) {
	m := newMarket(t, "nofee", nil, nil)
	defer m.done()

	offer := &transactionrecord.PackageOffer{
		Name:        "firewall-vnf",
		Description: "stateful firewall network function",
		Version:     "1.2.0",
		Link:        "https://market.example.com/pkg/firewall-vnf",
		Author:      authorKey.Account(),
		Repository:  repositoryKey.Account(),
		Currency:    currency.EUR,
		Price:       currency.AmountFromString("15.00"),
		Nonce:       1,
	}
	partial, err := offer.Pack(offer.Author)
	if fault.ErrInvalidSignature != err {
		t.Fatalf("unsigned pack: got: %v", err)
	}
	offer.Signature = authorKey.Sign(partial)

	var pkgId digest.Digest
	for _, v := range m.vaults() {
		pkgId, err = v.StoreOffer(offer)
		if nil != err {
			t.Fatalf("store offer error: %s", err)
		}
	}
	m.seedCash(t, buyerKey, "20.00", 1)

	// composition stops before any transaction is built
	_, err = m.buyer.Buy(pkgId, currency.AmountFromString("15.00"), currency.EUR)
	if fault.ErrNotFoundFeeAgreement != err {
		t.Fatalf("got: %v  expected: %v", err, fault.ErrNotFoundFeeAgreement)
	}
	checkBalance(t, m.buyer.Vault(), buyerKey.Account(), "20.00")
	checkNoCheckpoints(t, m.buyer.Vault())
}

func TestBuyWrongCurrencyCash(t *testing.T) {
	m := newMarket(t, "wrongcash", nil, nil)
	defer m.done()

	// ample funds, but only in a currency the offer does not accept
	pkgId := m.seedOffer(t, "15.00", 10)
	m.seedCashIn(t, buyerKey, currency.USD, "100.00", 1)

	_, err := m.buyer.Buy(pkgId, currency.AmountFromString("15.00"), currency.EUR)
	if fault.ErrInsufficientFunds != err {
		t.Fatalf("got: %v  expected: %v", err, fault.ErrInsufficientFunds)
	}

	// the foreign cash is untouched
	balance, err := m.buyer.Vault().Balance(buyerKey.Account(), currency.USD)
	if nil != err {
		t.Fatalf("balance error: %s", err)
	}
	if currency.AmountFromString("100.00") != balance {
		t.Fatalf("balance: got: %s  expected: 100.00", balance)
	}
}

func TestBuyUnknownPackage(t *testing.T) {
	m := newMarket(t, "unknown", nil, nil)
	defer m.done()

	pkgId := digest.NewDigest([]byte("no such offer"))
	_, err := m.buyer.Buy(pkgId, currency.AmountFromString("15.00"), currency.EUR)
	if !fault.IsErrPackageNotFound(err) {
		t.Fatalf("got: %v  expected a package not found error", err)
	}
}

func TestBuyDeclined(t *testing.T) {
	declined := errors.New("buyer is not welcome")
	m := newMarket(t, "declined", func(node *flow.Node, purchase *transactionrecord.PackagePurchase, offer *transactionrecord.PackageOffer) error {
		return declined
	}, nil)
	defer m.done()

	pkgId := m.seedOffer(t, "15.00", 10)
	m.seedCash(t, buyerKey, "15.00", 1)

	_, err := m.buyer.Buy(pkgId, currency.AmountFromString("15.00"), currency.EUR)
	if !fault.IsErrRejected(err) {
		t.Fatalf("got: %v  expected a rejection", err)
	}
	if declined.Error() != err.Error() {
		t.Fatalf("reason: got: %q  expected: %q", err.Error(), declined.Error())
	}

	// a declined purchase leaves both stores untouched
	for _, v := range []*vault.Vault{m.buyer.Vault(), m.repository.Vault()} {
		_, err = v.Resolve(pkgId)
		if nil != err {
			t.Fatalf("resolve error: %s", err)
		}
		checkBalance(t, v, buyerKey.Account(), "15.00")
	}
	checkNoCheckpoints(t, m.buyer.Vault())
}

func TestBuyRace(t *testing.T) {
	m := newMarket(t, "race", nil, nil)
	defer m.done()

	pkgId := m.seedOffer(t, "15.00", 10)
	m.seedCash(t, buyerKey, "15.00", 1)
	m.seedCash(t, buyerTwoKey, "15.00", 2)

	price := currency.AmountFromString("15.00")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i, node := range []*flow.Node{m.buyer, m.buyerTwo} {
		wg.Add(1)
		go func(i int, node *flow.Node) {
			defer wg.Done()
			<-start
			_, errs[i] = node.Buy(pkgId, price, currency.EUR)
		}(i, node)
	}
	close(start)
	wg.Wait()

	// exactly one buyer wins; the loser sees the conflict from the
	// notary or, if it started late, the consumed offer
	succeeded := 0
	for _, err := range errs {
		if nil == err {
			succeeded += 1
		} else if !fault.IsErrConsensusConflict(err) && !fault.IsErrPackageNotFound(err) && !fault.IsErrRejected(err) {
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
	if 1 != succeeded {
		t.Fatalf("winners: got: %d  expected: 1", succeeded)
	}

	// the repository granted exactly one license and the loser's
	// funds are intact
	licensesOne, err := m.repository.Vault().LicensesFor(buyerKey.Account())
	if nil != err {
		t.Fatalf("licenses error: %s", err)
	}
	licensesTwo, err := m.repository.Vault().LicensesFor(buyerTwoKey.Account())
	if nil != err {
		t.Fatalf("licenses error: %s", err)
	}
	if 1 != len(licensesOne)+len(licensesTwo) {
		t.Fatalf("licenses: got: %d  expected: 1", len(licensesOne)+len(licensesTwo))
	}
	if nil == errs[0] {
		checkBalance(t, m.repository.Vault(), buyerTwoKey.Account(), "15.00")
	} else {
		checkBalance(t, m.repository.Vault(), buyerKey.Account(), "15.00")
	}
}

func TestBuyAlreadyInFlight(t *testing.T) {
	entered := make(chan struct{})
	gate := make(chan struct{})
	m := newMarket(t, "inflight", func(node *flow.Node, purchase *transactionrecord.PackagePurchase, offer *transactionrecord.PackageOffer) error {
		close(entered)
		<-gate
		return nil
	}, nil)
	defer m.done()

	pkgId := m.seedOffer(t, "15.00", 10)
	m.seedCash(t, buyerKey, "15.00", 1)

	price := currency.AmountFromString("15.00")

	result := make(chan error, 1)
	go func() {
		_, err := m.buyer.Buy(pkgId, price, currency.EUR)
		result <- err
	}()

	// the first instance is now blocked inside the acceptance check
	<-entered

	_, err := m.buyer.Buy(pkgId, price, currency.EUR)
	if fault.ErrTransactionAlreadyInFlight != err {
		t.Fatalf("got: %v  expected: %v", err, fault.ErrTransactionAlreadyInFlight)
	}

	close(gate)
	err = <-result
	if nil != err {
		t.Fatalf("buy error: %s", err)
	}
}

func TestDelete(t *testing.T) {
	m := newMarket(t, "delete", nil, nil)
	defer m.done()

	pkgId := m.seedOffer(t, "15.00", 10)
	m.seedCash(t, buyerKey, "15.00", 1)

	txId, err := m.author.Delete(pkgId)
	if nil != err {
		t.Fatalf("delete error: %s", err)
	}

	for _, v := range []*vault.Vault{m.author.Vault(), m.repository.Vault()} {
		_, err = v.Resolve(pkgId)
		if !fault.IsErrPackageNotFound(err) {
			t.Fatalf("resolve after delete: got: %v", err)
		}
		_, _, found := v.Transaction(txId)
		if !found {
			t.Fatal("transaction record missing")
		}
	}
	checkNoCheckpoints(t, m.author.Vault())

	// a buyer holding a stale replica is turned away by the
	// repository
	_, err = m.buyer.Buy(pkgId, currency.AmountFromString("15.00"), currency.EUR)
	if !fault.IsErrPackageNotFound(err) {
		t.Fatalf("buy after delete: got: %v", err)
	}
}

func TestDeleteNotAuthor(t *testing.T) {
	m := newMarket(t, "notauthor", nil, nil)
	defer m.done()

	pkgId := m.seedOffer(t, "15.00", 10)

	_, err := m.buyer.Delete(pkgId)
	if fault.ErrInvalidOwnerOrRegistrant != err {
		t.Fatalf("got: %v  expected: %v", err, fault.ErrInvalidOwnerOrRegistrant)
	}

	_, err = m.repository.Vault().Resolve(pkgId)
	if nil != err {
		t.Fatalf("resolve error: %s", err)
	}
}

func TestDeleteUnknownPackage(t *testing.T) {
	m := newMarket(t, "delunknown", nil, nil)
	defer m.done()

	pkgId := digest.NewDigest([]byte("no such offer"))
	_, err := m.author.Delete(pkgId)
	if !fault.IsErrPackageNotFound(err) {
		t.Fatalf("got: %v  expected a package not found error", err)
	}
}

func TestDeleteDeclined(t *testing.T) {
	declined := errors.New("offer is under review")
	m := newMarket(t, "deldeclined", nil, func(node *flow.Node, del *transactionrecord.PackageDelete, offer *transactionrecord.PackageOffer) error {
		return declined
	})
	defer m.done()

	pkgId := m.seedOffer(t, "15.00", 10)

	_, err := m.author.Delete(pkgId)
	if !fault.IsErrRejected(err) {
		t.Fatalf("got: %v  expected a rejection", err)
	}

	for _, v := range []*vault.Vault{m.author.Vault(), m.repository.Vault()} {
		_, err = v.Resolve(pkgId)
		if nil != err {
			t.Fatalf("resolve error: %s", err)
		}
	}
	checkNoCheckpoints(t, m.author.Vault())
}

// a process that died after countersignature collection but before
// the notary answered must notarise and commit on resume
func TestResumeAfterCollection(t *testing.T) {
	m := newMarket(t, "resume", nil, nil)
	defer m.done()

	pkgId := m.seedOffer(t, "15.00", 10)
	cashId := m.seedCash(t, buyerKey, "15.00", 1)

	purchase := &transactionrecord.PackagePurchase{
		PkgId:         pkgId,
		Buyer:         buyerKey.Account(),
		CashIds:       []digest.Digest{cashId},
		Currency:      currency.EUR,
		AuthorPayment: currency.AmountFromString("13.50"),
		RepositoryFee: currency.AmountFromString("1.50"),
		Change:        currency.AmountFromString("0.00"),
	}
	base, err := purchase.Pack(repositoryKey.Account())
	if fault.ErrInvalidSignature != err {
		t.Fatalf("unsigned pack: got: %v", err)
	}
	purchase.Signature = buyerKey.Sign(base)
	partial, err := purchase.Pack(repositoryKey.Account())
	if fault.ErrInvalidSignature != err {
		t.Fatalf("partial pack: got: %v", err)
	}
	purchase.Countersignature = repositoryKey.Sign(partial)
	packed, err := purchase.Pack(repositoryKey.Account())
	if nil != err {
		t.Fatalf("pack error: %s", err)
	}
	txId := packed.MakeLink()

	// the checkpoint a crashed initiator would have left behind
	checkpoint := &flow.Checkpoint{
		Protocol: flow.PurchaseCheckpoint,
		Stage:    flow.StageFinalising,
		PkgId:    pkgId,
		Currency: currency.EUR,
		Price:    currency.AmountFromString("15.00"),
		Packed:   packed,
	}
	instance := digest.NewDigest([]byte("crashed instance"))
	m.buyer.Vault().Store().Pool.Checkpoints.Put(instance[:], checkpoint.Pack())

	completed, err := m.buyer.Resume()
	if nil != err {
		t.Fatalf("resume error: %s", err)
	}
	if 1 != len(completed) || txId != completed[0] {
		t.Fatalf("completed: got: %v  expected: [%v]", completed, txId)
	}

	for _, v := range []*vault.Vault{m.buyer.Vault(), m.repository.Vault()} {
		_, err = v.Resolve(pkgId)
		if !fault.IsErrPackageNotFound(err) {
			t.Fatalf("resolve after resume: got: %v", err)
		}
		checkBalance(t, v, authorKey.Account(), "13.50")
		checkBalance(t, v, repositoryKey.Account(), "1.50")
	}
	checkNoCheckpoints(t, m.buyer.Vault())
}

// a checkpoint from before any signature was produced is simply
// re-initiated
func TestResumeBeforeSigning(t *testing.T) {
	m := newMarket(t, "restart", nil, nil)
	defer m.done()

	pkgId := m.seedOffer(t, "15.00", 10)
	m.seedCash(t, buyerKey, "15.00", 1)

	checkpoint := &flow.Checkpoint{
		Protocol: flow.PurchaseCheckpoint,
		Stage:    flow.StageComposing,
		PkgId:    pkgId,
		Currency: currency.EUR,
		Price:    currency.AmountFromString("15.00"),
	}
	instance := digest.NewDigest([]byte("early crash"))
	m.buyer.Vault().Store().Pool.Checkpoints.Put(instance[:], checkpoint.Pack())

	completed, err := m.buyer.Resume()
	if nil != err {
		t.Fatalf("resume error: %s", err)
	}
	if 1 != len(completed) {
		t.Fatalf("completed: got: %d  expected: 1", len(completed))
	}

	licenses, err := m.repository.Vault().LicensesFor(buyerKey.Account())
	if nil != err {
		t.Fatalf("licenses error: %s", err)
	}
	if 1 != len(licenses) {
		t.Fatalf("licenses: got: %d  expected: 1", len(licenses))
	}
	checkNoCheckpoints(t, m.buyer.Vault())
}

func TestCheckpointRoundTrip(t *testing.T) {
	checkpoint := &flow.Checkpoint{
		Protocol:  flow.DeleteCheckpoint,
		Stage:     flow.StageDisseminating,
		PkgId:     digest.NewDigest([]byte("some offer")),
		Currency:  currency.EUR,
		Price:     currency.AmountFromString("9.99"),
		Packed:    []byte{0x01, 0x02, 0x03},
		NotarySig: []byte{0x04, 0x05},
	}

	buffer := checkpoint.Pack()
	back, err := flow.UnpackCheckpoint(buffer)
	if nil != err {
		t.Fatalf("unpack error: %s", err)
	}
	if checkpoint.Protocol != back.Protocol ||
		checkpoint.Stage != back.Stage ||
		checkpoint.PkgId != back.PkgId ||
		checkpoint.Currency != back.Currency ||
		checkpoint.Price != back.Price {
		t.Fatalf("round trip mismatch: %+v != %+v", back, checkpoint)
	}

	for i := 1; i < len(buffer); i += 1 {
		_, err := flow.UnpackCheckpoint(buffer[:i])
		if nil == err {
			t.Fatalf("truncation at %d unpacked", i)
		}
	}
}

// a buyer that does not host the notary submits over a session to the
// node that does
func TestBuyRemoteNotary(t *testing.T) {
	m := newMarket(t, "remote", nil, nil)
	defer m.done()

	remote := flow.NewRemoteNotary(m.exchange, "buyer", "repository", m.notary.Account(), 5*time.Second)
	buyer, err := flow.NewNode(flow.Config{
		Name:      "buyer",
		Key:       buyerKey,
		Vault:     m.buyer.Vault(),
		Directory: m.dir,
		Sessions:  m.exchange,
		Notariser: remote,
		Timeout:   5 * time.Second,
	})
	if nil != err {
		t.Fatalf("node error: %s", err)
	}

	pkgId := m.seedOffer(t, "15.00", 10)
	m.seedCash(t, buyerKey, "15.00", 1)

	txId, err := buyer.Buy(pkgId, currency.AmountFromString("15.00"), currency.EUR)
	if nil != err {
		t.Fatalf("buy error: %s", err)
	}

	for _, v := range []*vault.Vault{buyer.Vault(), m.repository.Vault()} {
		checkBalance(t, v, authorKey.Account(), "13.50")
		checkBalance(t, v, repositoryKey.Account(), "1.50")
		checkBalance(t, v, buyerKey.Account(), "0.00")

		_, _, found := v.Transaction(txId)
		if !found {
			t.Fatal("transaction record missing")
		}
	}

	// the notary signature on the stored record is the hosted notary's
	packed, signature, _ := buyer.Vault().Transaction(txId)
	err = m.notary.Account().CheckSignature(packed, signature)
	if nil != err {
		t.Fatalf("notary signature check: %s", err)
	}
}

// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bitmark-inc/listener"
	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/background"
	"github.com/nextworks-it/pkgmarketd/configuration"
	"github.com/nextworks-it/pkgmarketd/directory"
	"github.com/nextworks-it/pkgmarketd/flow"
	"github.com/nextworks-it/pkgmarketd/notary"
	"github.com/nextworks-it/pkgmarketd/session"
	"github.com/nextworks-it/pkgmarketd/storage"
	"github.com/nextworks-it/pkgmarketd/vault"
)

// how often interrupted instances are retried
const resumeInterval = time.Minute

// services - everything the daemon runs
type services struct {
	store     *storage.Store
	node      *flow.Node
	listener  *listener.MultiListener
	processes *background.T
}

// startServices - bring up storage, sessions and the protocol node
//
// the returned services must be stopped in reverse of this order,
// which stop does
func startServices(log *logger.L, cfg *configuration.Configuration) (*services, error) {

	key, err := readIdentity(cfg.IdentityFile)
	if nil != err {
		return nil, err
	}

	// the party directory is static configuration
	dir := directory.New(cfg.NodeName)
	for _, party := range cfg.Parties {
		acc, err := account.AccountFromBase58(party.Account)
		if nil != err {
			return nil, fmt.Errorf("party: %q account error: %s", party.Name, err)
		}
		dir.Register(party.Name, acc)
	}
	dir.SetNotary(cfg.Notary)
	dir.SetRepository(cfg.Repository)

	own, err := dir.Account(cfg.NodeName)
	if nil != err {
		return nil, err
	}
	if !bytes.Equal(own.Bytes(), key.Account().Bytes()) {
		return nil, fmt.Errorf("identity key does not match the directory entry for: %q", cfg.NodeName)
	}

	log.Infof("open database: %q", cfg.Database.Name)
	store, err := storage.New(cfg.Database.Name)
	if nil != err {
		return nil, err
	}
	vlt := vault.New(cfg.NodeName, store, cfg.IsTesting())

	// parties are authenticated by their record signatures, the
	// certificates only provide the encrypted stream
	clientTLS := &tls.Config{
		InsecureSkipVerify: true,
	}
	network := session.NewNetwork(cfg.NodeName, clientTLS)
	for _, party := range cfg.Parties {
		if party.Name != cfg.NodeName && "" != party.Address {
			network.Connect(party.Name, party.Address)
		}
	}

	var notariser flow.Notariser
	if cfg.HostsNotary() {
		log.Info("hosting the notary")
		notariser = notary.New(cfg.NodeName, key, store)
	} else {
		_, notaryAccount, err := dir.Notary()
		if nil != err {
			store.Close()
			return nil, err
		}
		notariser = flow.NewRemoteNotary(network, cfg.NodeName, cfg.Notary, notaryAccount, 0)
	}

	node, err := flow.NewNode(flow.Config{
		Name:      cfg.NodeName,
		Key:       key,
		Vault:     vlt,
		Directory: dir,
		Sessions:  network,
		Notariser: notariser,
	})
	if nil != err {
		store.Close()
		return nil, err
	}

	serverTLS, err := loadListenKeyPair(cfg.Listen.Certificate, cfg.Listen.PrivateKey)
	if nil != err {
		store.Close()
		return nil, err
	}
	limiter := listener.NewLimiter(cfg.Listen.MaximumConnections)
	ml, err := listener.NewMultiListener("sessions", cfg.Listen.Listen, serverTLS, limiter, session.Callback)
	if nil != err {
		store.Close()
		return nil, err
	}
	ml.Start(&session.ServerArgument{
		Log:      logger.New("listener"),
		Dispatch: network.Dispatch,
	})
	log.Infof("listening on: %v", cfg.Listen.Listen)

	// instances interrupted by the previous shutdown; failures are
	// retried by the resumer
	completed, err := node.Resume()
	if nil != err {
		log.Warnf("resume error: %s", err)
	}
	for _, txId := range completed {
		log.Infof("resumed and completed: %v", txId)
	}

	processes := background.Start(background.Processes{resumer}, node)

	return &services{
		store:     store,
		node:      node,
		listener:  ml,
		processes: processes,
	}, nil
}

func (s *services) stop() {
	s.processes.Stop()
	s.listener.Stop()
	s.store.Close()
}

// retry interrupted instances until they complete; re-dissemination
// after a delivery failure happens here
func resumer(args interface{}, shutdown <-chan struct{}) {
	node := args.(*flow.Node)
	log := logger.New("resumer")

	for {
		select {
		case <-shutdown:
			return
		case <-time.After(resumeInterval):
			completed, err := node.Resume()
			if nil != err {
				log.Warnf("resume error: %s", err)
			}
			for _, txId := range completed {
				log.Infof("completed: %v", txId)
			}
		}
	}
}

// read the base58 private key written by the generate-identity command
func readIdentity(fileName string) (*account.PrivateKey, error) {
	data, err := os.ReadFile(fileName)
	if nil != err {
		return nil, err
	}
	key, err := account.PrivateKeyFromBase58(strings.TrimSpace(string(data)))
	if nil != err {
		return nil, fmt.Errorf("identity file: %q error: %s", fileName, err)
	}
	return key, nil
}

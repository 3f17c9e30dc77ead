// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package directory - name to identity mapping for protocol parties
//
// sessions are opened by party name; the directory supplies the
// public identity behind a name and designates which party operates
// the repository and which operates the notary.
package directory

import (
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/account"
	"github.com/nextworks-it/pkgmarketd/fault"
)

// Directory - the party registry
type Directory struct {
	sync.RWMutex

	log        *logger.L
	parties    map[string]*account.Account
	notary     string
	repository string
}

// New - create an empty directory
func New(name string) *Directory {
	return &Directory{
		log:     logger.New(name),
		parties: make(map[string]*account.Account),
	}
}

// Register - add or replace a party
func (d *Directory) Register(name string, acc *account.Account) {
	d.Lock()
	d.parties[name] = acc
	d.Unlock()
	d.log.Debugf("registered: %q: %s", name, acc)
}

// SetNotary - designate the notarising party
func (d *Directory) SetNotary(name string) {
	d.Lock()
	d.notary = name
	d.Unlock()
}

// SetRepository - designate the repository party
func (d *Directory) SetRepository(name string) {
	d.Lock()
	d.repository = name
	d.Unlock()
}

// Account - look up a party's identity
func (d *Directory) Account(name string) (*account.Account, error) {
	d.RLock()
	defer d.RUnlock()

	acc, ok := d.parties[name]
	if !ok {
		return nil, fault.ErrNotFoundIdentity
	}
	return acc, nil
}

// Notary - the notarising party's name and identity
func (d *Directory) Notary() (string, *account.Account, error) {
	d.RLock()
	defer d.RUnlock()

	if "" == d.notary {
		return "", nil, fault.ErrNotFoundNotary
	}
	acc, ok := d.parties[d.notary]
	if !ok {
		return "", nil, fault.ErrNotFoundNotary
	}
	return d.notary, acc, nil
}

// Repository - the repository party's name and identity
func (d *Directory) Repository() (string, *account.Account, error) {
	d.RLock()
	defer d.RUnlock()

	if "" == d.repository {
		return "", nil, fault.ErrNotFoundIdentity
	}
	acc, ok := d.parties[d.repository]
	if !ok {
		return "", nil, fault.ErrNotFoundIdentity
	}
	return d.repository, acc, nil
}

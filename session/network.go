// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"crypto/tls"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/fault"
)

// Opener - the session manager a protocol node runs on
//
// Register attaches a party's responder side, Open starts a session to
// another party; an Exchange satisfies this in process, a Network over
// TLS streams
type Opener interface {
	Register(party string, handler Handler)
	Open(from string, to string, protocol string) (Session, error)
}

// Network - open sessions to remote parties over TLS streams
//
// outbound sessions dial the address recorded for the destination
// party; inbound connections arrive through a TLS listener whose
// callback hands accepted streams to Dispatch
type Network struct {
	sync.RWMutex
	log              *logger.L
	tlsConfiguration *tls.Config
	addresses        map[string]string
	handlers         map[string]Handler
}

// NewNetwork - create a network session manager
func NewNetwork(name string, tlsConfiguration *tls.Config) *Network {
	return &Network{
		log:              logger.New(name),
		tlsConfiguration: tlsConfiguration,
		addresses:        make(map[string]string),
		handlers:         make(map[string]Handler),
	}
}

// Connect - record the listen address of a remote party
func (n *Network) Connect(party string, address string) {
	n.Lock()
	n.addresses[party] = address
	n.Unlock()
	n.log.Debugf("party: %q at: %q", party, address)
}

// Register - attach the local party's responder handler
func (n *Network) Register(party string, handler Handler) {
	n.Lock()
	n.handlers[party] = handler
	n.Unlock()
	n.log.Debugf("registered: %q", party)
}

// Open - dial a session to a remote party
//
// a party with no recorded address yields fault.ErrNotFoundIdentity
func (n *Network) Open(from string, to string, protocol string) (Session, error) {
	n.RLock()
	address, ok := n.addresses[to]
	n.RUnlock()
	if !ok {
		return nil, fault.ErrNotFoundIdentity
	}

	n.log.Infof("session: %q -> %q (%s) protocol: %q", from, to, address, protocol)
	return Dial(address, n.tlsConfiguration, from, protocol)
}

// Dispatch - route an accepted inbound session
//
// usable as the ServerArgument dispatcher of a TLS listener; the
// destination is the registered local party
func (n *Network) Dispatch(protocol string, peer string, s Session) {
	n.RLock()
	var handler Handler
	for _, h := range n.handlers {
		handler = h
		break
	}
	n.RUnlock()

	if nil == handler {
		n.log.Errorf("no local handler for peer: %q protocol: %q", peer, protocol)
		s.Close()
		return
	}
	handler(protocol, peer, s)
}

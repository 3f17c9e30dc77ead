// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"crypto/tls"
	"io"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/fault"
)

// how long a new connection may take to identify itself
const helloTimeout = 30 * time.Second

// ServerArgument - per-listener callback context
type ServerArgument struct {
	Log      *logger.L
	Dispatch Handler
}

// Callback - handle an accepted TLS connection
//
// the first message must be a hello naming the remote party and the
// protocol it wants to run; the connection is then handed to the
// dispatcher as an ordinary session
func Callback(conn io.ReadWriteCloser, argument interface{}) {

	serverArgument := argument.(*ServerArgument)
	log := serverArgument.Log

	s := NewStream(conn, "")
	hello, err := s.Receive(helloTimeout)
	if nil != err {
		log.Warnf("no hello received: %s", err)
		s.Close()
		return
	}
	if HelloKind != hello.Kind || "" == hello.Reason {
		log.Warn("malformed hello")
		s.Close()
		return
	}

	peer := hello.Reason
	protocol := string(hello.Data)
	log.Infof("session accepted: peer: %q protocol: %q", peer, protocol)

	s.(*streamSession).peer = peer

	// handler owns the session from here
	serverArgument.Dispatch(protocol, peer, s)
}

// Dial - open a session to a remote listener
func Dial(address string, tlsConfiguration *tls.Config, from string, protocol string) (Session, error) {

	conn, err := tls.Dial("tcp", address, tlsConfiguration)
	if nil != err {
		return nil, err
	}

	s := NewStream(conn, address)
	err = s.Send(Message{
		Kind:   HelloKind,
		Reason: from,
		Data:   []byte(protocol),
	})
	if nil != err {
		s.Close()
		return nil, fault.ErrNotConnected
	}
	return s, nil
}

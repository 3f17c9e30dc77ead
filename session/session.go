// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/nextworks-it/pkgmarketd/fault"
)

// Session - one side of an open message stream
type Session interface {
	Send(m Message) error
	Receive(timeout time.Duration) (Message, error)
	Peer() string
	Close()
}

// Handler - responder entry point
//
// the exchange runs the handler on its own goroutine; the handler
// owns the session and must close it
type Handler func(protocol string, peer string, s Session)

// internal constants
const (
	queueSize = 100
)

// channelSession - one endpoint of an in-process pair
type channelSession struct {
	peer string
	out  chan Message
	in   chan Message
	done chan struct{}
	once *sync.Once
}

// Exchange - in-process party registry
//
// each named party registers a handler; opening a session to a party
// creates a connected channel pair and hands the far end to that
// party's handler
type Exchange struct {
	sync.RWMutex
	log      *logger.L
	handlers map[string]Handler
}

// NewExchange - create an empty exchange
func NewExchange(name string) *Exchange {
	return &Exchange{
		log:      logger.New(name),
		handlers: make(map[string]Handler),
	}
}

// Register - attach a party's handler
func (e *Exchange) Register(party string, handler Handler) {
	e.Lock()
	e.handlers[party] = handler
	e.Unlock()
	e.log.Debugf("registered: %q", party)
}

// Open - open a session from one party to another
//
// an unknown destination yields fault.ErrNotFoundIdentity
func (e *Exchange) Open(from string, to string, protocol string) (Session, error) {
	e.RLock()
	handler, ok := e.handlers[to]
	e.RUnlock()
	if !ok {
		return nil, fault.ErrNotFoundIdentity
	}

	aToB := make(chan Message, queueSize)
	bToA := make(chan Message, queueSize)
	done := make(chan struct{})
	once := new(sync.Once)

	initiator := &channelSession{
		peer: to,
		out:  aToB,
		in:   bToA,
		done: done,
		once: once,
	}
	responder := &channelSession{
		peer: from,
		out:  bToA,
		in:   aToB,
		done: done,
		once: once,
	}

	e.log.Infof("session: %q -> %q protocol: %q", from, to, protocol)
	go handler(protocol, from, responder)

	return initiator, nil
}

func (s *channelSession) Send(m Message) error {
	select {
	case <-s.done:
		return fault.ErrSessionClosed
	case s.out <- m:
		return nil
	}
}

func (s *channelSession) Receive(timeout time.Duration) (Message, error) {
	// drain queued messages even after close
	select {
	case m := <-s.in:
		return m, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-s.in:
		return m, nil
	case <-s.done:
		// a message sent just before the peer closed is still queued
		select {
		case m := <-s.in:
			return m, nil
		default:
		}
		return Message{}, fault.ErrSessionClosed
	case <-timer.C:
		return Message{}, fault.ErrSessionTimeout
	}
}

func (s *channelSession) Peer() string {
	return s.peer
}

func (s *channelSession) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/nextworks-it/pkgmarketd/fault"
)

// frame header is a 4 byte big endian payload length
const (
	frameHeaderLength = 4
	maxFrameLength    = 2 * maxDataLength
)

// streamSession - a session over a byte stream connection
//
// a reader goroutine owns the receive side so Receive can apply a
// timeout without touching connection deadlines
type streamSession struct {
	sync.Mutex // covers writes

	peer string
	conn io.ReadWriteCloser
	in   chan Message
	done chan struct{}
	once sync.Once
}

// NewStream - wrap an open byte stream connection as a session
func NewStream(conn io.ReadWriteCloser, peer string) Session {
	s := &streamSession{
		peer: peer,
		conn: conn,
		in:   make(chan Message, queueSize),
		done: make(chan struct{}),
	}
	go s.reader()
	return s
}

func (s *streamSession) reader() {
	header := make([]byte, frameHeaderLength)
	for {
		_, err := io.ReadFull(s.conn, header)
		if nil != err {
			s.Close()
			return
		}
		length := binary.BigEndian.Uint32(header)
		if 0 == length || length > maxFrameLength {
			s.Close()
			return
		}
		payload := make([]byte, length)
		_, err = io.ReadFull(s.conn, payload)
		if nil != err {
			s.Close()
			return
		}
		m, _, err := UnpackMessage(payload)
		if nil != err {
			s.Close()
			return
		}
		select {
		case s.in <- m:
		case <-s.done:
			return
		}
	}
}

func (s *streamSession) Send(m Message) error {
	select {
	case <-s.done:
		return fault.ErrSessionClosed
	default:
	}

	payload := m.Pack()
	frame := make([]byte, frameHeaderLength, frameHeaderLength+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	frame = append(frame, payload...)

	s.Lock()
	_, err := s.conn.Write(frame)
	s.Unlock()
	if nil != err {
		s.Close()
		return fault.ErrSessionClosed
	}
	return nil
}

func (s *streamSession) Receive(timeout time.Duration) (Message, error) {
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
		return Message{}, fault.ErrSessionClosed
	case <-timer.C:
		return Message{}, fault.ErrSessionTimeout
	}
}

func (s *streamSession) Peer() string {
	return s.peer
}

func (s *streamSession) Close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

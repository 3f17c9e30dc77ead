// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package session - point to point messaging between protocol parties
//
// a session is an ordered bidirectional message stream between an
// initiator and a responder. two transports are provided: an
// in-process exchange built on buffered channels, used when several
// parties live in one process, and a TLS listener transport for
// parties on separate machines.
//
// every receive carries a timeout; a party that stops answering
// yields fault.ErrSessionTimeout rather than blocking the caller
// forever.
package session

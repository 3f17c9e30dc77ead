// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package flow - the two party purchase and delete procedures
//
// a Node drives a procedure from the initiating side and answers the
// responding side of the same procedures for its peers. an initiated
// instance walks a fixed sequence of stages:
//
//	resolving     look up the offer and the funding records
//	composing     build the transaction record
//	verifying     run the rule set over the composed record
//	signing       produce the initiator signature
//	collecting    obtain the responder countersignature
//	finalising    obtain the notary signature
//	disseminating commit locally and deliver the finality envelope
//
// the current stage is checkpointed in the node's store before any
// external effect so that a restarted process can pick the instance
// up again: stages at or past finalising replay the notarisation,
// which is idempotent, and re-deliver the envelope; earlier stages
// are recomposed from the recorded request.
package flow

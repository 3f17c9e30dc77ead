// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package vault - one party's view of the replicated ledger
//
// a vault wraps a storage.Store and exposes the record-level
// operations the exchange protocol needs: resolving linear
// identifiers to unconsumed records, querying cash and licenses by
// owner, and atomically committing a finalised transaction together
// with its derived output records.
//
// commit is idempotent: replaying a transaction that is already in
// the store is a no-op, so a party that crashed after a partial
// dissemination can safely be sent the same transaction again.
//
// output record identifiers are derived deterministically from the
// transaction identifier and the output index, so every party that
// commits the same transaction derives byte-identical records.
package vault

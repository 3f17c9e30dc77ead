// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - maintain the on-disk record store
//
// maintain separate pools of a number of elements in key->value form
// inside a single LevelDB database
//
// This maintains a LevelDB database split into a series of tables.
// Each table is defined by a prefix byte that is obtained from the
// prefix tag in the struct defining the available tables.
//
// The prefix is prepended to the key so the individual pools share a
// single database without any possibility of their keys colliding.
//
// Unlike a shared process-global database each Store is an
// independent instance, so several parties can each hold their own
// replica of the ledger within one process.
package storage

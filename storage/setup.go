// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
)

// exported storage pools
//
// note all must be exported (i.e. initial capital) or initialisation will panic
type pools struct {
	Transactions  *PoolHandle `prefix:"T"`
	Packages      *PoolHandle `prefix:"P"`
	Cash          *PoolHandle `prefix:"C"`
	Licenses      *PoolHandle `prefix:"L"`
	OwnerCash     *PoolHandle `prefix:"O"`
	FeeAgreements *PoolHandle `prefix:"F"`
	Consumed      *PoolHandle `prefix:"X"`
	Checkpoints   *PoolHandle `prefix:"K"`
}

// Store - a single ledger replica
//
// each party holds its own Store so any number of replicas can
// coexist in one process
type Store struct {
	sync.Mutex

	// Pool - the set of pools of this store
	Pool pools

	database *leveldb.DB
	batch    *leveldb.Batch
	access   Access
	trx      Transaction
}

// for database version
var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

const currentDBVersion = 0x100

// New - open up the database connection and set up the pools
func New(database string) (*Store, error) {

	dataDatabase := database + "-data.leveldb"

	db, version, err := getDB(dataDatabase, false)
	if nil != err {
		return nil, err
	}

	// ensure no database downgrade
	if version > currentDBVersion {
		db.Close()
		return nil, fmt.Errorf("database version: %d > current version: %d", version, currentDBVersion)
	}

	if 0 == version {
		// database was empty so tag as current version
		err = putVersion(db, currentDBVersion)
		if nil != err {
			db.Close()
			return nil, err
		}
	}

	store := &Store{
		database: db,
		batch:    new(leveldb.Batch),
	}
	store.access = newDA(db, store.batch, newCache())
	store.trx = newTransaction(store.access)

	// this will be a struct type
	poolType := reflect.TypeOf(store.Pool)

	// get write access by using pointer + Elem()
	poolValue := reflect.ValueOf(&store.Pool).Elem()

	// scan each field
	for i := 0; i < poolType.NumField(); i += 1 {

		fieldInfo := poolType.Field(i)

		prefixTag := fieldInfo.Tag.Get("prefix")
		if 1 != len(prefixTag) {
			db.Close()
			return nil, fmt.Errorf("pool: %v has invalid prefix: %q", fieldInfo, prefixTag)
		}

		prefix := prefixTag[0]
		limit := []byte(nil)
		if prefix < 255 {
			limit = []byte{prefix + 1}
		}

		p := &PoolHandle{
			prefix:     prefix,
			limit:      limit,
			dataAccess: store.access,
		}

		poolValue.Field(i).Set(reflect.ValueOf(p))
	}

	return store, nil
}

// NewDBTransaction - begin an atomic batch on the store
func (store *Store) NewDBTransaction() (Transaction, error) {
	err := store.trx.Begin()
	if nil != err {
		return nil, err
	}
	return store.trx, nil
}

// Close - close the database connection
func (store *Store) Close() {
	store.Lock()
	defer store.Unlock()

	if nil != store.database {
		store.database.Close()
		store.database = nil
	}
}

// return:
//   database handle
//   version number
func getDB(name string, readOnly bool) (*leveldb.DB, int, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: readOnly,
		ReadOnly:       readOnly,
	}

	db, err := leveldb.OpenFile(name, opt)
	if nil != err {
		return nil, 0, err
	}

	versionValue, err := db.Get(versionKey, nil)
	if leveldb.ErrNotFound == err {
		return db, 0, nil
	} else if nil != err {
		db.Close()
		return nil, 0, err
	}

	if 4 != len(versionValue) {
		db.Close()
		return nil, 0, fmt.Errorf("incompatible database version length: expected: %d  actual: %d", 4, len(versionValue))
	}

	version := int(binary.BigEndian.Uint32(versionValue))
	return db, version, nil
}

func putVersion(db *leveldb.DB, version int) error {
	currentVersion := make([]byte, 4)
	binary.BigEndian.PutUint32(currentVersion, uint32(version))

	return db.Put(versionKey, currentVersion, nil)
}

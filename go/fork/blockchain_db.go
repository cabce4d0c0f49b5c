// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package fork

import (
	"sync"

	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/Fantom-foundation/forkvm/go/tosca"
)

// BlockchainDbMeta describes the origin of the data in a BlockchainDb.
type BlockchainDbMeta struct {
	URL     string
	ChainID uint64
	Block   uint64
}

// BlockchainDb caches data fetched from a remote node at a fixed block. It
// is safe for concurrent use and may be shared by multiple handles.
type BlockchainDb struct {
	meta        BlockchainDbMeta
	mu          sync.RWMutex
	accounts    map[tosca.Address]state.AccountInfo
	storage     map[tosca.Address]map[tosca.Key]tosca.Word
	code        map[tosca.Hash]tosca.Code
	blockHashes map[uint64]tosca.Hash
}

// NewBlockchainDb creates an empty cache for the given origin.
func NewBlockchainDb(meta BlockchainDbMeta) *BlockchainDb {
	return &BlockchainDb{
		meta:        meta,
		accounts:    map[tosca.Address]state.AccountInfo{},
		storage:     map[tosca.Address]map[tosca.Key]tosca.Word{},
		code:        map[tosca.Hash]tosca.Code{},
		blockHashes: map[uint64]tosca.Hash{},
	}
}

// Meta returns the origin of the cached data.
func (db *BlockchainDb) Meta() BlockchainDbMeta {
	return db.meta
}

// Account returns a copy of the cached info of the given account.
func (db *BlockchainDb) Account(address tosca.Address) (*state.AccountInfo, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	info, found := db.accounts[address]
	if !found {
		return nil, false
	}
	return info.Clone(), true
}

// InsertAccount caches the given account info and its code.
func (db *BlockchainDb) InsertAccount(address tosca.Address, info state.AccountInfo) {
	db.mu.Lock()
	defer db.mu.Unlock()
	stored := *info.Clone()
	if len(stored.Code) > 0 {
		db.code[stored.CodeHash] = stored.Code
	}
	db.accounts[address] = stored
}

// Code returns the cached code with the given hash.
func (db *BlockchainDb) Code(hash tosca.Hash) (tosca.Code, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	code, found := db.code[hash]
	return code, found
}

// Storage returns the cached value of the given slot.
func (db *BlockchainDb) Storage(address tosca.Address, key tosca.Key) (tosca.Word, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, found := db.storage[address][key]
	return value, found
}

// InsertStorage caches the value of the given slot.
func (db *BlockchainDb) InsertStorage(address tosca.Address, key tosca.Key, value tosca.Word) {
	db.mu.Lock()
	defer db.mu.Unlock()
	slots, found := db.storage[address]
	if !found {
		slots = map[tosca.Key]tosca.Word{}
		db.storage[address] = slots
	}
	slots[key] = value
}

// BlockHash returns the cached hash of the given block.
func (db *BlockchainDb) BlockHash(number uint64) (tosca.Hash, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	hash, found := db.blockHashes[number]
	return hash, found
}

// InsertBlockHash caches the hash of the given block.
func (db *BlockchainDb) InsertBlockHash(number uint64, hash tosca.Hash) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.blockHashes[number] = hash
}

// Size returns the number of cached accounts and storage slots.
func (db *BlockchainDb) Size() (accounts int, slots int) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, cur := range db.storage {
		slots += len(cur)
	}
	return len(db.accounts), slots
}

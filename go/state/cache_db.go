// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"maps"

	"github.com/Fantom-foundation/forkvm/go/tosca"
)

// DbAccountState describes what is known about an account cached in a
// CacheDB.
type DbAccountState int

const (
	// AccountNone marks an account loaded from the underlying database and
	// not modified since.
	AccountNone DbAccountState = iota
	// AccountNotExisting marks an account the underlying database does not
	// know about, or one that was destroyed.
	AccountNotExisting
	// AccountTouched marks an account modified by a commit.
	AccountTouched
	// AccountStorageCleared marks an account whose storage was wiped, so
	// missing slots must not be looked up in the underlying database.
	AccountStorageCleared
)

// DbAccount is an account cached in a CacheDB.
type DbAccount struct {
	Info    AccountInfo
	State   DbAccountState
	Storage map[tosca.Key]tosca.Word
}

func newDbAccount(info *AccountInfo) *DbAccount {
	if info == nil {
		return &DbAccount{State: AccountNotExisting, Storage: map[tosca.Key]tosca.Word{}}
	}
	return &DbAccount{Info: *info, Storage: map[tosca.Key]tosca.Word{}}
}

// AccountInfo returns the info of the account, or nil if it does not exist.
func (a *DbAccount) AccountInfo() *AccountInfo {
	if a.State == AccountNotExisting {
		return nil
	}
	return a.Info.Clone()
}

func (a *DbAccount) clone() *DbAccount {
	return &DbAccount{
		Info:    *a.Info.Clone(),
		State:   a.State,
		Storage: maps.Clone(a.Storage),
	}
}

// CacheDB is an in-memory overlay over a read-only database. All changes are
// kept in the overlay, the underlying database is never written to. Reads
// through the Database interface cache the loaded data in the overlay,
// reads through the DatabaseRef interface leave the overlay untouched.
type CacheDB struct {
	Accounts    map[tosca.Address]*DbAccount
	Contracts   map[tosca.Hash]tosca.Code
	BlockHashes map[uint64]tosca.Hash
	db          DatabaseRef
}

// NewCacheDB creates an empty overlay over the given database.
func NewCacheDB(db DatabaseRef) *CacheDB {
	return &CacheDB{
		Accounts: map[tosca.Address]*DbAccount{},
		Contracts: map[tosca.Hash]tosca.Code{
			tosca.EmptyCodeHash: {},
			{}:                  {},
		},
		BlockHashes: map[uint64]tosca.Hash{},
		db:          db,
	}
}

// NewMemDB creates an overlay over an empty database.
func NewMemDB() *CacheDB {
	return NewCacheDB(EmptyDB{})
}

// Underlying returns the database this overlay reads through to.
func (c *CacheDB) Underlying() DatabaseRef {
	return c.db
}

// Clone creates a deep copy of the overlay sharing the underlying
// database.
func (c *CacheDB) Clone() *CacheDB {
	accounts := make(map[tosca.Address]*DbAccount, len(c.Accounts))
	for address, account := range c.Accounts {
		accounts[address] = account.clone()
	}
	return &CacheDB{
		Accounts:    accounts,
		Contracts:   maps.Clone(c.Contracts),
		BlockHashes: maps.Clone(c.BlockHashes),
		db:          c.db,
	}
}

// InsertContract registers the code of the given account info in the
// contract table and normalizes its code hash.
func (c *CacheDB) InsertContract(info *AccountInfo) {
	if info.Code != nil && len(info.Code) > 0 {
		if info.CodeHash == (tosca.Hash{}) || info.CodeHash == tosca.EmptyCodeHash {
			info.CodeHash = info.Code.Hash()
		}
		c.Contracts[info.CodeHash] = info.Code
	}
	if info.CodeHash == (tosca.Hash{}) {
		info.CodeHash = tosca.EmptyCodeHash
	}
}

// InsertAccountInfo sets the info of the given account, keeping its
// storage if it is already cached.
func (c *CacheDB) InsertAccountInfo(address tosca.Address, info AccountInfo) {
	c.InsertContract(&info)
	account, found := c.Accounts[address]
	if !found {
		account = newDbAccount(nil)
		c.Accounts[address] = account
	}
	if account.State == AccountNotExisting {
		account.State = AccountNone
	}
	account.Info = info
}

// InsertAccountStorage sets a single storage slot of the given account,
// loading the account first if needed.
func (c *CacheDB) InsertAccountStorage(address tosca.Address, key tosca.Key, value tosca.Word) error {
	account, err := c.LoadAccount(address)
	if err != nil {
		return err
	}
	account.Storage[key] = value
	return nil
}

// ReplaceAccountStorage replaces the full storage of the given account. Slots
// not in the given storage read as zero afterwards.
func (c *CacheDB) ReplaceAccountStorage(address tosca.Address, storage map[tosca.Key]tosca.Word) error {
	account, err := c.LoadAccount(address)
	if err != nil {
		return err
	}
	account.State = AccountStorageCleared
	account.Storage = maps.Clone(storage)
	if account.Storage == nil {
		account.Storage = map[tosca.Key]tosca.Word{}
	}
	return nil
}

// LoadAccount returns the cached account, loading it from the underlying
// database if needed.
func (c *CacheDB) LoadAccount(address tosca.Address) (*DbAccount, error) {
	if account, found := c.Accounts[address]; found {
		return account, nil
	}
	info, err := c.db.BasicRef(address)
	if err != nil {
		return nil, err
	}
	account := newDbAccount(info)
	c.Accounts[address] = account
	return account, nil
}

// Basic returns the info of the given account, caching it in the overlay.
func (c *CacheDB) Basic(address tosca.Address) (*AccountInfo, error) {
	account, err := c.LoadAccount(address)
	if err != nil {
		return nil, err
	}
	return account.AccountInfo(), nil
}

// BasicRef returns the info of the given account without caching it.
func (c *CacheDB) BasicRef(address tosca.Address) (*AccountInfo, error) {
	if account, found := c.Accounts[address]; found {
		return account.AccountInfo(), nil
	}
	return c.db.BasicRef(address)
}

// CodeByHash returns the code with the given hash, caching it in the
// overlay.
func (c *CacheDB) CodeByHash(hash tosca.Hash) (tosca.Code, error) {
	if code, found := c.Contracts[hash]; found {
		return code, nil
	}
	code, err := c.db.CodeByHashRef(hash)
	if err != nil {
		return nil, err
	}
	c.Contracts[hash] = code
	return code, nil
}

// CodeByHashRef returns the code with the given hash without caching it.
func (c *CacheDB) CodeByHashRef(hash tosca.Hash) (tosca.Code, error) {
	if code, found := c.Contracts[hash]; found {
		return code, nil
	}
	return c.db.CodeByHashRef(hash)
}

// Storage returns the value of the given slot, caching the account and the
// slot in the overlay.
func (c *CacheDB) Storage(address tosca.Address, key tosca.Key) (tosca.Word, error) {
	account, err := c.LoadAccount(address)
	if err != nil {
		return tosca.Word{}, err
	}
	if value, found := account.Storage[key]; found {
		return value, nil
	}
	if account.State == AccountStorageCleared || account.State == AccountNotExisting {
		return tosca.Word{}, nil
	}
	value, err := c.db.StorageRef(address, key)
	if err != nil {
		return tosca.Word{}, err
	}
	account.Storage[key] = value
	return value, nil
}

// StorageRef returns the value of the given slot without caching it.
func (c *CacheDB) StorageRef(address tosca.Address, key tosca.Key) (tosca.Word, error) {
	if account, found := c.Accounts[address]; found {
		if value, found := account.Storage[key]; found {
			return value, nil
		}
		if account.State == AccountStorageCleared || account.State == AccountNotExisting {
			return tosca.Word{}, nil
		}
	}
	return c.db.StorageRef(address, key)
}

// BlockHash returns the hash of the given block, caching it in the overlay.
func (c *CacheDB) BlockHash(number uint64) (tosca.Hash, error) {
	if hash, found := c.BlockHashes[number]; found {
		return hash, nil
	}
	hash, err := c.db.BlockHashRef(number)
	if err != nil {
		return tosca.Hash{}, err
	}
	c.BlockHashes[number] = hash
	return hash, nil
}

// BlockHashRef returns the hash of the given block without caching it.
func (c *CacheDB) BlockHashRef(number uint64) (tosca.Hash, error) {
	if hash, found := c.BlockHashes[number]; found {
		return hash, nil
	}
	return c.db.BlockHashRef(number)
}

// Commit applies the given account changes to the overlay. Untouched
// accounts are ignored, self-destructed accounts are wiped.
func (c *CacheDB) Commit(changes map[tosca.Address]*Account) {
	for address, account := range changes {
		if !account.IsTouched() {
			continue
		}
		if account.IsSelfDestructed() {
			cached, found := c.Accounts[address]
			if !found {
				cached = newDbAccount(nil)
				c.Accounts[address] = cached
			}
			cached.Storage = map[tosca.Key]tosca.Word{}
			cached.State = AccountNotExisting
			cached.Info = AccountInfo{}
			continue
		}

		info := *account.Info.Clone()
		c.InsertContract(&info)

		cached, found := c.Accounts[address]
		if !found {
			cached = newDbAccount(nil)
			c.Accounts[address] = cached
		}
		cached.Info = info
		if account.IsCreated() {
			cached.Storage = map[tosca.Key]tosca.Word{}
			cached.State = AccountStorageCleared
		} else if cached.State != AccountStorageCleared {
			cached.State = AccountTouched
		}
		for key, slot := range account.Storage {
			if slot.IsChanged() || account.IsCreated() {
				cached.Storage[key] = slot.Present
			}
		}
	}
}

// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package backend

import (
	"github.com/Fantom-foundation/forkvm/go/fork"
	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/ethereum/go-ethereum/log"
)

// Backend is the database of an execution session. It either serves a
// purely local in-memory state or the state of one of several forks of
// remote chains, of which one is active at any time. Forks can be created,
// selected and rolled to other blocks while executing, and snapshots of the
// complete state can be taken and restored.
//
// A Backend is not safe for concurrent use. Use CloneEmpty to obtain
// independent instances sharing the same fork provider.
type Backend struct {
	forks           fork.Provider
	memDB           *state.CacheDB
	forkInitJournal *journal.Journal
	active          *activeFork
	inner           *inner
}

type activeFork struct {
	id    LocalForkID
	index int
}

var (
	_ state.Database       = (*Backend)(nil)
	_ state.DatabaseRef    = (*Backend)(nil)
	_ state.DatabaseCommit = (*Backend)(nil)
)

// New creates a Backend using the given provider for remote forks. If
// launch is not nil, the described fork is created and activated right
// away.
func New(provider fork.Provider, launch *fork.CreateFork) (*Backend, error) {
	backend := &Backend{
		forks: provider,
		memDB: state.NewMemDB(),
		inner: newInner(),
	}
	backend.forkInitJournal = journal.New(backend.inner.precompiles())
	if launch == nil {
		return backend, nil
	}

	forkID, db, _, err := provider.CreateFork(*launch)
	if err != nil {
		return nil, &ProviderError{Op: "create launch fork", Err: err}
	}
	id, index := backend.inner.insertNewFork(forkID, db, backend.forkInitJournal.Clone())
	backend.inner.launchedWithFork = &launchedFork{forkID: forkID, id: id, index: index}
	backend.active = &activeFork{id: id, index: index}
	log.Trace("Launched with fork", "id", id.Dec(), "fork", forkID)
	return backend, nil
}

// CloneEmpty creates a Backend sharing the fork provider of this one but
// none of its state.
func (b *Backend) CloneEmpty() *Backend {
	res := &Backend{
		forks: b.forks,
		memDB: state.NewMemDB(),
		inner: newInner(),
	}
	res.inner.revision = b.inner.revision
	res.forkInitJournal = journal.New(res.inner.precompiles())
	return res
}

// SetRevision sets the revision new journals are created for.
func (b *Backend) SetRevision(revision tosca.Revision) *Backend {
	b.inner.revision = revision
	return b
}

// SetCaller records the sender of test transactions and grants it cheat
// code access.
func (b *Backend) SetCaller(address tosca.Address) *Backend {
	log.Trace("Setting caller", "address", address)
	b.inner.caller = &address
	b.AllowCheatcodeAccess(address)
	return b
}

// CallerAddress returns the address recorded by SetCaller.
func (b *Backend) CallerAddress() (tosca.Address, bool) {
	if b.inner.caller == nil {
		return tosca.Address{}, false
	}
	return *b.inner.caller, true
}

// SetTestContract marks the given account as persistent and grants it cheat
// code access.
func (b *Backend) SetTestContract(address tosca.Address) *Backend {
	log.Trace("Setting test contract", "address", address)
	b.AddPersistentAccount(address)
	b.AllowCheatcodeAccess(address)
	return b
}

// MemDB returns the store used while no fork is active.
func (b *Backend) MemDB() *state.CacheDB {
	return b.memDB
}

// InitJournal returns the journal new forks start from.
func (b *Backend) InitJournal() *journal.Journal {
	return b.forkInitJournal
}

// activeFork returns the active fork or nil if no fork is active.
func (b *Backend) activeFork() *Fork {
	if b.active == nil {
		return nil
	}
	return b.inner.getFork(b.active.index)
}

// activeDB returns the store all reads and writes are routed to.
func (b *Backend) activeDB() *state.CacheDB {
	if fork := b.activeFork(); fork != nil {
		return fork.DB
	}
	return b.memDB
}

// Basic returns the info of the given account from the active store.
func (b *Backend) Basic(address tosca.Address) (*state.AccountInfo, error) {
	return b.activeDB().Basic(address)
}

func (b *Backend) CodeByHash(hash tosca.Hash) (tosca.Code, error) {
	return b.activeDB().CodeByHash(hash)
}

func (b *Backend) Storage(address tosca.Address, key tosca.Key) (tosca.Word, error) {
	return b.activeDB().Storage(address, key)
}

func (b *Backend) BlockHash(number uint64) (tosca.Hash, error) {
	return b.activeDB().BlockHash(number)
}

// BasicRef returns the info of the given account from the active store
// without caching it.
func (b *Backend) BasicRef(address tosca.Address) (*state.AccountInfo, error) {
	return b.activeDB().BasicRef(address)
}

func (b *Backend) CodeByHashRef(hash tosca.Hash) (tosca.Code, error) {
	return b.activeDB().CodeByHashRef(hash)
}

func (b *Backend) StorageRef(address tosca.Address, key tosca.Key) (tosca.Word, error) {
	return b.activeDB().StorageRef(address, key)
}

func (b *Backend) BlockHashRef(number uint64) (tosca.Hash, error) {
	return b.activeDB().BlockHashRef(number)
}

// Commit applies the given changes to the active store.
func (b *Backend) Commit(changes map[tosca.Address]*state.Account) {
	b.activeDB().Commit(changes)
}

// InsertAccountInfo sets the info of an account in the active store.
func (b *Backend) InsertAccountInfo(address tosca.Address, info state.AccountInfo) {
	b.activeDB().InsertAccountInfo(address, info)
}

// InsertAccountStorage sets a storage slot of an account in the active
// store.
func (b *Backend) InsertAccountStorage(address tosca.Address, key tosca.Key, value tosca.Word) error {
	return b.activeDB().InsertAccountStorage(address, key, value)
}

// ReplaceAccountStorage replaces the storage of an account in the active
// store.
func (b *Backend) ReplaceAccountStorage(address tosca.Address, storage map[tosca.Key]tosca.Word) error {
	return b.activeDB().ReplaceAccountStorage(address, storage)
}

// SetBlockHash overrides the hash reported for the given block by the
// active store.
func (b *Backend) SetBlockHash(number uint64, hash tosca.Hash) {
	b.activeDB().BlockHashes[number] = hash
}

// MergedLogs returns the logs of all forks, with the logs of the active fork
// replaced by the given ones. Outside of forked mode the given logs are
// returned.
func (b *Backend) MergedLogs(logs []tosca.Log) []tosca.Log {
	if b.active == nil {
		return logs
	}
	all := make([]tosca.Log, 0, len(logs))
	for index, fork := range b.inner.forks {
		if fork == nil {
			continue
		}
		if index == b.active.index {
			all = append(all, logs...)
		} else {
			all = append(all, fork.Journal.Logs...)
		}
	}
	return all
}

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
	"maps"

	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/ethereum/go-ethereum/log"
)

// AddPersistentAccount marks the given account as persistent. The state of
// persistent accounts is carried over whenever another fork is selected.
func (b *Backend) AddPersistentAccount(address tosca.Address) bool {
	log.Trace("Adding persistent account", "address", address)
	if b.inner.isPersistent(address) {
		return false
	}
	b.inner.persistentAccounts[address] = struct{}{}
	return true
}

// RemovePersistentAccount removes the persistent mark of the given account.
func (b *Backend) RemovePersistentAccount(address tosca.Address) bool {
	log.Trace("Removing persistent account", "address", address)
	if !b.inner.isPersistent(address) {
		return false
	}
	delete(b.inner.persistentAccounts, address)
	return true
}

// IsPersistent reports whether the given account is persistent.
func (b *Backend) IsPersistent(address tosca.Address) bool {
	return b.inner.isPersistent(address)
}

// PersistentAccounts lists all persistent accounts.
func (b *Backend) PersistentAccounts() []tosca.Address {
	res := make([]tosca.Address, 0, len(b.inner.persistentAccounts))
	for address := range b.inner.persistentAccounts {
		res = append(res, address)
	}
	return res
}

// updateForkDB carries the persistent accounts from the current state over
// into the target fork.
func (b *Backend) updateForkDB(active *journal.Journal, target *Fork) {
	b.updateForkDBContracts(b.PersistentAccounts(), active, target)
}

func (b *Backend) updateForkDBContracts(accounts []tosca.Address, active *journal.Journal, target *Fork) {
	mergeAccountData(accounts, b.activeDB(), active, target)
}

// mergeAccountData copies the given accounts from the active store and
// journal into the target fork and makes the target journal the active one.
func mergeAccountData(accounts []tosca.Address, activeDB *state.CacheDB, active *journal.Journal, target *Fork) {
	for _, address := range accounts {
		mergeDBAccount(address, activeDB, target.DB)
		mergeJournalAccount(address, active, target.Journal)
	}
	target.Journal.PadEntries(len(active.Entries))
	*active = *target.Journal.Clone()
}

// mergeJournalAccount copies an account from one journal into another. On
// storage conflicts the slots of the source win.
func mergeJournalAccount(address tosca.Address, active, target *journal.Journal) {
	account, found := active.State[address]
	if !found {
		return
	}
	merged := account.Clone()
	if existing, found := target.State[address]; found {
		merged.Storage = mergeStorage(existing.Storage, merged.Storage)
	}
	target.State[address] = merged
}

// mergeDBAccount copies an account and its code from one store into
// another. On storage conflicts the slots of the source win.
func mergeDBAccount(address tosca.Address, active, target *state.CacheDB) {
	account, found := active.Accounts[address]
	if !found {
		return
	}
	merged := &state.DbAccount{
		Info:    *account.Info.Clone(),
		State:   account.State,
		Storage: maps.Clone(account.Storage),
	}
	if code, found := active.Contracts[merged.Info.CodeHash]; found {
		target.Contracts[merged.Info.CodeHash] = code
	}
	if existing, found := target.Accounts[address]; found {
		merged.Storage = mergeStorage(existing.Storage, merged.Storage)
	}
	target.Accounts[address] = merged
}

func mergeStorage[K comparable, V any](target, active map[K]V) map[K]V {
	res := make(map[K]V, len(target)+len(active))
	maps.Copy(res, target)
	maps.Copy(res, active)
	return res
}

// ExtendPersistentAccounts marks all given accounts as persistent.
func (b *Backend) ExtendPersistentAccounts(addresses ...tosca.Address) {
	for _, address := range addresses {
		b.AddPersistentAccount(address)
	}
}

// RemovePersistentAccounts removes the persistent mark of all given
// accounts.
func (b *Backend) RemovePersistentAccounts(addresses ...tosca.Address) {
	for _, address := range addresses {
		b.RemovePersistentAccount(address)
	}
}

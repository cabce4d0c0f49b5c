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
	"fmt"

	"github.com/Fantom-foundation/forkvm/go/fork"
	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/ethereum/go-ethereum/log"
)

// ActiveForkID returns the local id of the active fork.
func (b *Backend) ActiveForkID() (LocalForkID, bool) {
	if b.active == nil {
		return LocalForkID{}, false
	}
	return b.active.id, true
}

// IsActiveFork reports whether the fork with the given id is active.
func (b *Backend) IsActiveFork(id LocalForkID) bool {
	return b.active != nil && b.active.id == id
}

// IsForkedMode reports whether a fork is active.
func (b *Backend) IsForkedMode() bool {
	return b.active != nil
}

// ActiveForkURL returns the endpoint of the active fork.
func (b *Backend) ActiveForkURL() (string, bool) {
	if b.active == nil {
		return "", false
	}
	forkID, err := b.inner.ensureForkID(b.active.id)
	if err != nil {
		return "", false
	}
	return b.forks.GetForkURL(forkID)
}

// EnsureFork resolves an optional fork id, defaulting to the active fork.
func (b *Backend) EnsureFork(id *LocalForkID) (LocalForkID, error) {
	if id != nil {
		return *id, nil
	}
	if b.active == nil {
		return LocalForkID{}, ErrNoActiveFork
	}
	return b.active.id, nil
}

// EnsureForkID returns the remote identifier the given local id maps to.
func (b *Backend) EnsureForkID(id LocalForkID) (fork.ForkID, error) {
	return b.inner.ensureForkID(id)
}

// Forks lists the local ids of all forks in ascending order.
func (b *Backend) Forks() []LocalForkID {
	return b.inner.localForkIDs()
}

// CreateFork creates a new fork without selecting it. The new fork starts
// with the bootstrap journal, which is extended by the caller if needed.
func (b *Backend) CreateFork(spec fork.CreateFork) (LocalForkID, error) {
	log.Trace("Create fork", "url", spec.URL)
	forkID, db, _, err := b.forks.CreateFork(spec)
	if err != nil {
		return LocalForkID{}, &ProviderError{Op: "create fork", Err: err}
	}
	// Forks created during setup have to know the caller.
	if caller, found := b.CallerAddress(); found {
		if _, err := b.forkInitJournal.LoadAccount(caller, b); err != nil {
			return LocalForkID{}, err
		}
	}
	id, _ := b.inner.insertNewFork(forkID, db, b.forkInitJournal.Clone())
	return id, nil
}

// CreateSelectFork creates a new fork and selects it.
func (b *Backend) CreateSelectFork(spec fork.CreateFork, env *journal.Env, active *journal.Journal) (LocalForkID, error) {
	id, err := b.CreateFork(spec)
	if err != nil {
		return LocalForkID{}, err
	}
	if err := b.SelectFork(id, env, active); err != nil {
		return LocalForkID{}, err
	}
	return id, nil
}

// SelectFork makes the fork with the given id the active one. The given
// journal is the journal of the currently executing state; it is recorded
// in the previously active fork and replaced by the journal of the selected
// fork. The block context of env is replaced by the one of the fork.
func (b *Backend) SelectFork(id LocalForkID, env *journal.Env, active *journal.Journal) error {
	log.Trace("Select fork", "id", id.Dec())
	if b.IsActiveFork(id) {
		return nil
	}

	// Keep block number and timestamp changes of the active fork.
	if b.active != nil {
		activeForkID, err := b.inner.ensureForkID(b.active.id)
		if err != nil {
			return err
		}
		number, timestamp := uint64(env.Block.BlockNumber), uint64(env.Block.Timestamp)
		if err := b.forks.UpdateBlock(activeForkID, number, timestamp); err != nil {
			return &ProviderError{Op: "update block", Err: err}
		}
	}

	forkID, err := b.inner.ensureForkID(id)
	if err != nil {
		return err
	}
	index, err := b.inner.ensureForkIndex(forkID)
	if err != nil {
		return err
	}
	forkEnv, found, err := b.forks.GetEnv(forkID)
	if err != nil {
		return &ProviderError{Op: "get env", Err: err}
	}
	if !found {
		return fmt.Errorf("%w: fork %s does not exist", ErrUnknownFork, id.Dec())
	}

	// Local ids of the same remote fork share a record.
	if b.active != nil && b.active.index == index {
		b.active.id = id
		env.ApplyForkEnv(forkEnv)
		return nil
	}

	caller := env.Tx.Caller
	if current := b.activeFork(); current != nil {
		current.Journal = active.Clone()

		// A fork that was never selected starts at depth 0 and needs the
		// caller as seen by its own store.
		target := b.inner.getFork(index)
		if callerAccount, found := current.Journal.State[caller]; found && target.Journal.Depth == 0 {
			info, err := target.DB.Basic(caller)
			if err != nil {
				return err
			}
			if info == nil {
				return &MissingAccountError{Address: caller}
			}
			account := callerAccount.Clone()
			account.Info = *info
			target.Journal.State[caller] = account
		}
	} else {
		// Up to the first selection all changes were recorded in a single
		// journal, which becomes the bootstrap journal of all forks.
		log.Trace("Recording fork init journal")
		b.forkInitJournal = active.Clone()
		if err := b.prepareInitJournal(); err != nil {
			return err
		}
		b.forkInitJournal.Depth = 0
	}

	target := b.inner.takeFork(index)
	defer b.inner.setFork(index, target)

	target.Journal.Depth = active.Depth
	if _, found := target.Journal.State[caller]; !found {
		info := state.AccountInfo{CodeHash: tosca.EmptyCodeHash}
		if account, found := active.State[caller]; found {
			info = *account.Info.Clone()
		}
		if _, found := target.DB.Accounts[caller]; !found {
			target.DB.InsertAccountInfo(caller, info)
		}
		target.Journal.State[caller] = state.NewAccount(info)
	}

	b.updateForkDB(active, target)

	b.active = &activeFork{id: id, index: index}
	env.ApplyForkEnv(forkEnv)
	return nil
}

// RollFork moves the fork with the given id, or the active fork if id is
// nil, to another block of the same endpoint. The local id of the fork is
// retained. If the rolled fork is active, env and the given journal are
// updated to the new block right away.
func (b *Backend) RollFork(id *LocalForkID, block uint64, env *journal.Env, active *journal.Journal) error {
	localID, err := b.EnsureFork(id)
	if err != nil {
		return err
	}
	log.Trace("Roll fork", "id", localID.Dec(), "block", block)
	forkID, err := b.inner.ensureForkID(localID)
	if err != nil {
		return err
	}
	newForkID, db, forkEnv, err := b.forks.RollFork(forkID, block)
	if err != nil {
		return &ProviderError{Op: "roll fork", Err: err}
	}
	index, err := b.inner.rollFork(localID, newForkID, db)
	if err != nil {
		return err
	}
	if !b.IsActiveFork(localID) {
		return nil
	}

	env.ApplyForkEnv(forkEnv)

	keep := make([]tosca.Address, 0, len(b.inner.persistentAccounts)+1)
	for address := range b.inner.persistentAccounts {
		keep = append(keep, address)
	}
	if caller, found := b.CallerAddress(); found {
		keep = append(keep, caller)
	}

	target := b.inner.getFork(index)
	target.Journal = b.forkInitJournal.Clone()
	target.Journal.Depth = active.Depth
	for _, address := range keep {
		mergeJournalAccount(address, active, target.Journal)
	}

	// Accounts loaded before the roll are loaded again from the new block,
	// except for accounts created in this session which are kept if touched.
	for address, account := range active.State {
		if account.IsCreated() {
			if account.IsTouched() {
				mergeJournalAccount(address, active, target.Journal)
			}
			continue
		}
		if b.inner.isPersistent(address) {
			continue
		}
		if caller, found := b.CallerAddress(); found && caller == address {
			continue
		}
		delete(target.Journal.State, address)
		if _, err := target.Journal.LoadAccount(address, target.DB); err != nil {
			return err
		}
	}

	*active = *target.Journal.Clone()
	return nil
}

// prepareInitJournal replaces the accounts loaded in the bootstrap journal
// by the account info of each fork's store and makes the result the journal
// of every fork. Precompiles, persistent accounts and accounts created
// before the first fork was selected are retained.
func (b *Backend) prepareInitJournal() error {
	precompiles := map[tosca.Address]struct{}{}
	for _, address := range b.inner.precompiles() {
		precompiles[address] = struct{}{}
	}
	loaded := make([]tosca.Address, 0, len(b.forkInitJournal.State))
	for address := range b.forkInitJournal.State {
		if _, found := precompiles[address]; found || b.inner.isPersistent(address) {
			continue
		}
		loaded = append(loaded, address)
	}

	for _, fork := range b.inner.forks {
		if fork == nil {
			continue
		}
		journal := b.forkInitJournal.Clone()
		for _, address := range loaded {
			account := journal.State[address]
			if account.IsCreated() {
				log.Trace("Skipping created account on init", "address", address)
				continue
			}
			info, err := fork.DB.Basic(address)
			if err != nil {
				return err
			}
			if info == nil {
				return &MissingAccountError{Address: address}
			}
			log.Trace("Replacing account on init", "address", address)
			account.Info = *info
		}
		fork.Journal = journal
	}
	return nil
}

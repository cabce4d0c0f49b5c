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
	"slices"

	"github.com/Fantom-foundation/forkvm/go/fork"
	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// launchedFork records the fork a Backend was started with.
type launchedFork struct {
	forkID fork.ForkID
	id     LocalForkID
	index  int
}

// inner holds the fork table and the session configuration of a Backend.
// Forks are addressed by an index into the table. The table maps both the
// local and the remote identifier of a fork to that index; rolling a fork
// remaps the identifiers but keeps the index.
type inner struct {
	launchedWithFork   *launchedFork
	issuedLocalForkIDs map[LocalForkID]fork.ForkID
	createdForks       map[fork.ForkID]int
	forks              []*Fork
	snapshots          *Snapshots[*StateSnapshot]
	hasSnapshotFailure bool
	caller             *tosca.Address
	nextForkID         LocalForkID
	persistentAccounts map[tosca.Address]struct{}
	revision           tosca.Revision
	cheatcodeAccess    map[tosca.Address]struct{}
}

func newInner() *inner {
	res := &inner{
		issuedLocalForkIDs: map[LocalForkID]fork.ForkID{},
		createdForks:       map[fork.ForkID]int{},
		snapshots:          NewSnapshots[*StateSnapshot](),
		persistentAccounts: map[tosca.Address]struct{}{},
		revision:           tosca.R13_Cancun,
		cheatcodeAccess:    map[tosca.Address]struct{}{},
	}
	for _, address := range DefaultPersistentAccounts() {
		res.persistentAccounts[address] = struct{}{}
	}
	for _, address := range DefaultCheatcodeAccessAccounts() {
		res.cheatcodeAccess[address] = struct{}{}
	}
	return res
}

func (i *inner) ensureForkID(id LocalForkID) (fork.ForkID, error) {
	forkID, found := i.issuedLocalForkIDs[id]
	if !found {
		return "", fmt.Errorf("%w: %s", ErrUnknownFork, id.Dec())
	}
	return forkID, nil
}

func (i *inner) ensureForkIndex(forkID fork.ForkID) (int, error) {
	index, found := i.createdForks[forkID]
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFork, forkID)
	}
	return index, nil
}

func (i *inner) ensureForkIndexByLocalID(id LocalForkID) (int, error) {
	forkID, err := i.ensureForkID(id)
	if err != nil {
		return 0, err
	}
	return i.ensureForkIndex(forkID)
}

// getFork returns the fork at the given index. The slot must be occupied.
func (i *inner) getFork(index int) *Fork {
	fork := i.forks[index]
	if fork == nil {
		panic(fmt.Sprintf("fork at index %d is not present", index))
	}
	return fork
}

// takeFork removes the fork at the given index from the table. It has to be
// put back using setFork before the table is used again.
func (i *inner) takeFork(index int) *Fork {
	fork := i.getFork(index)
	i.forks[index] = nil
	return fork
}

func (i *inner) setFork(index int, fork *Fork) {
	i.forks[index] = fork
}

// localForkIDs lists all issued local ids in ascending order.
func (i *inner) localForkIDs() []LocalForkID {
	ids := make([]LocalForkID, 0, len(i.issuedLocalForkIDs))
	for id := range i.issuedLocalForkIDs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b LocalForkID) int {
		return a.Cmp(&b)
	})
	return ids
}

func (i *inner) nextID() LocalForkID {
	id := i.nextForkID
	i.nextForkID.AddUint64(&i.nextForkID, 1)
	return id
}

// insertNewFork registers a fork for the given remote handle and returns its
// fresh local id and index.
func (i *inner) insertNewFork(forkID fork.ForkID, db state.DatabaseRef, journal *journal.Journal) (LocalForkID, int) {
	index := len(i.forks)
	id := i.nextID()
	i.issuedLocalForkIDs[id] = forkID
	i.createdForks[forkID] = index
	i.forks = append(i.forks, &Fork{DB: state.NewCacheDB(db), Journal: journal})
	log.Trace("Inserted fork", "id", id.Dec(), "fork", forkID, "index", index)
	return id, index
}

// rollFork points the given local id to a new remote fork. The fork keeps
// its index and receives a fresh store that retains the data of persistent
// accounts.
func (i *inner) rollFork(id LocalForkID, newForkID fork.ForkID, db state.DatabaseRef) (int, error) {
	index, err := i.ensureForkIndexByLocalID(id)
	if err != nil {
		return 0, err
	}
	if current := i.forks[index]; current != nil {
		store := state.NewCacheDB(db)
		for address := range i.persistentAccounts {
			mergeDBAccount(address, current.DB, store)
		}
		current.DB = store
	}
	i.issuedLocalForkIDs[id] = newForkID
	i.createdForks[newForkID] = index
	return index, nil
}

// restoreFork re-registers a fork captured in a snapshot.
func (i *inner) restoreFork(id LocalForkID, forkID fork.ForkID, index int, fork *Fork) {
	i.createdForks[forkID] = index
	i.issuedLocalForkIDs[id] = forkID
	i.setFork(index, fork)
}

func (i *inner) isPersistent(address tosca.Address) bool {
	_, found := i.persistentAccounts[address]
	return found
}

func (i *inner) precompiles() []tosca.Address {
	return tosca.PrecompiledContracts(i.revision)
}

func newLocalForkID(id uint64) LocalForkID {
	return *uint256.NewInt(id)
}

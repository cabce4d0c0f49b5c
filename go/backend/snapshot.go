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
	"github.com/holiman/uint256"
)

// DatabaseSnapshot is the store captured by a snapshot. Either MemDB is set,
// for snapshots taken without an active fork, or Fork is.
type DatabaseSnapshot struct {
	MemDB *state.CacheDB

	ID     LocalForkID
	ForkID fork.ForkID
	Index  int
	Fork   *Fork
}

// IsForked reports whether the snapshot was taken while a fork was active.
func (s *DatabaseSnapshot) IsForked() bool {
	return s.Fork != nil
}

// StateSnapshot is the full execution state captured by Snapshot.
type StateSnapshot struct {
	DB      DatabaseSnapshot
	Journal *journal.Journal
	Env     journal.Env
}

// SnapshotID identifies a snapshot. Ids are issued in ascending order and
// never reused.
type SnapshotID = uint256.Int

// RevertAction selects what happens with a snapshot after reverting to it.
type RevertAction int

const (
	// RevertRemove drops the snapshot and all snapshots taken after it.
	RevertRemove RevertAction = iota
	// RevertKeep drops all snapshots taken after the snapshot, but keeps
	// the snapshot itself so it can be reverted to again.
	RevertKeep
)

func (a RevertAction) IsKeep() bool {
	return a == RevertKeep
}

// Snapshot captures the current store, journal and environment and returns
// the id of the new snapshot.
func (b *Backend) Snapshot(active *journal.Journal, env journal.Env) SnapshotID {
	snapshot := &StateSnapshot{
		DB:      b.createDBSnapshot(),
		Journal: active.Clone(),
		Env:     env.Clone(),
	}
	id := b.inner.snapshots.Insert(snapshot)
	log.Trace("Created new snapshot", "id", id.Dec())
	return id
}

func (b *Backend) createDBSnapshot() DatabaseSnapshot {
	if b.active == nil {
		return DatabaseSnapshot{MemDB: b.memDB.Clone()}
	}
	forkID, err := b.inner.ensureForkID(b.active.id)
	if err != nil {
		panic(err)
	}
	return DatabaseSnapshot{
		ID:     b.active.id,
		ForkID: forkID,
		Index:  b.active.index,
		Fork:   b.activeFork().Clone(),
	}
}

// Revert restores the state captured by the snapshot with the given id. The
// restored journal is returned; it carries the logs of the given journal
// since logs survive reverts. The result is false if no such snapshot
// exists, in which case nothing is changed.
func (b *Backend) Revert(id SnapshotID, current *journal.Journal, env *journal.Env, action RevertAction) (*journal.Journal, bool) {
	log.Trace("Reverting snapshot", "id", id.Dec())
	snapshot, found := b.inner.snapshots.Remove(id)
	if !found {
		log.Warn("No snapshot to revert to", "id", id.Dec())
		return nil, false
	}
	if action.IsKeep() {
		b.inner.snapshots.InsertAt(snapshot, id)
	}

	// A failure recorded in the current state must not be lost by reverting.
	if HasFailed(current) {
		b.inner.hasSnapshotFailure = true
	}

	restored := snapshot.Journal.Clone()
	restored.Logs = make([]tosca.Log, 0, len(current.Logs))
	for _, entry := range current.Logs {
		restored.Logs = append(restored.Logs, entry.Clone())
	}
	if snapshot.DB.IsForked() {
		// The snapshot may have been taken under another caller, which the
		// restored state has to know.
		restoredFork := snapshot.DB.Fork.Clone()
		caller := env.Tx.Caller
		if _, found := restored.State[caller]; !found {
			info := state.AccountInfo{CodeHash: tosca.EmptyCodeHash}
			if account, found := current.State[caller]; found {
				info = *account.Info.Clone()
			}
			if _, found := restoredFork.DB.Accounts[caller]; !found {
				restoredFork.DB.InsertAccountInfo(caller, info)
			}
			restored.State[caller] = state.NewAccount(info)
		}
		b.inner.restoreFork(snapshot.DB.ID, snapshot.DB.ForkID, snapshot.DB.Index, restoredFork)
		b.active = &activeFork{id: snapshot.DB.ID, index: snapshot.DB.Index}
	} else {
		// Forked mode is never left; only the local store is restored.
		b.memDB = snapshot.DB.MemDB.Clone()
	}
	env.ApplyForkEnv(snapshot.Env)
	return restored, true
}

// DeleteSnapshot removes the snapshot with the given id without touching
// any other snapshot.
func (b *Backend) DeleteSnapshot(id SnapshotID) bool {
	_, found := b.inner.snapshots.RemoveAt(id)
	return found
}

// DeleteSnapshots removes all snapshots.
func (b *Backend) DeleteSnapshots() {
	b.inner.snapshots.Clear()
}

// StateSnapshots returns the number of snapshots that can still be reverted to.
func (b *Backend) StateSnapshots() int {
	return b.inner.snapshots.Len()
}

// SetSnapshotFailure records whether a failure happened in a reverted state.
func (b *Backend) SetSnapshotFailure(failure bool) {
	b.inner.hasSnapshotFailure = failure
}

// HasSnapshotFailure reports whether a failure was recorded in a state that
// has since been reverted.
func (b *Backend) HasSnapshotFailure() bool {
	return b.inner.hasSnapshotFailure
}

// HasFailed reports whether the given state records a failure in the global
// failure slot of the cheat code account.
func HasFailed(active *journal.Journal) bool {
	account, found := active.State[CheatcodeAddress]
	if !found {
		return false
	}
	slot, found := account.Storage[GlobalFailSlot]
	return found && !slot.Present.IsZero()
}

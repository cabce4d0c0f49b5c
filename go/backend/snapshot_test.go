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
	"testing"

	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/holiman/uint256"
)

func TestSnapshots_RemoveDropsLaterSnapshots(t *testing.T) {
	snapshots := NewSnapshots[string]()
	first := snapshots.Insert("a")
	second := snapshots.Insert("b")
	third := snapshots.Insert("c")

	value, found := snapshots.Remove(second)
	if !found || value != "b" {
		t.Errorf("unexpected removed value %q, found %t", value, found)
	}
	if _, found := snapshots.Get(third); found {
		t.Errorf("later snapshot should have been removed")
	}
	if _, found := snapshots.Get(first); !found {
		t.Errorf("earlier snapshot should have been retained")
	}
	if want, got := 1, snapshots.Len(); want != got {
		t.Errorf("unexpected number of snapshots, wanted %d, got %d", want, got)
	}
}

func TestSnapshots_RemoveOfMissingIdKeepsOtherSnapshots(t *testing.T) {
	snapshots := NewSnapshots[int]()
	first := snapshots.Insert(1)
	snapshots.Insert(2)
	snapshots.RemoveAt(first)

	if _, found := snapshots.Remove(first); found {
		t.Errorf("removed snapshot should not be found")
	}
	if want, got := 1, snapshots.Len(); want != got {
		t.Errorf("unexpected number of snapshots, wanted %d, got %d", want, got)
	}
}

func TestSnapshots_IdsAreNotReused(t *testing.T) {
	snapshots := NewSnapshots[int]()
	first := snapshots.Insert(1)
	snapshots.Remove(first)
	second := snapshots.Insert(2)
	if first == second {
		t.Errorf("snapshot id %s was issued twice", first.Dec())
	}
}

func TestSnapshots_RemoveAtKeepsOtherSnapshots(t *testing.T) {
	snapshots := NewSnapshots[int]()
	first := snapshots.Insert(1)
	second := snapshots.Insert(2)
	if _, found := snapshots.RemoveAt(first); !found {
		t.Fatalf("snapshot should have been found")
	}
	if _, found := snapshots.Get(second); !found {
		t.Errorf("other snapshot should have been retained")
	}
	snapshots.Clear()
	if want, got := 0, snapshots.Len(); want != got {
		t.Errorf("unexpected number of snapshots after clear, wanted %d, got %d", want, got)
	}
}

func TestBackend_RevertRestoresForkState(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState().withBalance(userAddress, 1))
	backend, _ := New(provider, nil)
	a := mustCreateFork(t, backend, forkAt("a", 1))

	env := journal.Env{}
	active := journal.New(nil)
	mustSelectFork(t, backend, a, &env, active)
	if err := active.SetBalance(userAddress, tosca.NewValue(5), backend); err != nil {
		t.Fatalf("failed to set balance: %v", err)
	}
	id := backend.Snapshot(active, env)
	if err := active.SetBalance(userAddress, tosca.NewValue(7), backend); err != nil {
		t.Fatalf("failed to set balance: %v", err)
	}
	env.Block.BlockNumber = 50

	restored, found := backend.Revert(id, active, &env, RevertRemove)
	if !found {
		t.Fatalf("snapshot not found")
	}
	if want, got := tosca.NewValue(5), restored.State[userAddress].Info.Balance; want != got {
		t.Errorf("unexpected balance after revert, wanted %v, got %v", want, got)
	}
	if want, got := int64(1), env.Block.BlockNumber; want != got {
		t.Errorf("unexpected block number after revert, wanted %d, got %d", want, got)
	}
	if !backend.IsActiveFork(a) {
		t.Errorf("snapshot fork should be active after revert")
	}
	if _, found := backend.Revert(id, restored, &env, RevertRemove); found {
		t.Errorf("removed snapshot should not be revertible again")
	}
}

func TestBackend_RevertKeepAllowsRepeatedReverts(t *testing.T) {
	backend, _ := New(newTestProvider(), nil)
	env := journal.Env{}
	active := journal.New(nil)
	id := backend.Snapshot(active, env)
	later := backend.Snapshot(active, env)

	for i := 0; i < 3; i++ {
		if _, found := backend.Revert(id, active, &env, RevertKeep); !found {
			t.Fatalf("revert %d failed", i)
		}
	}
	if _, found := backend.Revert(later, active, &env, RevertKeep); found {
		t.Errorf("snapshot taken after the reverted one should be gone")
	}
}

func TestBackend_RevertRestoresMemoryStateAndKeepsLogs(t *testing.T) {
	backend, _ := New(newTestProvider(), nil)
	env := journal.Env{}
	active := journal.New(nil)
	id := backend.Snapshot(active, env)

	backend.InsertAccountInfo(userAddress, state.NewAccountInfo(tosca.NewValue(1), 0, nil))
	active.AddLog(tosca.Log{Address: userAddress})

	restored, found := backend.Revert(id, active, &env, RevertRemove)
	if !found {
		t.Fatalf("snapshot not found")
	}
	if info, _ := backend.Basic(userAddress); info != nil {
		t.Errorf("account inserted after snapshot should be gone, got %v", info)
	}
	if want, got := 1, len(restored.Logs); want != got {
		t.Errorf("logs should survive reverts, wanted %d, got %d", want, got)
	}
}

func TestBackend_RevertOfUnknownSnapshotChangesNothing(t *testing.T) {
	backend, _ := New(newTestProvider(), nil)
	env := journal.Env{}
	if restored, found := backend.Revert(*uint256.NewInt(3), journal.New(nil), &env, RevertRemove); found || restored != nil {
		t.Errorf("unexpected revert result %v, %t", restored, found)
	}
}

func TestBackend_RevertOfStaleSnapshotKeepsLaterSnapshots(t *testing.T) {
	backend, _ := New(newTestProvider(), nil)
	env := journal.Env{}
	active := journal.New(nil)
	first := backend.Snapshot(active, env)
	if _, found := backend.Revert(first, active, &env, RevertRemove); !found {
		t.Fatalf("snapshot not found")
	}
	later := backend.Snapshot(active, env)

	if _, found := backend.Revert(first, active, &env, RevertRemove); found {
		t.Errorf("consumed snapshot should not be revertible again")
	}
	if want, got := 1, backend.StateSnapshots(); want != got {
		t.Errorf("unexpected number of snapshots, wanted %d, got %d", want, got)
	}
	if _, found := backend.Revert(later, active, &env, RevertRemove); !found {
		t.Errorf("later snapshot should have survived")
	}
}

func TestBackend_RevertToLocalSnapshotStaysInForkedMode(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState().withBalance(userAddress, 1))
	provider.add("b", 1, newRemoteState())
	backend, _ := New(provider, nil)
	a := mustCreateFork(t, backend, forkAt("a", 1))
	b := mustCreateFork(t, backend, forkAt("b", 1))

	env := journal.Env{}
	active := journal.New(nil)
	id := backend.Snapshot(active, env)
	mustSelectFork(t, backend, a, &env, active)
	bootstrap := backend.InitJournal()

	restored, found := backend.Revert(id, active, &env, RevertRemove)
	if !found {
		t.Fatalf("snapshot not found")
	}
	if !backend.IsForkedMode() {
		t.Errorf("backend should stay in forked mode")
	}
	if !backend.IsActiveFork(a) {
		t.Errorf("active fork should not change")
	}
	mustSelectFork(t, backend, b, &env, restored)
	if backend.InitJournal() != bootstrap {
		t.Errorf("bootstrap journal should only be recorded once")
	}
}

func TestBackend_RevertAddsCurrentCallerToForkState(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState())
	backend, _ := New(provider, nil)
	a := mustCreateFork(t, backend, forkAt("a", 1))

	env := journal.Env{}
	active := journal.New(nil)
	mustSelectFork(t, backend, a, &env, active)
	id := backend.Snapshot(active, env)

	caller := tosca.Address{0x99}
	env.Tx.Caller = caller
	if err := active.SetBalance(caller, tosca.NewValue(9), backend); err != nil {
		t.Fatalf("failed to set balance: %v", err)
	}

	restored, found := backend.Revert(id, active, &env, RevertKeep)
	if !found {
		t.Fatalf("snapshot not found")
	}
	account, found := restored.State[caller]
	if !found {
		t.Fatalf("caller missing in restored journal")
	}
	if want, got := tosca.NewValue(9), account.Info.Balance; want != got {
		t.Errorf("unexpected caller balance, wanted %v, got %v", want, got)
	}
	if info, err := backend.Basic(caller); err != nil || info == nil {
		t.Errorf("caller missing in restored store, got %v, err %v", info, err)
	}

	// Callers unknown to the current state are added as empty accounts.
	other := tosca.Address{0x98}
	env.Tx.Caller = other
	restored, found = backend.Revert(id, journal.New(nil), &env, RevertKeep)
	if !found {
		t.Fatalf("snapshot not found")
	}
	if account, found := restored.State[other]; !found || !account.Info.IsEmpty() {
		t.Errorf("expected empty caller account, got %v", account)
	}
}

func TestBackend_RevertedJournalDoesNotShareLogs(t *testing.T) {
	backend, _ := New(newTestProvider(), nil)
	env := journal.Env{}
	active := journal.New(nil)
	id := backend.Snapshot(active, env)
	active.AddLog(tosca.Log{Address: userAddress, Data: tosca.Data{1}})

	restored, found := backend.Revert(id, active, &env, RevertRemove)
	if !found {
		t.Fatalf("snapshot not found")
	}
	restored.Logs[0].Data[0] = 2
	restored.Logs[0].Address = contractAddress
	if want, got := userAddress, active.Logs[0].Address; want != got {
		t.Errorf("log of current journal changed, wanted %v, got %v", want, got)
	}
	if want, got := byte(1), active.Logs[0].Data[0]; want != got {
		t.Errorf("log data of current journal changed, wanted %d, got %d", want, got)
	}
}

func TestBackend_FailureSurvivesRevert(t *testing.T) {
	backend, _ := New(newTestProvider(), nil)
	env := journal.Env{}
	active := journal.New(nil)
	id := backend.Snapshot(active, env)

	if err := active.SStore(CheatcodeAddress, GlobalFailSlot, tosca.NewWord(1), backend); err != nil {
		t.Fatalf("failed to store failure: %v", err)
	}
	if !HasFailed(active) {
		t.Fatalf("failure should be visible in the journal")
	}
	restored, _ := backend.Revert(id, active, &env, RevertRemove)
	if HasFailed(restored) {
		t.Errorf("failure slot should have been reverted")
	}
	if !backend.HasSnapshotFailure() {
		t.Errorf("failure should have been recorded by the revert")
	}
	backend.SetSnapshotFailure(false)
	if backend.HasSnapshotFailure() {
		t.Errorf("failure flag should have been reset")
	}
}

func TestBackend_DeleteSnapshots(t *testing.T) {
	backend, _ := New(newTestProvider(), nil)
	env := journal.Env{}
	active := journal.New(nil)
	first := backend.Snapshot(active, env)
	second := backend.Snapshot(active, env)

	if !backend.DeleteSnapshot(first) {
		t.Errorf("snapshot should have been deleted")
	}
	if backend.DeleteSnapshot(first) {
		t.Errorf("snapshot should only be deleted once")
	}
	if _, found := backend.Revert(second, active, &env, RevertKeep); !found {
		t.Errorf("other snapshot should survive deletion")
	}
	if want, got := 1, backend.StateSnapshots(); want != got {
		t.Errorf("unexpected number of snapshots, wanted %d, got %d", want, got)
	}
	backend.DeleteSnapshots()
	if want, got := 0, backend.StateSnapshots(); want != got {
		t.Errorf("unexpected number of snapshots, wanted %d, got %d", want, got)
	}
	if _, found := backend.Revert(second, active, &env, RevertKeep); found {
		t.Errorf("all snapshots should be gone")
	}
}

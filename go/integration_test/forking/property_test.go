// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package forking

import (
	"testing"

	"github.com/Fantom-foundation/forkvm/go/backend"
	"github.com/Fantom-foundation/forkvm/go/fork"
	"github.com/Fantom-foundation/forkvm/go/integration_test/chain"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"pgregory.net/rand"
)

func TestProperty_LocalIdsAreStableUnderRolls(t *testing.T) {
	rnd := rand.New(0)
	session := newMainnetSession(t)

	// Each fork rolls within its own range of blocks so no two forks ever
	// share a remote fork.
	ranges := [][2]uint64{{0, 66}, {67, 133}, {134, 200}}
	ids := make([]backend.LocalForkID, 0, len(ranges))
	for _, r := range ranges {
		ids = append(ids, mustCreateFork(t, session, r[0]))
	}
	mustSelect(t, session, ids[0])

	for i := 0; i < 50; i++ {
		index := rnd.Intn(len(ids))
		id := ids[index]
		from, to := ranges[index][0], ranges[index][1]
		block := from + rnd.Uint64n(to-from+1)
		if rnd.Intn(4) == 0 {
			mustSelect(t, session, id)
		}
		if err := session.RollFork(&id, block); err != nil {
			t.Fatalf("failed to roll fork %s to block %d: %v", id.Dec(), block, err)
		}
		if want, got := ids[index], id; want != got {
			t.Fatalf("rolling changed the local id, wanted %s, got %s", want.Dec(), got.Dec())
		}
		forkID, err := session.Backend.EnsureForkID(id)
		if err != nil {
			t.Fatalf("rolled fork %s can no longer be resolved: %v", id.Dec(), err)
		}
		if want, got := fork.NewForkID(mainnet, block), forkID; want != got {
			t.Errorf("unexpected fork id, wanted %v, got %v", want, got)
		}
		if want, got := len(ids), len(session.Backend.Forks()); want != got {
			t.Fatalf("rolling changed the number of forks, wanted %d, got %d", want, got)
		}
		if session.Backend.IsActiveFork(id) {
			if want, got := tosca.NewValue(block), mustBalance(t, session, account); want != got {
				t.Errorf("unexpected balance after roll, wanted %v, got %v", want, got)
			}
		}
	}
}

func TestProperty_PersistentAccountsAreSharedByAllForks(t *testing.T) {
	rnd := rand.New(1)
	session := newMainnetSession(t)
	ids := []backend.LocalForkID{
		mustCreateFork(t, session, 50),
		mustCreateFork(t, session, 100),
		mustCreateFork(t, session, 150),
	}
	session.Backend.AddPersistentAccount(persistent)
	mustSelect(t, session, ids[0])

	for i := 0; i < 30; i++ {
		balance := rnd.Uint64()
		mustSetBalance(t, session, persistent, balance)
		mustSelect(t, session, ids[rnd.Intn(len(ids))])
		if want, got := tosca.NewValue(balance), mustBalance(t, session, persistent); want != got {
			t.Fatalf("persistent balance was not shared, wanted %v, got %v", want, got)
		}
	}
}

func TestProperty_NonPersistentAccountsAreIsolated(t *testing.T) {
	rnd := rand.New(2)
	session := newMainnetSession(t)
	blocks := []uint64{50, 100, 150}
	ids := make([]backend.LocalForkID, 0, len(blocks))
	for _, block := range blocks {
		ids = append(ids, mustCreateFork(t, session, block))
	}
	written := map[int]uint64{}
	current := 0
	mustSelect(t, session, ids[current])

	for i := 0; i < 30; i++ {
		want := blocks[current]
		if balance, found := written[current]; found {
			want = balance
		}
		if got := mustBalance(t, session, account); tosca.NewValue(want) != got {
			t.Fatalf("unexpected balance on fork %d, wanted %d, got %v", current, want, got)
		}
		balance := rnd.Uint64()
		mustSetBalance(t, session, account, balance)
		written[current] = balance

		current = rnd.Intn(len(ids))
		mustSelect(t, session, ids[current])
	}
}

func TestProperty_RevertInvalidatesLaterSnapshots(t *testing.T) {
	rnd := rand.New(3)
	session := newMainnetSession(t)
	mustSelect(t, session, mustCreateFork(t, session, 100))

	var snapshots []backend.SnapshotID
	var balances []uint64
	for i := 0; i < 10; i++ {
		balance := rnd.Uint64()
		mustSetBalance(t, session, account, balance)
		snapshots = append(snapshots, session.Snapshot())
		balances = append(balances, balance)
	}

	target := rnd.Intn(len(snapshots))
	mustSetBalance(t, session, account, 1)
	if !session.Revert(snapshots[target]) {
		t.Fatalf("failed to revert snapshot %d", target)
	}
	if want, got := tosca.NewValue(balances[target]), mustBalance(t, session, account); want != got {
		t.Errorf("unexpected balance after revert, wanted %v, got %v", want, got)
	}
	for i := target; i < len(snapshots); i++ {
		if session.Revert(snapshots[i]) {
			t.Errorf("snapshot %d should have been invalidated", i)
		}
	}
	for i := target - 1; i >= 0; i-- {
		if !session.Revert(snapshots[i]) {
			t.Errorf("snapshot %d should still exist", i)
		}
	}
}

func TestProperty_FailureIsStickyAcrossReverts(t *testing.T) {
	session := newMainnetSession(t)
	mustSelect(t, session, mustCreateFork(t, session, 100))
	id := session.Snapshot()

	if err := session.Journal.SStore(backend.CheatcodeAddress, backend.GlobalFailSlot, tosca.NewWord(1), session.Backend); err != nil {
		t.Fatalf("failed to record failure: %v", err)
	}
	if !session.Revert(id) {
		t.Fatalf("failed to revert")
	}
	if backend.HasFailed(session.Journal) {
		t.Errorf("failure slot should have been reverted")
	}
	if !session.Backend.HasSnapshotFailure() {
		t.Errorf("failure should survive the revert")
	}
}

func TestProperty_ForkedModeStartsWithFirstSelection(t *testing.T) {
	session := newMainnetSession(t)
	id := mustCreateFork(t, session, 10)
	if session.Backend.IsForkedMode() {
		t.Errorf("backend should not be in forked mode before a selection")
	}
	mustSelect(t, session, id)
	if got, found := session.Backend.ActiveForkID(); !found || got != id {
		t.Errorf("unexpected active fork %s", got.Dec())
	}
	for i := 0; i < 3; i++ {
		mustSelect(t, session, mustCreateFork(t, session, uint64(20+i)))
		if !session.Backend.IsForkedMode() {
			t.Errorf("backend should stay in forked mode")
		}
	}
}

func TestProperty_BackendsShareRemoteData(t *testing.T) {
	mainnetChain := newMainnet()
	session := NewSession(map[string]*chain.Chain{mainnet: mainnetChain})
	defer session.Close()
	other := &Session{
		Backend:  session.Backend.CloneEmpty(),
		Provider: session.Provider,
		Journal:  session.Journal.Clone(),
	}

	for _, s := range []*Session{session, other} {
		id, err := s.CreateFork(mainnet, 100)
		if err != nil {
			t.Fatalf("failed to create fork: %v", err)
		}
		mustSelect(t, s, id)
		if want, got := tosca.NewValue(100), mustBalance(t, s, account); want != got {
			t.Errorf("unexpected balance, wanted %v, got %v", want, got)
		}
	}
	if want, got := 1, mainnetChain.Requests("eth_getBalance"); want != got {
		t.Errorf("remote data should be fetched once, wanted %d requests, got %d", want, got)
	}
}

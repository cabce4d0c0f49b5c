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
	"errors"
	"fmt"
	"testing"

	"github.com/Fantom-foundation/forkvm/go/fork"
	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/Fantom-foundation/forkvm/go/tosca"
)

var (
	userAddress     = tosca.Address{0x42}
	contractAddress = tosca.Address{0xc0}
)

// remoteState is the state of a remote chain at a single block. Like a real
// node it reports every unknown account as empty.
type remoteState struct {
	accounts map[tosca.Address]state.AccountInfo
	storage  map[tosca.Address]map[tosca.Key]tosca.Word
}

func newRemoteState() *remoteState {
	return &remoteState{
		accounts: map[tosca.Address]state.AccountInfo{},
		storage:  map[tosca.Address]map[tosca.Key]tosca.Word{},
	}
}

func (r *remoteState) withBalance(address tosca.Address, balance uint64) *remoteState {
	r.accounts[address] = state.NewAccountInfo(tosca.NewValue(balance), 0, nil)
	return r
}

func (r *remoteState) withCode(address tosca.Address, code tosca.Code) *remoteState {
	r.accounts[address] = state.NewAccountInfo(tosca.Value{}, 1, code)
	return r
}

func (r *remoteState) BasicRef(address tosca.Address) (*state.AccountInfo, error) {
	if info, found := r.accounts[address]; found {
		return info.Clone(), nil
	}
	return &state.AccountInfo{CodeHash: tosca.EmptyCodeHash}, nil
}

func (r *remoteState) CodeByHashRef(hash tosca.Hash) (tosca.Code, error) {
	for _, info := range r.accounts {
		if info.CodeHash == hash {
			return info.Code, nil
		}
	}
	return nil, fmt.Errorf("unknown code hash %v", hash)
}

func (r *remoteState) StorageRef(address tosca.Address, key tosca.Key) (tosca.Word, error) {
	return r.storage[address][key], nil
}

func (r *remoteState) BlockHashRef(number uint64) (tosca.Hash, error) {
	return tosca.Hash(tosca.NewWord(number)), nil
}

// testProvider serves forks of in-memory chains, keyed by endpoint URL and
// block number.
type testProvider struct {
	chains map[string]map[uint64]*remoteState
	envs   map[fork.ForkID]journal.Env
}

func newTestProvider() *testProvider {
	return &testProvider{
		chains: map[string]map[uint64]*remoteState{},
		envs:   map[fork.ForkID]journal.Env{},
	}
}

func (p *testProvider) add(url string, block uint64, state *remoteState) {
	if p.chains[url] == nil {
		p.chains[url] = map[uint64]*remoteState{}
	}
	p.chains[url][block] = state
}

func (p *testProvider) open(url string, block uint64, template journal.Env) (fork.ForkID, state.DatabaseRef, journal.Env, error) {
	db, found := p.chains[url][block]
	if !found {
		return "", nil, journal.Env{}, fmt.Errorf("no block %d at %s", block, url)
	}
	id := fork.NewForkID(url, block)
	env := template.Clone()
	env.Block.BlockNumber = int64(block)
	env.Block.Timestamp = int64(block * 10)
	p.envs[id] = env
	return id, db, env, nil
}

func (p *testProvider) CreateFork(spec fork.CreateFork) (fork.ForkID, state.DatabaseRef, journal.Env, error) {
	return p.open(spec.URL, *spec.BlockNumber, spec.Env)
}

func (p *testProvider) RollFork(id fork.ForkID, block uint64) (fork.ForkID, state.DatabaseRef, journal.Env, error) {
	return p.open(id.URL(), block, p.envs[id])
}

func (p *testProvider) GetEnv(id fork.ForkID) (journal.Env, bool, error) {
	env, found := p.envs[id]
	return env, found, nil
}

func (p *testProvider) UpdateBlock(id fork.ForkID, number, timestamp uint64) error {
	env, found := p.envs[id]
	if !found {
		return fmt.Errorf("unknown fork %v", id)
	}
	env.Block.BlockNumber = int64(number)
	env.Block.Timestamp = int64(timestamp)
	p.envs[id] = env
	return nil
}

func (p *testProvider) GetForkURL(id fork.ForkID) (string, bool) {
	if _, found := p.envs[id]; !found {
		return "", false
	}
	return id.URL(), true
}

func forkAt(url string, block uint64) fork.CreateFork {
	return fork.CreateFork{URL: url, BlockNumber: &block}
}

func mustCreateFork(t *testing.T, backend *Backend, spec fork.CreateFork) LocalForkID {
	t.Helper()
	id, err := backend.CreateFork(spec)
	if err != nil {
		t.Fatalf("failed to create fork: %v", err)
	}
	return id
}

func mustSelectFork(t *testing.T, backend *Backend, id LocalForkID, env *journal.Env, active *journal.Journal) {
	t.Helper()
	if err := backend.SelectFork(id, env, active); err != nil {
		t.Fatalf("failed to select fork %s: %v", id.Dec(), err)
	}
}

func balanceOf(t *testing.T, active *journal.Journal, backend *Backend, address tosca.Address) uint64 {
	t.Helper()
	account, err := active.LoadAccount(address, backend)
	if err != nil {
		t.Fatalf("failed to load account %v: %v", address, err)
	}
	return account.Info.Balance.ToUint256().Uint64()
}

func TestBackend_StartsInMemory(t *testing.T) {
	backend, err := New(newTestProvider(), nil)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	if backend.IsForkedMode() {
		t.Errorf("new backend should not be in forked mode")
	}
	if _, found := backend.ActiveForkID(); found {
		t.Errorf("new backend should have no active fork")
	}
	info, err := backend.Basic(userAddress)
	if err != nil || info != nil {
		t.Errorf("unexpected account info %v, err %v", info, err)
	}
	for _, address := range DefaultPersistentAccounts() {
		if !backend.IsPersistent(address) {
			t.Errorf("expected %v to be persistent", address)
		}
	}
}

func TestBackend_LaunchedWithForkIsActive(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState().withBalance(userAddress, 7))
	backend, err := New(provider, &fork.CreateFork{URL: "a", BlockNumber: new(uint64)})
	if err == nil {
		t.Fatalf("expected launch to fail for missing block, got %v", backend)
	}

	block := uint64(1)
	backend, err = New(provider, &fork.CreateFork{URL: "a", BlockNumber: &block})
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	id, found := backend.ActiveForkID()
	if !found || id != newLocalForkID(0) {
		t.Errorf("unexpected active fork %s, found %t", id.Dec(), found)
	}
	if url, found := backend.ActiveForkURL(); !found || url != "a" {
		t.Errorf("unexpected active fork url %q", url)
	}
	if want, got := uint64(7), balanceOf(t, journal.New(nil), backend, userAddress); want != got {
		t.Errorf("unexpected balance, wanted %d, got %d", want, got)
	}
}

func TestBackend_CreateForkIssuesSequentialIdsWithoutSelecting(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState())
	provider.add("b", 1, newRemoteState())
	backend, _ := New(provider, nil)

	first := mustCreateFork(t, backend, forkAt("a", 1))
	second := mustCreateFork(t, backend, forkAt("b", 1))
	if want, got := newLocalForkID(0), first; want != got {
		t.Errorf("unexpected first id, wanted %s, got %s", want.Dec(), got.Dec())
	}
	if want, got := newLocalForkID(1), second; want != got {
		t.Errorf("unexpected second id, wanted %s, got %s", want.Dec(), got.Dec())
	}
	if backend.IsForkedMode() {
		t.Errorf("creating a fork must not select it")
	}
	if want, got := 2, len(backend.Forks()); want != got {
		t.Errorf("unexpected number of forks, wanted %d, got %d", want, got)
	}
}

func TestBackend_CreateForkPropagatesProviderErrors(t *testing.T) {
	backend, _ := New(newTestProvider(), nil)
	_, err := backend.CreateFork(forkAt("missing", 1))
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Errorf("expected provider error, got %v", err)
	}
}

func TestBackend_CreateForkSeedsInitJournalWithCaller(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState())
	backend, _ := New(provider, nil)
	caller := tosca.Address{0x77}
	backend.InsertAccountInfo(caller, state.NewAccountInfo(tosca.NewValue(3), 0, nil))
	backend.SetCaller(caller)

	mustCreateFork(t, backend, forkAt("a", 1))
	account, found := backend.InitJournal().State[caller]
	if !found {
		t.Fatalf("caller missing in bootstrap journal")
	}
	if want, got := tosca.NewValue(3), account.Info.Balance; want != got {
		t.Errorf("unexpected caller balance, wanted %v, got %v", want, got)
	}
}

func TestBackend_SelectForkSwitchesStateAndEnv(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 10, newRemoteState().withBalance(userAddress, 1))
	provider.add("b", 20, newRemoteState().withBalance(userAddress, 2))
	backend, _ := New(provider, nil)
	a := mustCreateFork(t, backend, forkAt("a", 10))
	b := mustCreateFork(t, backend, forkAt("b", 20))

	env := journal.Env{}
	active := journal.New(nil)
	mustSelectFork(t, backend, a, &env, active)
	if !backend.IsActiveFork(a) {
		t.Errorf("fork %s should be active", a.Dec())
	}
	if want, got := int64(10), env.Block.BlockNumber; want != got {
		t.Errorf("unexpected block number, wanted %d, got %d", want, got)
	}
	if want, got := uint64(1), balanceOf(t, active, backend, userAddress); want != got {
		t.Errorf("unexpected balance on fork a, wanted %d, got %d", want, got)
	}

	mustSelectFork(t, backend, b, &env, active)
	if want, got := int64(20), env.Block.BlockNumber; want != got {
		t.Errorf("unexpected block number, wanted %d, got %d", want, got)
	}
	if want, got := uint64(2), balanceOf(t, active, backend, userAddress); want != got {
		t.Errorf("unexpected balance on fork b, wanted %d, got %d", want, got)
	}
}

func TestBackend_SelectingTheActiveForkIsANoop(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState())
	backend, _ := New(provider, nil)
	a := mustCreateFork(t, backend, forkAt("a", 1))

	env := journal.Env{}
	active := journal.New(nil)
	mustSelectFork(t, backend, a, &env, active)
	env.Block.BlockNumber = 99
	mustSelectFork(t, backend, a, &env, active)
	if want, got := int64(99), env.Block.BlockNumber; want != got {
		t.Errorf("env should be untouched, wanted %d, got %d", want, got)
	}
}

func TestBackend_SelectUnknownForkFails(t *testing.T) {
	backend, _ := New(newTestProvider(), nil)
	env := journal.Env{}
	err := backend.SelectFork(newLocalForkID(5), &env, journal.New(nil))
	if !errors.Is(err, ErrUnknownFork) {
		t.Errorf("expected unknown fork error, got %v", err)
	}
}

func TestBackend_NonPersistentChangesStayOnTheirFork(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState().withBalance(userAddress, 1))
	provider.add("b", 1, newRemoteState().withBalance(userAddress, 2))
	backend, _ := New(provider, nil)
	a := mustCreateFork(t, backend, forkAt("a", 1))
	b := mustCreateFork(t, backend, forkAt("b", 1))

	env := journal.Env{}
	active := journal.New(nil)
	mustSelectFork(t, backend, a, &env, active)
	if err := active.SetBalance(userAddress, tosca.NewValue(100), backend); err != nil {
		t.Fatalf("failed to set balance: %v", err)
	}

	mustSelectFork(t, backend, b, &env, active)
	if want, got := uint64(2), balanceOf(t, active, backend, userAddress); want != got {
		t.Errorf("change leaked to fork b, wanted %d, got %d", want, got)
	}

	mustSelectFork(t, backend, a, &env, active)
	if want, got := uint64(100), balanceOf(t, active, backend, userAddress); want != got {
		t.Errorf("change on fork a was lost, wanted %d, got %d", want, got)
	}
}

func TestBackend_PersistentAccountsFollowTheActiveFork(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState().withBalance(userAddress, 1))
	provider.add("b", 1, newRemoteState().withBalance(userAddress, 2))
	backend, _ := New(provider, nil)
	a := mustCreateFork(t, backend, forkAt("a", 1))
	b := mustCreateFork(t, backend, forkAt("b", 1))
	if !backend.AddPersistentAccount(userAddress) {
		t.Fatalf("account should not have been persistent before")
	}
	if backend.AddPersistentAccount(userAddress) {
		t.Errorf("adding a persistent account twice should report false")
	}

	env := journal.Env{}
	active := journal.New(nil)
	mustSelectFork(t, backend, a, &env, active)
	if err := active.SetBalance(userAddress, tosca.NewValue(100), backend); err != nil {
		t.Fatalf("failed to set balance: %v", err)
	}

	mustSelectFork(t, backend, b, &env, active)
	if want, got := uint64(100), balanceOf(t, active, backend, userAddress); want != got {
		t.Errorf("persistent account was not carried over, wanted %d, got %d", want, got)
	}

	if !backend.RemovePersistentAccount(userAddress) {
		t.Errorf("account should have been persistent")
	}
	if backend.IsPersistent(userAddress) {
		t.Errorf("account should no longer be persistent")
	}
}

func TestBackend_PersistentCallerKeepsLocalStateOnFirstSelection(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState().withBalance(DefaultCallerAddress, 1))
	backend, _ := New(provider, nil)
	a := mustCreateFork(t, backend, forkAt("a", 1))

	env := journal.Env{Tx: journal.TxParameters{Caller: DefaultCallerAddress}}
	active := journal.New(nil)
	if err := active.SetBalance(DefaultCallerAddress, tosca.NewValue(5), backend); err != nil {
		t.Fatalf("failed to set balance: %v", err)
	}
	mustSelectFork(t, backend, a, &env, active)

	account, found := active.State[DefaultCallerAddress]
	if !found {
		t.Fatalf("caller missing in journal of selected fork")
	}
	if want, got := tosca.NewValue(5), account.Info.Balance; want != got {
		t.Errorf("unexpected caller balance, wanted %v, got %v", want, got)
	}
}

func TestBackend_AccountsLoadedBeforeFirstSelectionAreTakenFromFork(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState().withBalance(userAddress, 1))
	backend, _ := New(provider, nil)
	a := mustCreateFork(t, backend, forkAt("a", 1))

	env := journal.Env{}
	active := journal.New(nil)
	if err := active.SetBalance(userAddress, tosca.NewValue(5), backend); err != nil {
		t.Fatalf("failed to set balance: %v", err)
	}
	mustSelectFork(t, backend, a, &env, active)

	account, found := active.State[userAddress]
	if !found {
		t.Fatalf("account missing in journal of selected fork")
	}
	if want, got := tosca.NewValue(1), account.Info.Balance; want != got {
		t.Errorf("unexpected balance, wanted %v, got %v", want, got)
	}
}

func TestBackend_RollForkWithoutActiveForkFails(t *testing.T) {
	backend, _ := New(newTestProvider(), nil)
	env := journal.Env{}
	err := backend.RollFork(nil, 5, &env, journal.New(nil))
	if !errors.Is(err, ErrNoActiveFork) {
		t.Errorf("expected no active fork error, got %v", err)
	}
}

func TestBackend_RollActiveForkReloadsAccounts(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState().withBalance(userAddress, 1))
	provider.add("a", 2, newRemoteState().withBalance(userAddress, 2))
	backend, _ := New(provider, nil)
	a := mustCreateFork(t, backend, forkAt("a", 1))

	env := journal.Env{}
	active := journal.New(nil)
	mustSelectFork(t, backend, a, &env, active)
	if want, got := uint64(1), balanceOf(t, active, backend, userAddress); want != got {
		t.Fatalf("unexpected balance before roll, wanted %d, got %d", want, got)
	}

	if err := backend.RollFork(nil, 2, &env, active); err != nil {
		t.Fatalf("failed to roll fork: %v", err)
	}
	if want, got := int64(2), env.Block.BlockNumber; want != got {
		t.Errorf("unexpected block number after roll, wanted %d, got %d", want, got)
	}
	if !backend.IsActiveFork(a) {
		t.Errorf("rolled fork should keep its id and stay active")
	}
	if want, got := uint64(2), balanceOf(t, active, backend, userAddress); want != got {
		t.Errorf("unexpected balance after roll, wanted %d, got %d", want, got)
	}
	forkID, err := backend.EnsureForkID(a)
	if err != nil {
		t.Fatalf("failed to resolve fork id: %v", err)
	}
	if want, got := fork.NewForkID("a", 2), forkID; want != got {
		t.Errorf("unexpected fork id after roll, wanted %v, got %v", want, got)
	}
}

func TestBackend_RollInactiveForkLeavesActiveStateAlone(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState().withBalance(userAddress, 1))
	provider.add("b", 1, newRemoteState())
	provider.add("b", 2, newRemoteState())
	backend, _ := New(provider, nil)
	a := mustCreateFork(t, backend, forkAt("a", 1))
	b := mustCreateFork(t, backend, forkAt("b", 1))

	env := journal.Env{}
	active := journal.New(nil)
	mustSelectFork(t, backend, a, &env, active)
	if err := backend.RollFork(&b, 2, &env, active); err != nil {
		t.Fatalf("failed to roll fork: %v", err)
	}
	if want, got := int64(1), env.Block.BlockNumber; want != got {
		t.Errorf("env of active fork changed, wanted %d, got %d", want, got)
	}
	if want, got := uint64(1), balanceOf(t, active, backend, userAddress); want != got {
		t.Errorf("unexpected balance, wanted %d, got %d", want, got)
	}
}

func TestBackend_CreateSelectForkActivatesFork(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 3, newRemoteState())
	backend, _ := New(provider, nil)
	env := journal.Env{}
	id, err := backend.CreateSelectFork(forkAt("a", 3), &env, journal.New(nil))
	if err != nil {
		t.Fatalf("failed to create and select fork: %v", err)
	}
	if !backend.IsActiveFork(id) {
		t.Errorf("fork should be active")
	}
	if want, got := int64(30), env.Block.Timestamp; want != got {
		t.Errorf("unexpected timestamp, wanted %d, got %d", want, got)
	}
}

func TestBackend_MergedLogsCollectLogsOfAllForks(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState())
	provider.add("b", 1, newRemoteState())
	backend, _ := New(provider, nil)
	a := mustCreateFork(t, backend, forkAt("a", 1))
	b := mustCreateFork(t, backend, forkAt("b", 1))

	logA := tosca.Log{Address: tosca.Address{0xa}}
	logB := tosca.Log{Address: tosca.Address{0xb}}

	if want, got := 1, len(backend.MergedLogs([]tosca.Log{logA})); want != got {
		t.Errorf("unexpected logs in memory mode, wanted %d, got %d", want, got)
	}

	env := journal.Env{}
	active := journal.New(nil)
	mustSelectFork(t, backend, a, &env, active)
	active.AddLog(logA)
	mustSelectFork(t, backend, b, &env, active)
	active.AddLog(logB)

	logs := backend.MergedLogs(active.Logs)
	if want, got := 2, len(logs); want != got {
		t.Fatalf("unexpected number of logs, wanted %d, got %d", want, got)
	}
	if logs[0].Address != logA.Address || logs[1].Address != logB.Address {
		t.Errorf("unexpected logs %v", logs)
	}
}

func TestBackend_SetBlockHashOverridesStore(t *testing.T) {
	backend, _ := New(newTestProvider(), nil)
	hash := tosca.Hash{1, 2, 3}
	backend.SetBlockHash(12, hash)
	got, err := backend.BlockHash(12)
	if err != nil {
		t.Fatalf("failed to get block hash: %v", err)
	}
	if want := hash; want != got {
		t.Errorf("unexpected block hash, wanted %v, got %v", want, got)
	}
}

func TestBackend_CloneEmptyKeepsProviderButDropsState(t *testing.T) {
	provider := newTestProvider()
	provider.add("a", 1, newRemoteState())
	backend, _ := New(provider, nil)
	backend.SetRevision(tosca.R12_Shanghai)
	mustCreateFork(t, backend, forkAt("a", 1))
	backend.InsertAccountInfo(userAddress, state.NewAccountInfo(tosca.NewValue(1), 0, nil))

	clone := backend.CloneEmpty()
	if want, got := 0, len(clone.Forks()); want != got {
		t.Errorf("clone should have no forks, got %d", got)
	}
	if info, _ := clone.Basic(userAddress); info != nil {
		t.Errorf("clone should not see accounts of the original, got %v", info)
	}
	if _, err := clone.CreateFork(forkAt("a", 1)); err != nil {
		t.Errorf("clone should use the same provider: %v", err)
	}
	if !clone.IsPersistent(CheatcodeAddress) {
		t.Errorf("clone should start with default persistent accounts")
	}
}

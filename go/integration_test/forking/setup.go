// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package forking runs the backend against forks served by in-memory
// chains through the real fork provider.
package forking

import (
	"context"
	"fmt"

	"github.com/Fantom-foundation/forkvm/go/backend"
	"github.com/Fantom-foundation/forkvm/go/fork"
	"github.com/Fantom-foundation/forkvm/go/integration_test/chain"
	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/tosca"
)

// Session is a backend in use by a single test run, together with the
// journal and environment of the executing state.
type Session struct {
	Backend  *backend.Backend
	Provider *fork.MultiFork
	Journal  *journal.Journal
	Env      journal.Env
}

// NewSession creates a session forking the given chains, keyed by URL.
func NewSession(chains map[string]*chain.Chain) *Session {
	provider := fork.NewMultiFork(fork.DefaultConfig(), func(_ context.Context, url string) (fork.Client, error) {
		if c, found := chains[url]; found {
			return c, nil
		}
		return nil, fmt.Errorf("no chain at %s", url)
	})
	b, _ := backend.New(provider, nil)
	return &Session{
		Backend:  b,
		Provider: provider,
		Journal:  journal.New(nil),
	}
}

// CreateFork creates a fork of the given chain at the given block.
func (s *Session) CreateFork(url string, block uint64) (backend.LocalForkID, error) {
	return s.Backend.CreateFork(fork.CreateFork{URL: url, BlockNumber: &block, Env: s.Env})
}

func (s *Session) SelectFork(id backend.LocalForkID) error {
	return s.Backend.SelectFork(id, &s.Env, s.Journal)
}

func (s *Session) RollFork(id *backend.LocalForkID, block uint64) error {
	return s.Backend.RollFork(id, block, &s.Env, s.Journal)
}

func (s *Session) Snapshot() backend.SnapshotID {
	return s.Backend.Snapshot(s.Journal, s.Env)
}

// Revert reverts to the given snapshot and installs the restored journal.
func (s *Session) Revert(id backend.SnapshotID) bool {
	restored, found := s.Backend.Revert(id, s.Journal, &s.Env, backend.RevertRemove)
	if found {
		s.Journal = restored
	}
	return found
}

// Balance reads the balance of an account through the journal.
func (s *Session) Balance(address tosca.Address) (tosca.Value, error) {
	account, err := s.Journal.LoadAccount(address, s.Backend)
	if err != nil {
		return tosca.Value{}, err
	}
	return account.Info.Balance, nil
}

func (s *Session) SetBalance(address tosca.Address, balance tosca.Value) error {
	return s.Journal.SetBalance(address, balance, s.Backend)
}

// Observe reads every account and storage slot listed in the given state
// as seen by the executing state.
func (s *Session) Observe(reference chain.WorldState) (chain.WorldState, error) {
	res := make(chain.WorldState, len(reference))
	for address, expected := range reference {
		account, err := s.Journal.LoadAccount(address, s.Backend)
		if err != nil {
			return nil, err
		}
		observed := chain.Account{
			Balance: account.Info.Balance,
			Nonce:   account.Info.Nonce,
			Code:    account.Info.Code,
		}
		if observed.Code == nil && account.Info.HasCode() {
			if observed.Code, err = s.Backend.CodeByHash(account.Info.CodeHash); err != nil {
				return nil, err
			}
		}
		if len(expected.Storage) > 0 {
			observed.Storage = make(chain.Storage, len(expected.Storage))
			for key := range expected.Storage {
				if observed.Storage[key], err = s.Journal.SLoad(address, key, s.Backend); err != nil {
					return nil, err
				}
			}
		}
		res[address] = observed
	}
	return res, nil
}

// Close releases the connections of the session's provider.
func (s *Session) Close() {
	s.Provider.Close()
}

// NewChain creates a chain of the given length in which the state of every
// block is derived from the previous one by the given function.
func NewChain(chainID uint64, blocks int, genesis chain.WorldState, step func(block uint64, state chain.WorldState)) *chain.Chain {
	res := chain.New(chainID, genesis)
	for i := 1; i < blocks; i++ {
		block := uint64(i)
		res.Update(func(state chain.WorldState) {
			if step != nil {
				step(block, state)
			}
		})
	}
	return res
}

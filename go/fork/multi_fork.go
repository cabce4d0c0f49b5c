// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package fork

import (
	"context"
	"fmt"
	"sync"

	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/exp/maps"
)

// MultiFork is a Provider managing forks of any number of remote nodes.
// Forks with the same identifier are shared, as are connections to the same
// endpoint. It is safe for concurrent use.
type MultiFork struct {
	config    Config
	dial      Dialer
	metrics   *forkMetrics
	mu        sync.Mutex
	endpoints map[string]*endpoint
	forks     map[ForkID]*remoteFork
}

var _ Provider = (*MultiFork)(nil)

type remoteFork struct {
	url     string
	env     journal.Env
	backend *SharedBackend
}

// NewMultiFork creates a provider connecting to remote nodes using the
// given dialer.
func NewMultiFork(config Config, dial Dialer) *MultiFork {
	return &MultiFork{
		config:    config,
		dial:      dial,
		metrics:   newForkMetrics(),
		endpoints: map[string]*endpoint{},
		forks:     map[ForkID]*remoteFork{},
	}
}

// CreateFork creates the described fork. If a fork of the same endpoint and
// block exists, it is returned instead.
func (m *MultiFork) CreateFork(spec CreateFork) (ForkID, state.DatabaseRef, journal.Env, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createFork(spec)
}

func (m *MultiFork) createFork(spec CreateFork) (ForkID, state.DatabaseRef, journal.Env, error) {
	endpoint, err := m.getEndpoint(spec.URL)
	if err != nil {
		return "", nil, journal.Env{}, err
	}

	var block uint64
	if spec.BlockNumber != nil {
		block = *spec.BlockNumber
	} else if block, err = endpoint.latestBlock(); err != nil {
		return "", nil, journal.Env{}, err
	}

	id := NewForkID(spec.URL, block)
	if fork, found := m.forks[id]; found {
		log.Trace("Reusing fork", "id", id)
		return id, fork.backend, fork.env.Clone(), nil
	}

	chainID, err := endpoint.chainID()
	if err != nil {
		return "", nil, journal.Env{}, err
	}
	header, err := endpoint.header(block)
	if err != nil {
		return "", nil, journal.Env{}, err
	}

	env := newForkEnv(spec.Env, chainID, header)
	db := NewBlockchainDb(BlockchainDbMeta{
		URL:     spec.URL,
		ChainID: chainID.Uint64(),
		Block:   block,
	})
	fork := &remoteFork{
		url:     spec.URL,
		env:     env,
		backend: newSharedBackend(endpoint, block, db),
	}
	m.forks[id] = fork
	log.Trace("Created fork", "id", id, "chain", chainID, "revision", env.Block.Revision)
	return id, fork.backend, env.Clone(), nil
}

// RollFork creates a fork of the endpoint of the given fork at another
// block. The environment of the given fork is used as template.
func (m *MultiFork) RollFork(id ForkID, block uint64) (ForkID, state.DatabaseRef, journal.Env, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fork, found := m.forks[id]
	if !found {
		return "", nil, journal.Env{}, fmt.Errorf("fork %v does not exist", id)
	}
	return m.createFork(CreateFork{
		URL:         fork.url,
		BlockNumber: &block,
		Env:         fork.env,
	})
}

func (m *MultiFork) GetEnv(id ForkID) (journal.Env, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fork, found := m.forks[id]
	if !found {
		return journal.Env{}, false, nil
	}
	return fork.env.Clone(), true, nil
}

func (m *MultiFork) UpdateBlock(id ForkID, number, timestamp uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fork, found := m.forks[id]
	if !found {
		return fmt.Errorf("fork %v does not exist", id)
	}
	fork.env.Block.BlockNumber = int64(number)
	fork.env.Block.Timestamp = int64(timestamp)
	return nil
}

func (m *MultiFork) GetForkURL(id ForkID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fork, found := m.forks[id]
	if !found {
		return "", false
	}
	return fork.url, true
}

// Forks lists the identifiers of all forks created so far.
func (m *MultiFork) Forks() []ForkID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Keys(m.forks)
}

// Stats returns the remote traffic caused by this provider's forks.
func (m *MultiFork) Stats() Stats {
	return m.metrics.stats()
}

// Close closes the connections to all endpoints.
func (m *MultiFork) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, endpoint := range m.endpoints {
		endpoint.client.Close()
	}
	m.endpoints = map[string]*endpoint{}
}

func (m *MultiFork) getEndpoint(url string) (*endpoint, error) {
	if endpoint, found := m.endpoints[url]; found {
		return endpoint, nil
	}
	ctx := context.Background()
	if m.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.RequestTimeout)
		defer cancel()
	}
	client, err := m.dial(ctx, url)
	if err != nil {
		return nil, err
	}
	endpoint, err := newEndpoint(url, client, m.config, m.metrics)
	if err != nil {
		client.Close()
		return nil, err
	}
	m.endpoints[url] = endpoint
	return endpoint, nil
}

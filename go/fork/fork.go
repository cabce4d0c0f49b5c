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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/state"
)

//go:generate mockgen -source fork.go -destination fork_mock.go -package fork

// ForkID identifies a remote fork by its endpoint and pinned block, in the
// form "<url>@<block>".
type ForkID string

// NewForkID creates the identifier of the fork of the given endpoint at the
// given block.
func NewForkID(url string, block uint64) ForkID {
	return ForkID(fmt.Sprintf("%s@%d", url, block))
}

// URL returns the endpoint part of the identifier.
func (id ForkID) URL() string {
	s := string(id)
	if i := strings.LastIndex(s, "@"); i >= 0 {
		return s[:i]
	}
	return s
}

// Block returns the pinned block of the identifier.
func (id ForkID) Block() (uint64, bool) {
	s := string(id)
	i := strings.LastIndex(s, "@")
	if i < 0 {
		return 0, false
	}
	block, err := strconv.ParseUint(s[i+1:], 10, 64)
	return block, err == nil
}

// CreateFork describes a fork to be created.
type CreateFork struct {
	URL string
	// BlockNumber pins the fork, nil selects the latest block of the
	// endpoint at creation time.
	BlockNumber *uint64
	// Env is the environment the fork's environment is derived from. Its
	// transaction fields are retained, the block context is replaced.
	Env journal.Env
}

// Provider creates remote forks and hands out read handles for them.
type Provider interface {
	// CreateFork creates a fork, or returns the existing one with the same
	// identifier.
	CreateFork(CreateFork) (ForkID, state.DatabaseRef, journal.Env, error)
	// RollFork creates a fork of the endpoint of the given fork pinned at
	// another block.
	RollFork(id ForkID, block uint64) (ForkID, state.DatabaseRef, journal.Env, error)
	// GetEnv returns the current environment of the given fork.
	GetEnv(ForkID) (journal.Env, bool, error)
	// UpdateBlock records a new block number and timestamp in the
	// environment of the given fork.
	UpdateBlock(id ForkID, number, timestamp uint64) error
	// GetForkURL returns the endpoint of the given fork.
	GetForkURL(ForkID) (string, bool)
}

// Config is the configuration of a MultiFork provider.
type Config struct {
	// HeaderCacheSize is the number of block headers retained per endpoint.
	HeaderCacheSize int
	// RequestTimeout bounds the duration of a single remote request.
	RequestTimeout time.Duration
}

// DefaultConfig returns the configuration used if nothing else is set.
func DefaultConfig() Config {
	return Config{
		HeaderCacheSize: 256,
		RequestTimeout:  45 * time.Second,
	}
}

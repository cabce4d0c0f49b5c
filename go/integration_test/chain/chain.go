// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package chain provides an in-memory chain serving the JSON-RPC subset
// required by forks. It replaces a remote node in tests and offline runs.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Fantom-foundation/forkvm/go/fork"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	// GenesisTime is the timestamp of block 0.
	GenesisTime = 1_700_000_000
	// BlockTime is the time between two blocks in seconds.
	BlockTime = 12
)

// Chain is a sequence of blocks, each with its own world state. It
// implements fork.Client and is safe for concurrent use.
type Chain struct {
	chainID  *big.Int
	mu       sync.Mutex
	blocks   []WorldState
	headers  []*types.Header
	requests map[string]int
	err      error
	closed   bool
}

var _ fork.Client = (*Chain)(nil)

// New creates a chain with the given genesis state.
func New(chainID uint64, genesis WorldState) *Chain {
	res := &Chain{
		chainID:  new(big.Int).SetUint64(chainID),
		requests: map[string]int{},
	}
	res.Mine(genesis)
	return res
}

// Mine appends a block with the given state and returns its number.
func (c *Chain) Mine(state WorldState) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	number := uint64(len(c.blocks))
	header := &types.Header{
		Number:     new(big.Int).SetUint64(number),
		Time:       GenesisTime + number*BlockTime,
		Difficulty: big.NewInt(0),
		GasLimit:   30_000_000,
		BaseFee:    big.NewInt(1_000_000_000),
		Coinbase:   common.Address{0xc0, 0x1b},
		MixDigest:  common.Hash(tosca.Keccak256(new(big.Int).SetUint64(number).Bytes())),
	}
	if number > 0 {
		header.ParentHash = c.headers[number-1].Hash()
	}
	c.blocks = append(c.blocks, state.Clone())
	c.headers = append(c.headers, header)
	return number
}

// Update mines a block with the state of the latest block modified by the
// given function.
func (c *Chain) Update(modify func(WorldState)) uint64 {
	c.mu.Lock()
	state := c.blocks[len(c.blocks)-1].Clone()
	c.mu.Unlock()
	if state == nil {
		state = WorldState{}
	}
	modify(state)
	return c.Mine(state)
}

// State returns a copy of the state at the given block.
func (c *Chain) State(number uint64) (WorldState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if number >= uint64(len(c.blocks)) {
		return nil, false
	}
	return c.blocks[number].Clone(), true
}

// Fail makes all following requests fail with the given error. A nil error
// restores normal operation.
func (c *Chain) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Requests returns the number of served requests of the given method.
func (c *Chain) Requests(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[method]
}

// IsClosed reports whether Close was called.
func (c *Chain) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Dialer returns a dialer connecting every URL to this chain.
func (c *Chain) Dialer() fork.Dialer {
	return func(context.Context, string) (fork.Client, error) {
		return c, nil
	}
}

func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	if err := c.request("eth_chainId"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.chainID), nil
}

func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.request("eth_blockNumber"); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.blocks) - 1), nil
}

func (c *Chain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := c.request("eth_getBlockByNumber"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	index, err := c.blockIndex(number)
	if err != nil {
		return nil, err
	}
	return types.CopyHeader(c.headers[index]), nil
}

func (c *Chain) BalanceAt(ctx context.Context, account common.Address, number *big.Int) (*big.Int, error) {
	res, err := c.account("eth_getBalance", account, number)
	if err != nil {
		return nil, err
	}
	return res.Balance.ToBig(), nil
}

func (c *Chain) NonceAt(ctx context.Context, account common.Address, number *big.Int) (uint64, error) {
	res, err := c.account("eth_getTransactionCount", account, number)
	if err != nil {
		return 0, err
	}
	return res.Nonce, nil
}

func (c *Chain) CodeAt(ctx context.Context, account common.Address, number *big.Int) ([]byte, error) {
	res, err := c.account("eth_getCode", account, number)
	if err != nil {
		return nil, err
	}
	return []byte(res.Code), nil
}

func (c *Chain) StorageAt(ctx context.Context, account common.Address, key common.Hash, number *big.Int) ([]byte, error) {
	res, err := c.account("eth_getStorageAt", account, number)
	if err != nil {
		return nil, err
	}
	value := res.Storage[tosca.Key(key)]
	return value[:], nil
}

func (c *Chain) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Chain) request(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests[method]++
	return c.err
}

func (c *Chain) account(method string, address common.Address, number *big.Int) (Account, error) {
	if err := c.request(method); err != nil {
		return Account{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	index, err := c.blockIndex(number)
	if err != nil {
		return Account{}, err
	}
	account := c.blocks[index][tosca.Address(address)]
	return account.Clone(), nil
}

// blockIndex resolves a block number, nil selecting the latest block.
func (c *Chain) blockIndex(number *big.Int) (int, error) {
	if number == nil {
		return len(c.blocks) - 1, nil
	}
	if !number.IsUint64() || number.Uint64() >= uint64(len(c.blocks)) {
		return 0, fmt.Errorf("block %v not found", number)
	}
	return int(number.Uint64()), nil
}

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
	"math/big"

	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/ethereum/go-ethereum/common"
)

// ErrMissingCode is returned for code lookups of unknown code hashes.
const ErrMissingCode = tosca.ConstError("code not found")

// SharedBackend is a read handle of a fork. It serves reads from the fork's
// BlockchainDb and fetches missing data from the remote node at the pinned
// block. Handles are cheap to copy and safe for concurrent use.
type SharedBackend struct {
	endpoint *endpoint
	block    uint64
	db       *BlockchainDb
}

func newSharedBackend(endpoint *endpoint, block uint64, db *BlockchainDb) *SharedBackend {
	return &SharedBackend{
		endpoint: endpoint,
		block:    block,
		db:       db,
	}
}

// Block returns the block the handle is pinned at.
func (b *SharedBackend) Block() uint64 {
	return b.block
}

// Db returns the cache backing this handle.
func (b *SharedBackend) Db() *BlockchainDb {
	return b.db
}

func (b *SharedBackend) blockNumber() *big.Int {
	return new(big.Int).SetUint64(b.block)
}

// BasicRef returns the account info at the pinned block. Accounts unknown to
// the remote node are reported as empty accounts.
func (b *SharedBackend) BasicRef(address tosca.Address) (*state.AccountInfo, error) {
	if info, found := b.db.Account(address); found {
		b.endpoint.metrics.cacheHits.Inc(1)
		return info, nil
	}
	key := fmt.Sprintf("account:%v@%d", address, b.block)
	res, err := b.endpoint.do(key, func(ctx context.Context) (any, error) {
		account := common.Address(address)
		balance, err := b.endpoint.client.BalanceAt(ctx, account, b.blockNumber())
		if err != nil {
			return nil, err
		}
		nonce, err := b.endpoint.client.NonceAt(ctx, account, b.blockNumber())
		if err != nil {
			return nil, err
		}
		code, err := b.endpoint.client.CodeAt(ctx, account, b.blockNumber())
		if err != nil {
			return nil, err
		}
		return state.NewAccountInfo(tosca.ValueFromBig(balance), nonce, code), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account %v at block %d: %w", address, b.block, err)
	}
	info := res.(state.AccountInfo)
	b.db.InsertAccount(address, info)
	return info.Clone(), nil
}

// CodeByHashRef returns code fetched before as part of an account.
func (b *SharedBackend) CodeByHashRef(hash tosca.Hash) (tosca.Code, error) {
	if hash == tosca.EmptyCodeHash {
		return tosca.Code{}, nil
	}
	if code, found := b.db.Code(hash); found {
		b.endpoint.metrics.cacheHits.Inc(1)
		return code, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrMissingCode, hash)
}

// StorageRef returns the value of the given slot at the pinned block.
func (b *SharedBackend) StorageRef(address tosca.Address, key tosca.Key) (tosca.Word, error) {
	if value, found := b.db.Storage(address, key); found {
		b.endpoint.metrics.cacheHits.Inc(1)
		return value, nil
	}
	request := fmt.Sprintf("storage:%v:%v@%d", address, key, b.block)
	res, err := b.endpoint.do(request, func(ctx context.Context) (any, error) {
		return b.endpoint.client.StorageAt(ctx, common.Address(address), common.Hash(key), b.blockNumber())
	})
	if err != nil {
		return tosca.Word{}, fmt.Errorf("failed to fetch slot %v of %v at block %d: %w", key, address, b.block, err)
	}
	value := tosca.Word(common.BytesToHash(res.([]byte)))
	b.db.InsertStorage(address, key, value)
	return value, nil
}

// BlockHashRef returns the hash of the given block.
func (b *SharedBackend) BlockHashRef(number uint64) (tosca.Hash, error) {
	if hash, found := b.db.BlockHash(number); found {
		b.endpoint.metrics.cacheHits.Inc(1)
		return hash, nil
	}
	header, err := b.endpoint.header(number)
	if err != nil {
		return tosca.Hash{}, err
	}
	hash := tosca.Hash(header.Hash())
	b.db.InsertBlockHash(number, hash)
	return hash, nil
}

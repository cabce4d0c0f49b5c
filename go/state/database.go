// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"strconv"

	"github.com/Fantom-foundation/forkvm/go/tosca"
)

// Database is the read interface of the execution engine. Reads may
// populate caches of the implementation.
type Database interface {
	// Basic returns the account info of the given address or nil if the
	// account does not exist.
	Basic(tosca.Address) (*AccountInfo, error)
	CodeByHash(tosca.Hash) (tosca.Code, error)
	Storage(tosca.Address, tosca.Key) (tosca.Word, error)
	BlockHash(number uint64) (tosca.Hash, error)
}

// DatabaseRef is the read-only counterpart of Database. Implementations
// must not modify any cached state when serving these calls.
type DatabaseRef interface {
	BasicRef(tosca.Address) (*AccountInfo, error)
	CodeByHashRef(tosca.Hash) (tosca.Code, error)
	StorageRef(tosca.Address, tosca.Key) (tosca.Word, error)
	BlockHashRef(number uint64) (tosca.Hash, error)
}

// DatabaseCommit applies the final account changes of an execution.
type DatabaseCommit interface {
	Commit(map[tosca.Address]*Account)
}

// EmptyDB is a DatabaseRef without any accounts. It is the backing store of
// purely local execution.
type EmptyDB struct{}

func (EmptyDB) BasicRef(tosca.Address) (*AccountInfo, error) {
	return nil, nil
}

func (EmptyDB) CodeByHashRef(tosca.Hash) (tosca.Code, error) {
	return nil, nil
}

func (EmptyDB) StorageRef(tosca.Address, tosca.Key) (tosca.Word, error) {
	return tosca.Word{}, nil
}

// BlockHashRef returns the Keccak256 hash of the decimal block number, a
// stable placeholder for blocks that never existed.
func (EmptyDB) BlockHashRef(number uint64) (tosca.Hash, error) {
	return tosca.Keccak256([]byte(strconv.FormatUint(number, 10))), nil
}

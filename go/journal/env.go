// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package journal

import (
	"github.com/Fantom-foundation/forkvm/go/tosca"
)

// TxParameters contains the transaction-level part of the environment.
type TxParameters struct {
	Caller   tosca.Address
	Origin   tosca.Address
	GasPrice tosca.Value
	GasLimit tosca.Gas
	// ChainID is the chain id the transaction is signed for, if any.
	ChainID *uint64
}

// Env is the execution environment: the block context including the chain
// configuration, and the transaction parameters.
type Env struct {
	Block tosca.BlockParameters
	Tx    TxParameters
}

// Clone creates an independent copy of the environment.
func (e Env) Clone() Env {
	res := e
	if e.Tx.ChainID != nil {
		id := *e.Tx.ChainID
		res.Tx.ChainID = &id
	}
	return res
}

// ApplyForkEnv replaces the block context, the chain configuration and the
// transaction chain id with those of the given fork environment. All other
// transaction fields are retained.
func (e *Env) ApplyForkEnv(fork Env) {
	e.Block = fork.Block
	e.Tx.ChainID = nil
	if fork.Tx.ChainID != nil {
		id := *fork.Tx.ChainID
		e.Tx.ChainID = &id
	}
}

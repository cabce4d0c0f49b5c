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
	"math/big"

	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/ethereum/go-ethereum/consensus/misc/eip4844"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

var knownChainConfigs = []*params.ChainConfig{
	params.MainnetChainConfig,
	params.SepoliaChainConfig,
	params.HoleskyChainConfig,
}

// chainConfigFor returns the configuration of the chain with the given id.
// Unknown chains are assumed to have all forks enabled from genesis.
func chainConfigFor(chainID *big.Int) *params.ChainConfig {
	for _, config := range knownChainConfigs {
		if config.ChainID.Cmp(chainID) == 0 {
			return config
		}
	}
	return params.AllDevChainProtocolChanges
}

// revisionFor determines the revision active in the given block.
func revisionFor(config *params.ChainConfig, header *types.Header) tosca.Revision {
	number, time := header.Number, header.Time
	merged := header.Difficulty == nil || header.Difficulty.Sign() == 0
	switch {
	case config.IsCancun(number, time):
		return tosca.R13_Cancun
	case config.IsShanghai(number, time):
		return tosca.R12_Shanghai
	case config.IsLondon(number) && merged:
		return tosca.R11_Paris
	case config.IsLondon(number):
		return tosca.R10_London
	case config.IsBerlin(number):
		return tosca.R09_Berlin
	}
	return tosca.R07_Istanbul
}

// newForkEnv derives the environment of a fork from the given template and
// the header of the pinned block. Transaction fields of the template are
// retained except for the chain id.
func newForkEnv(template journal.Env, chainID *big.Int, header *types.Header) journal.Env {
	env := template.Clone()
	env.Block = tosca.BlockParameters{
		ChainID:     tosca.Word(tosca.ValueFromBig(chainID)),
		BlockNumber: header.Number.Int64(),
		Timestamp:   int64(header.Time),
		Coinbase:    tosca.Address(header.Coinbase),
		GasLimit:    tosca.Gas(header.GasLimit),
		PrevRandao:  tosca.Hash(header.MixDigest),
		BaseFee:     tosca.ValueFromBig(header.BaseFee),
		Revision:    revisionFor(chainConfigFor(chainID), header),
	}
	if header.ExcessBlobGas != nil {
		env.Block.BlobBaseFee = tosca.ValueFromBig(eip4844.CalcBlobFee(*header.ExcessBlobGas))
	}
	id := chainID.Uint64()
	env.Tx.ChainID = &id
	return env
}

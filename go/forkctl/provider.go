// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"math/big"
	"time"

	"github.com/Fantom-foundation/forkvm/go/backend"
	"github.com/Fantom-foundation/forkvm/go/fork"
	"github.com/Fantom-foundation/forkvm/go/integration_test/chain"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/dsnet/golib/unitconv"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

// Accounts of the offline chain.
var (
	offlineAccount  = tosca.Address{0x01}
	offlineContract = tosca.Address{0x02}
)

// offlineChain creates a chain of 100 blocks. The balance of offlineAccount
// is the block number in ether, offlineContract is deployed in block 50.
func offlineChain() *chain.Chain {
	ether := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	res := chain.New(4002, chain.WorldState{})
	for i := uint64(1); i < 100; i++ {
		res.Update(func(state chain.WorldState) {
			balance := new(big.Int).Mul(ether, new(big.Int).SetUint64(i))
			state[offlineAccount] = chain.Account{Balance: tosca.ValueFromBig(balance)}
			if i == 50 {
				state[offlineContract] = chain.Account{Nonce: 1, Code: tosca.Code{0x60, 0x00, 0x60, 0x00, 0xfd}}
			}
		})
	}
	return res
}

// session bundles a backend with the provider serving it.
type session struct {
	backend  *backend.Backend
	provider *fork.MultiFork
	start    time.Time
}

func newSession(context *cli.Context) (*session, error) {
	cfg, err := config(context)
	if err != nil {
		return nil, err
	}
	dial := fork.Dialer(fork.DialClient)
	if context.Bool(OfflineFlag.Name) {
		log.Info("Serving all endpoints from an in-memory chain")
		dial = offlineChain().Dialer()
	}
	provider := fork.NewMultiFork(cfg, dial)
	b, err := backend.New(provider, nil)
	if err != nil {
		provider.Close()
		return nil, err
	}
	return &session{backend: b, provider: provider, start: time.Now()}, nil
}

func (s *session) close() {
	s.provider.Close()
}

// printStats reports the remote traffic of the session.
func (s *session) printStats(context *cli.Context) {
	if !context.Bool(MetricsFlag.Name) {
		return
	}
	stats := s.provider.Stats()
	duration := time.Since(s.start)
	rate := float64(stats.Requests) / duration.Seconds()
	log.Info("Remote traffic",
		"requests", stats.Requests,
		"rate", unitconv.FormatPrefix(rate, unitconv.SI, 0)+"/s",
		"cacheHits", stats.CacheHits,
		"shared", stats.SharedRequests,
		"duration", duration.Round(time.Millisecond),
	)
}

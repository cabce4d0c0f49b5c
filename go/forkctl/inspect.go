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
	"fmt"

	"github.com/Fantom-foundation/forkvm/go/fork"
	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/urfave/cli/v2"
)

var InspectCmd = cli.Command{
	Action:    doInspect,
	Name:      "inspect",
	Usage:     "Print the block context of a fork and the state of the given accounts",
	ArgsUsage: "<url> <address>...",
	Flags: []cli.Flag{
		BlockFlag,
	},
}

func doInspect(context *cli.Context) error {
	if context.Args().Len() < 1 {
		return fmt.Errorf("missing endpoint url")
	}
	url := context.Args().First()
	addresses, err := parseAddresses(context.Args().Tail())
	if err != nil {
		return err
	}

	session, err := newSession(context)
	if err != nil {
		return err
	}
	defer session.close()

	env := journal.Env{}
	active := journal.New(nil)
	id, err := session.backend.CreateSelectFork(fork.CreateFork{
		URL:         url,
		BlockNumber: BlockFlag.Fetch(context),
	}, &env, active)
	if err != nil {
		return err
	}
	forkID, err := session.backend.EnsureForkID(id)
	if err != nil {
		return err
	}

	fmt.Printf("fork %s (%v)\n", id.Dec(), forkID)
	printEnv(env)
	for _, address := range addresses {
		if err := printAccount(session, active, address); err != nil {
			return err
		}
	}
	session.printStats(context)
	return nil
}

func printEnv(env journal.Env) {
	block := env.Block
	if env.Tx.ChainID != nil {
		fmt.Printf("  chain id:  %d\n", *env.Tx.ChainID)
	}
	fmt.Printf("  block:     %d\n", block.BlockNumber)
	fmt.Printf("  timestamp: %d\n", block.Timestamp)
	fmt.Printf("  revision:  %v\n", block.Revision)
	fmt.Printf("  coinbase:  %v\n", block.Coinbase)
	fmt.Printf("  gas limit: %d\n", block.GasLimit)
	fmt.Printf("  base fee:  %v\n", block.BaseFee)
}

func printAccount(session *session, active *journal.Journal, address tosca.Address) error {
	account, err := active.LoadAccount(address, session.backend)
	if err != nil {
		return err
	}
	info := account.Info
	codeSize := len(info.Code)
	if info.Code == nil && info.HasCode() {
		code, err := session.backend.CodeByHash(info.CodeHash)
		if err != nil {
			return err
		}
		codeSize = len(code)
	}
	fmt.Printf("account %v\n", address)
	fmt.Printf("  balance:   %v\n", info.Balance)
	fmt.Printf("  nonce:     %d\n", info.Nonce)
	fmt.Printf("  code:      %d bytes, hash %v\n", codeSize, info.CodeHash)
	fmt.Printf("  persistent: %t\n", session.backend.IsPersistent(address))
	return nil
}

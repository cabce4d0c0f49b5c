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

var RollCmd = cli.Command{
	Action:    doRoll,
	Name:      "roll",
	Usage:     "Compare accounts before and after rolling a fork to another block",
	ArgsUsage: "<url> <address>...",
	Flags: []cli.Flag{
		BlockFlag,
		&cli.Uint64Flag{
			Name:     "to",
			Usage:    "block to roll the fork to",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "persistent",
			Usage: "address to mark persistent before rolling; may be repeated",
		},
	},
}

func doRoll(context *cli.Context) error {
	if context.Args().Len() < 1 {
		return fmt.Errorf("missing endpoint url")
	}
	url := context.Args().First()
	addresses, err := parseAddresses(context.Args().Tail())
	if err != nil {
		return err
	}
	persistent, err := parseAddresses(context.StringSlice("persistent"))
	if err != nil {
		return err
	}

	session, err := newSession(context)
	if err != nil {
		return err
	}
	defer session.close()
	session.backend.ExtendPersistentAccounts(persistent...)

	env := journal.Env{}
	active := journal.New(nil)
	id, err := session.backend.CreateSelectFork(fork.CreateFork{
		URL:         url,
		BlockNumber: BlockFlag.Fetch(context),
	}, &env, active)
	if err != nil {
		return err
	}
	before, err := balances(session, active, addresses)
	if err != nil {
		return err
	}
	from := env.Block.BlockNumber

	if err := session.backend.RollFork(&id, context.Uint64("to"), &env, active); err != nil {
		return err
	}
	after, err := balances(session, active, addresses)
	if err != nil {
		return err
	}

	fmt.Printf("fork %s rolled from block %d to %d\n", id.Dec(), from, env.Block.BlockNumber)
	for i, address := range addresses {
		marker := ""
		if before[i] != after[i] {
			marker = " (changed)"
		}
		fmt.Printf("  %v: %v -> %v%s\n", address, before[i], after[i], marker)
	}
	session.printStats(context)
	return nil
}

func balances(session *session, active *journal.Journal, addresses []tosca.Address) ([]tosca.Value, error) {
	res := make([]tosca.Value, 0, len(addresses))
	for _, address := range addresses {
		account, err := active.LoadAccount(address, session.backend)
		if err != nil {
			return nil, err
		}
		res = append(res, account.Info.Balance)
	}
	return res, nil
}

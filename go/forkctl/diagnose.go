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

	"github.com/Fantom-foundation/forkvm/go/backend"
	"github.com/Fantom-foundation/forkvm/go/fork"
	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/urfave/cli/v2"
)

var DiagnoseCmd = cli.Command{
	Action:    doDiagnose,
	Name:      "diagnose",
	Usage:     "Explain why a call to the given address would revert on the active fork",
	ArgsUsage: "<address>",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "fork",
			Usage:    "fork to create, as <url> or <url>@<block>; may be repeated",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "active",
			Usage: "position of the fork to select among the --fork flags",
		},
	},
}

func doDiagnose(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one address")
	}
	address, err := parseAddress(context.Args().First())
	if err != nil {
		return err
	}
	specs := context.StringSlice("fork")
	active := context.Int("active")
	if active < 0 || active >= len(specs) {
		return fmt.Errorf("invalid active fork %d, %d forks given", active, len(specs))
	}

	session, err := newSession(context)
	if err != nil {
		return err
	}
	defer session.close()

	ids := make([]backend.LocalForkID, 0, len(specs))
	for _, spec := range specs {
		id, err := session.backend.CreateFork(parseForkSpec(spec))
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	env := journal.Env{}
	state := journal.New(nil)
	if err := session.backend.SelectFork(ids[active], &env, state); err != nil {
		return err
	}

	diagnostic := session.backend.DiagnoseRevert(address, state)
	if diagnostic == nil {
		fmt.Printf("%v exists on the active fork %s, nothing to diagnose\n", address, ids[active].Dec())
	} else {
		fmt.Println(diagnostic)
	}
	session.printStats(context)
	return nil
}

// parseForkSpec parses <url>@<block> or a plain <url> selecting the latest
// block.
func parseForkSpec(spec string) fork.CreateFork {
	id := fork.ForkID(spec)
	if block, ok := id.Block(); ok {
		return fork.CreateFork{URL: id.URL(), BlockNumber: &block}
	}
	return fork.CreateFork{URL: spec}
}

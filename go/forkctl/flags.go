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
	"os"

	"github.com/Fantom-foundation/forkvm/go/fork"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/urfave/cli/v2"
)

type verbosityFlagType struct {
	cli.IntFlag
}

var VerbosityFlag = &verbosityFlagType{
	cli.IntFlag{
		Name:    "verbosity",
		Aliases: []string{"v"},
		Usage:   "log level: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value:   3,
	},
}

func (f *verbosityFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.Name)
}

var MetricsFlag = &cli.BoolFlag{
	Name:  "metrics",
	Usage: "record and report remote request metrics",
}

type headerCacheFlagType struct {
	cli.IntFlag
}

var HeaderCacheFlag = &headerCacheFlagType{
	cli.IntFlag{
		Name:  "header-cache",
		Usage: "number of block headers cached per endpoint",
		Value: fork.DefaultConfig().HeaderCacheSize,
	},
}

func (f *headerCacheFlagType) Fetch(context *cli.Context) (int, error) {
	size := context.Int(f.Name)
	if size <= 0 {
		return 0, fmt.Errorf("invalid header cache size %d, must be positive", size)
	}
	return size, nil
}

var TimeoutFlag = &cli.DurationFlag{
	Name:  "timeout",
	Usage: "timeout of a single remote request, 0 disables it",
	Value: fork.DefaultConfig().RequestTimeout,
}

var OfflineFlag = &cli.BoolFlag{
	Name:  "offline",
	Usage: "serve all endpoints from a generated in-memory chain",
}

type blockFlagType struct {
	cli.Uint64Flag
}

var BlockFlag = &blockFlagType{
	cli.Uint64Flag{
		Name:    "block",
		Aliases: []string{"b"},
		Usage:   "block to fork at, the latest block if not set",
	},
}

// Fetch returns the selected block or nil if the flag was not set.
func (f *blockFlagType) Fetch(context *cli.Context) *uint64 {
	if !context.IsSet(f.Name) {
		return nil
	}
	block := context.Uint64(f.Name)
	return &block
}

// setup configures logging and metrics before any command runs.
func setup(context *cli.Context) error {
	verbosity := VerbosityFlag.Fetch(context)
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), true)
	log.SetDefault(log.NewLogger(handler))
	if context.Bool(MetricsFlag.Name) {
		metrics.Enabled = true
	}
	return nil
}

// config assembles the provider configuration from the global flags.
func config(context *cli.Context) (fork.Config, error) {
	res := fork.DefaultConfig()
	size, err := HeaderCacheFlag.Fetch(context)
	if err != nil {
		return res, err
	}
	res.HeaderCacheSize = size
	res.RequestTimeout = context.Duration(TimeoutFlag.Name)
	if res.RequestTimeout < 0 {
		return res, fmt.Errorf("invalid timeout %v", res.RequestTimeout)
	}
	return res, nil
}

func parseAddress(s string) (tosca.Address, error) {
	if !common.IsHexAddress(s) {
		return tosca.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return tosca.Address(common.HexToAddress(s)), nil
}

func parseAddresses(args []string) ([]tosca.Address, error) {
	res := make([]tosca.Address, 0, len(args))
	for _, arg := range args {
		address, err := parseAddress(arg)
		if err != nil {
			return nil, err
		}
		res = append(res, address)
	}
	return res, nil
}


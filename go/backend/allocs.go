// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package backend

import (
	"bytes"
	"slices"

	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/exp/maps"
)

// LoadAllocs writes the given genesis allocations into the active journal.
// Code and storage are replaced if present in an allocation, nonce and
// balance are always set. All allocated accounts are touched.
func (b *Backend) LoadAllocs(allocs types.GenesisAlloc, active *journal.Journal) error {
	addresses := maps.Keys(allocs)
	slices.SortFunc(addresses, func(x, y common.Address) int {
		return bytes.Compare(x[:], y[:])
	})
	for _, address := range addresses {
		alloc := allocs[address]
		account, err := active.LoadAccount(tosca.Address(address), b)
		if err != nil {
			return err
		}
		if alloc.Code != nil {
			account.Info.Code = tosca.Code(alloc.Code)
			account.Info.CodeHash = account.Info.Code.Hash()
		}
		if alloc.Storage != nil {
			storage := make(map[tosca.Key]state.StorageSlot, len(alloc.Storage))
			for key, value := range alloc.Storage {
				previous := account.Storage[tosca.Key(key)].Present
				storage[tosca.Key(key)] = state.StorageSlot{Original: previous, Present: tosca.Word(value)}
			}
			account.Storage = storage
		}
		account.Info.Nonce = alloc.Nonce
		account.Info.Balance = tosca.ValueFromBig(alloc.Balance)
		active.Touch(tosca.Address(address))
	}
	return nil
}

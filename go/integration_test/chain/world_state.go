// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package chain

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	xmaps "golang.org/x/exp/maps"
)

// WorldState is the state of all accounts of a chain at one block. Accounts
// not listed are empty.
type WorldState map[tosca.Address]Account

// Account is the state of a single account. Slots not listed in Storage
// hold zero.
type Account struct {
	Balance tosca.Value
	Nonce   uint64
	Code    tosca.Code
	Storage Storage
}

type Storage map[tosca.Key]tosca.Word

func (s WorldState) Clone() WorldState {
	if s == nil {
		return nil
	}
	res := make(WorldState, len(s))
	for address, account := range s {
		res[address] = account.Clone()
	}
	return res
}

// Diff lists the fields in which the accounts of the two states differ, one
// line per field, ordered by address. Missing accounts and slots compare
// as empty.
func (s WorldState) Diff(other WorldState) []string {
	var res []string
	for _, address := range sortedKeys(s, other, compareAddresses) {
		a, b := s[address], other[address]
		for _, diff := range a.diff(&b) {
			res = append(res, fmt.Sprintf("%v: %s", address, diff))
		}
	}
	return res
}

// Equal reports whether both states have no differences.
func (s WorldState) Equal(other WorldState) bool {
	return len(s.Diff(other)) == 0
}

// Allocs converts the state into genesis allocations.
func (s WorldState) Allocs() types.GenesisAlloc {
	res := make(types.GenesisAlloc, len(s))
	for address, account := range s {
		alloc := types.Account{
			Balance: account.Balance.ToBig(),
			Nonce:   account.Nonce,
		}
		if len(account.Code) > 0 {
			alloc.Code = bytes.Clone(account.Code)
		}
		if len(account.Storage) > 0 {
			alloc.Storage = make(map[common.Hash]common.Hash, len(account.Storage))
			for key, value := range account.Storage {
				alloc.Storage[common.Hash(key)] = common.Hash(value)
			}
		}
		res[common.Address(address)] = alloc
	}
	return res
}

func (a *Account) Clone() Account {
	return Account{
		Balance: a.Balance,
		Nonce:   a.Nonce,
		Code:    bytes.Clone(a.Code),
		Storage: maps.Clone(a.Storage),
	}
}

func (a *Account) diff(other *Account) []string {
	var res []string
	if a.Balance != other.Balance {
		res = append(res, fmt.Sprintf("balance %v != %v", a.Balance, other.Balance))
	}
	if a.Nonce != other.Nonce {
		res = append(res, fmt.Sprintf("nonce %d != %d", a.Nonce, other.Nonce))
	}
	if !bytes.Equal(a.Code, other.Code) {
		res = append(res, fmt.Sprintf("code 0x%x != 0x%x", a.Code, other.Code))
	}
	for _, key := range sortedKeys(a.Storage, other.Storage, compareKeys) {
		if x, y := a.Storage[key], other.Storage[key]; x != y {
			res = append(res, fmt.Sprintf("slot %v: %v != %v", key, x, y))
		}
	}
	return res
}

// sortedKeys returns the keys present in any of the two maps in ascending
// order.
func sortedKeys[K comparable, V any](a, b map[K]V, compare func(K, K) int) []K {
	keys := xmaps.Keys(a)
	for key := range b {
		if _, found := a[key]; !found {
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, compare)
	return keys
}

func compareAddresses(a, b tosca.Address) int {
	return bytes.Compare(a[:], b[:])
}

func compareKeys(a, b tosca.Key) int {
	return bytes.Compare(a[:], b[:])
}

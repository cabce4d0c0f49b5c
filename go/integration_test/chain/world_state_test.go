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
	"testing"

	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/ethereum/go-ethereum/common"
)

func TestWorldState_MissingEntriesCompareAsEmpty(t *testing.T) {
	tests := map[string]struct {
		a, b WorldState
	}{
		"nil_and_empty": {
			b: WorldState{},
		},
		"empty_accounts": {
			a: WorldState{{1}: Account{}},
			b: WorldState{{2}: Account{Storage: Storage{}}},
		},
		"zero_slots": {
			a: WorldState{{1}: Account{Balance: tosca.NewValue(1), Storage: Storage{{1}: {}}}},
			b: WorldState{{1}: Account{Balance: tosca.NewValue(1)}},
		},
		"nil_and_empty_code": {
			a: WorldState{{1}: Account{Code: tosca.Code{}}},
			b: WorldState{{1}: Account{}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if diff := test.a.Diff(test.b); len(diff) != 0 {
				t.Errorf("unexpected differences: %v", diff)
			}
			if !test.b.Equal(test.a) {
				t.Errorf("states should be equal")
			}
		})
	}
}

func TestWorldState_DiffListsFieldsInAddressOrder(t *testing.T) {
	a := WorldState{
		{2}: Account{Balance: tosca.NewValue(1), Nonce: 2},
		{1}: Account{Storage: Storage{{7}: {1}}},
	}
	b := WorldState{
		{2}: Account{Balance: tosca.NewValue(3), Nonce: 2, Code: tosca.Code{0x00}},
	}
	want := []string{
		"0x0100000000000000000000000000000000000000: slot 0x0700000000000000000000000000000000000000000000000000000000000000: 0x0100000000000000000000000000000000000000000000000000000000000000 != 0x0000000000000000000000000000000000000000000000000000000000000000",
		"0x0200000000000000000000000000000000000000: balance 1 != 3",
		"0x0200000000000000000000000000000000000000: code 0x != 0x00",
	}
	got := a.Diff(b)
	if len(want) != len(got) {
		t.Fatalf("unexpected differences, wanted %v, got %v", want, got)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("unexpected difference %d, wanted %q, got %q", i, want[i], got[i])
		}
	}
}

func TestWorldState_ClonesAreIndependent(t *testing.T) {
	address := tosca.Address{1}
	key := tosca.Key{1}
	original := WorldState{
		address: Account{Code: tosca.Code{0x60}, Storage: Storage{key: {0x01}}},
	}

	clone := original.Clone()
	clone[address].Storage[key] = tosca.Word{0x02}
	clone[address].Code[0] = 0x61

	if want, got := (tosca.Word{0x01}), original[address].Storage[key]; want != got {
		t.Errorf("modification of clone leaked into original, wanted %v, got %v", want, got)
	}
	if want, got := byte(0x60), original[address].Code[0]; want != got {
		t.Errorf("modification of clone code leaked into original, wanted %x, got %x", want, got)
	}
}

func TestWorldState_AllocsContainAllFields(t *testing.T) {
	state := WorldState{
		{1}: Account{
			Balance: tosca.NewValue(10),
			Nonce:   4,
			Code:    tosca.Code{0x60},
			Storage: Storage{{2}: {3}},
		},
	}
	allocs := state.Allocs()
	alloc, found := allocs[common.Address{1}]
	if !found {
		t.Fatalf("account missing in allocations")
	}
	if want, got := uint64(10), alloc.Balance.Uint64(); want != got {
		t.Errorf("unexpected balance, wanted %d, got %d", want, got)
	}
	if want, got := uint64(4), alloc.Nonce; want != got {
		t.Errorf("unexpected nonce, wanted %d, got %d", want, got)
	}
	if want, got := (common.Hash{3}), alloc.Storage[common.Hash{2}]; want != got {
		t.Errorf("unexpected storage value, wanted %v, got %v", want, got)
	}
	if want, got := 1, len(alloc.Code); want != got {
		t.Errorf("unexpected code length, wanted %d, got %d", want, got)
	}
}

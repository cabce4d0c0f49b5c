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
	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/holiman/uint256"
)

// LocalForkID is the session-local identifier of a fork. It stays stable
// when the fork is rolled to another block.
type LocalForkID = uint256.Int

// Fork is the state of a single fork: its account store and the journal
// recorded while it was active.
type Fork struct {
	DB      *state.CacheDB
	Journal *journal.Journal
}

// Clone creates a deep copy of the fork sharing the remote handle.
func (f *Fork) Clone() *Fork {
	return &Fork{
		DB:      f.DB.Clone(),
		Journal: f.Journal.Clone(),
	}
}

// IsContract reports whether the given account hosts code on this fork.
func (f *Fork) IsContract(address tosca.Address) bool {
	if info, err := f.DB.BasicRef(address); err == nil && info != nil && info.HasCode() {
		return true
	}
	return f.Journal.IsContract(address)
}

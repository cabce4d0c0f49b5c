// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package journal

import (
	"fmt"

	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/Fantom-foundation/forkvm/go/tosca"
)

// ErrInsufficientBalance is returned by transfers exceeding the sender's
// balance.
const ErrInsufficientBalance = tosca.ConstError("insufficient balance")

// EntryKind enumerates the kinds of undo records in a journal.
type EntryKind int

const (
	AccountLoaded EntryKind = iota
	AccountTouched
	AccountCreated
	AccountDestroyed
	BalanceChanged
	NonceChanged
	CodeChanged
	StorageLoaded
	StorageChanged
)

func (k EntryKind) String() string {
	switch k {
	case AccountLoaded:
		return "AccountLoaded"
	case AccountTouched:
		return "AccountTouched"
	case AccountCreated:
		return "AccountCreated"
	case AccountDestroyed:
		return "AccountDestroyed"
	case BalanceChanged:
		return "BalanceChanged"
	case NonceChanged:
		return "NonceChanged"
	case CodeChanged:
		return "CodeChanged"
	case StorageLoaded:
		return "StorageLoaded"
	case StorageChanged:
		return "StorageChanged"
	}
	return fmt.Sprintf("EntryKind(%d)", int(k))
}

// Entry is a single undo record. Only the fields relevant for its kind are
// set.
type Entry struct {
	Kind         EntryKind
	Address      tosca.Address
	Key          tosca.Key
	PrevBalance  tosca.Value
	PrevNonce    uint64
	PrevCode     tosca.Code
	PrevCodeHash tosca.Hash
	PrevWord     tosca.Word
	PrevStatus   state.AccountStatus
	PrevStorage  map[tosca.Key]state.StorageSlot
}

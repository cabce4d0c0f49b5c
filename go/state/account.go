// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"maps"
	"slices"

	"github.com/Fantom-foundation/forkvm/go/tosca"
)

// AccountInfo is the basic information of an account: balance, nonce and
// code. Code may be nil if only the code hash is known; it can then be
// obtained through a CodeByHash lookup.
type AccountInfo struct {
	Balance  tosca.Value
	Nonce    uint64
	CodeHash tosca.Hash
	Code     tosca.Code
}

// NewAccountInfo creates an account info for the given balance, nonce and
// code, deriving the code hash from the code.
func NewAccountInfo(balance tosca.Value, nonce uint64, code tosca.Code) AccountInfo {
	return AccountInfo{
		Balance:  balance,
		Nonce:    nonce,
		CodeHash: code.Hash(),
		Code:     code,
	}
}

// IsEmpty reports whether the account has no balance, nonce and code, in
// which case it is considered non-existing.
func (a *AccountInfo) IsEmpty() bool {
	return a.Balance == (tosca.Value{}) && a.Nonce == 0 &&
		(a.CodeHash == tosca.EmptyCodeHash || a.CodeHash == (tosca.Hash{}))
}

// HasCode reports whether the account hosts a contract.
func (a *AccountInfo) HasCode() bool {
	return a.CodeHash != tosca.EmptyCodeHash && a.CodeHash != (tosca.Hash{})
}

// Clone creates a deep copy of the account info.
func (a *AccountInfo) Clone() *AccountInfo {
	if a == nil {
		return nil
	}
	res := *a
	res.Code = slices.Clone(a.Code)
	return &res
}

// AccountStatus is a bit set describing what happened to an account within
// the current execution.
type AccountStatus uint8

const (
	Loaded         AccountStatus = 0
	Created        AccountStatus = 1 << 0
	SelfDestructed AccountStatus = 1 << 1
	Touched        AccountStatus = 1 << 2
	// LoadedAsNotExisting marks accounts the database did not know when
	// they were first loaded.
	LoadedAsNotExisting AccountStatus = 1 << 3
)

// StorageSlot tracks the value of a storage slot when it was first loaded
// and its present value.
type StorageSlot struct {
	Original tosca.Word
	Present  tosca.Word
}

// IsChanged reports whether the present value differs from the original.
func (s StorageSlot) IsChanged() bool {
	return s.Original != s.Present
}

// Account is the execution-level view of an account: its info, the storage
// slots accessed so far and its status flags.
type Account struct {
	Info    AccountInfo
	Storage map[tosca.Key]StorageSlot
	Status  AccountStatus
}

// NewAccount creates a freshly loaded account with the given info.
func NewAccount(info AccountInfo) *Account {
	return &Account{
		Info:    info,
		Storage: map[tosca.Key]StorageSlot{},
	}
}

func (a *Account) IsCreated() bool {
	return a.Status&Created != 0
}

func (a *Account) IsTouched() bool {
	return a.Status&Touched != 0
}

func (a *Account) IsSelfDestructed() bool {
	return a.Status&SelfDestructed != 0
}

func (a *Account) IsLoadedAsNotExisting() bool {
	return a.Status&LoadedAsNotExisting != 0
}

func (a *Account) MarkTouched() {
	a.Status |= Touched
}

func (a *Account) MarkCreated() {
	a.Status |= Created
}

func (a *Account) MarkSelfDestructed() {
	a.Status |= SelfDestructed
}

// Clone creates a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		Info:    *a.Info.Clone(),
		Storage: maps.Clone(a.Storage),
		Status:  a.Status,
	}
}

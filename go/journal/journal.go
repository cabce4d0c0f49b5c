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
	"maps"

	"github.com/Fantom-foundation/forkvm/go/state"
	"github.com/Fantom-foundation/forkvm/go/tosca"
)

// Journal tracks the accounts touched during an execution together with
// the emitted logs and an undo log allowing to revert to checkpoints.
type Journal struct {
	State         map[tosca.Address]*state.Account
	Logs          []tosca.Log
	Depth         int
	Entries       [][]Entry
	WarmPreloaded map[tosca.Address]struct{}
}

// Checkpoint marks a position in the journal that can be reverted to.
type Checkpoint struct {
	logIndex   int
	entryIndex int
}

// New creates an empty journal treating the given addresses as warm.
func New(warm []tosca.Address) *Journal {
	preloaded := make(map[tosca.Address]struct{}, len(warm))
	for _, address := range warm {
		preloaded[address] = struct{}{}
	}
	return &Journal{
		State:         map[tosca.Address]*state.Account{},
		Entries:       [][]Entry{nil},
		WarmPreloaded: preloaded,
	}
}

// Clone creates a deep copy of the journal.
func (j *Journal) Clone() *Journal {
	accounts := make(map[tosca.Address]*state.Account, len(j.State))
	for address, account := range j.State {
		accounts[address] = account.Clone()
	}
	logs := make([]tosca.Log, 0, len(j.Logs))
	for _, log := range j.Logs {
		logs = append(logs, log.Clone())
	}
	entries := make([][]Entry, 0, len(j.Entries))
	for _, layer := range j.Entries {
		entries = append(entries, append([]Entry(nil), layer...))
	}
	return &Journal{
		State:         accounts,
		Logs:          logs,
		Depth:         j.Depth,
		Entries:       entries,
		WarmPreloaded: maps.Clone(j.WarmPreloaded),
	}
}

// IsContract reports whether the journal knows the given account as a
// contract.
func (j *Journal) IsContract(address tosca.Address) bool {
	account, found := j.State[address]
	return found && account.Info.HasCode()
}

// LoadAccount returns the journal's view of the given account, loading it
// from the database if it was not accessed before.
func (j *Journal) LoadAccount(address tosca.Address, db state.Database) (*state.Account, error) {
	if account, found := j.State[address]; found {
		return account, nil
	}
	info, err := db.Basic(address)
	if err != nil {
		return nil, err
	}
	var account *state.Account
	if info == nil {
		account = state.NewAccount(state.AccountInfo{CodeHash: tosca.EmptyCodeHash})
		account.Status |= state.LoadedAsNotExisting
	} else {
		account = state.NewAccount(*info)
	}
	j.State[address] = account
	j.record(Entry{Kind: AccountLoaded, Address: address})
	return account, nil
}

// Touch marks the given account as touched. Only touched accounts are
// committed to the database.
func (j *Journal) Touch(address tosca.Address) {
	account, found := j.State[address]
	if !found || account.IsTouched() {
		return
	}
	account.MarkTouched()
	j.record(Entry{Kind: AccountTouched, Address: address})
}

// SetBalance updates the balance of the given account.
func (j *Journal) SetBalance(address tosca.Address, balance tosca.Value, db state.Database) error {
	account, err := j.LoadAccount(address, db)
	if err != nil {
		return err
	}
	j.Touch(address)
	j.record(Entry{Kind: BalanceChanged, Address: address, PrevBalance: account.Info.Balance})
	account.Info.Balance = balance
	return nil
}

// Transfer moves the given value between two accounts.
func (j *Journal) Transfer(from, to tosca.Address, value tosca.Value, db state.Database) error {
	sender, err := j.LoadAccount(from, db)
	if err != nil {
		return err
	}
	if sender.Info.Balance.Cmp(value) < 0 {
		return fmt.Errorf("%w: %v has %v, needs %v", ErrInsufficientBalance, from, sender.Info.Balance, value)
	}
	if err := j.SetBalance(from, tosca.Sub(sender.Info.Balance, value), db); err != nil {
		return err
	}
	receiver, err := j.LoadAccount(to, db)
	if err != nil {
		return err
	}
	return j.SetBalance(to, tosca.Add(receiver.Info.Balance, value), db)
}

// SetNonce updates the nonce of the given account.
func (j *Journal) SetNonce(address tosca.Address, nonce uint64, db state.Database) error {
	account, err := j.LoadAccount(address, db)
	if err != nil {
		return err
	}
	j.Touch(address)
	j.record(Entry{Kind: NonceChanged, Address: address, PrevNonce: account.Info.Nonce})
	account.Info.Nonce = nonce
	return nil
}

// SetCode updates the code of the given account.
func (j *Journal) SetCode(address tosca.Address, code tosca.Code, db state.Database) error {
	account, err := j.LoadAccount(address, db)
	if err != nil {
		return err
	}
	j.Touch(address)
	j.record(Entry{
		Kind:         CodeChanged,
		Address:      address,
		PrevCode:     account.Info.Code,
		PrevCodeHash: account.Info.CodeHash,
	})
	account.Info.Code = code
	account.Info.CodeHash = code.Hash()
	return nil
}

// CreateAccount marks the given account as created in the current
// execution, resetting its storage.
func (j *Journal) CreateAccount(address tosca.Address, db state.Database) error {
	account, err := j.LoadAccount(address, db)
	if err != nil {
		return err
	}
	j.record(Entry{
		Kind:        AccountCreated,
		Address:     address,
		PrevStatus:  account.Status,
		PrevStorage: account.Storage,
	})
	account.Storage = map[tosca.Key]state.StorageSlot{}
	account.MarkCreated()
	account.MarkTouched()
	return nil
}

// SelfDestruct marks the given account as destroyed and clears its
// balance.
func (j *Journal) SelfDestruct(address tosca.Address, db state.Database) error {
	account, err := j.LoadAccount(address, db)
	if err != nil {
		return err
	}
	j.record(Entry{
		Kind:        AccountDestroyed,
		Address:     address,
		PrevStatus:  account.Status,
		PrevBalance: account.Info.Balance,
	})
	account.MarkSelfDestructed()
	account.MarkTouched()
	account.Info.Balance = tosca.Value{}
	return nil
}

// SLoad returns the present value of the given storage slot.
func (j *Journal) SLoad(address tosca.Address, key tosca.Key, db state.Database) (tosca.Word, error) {
	account, err := j.LoadAccount(address, db)
	if err != nil {
		return tosca.Word{}, err
	}
	if slot, found := account.Storage[key]; found {
		return slot.Present, nil
	}
	var value tosca.Word
	if !account.IsCreated() && !account.IsLoadedAsNotExisting() {
		value, err = db.Storage(address, key)
		if err != nil {
			return tosca.Word{}, err
		}
	}
	account.Storage[key] = state.StorageSlot{Original: value, Present: value}
	j.record(Entry{Kind: StorageLoaded, Address: address, Key: key})
	return value, nil
}

// SStore updates the present value of the given storage slot.
func (j *Journal) SStore(address tosca.Address, key tosca.Key, value tosca.Word, db state.Database) error {
	present, err := j.SLoad(address, key, db)
	if err != nil {
		return err
	}
	if present == value {
		return nil
	}
	j.Touch(address)
	j.record(Entry{Kind: StorageChanged, Address: address, Key: key, PrevWord: present})
	account := j.State[address]
	slot := account.Storage[key]
	slot.Present = value
	account.Storage[key] = slot
	return nil
}

// AddLog records a log emitted by the current execution.
func (j *Journal) AddLog(log tosca.Log) {
	j.Logs = append(j.Logs, log)
}

// Checkpoint opens a new nested call frame.
func (j *Journal) Checkpoint() Checkpoint {
	checkpoint := Checkpoint{
		logIndex:   len(j.Logs),
		entryIndex: len(j.Entries),
	}
	j.Depth++
	j.Entries = append(j.Entries, nil)
	return checkpoint
}

// CheckpointCommit closes the current call frame keeping its effects.
func (j *Journal) CheckpointCommit() {
	j.Depth--
}

// CheckpointRevert closes the current call frame undoing every change
// recorded since the given checkpoint.
func (j *Journal) CheckpointRevert(checkpoint Checkpoint) {
	j.Depth--
	for i := len(j.Entries) - 1; i >= checkpoint.entryIndex; i-- {
		layer := j.Entries[i]
		for k := len(layer) - 1; k >= 0; k-- {
			j.undo(layer[k])
		}
	}
	j.Entries = j.Entries[:checkpoint.entryIndex]
	j.Logs = j.Logs[:checkpoint.logIndex]
}

// PadEntries appends empty checkpoint layers until the journal has at least
// the given number of layers.
func (j *Journal) PadEntries(layers int) {
	for len(j.Entries) < layers {
		j.Entries = append(j.Entries, nil)
	}
}

// Finalize returns the accumulated account changes and logs and resets the
// journal for the next transaction.
func (j *Journal) Finalize() (map[tosca.Address]*state.Account, []tosca.Log) {
	changes, logs := j.State, j.Logs
	j.State = map[tosca.Address]*state.Account{}
	j.Logs = nil
	j.Depth = 0
	j.Entries = [][]Entry{nil}
	return changes, logs
}

func (j *Journal) record(entry Entry) {
	if len(j.Entries) == 0 {
		j.Entries = append(j.Entries, nil)
	}
	last := len(j.Entries) - 1
	j.Entries[last] = append(j.Entries[last], entry)
}

func (j *Journal) undo(entry Entry) {
	account := j.State[entry.Address]
	switch entry.Kind {
	case AccountLoaded:
		delete(j.State, entry.Address)
	case AccountTouched:
		account.Status &^= state.Touched
	case AccountCreated:
		account.Status = entry.PrevStatus
		account.Storage = maps.Clone(entry.PrevStorage)
	case AccountDestroyed:
		account.Status = entry.PrevStatus
		account.Info.Balance = entry.PrevBalance
	case BalanceChanged:
		account.Info.Balance = entry.PrevBalance
	case NonceChanged:
		account.Info.Nonce = entry.PrevNonce
	case CodeChanged:
		account.Info.Code = entry.PrevCode
		account.Info.CodeHash = entry.PrevCodeHash
	case StorageLoaded:
		delete(account.Storage, entry.Key)
	case StorageChanged:
		slot := account.Storage[entry.Key]
		slot.Present = entry.PrevWord
		account.Storage[entry.Key] = slot
	default:
		panic(fmt.Sprintf("unknown journal entry kind: %v", entry.Kind))
	}
}

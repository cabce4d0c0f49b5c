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
	"github.com/Fantom-foundation/forkvm/go/tosca"
	"github.com/ethereum/go-ethereum/log"
)

// AllowCheatcodeAccess grants the given account access to cheat codes. The
// result is true if the account had no access before.
func (b *Backend) AllowCheatcodeAccess(address tosca.Address) bool {
	log.Trace("Allow cheatcode access", "address", address)
	if b.HasCheatcodeAccess(address) {
		return false
	}
	b.inner.cheatcodeAccess[address] = struct{}{}
	return true
}

// RevokeCheatcodeAccess revokes the cheat code access of the given account.
// The result is true if the account had access before.
func (b *Backend) RevokeCheatcodeAccess(address tosca.Address) bool {
	log.Trace("Revoke cheatcode access", "address", address)
	if !b.HasCheatcodeAccess(address) {
		return false
	}
	delete(b.inner.cheatcodeAccess, address)
	return true
}

func (b *Backend) HasCheatcodeAccess(address tosca.Address) bool {
	_, found := b.inner.cheatcodeAccess[address]
	return found
}

// EnsureCheatcodeAccess fails with a NoCheatsError if the given account may
// not use cheat codes.
func (b *Backend) EnsureCheatcodeAccess(address tosca.Address) error {
	if !b.HasCheatcodeAccess(address) {
		return &NoCheatsError{Address: address}
	}
	return nil
}

// EnsureCheatcodeAccessForkingMode is EnsureCheatcodeAccess, enforced only
// while a fork is active.
func (b *Backend) EnsureCheatcodeAccessForkingMode(address tosca.Address) error {
	if b.IsForkedMode() {
		return b.EnsureCheatcodeAccess(address)
	}
	return nil
}

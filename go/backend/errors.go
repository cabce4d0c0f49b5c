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
	"fmt"

	"github.com/Fantom-foundation/forkvm/go/tosca"
)

const (
	// ErrUnknownFork is returned for fork identifiers that were never issued.
	ErrUnknownFork = tosca.ConstError("unknown fork")
	// ErrNoActiveFork is returned by operations defaulting to the active fork
	// while none is active.
	ErrNoActiveFork = tosca.ConstError("no active fork")
)

// MissingAccountError is returned if a fork's store cannot produce an
// account that is required to exist.
type MissingAccountError struct {
	Address tosca.Address
}

func (e *MissingAccountError) Error() string {
	return fmt.Sprintf("missing account %v", e.Address)
}

// NoCheatsError is returned if an account without cheat code access tries
// to use cheat codes.
type NoCheatsError struct {
	Address tosca.Address
}

func (e *NoCheatsError) Error() string {
	return fmt.Sprintf("no cheatcode access granted for %v, see vm.allowCheatcodes()", e.Address)
}

// ProviderError wraps failures reported by the fork provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("fork provider failed to %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package tosca

import "golang.org/x/crypto/sha3"

// EmptyCodeHash is the Keccak256 hash of empty code.
var EmptyCodeHash = Keccak256(nil)

// Keccak256 computes the legacy Keccak256 hash of the given data.
func Keccak256(data []byte) (res Hash) {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(data)
	hasher.Sum(res[:0])
	return
}

// Hash returns the Keccak256 hash of the code.
func (c Code) Hash() Hash {
	return Keccak256(c)
}

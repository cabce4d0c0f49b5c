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

// IsPrecompiledContract reports whether the given address hosts a
// precompiled contract in the given revision. Addresses 1-9 are precompiled
// in all supported revisions, the point evaluation contract at 0x0a was
// added in Cancun.
func IsPrecompiledContract(address Address, revision Revision) bool {
	for i := 0; i < 19; i++ {
		if address[i] != 0 {
			return false
		}
	}
	last := byte(9)
	if revision >= R13_Cancun {
		last = 10
	}
	return 1 <= address[19] && address[19] <= last
}

// PrecompiledContracts lists the addresses of all precompiled contracts of
// the given revision.
func PrecompiledContracts(revision Revision) []Address {
	res := []Address{}
	for i := byte(1); i <= 10; i++ {
		address := Address{19: i}
		if IsPrecompiledContract(address, revision) {
			res = append(res, address)
		}
	}
	return res
}

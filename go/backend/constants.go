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
	"github.com/ethereum/go-ethereum/common"
)

var (
	// CheatcodeAddress is the address of the cheat code handler,
	// address(bytes20(uint160(uint256(keccak256('hevm cheat code'))))).
	CheatcodeAddress = tosca.Address(common.HexToAddress("0x7109709ECfa91a80626fF3989D68f67F5b1DD12D"))
	// Create2DeployerAddress is the deterministic CREATE2 deployer.
	Create2DeployerAddress = tosca.Address(common.HexToAddress("0x4e59b44847b379578588920cA78FbF26c0B4956C"))
	// DefaultCallerAddress is the default sender of test transactions.
	DefaultCallerAddress = tosca.Address(common.HexToAddress("0x1804c8AB1F12E6bbf3894d4083f33e07309d1f38"))
	// TestContractAddress is the default address of a deployed test contract.
	TestContractAddress = tosca.Address(common.HexToAddress("0x7FA9385bE102ac3EAc297483Dd6233D62b3e1496"))
)

// GlobalFailSlot is the storage slot of the cheat code account recording a
// failed assertion, bytes32("failed").
var GlobalFailSlot = tosca.Key{'f', 'a', 'i', 'l', 'e', 'd'}

// DefaultPersistentAccounts are shared by all forks of a Backend.
func DefaultPersistentAccounts() []tosca.Address {
	return []tosca.Address{CheatcodeAddress, Create2DeployerAddress, DefaultCallerAddress}
}

// DefaultCheatcodeAccessAccounts may use cheat codes without being granted
// access explicitly.
func DefaultCheatcodeAccessAccounts() []tosca.Address {
	return []tosca.Address{CheatcodeAddress, TestContractAddress, DefaultCallerAddress}
}

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
	"strings"

	"github.com/Fantom-foundation/forkvm/go/journal"
	"github.com/Fantom-foundation/forkvm/go/tosca"
)

// RevertDiagnostic explains why a call reverted in forking mode.
type RevertDiagnostic interface {
	fmt.Stringer
	isRevertDiagnostic()
}

// ContractExistsOnOtherForks is reported when the called contract does not
// exist on the active fork but on other forks.
type ContractExistsOnOtherForks struct {
	Contract    tosca.Address
	Active      LocalForkID
	AvailableOn []LocalForkID
}

func (d ContractExistsOnOtherForks) String() string {
	ids := make([]string, 0, len(d.AvailableOn))
	for _, id := range d.AvailableOn {
		ids = append(ids, "`"+id.Dec()+"`")
	}
	return fmt.Sprintf(
		"Contract %v does not exist on active fork with id `%s` but exists on non active forks: [%s]",
		d.Contract, d.Active.Dec(), strings.Join(ids, ", "),
	)
}

func (ContractExistsOnOtherForks) isRevertDiagnostic() {}

// ContractDoesNotExist is reported when the called contract exists on no
// fork at all.
type ContractDoesNotExist struct {
	Contract tosca.Address
	Active   LocalForkID
	// Persistent is set if the contract is a persistent account.
	Persistent bool
}

func (d ContractDoesNotExist) String() string {
	msg := fmt.Sprintf("Contract %v does not exist on active fork with id `%s`", d.Contract, d.Active.Dec())
	if d.Persistent {
		msg += ", but is marked persistent; deploy it on the active fork"
	}
	return msg
}

func (ContractDoesNotExist) isRevertDiagnostic() {}

// DiagnoseRevert checks whether a reverted call to callee is explained by
// the callee missing on the active fork. The result is nil if there is no
// such explanation.
func (b *Backend) DiagnoseRevert(callee tosca.Address, active *journal.Journal) RevertDiagnostic {
	if b.active == nil || len(b.inner.issuedLocalForkIDs) <= 1 {
		return nil
	}
	current := b.activeFork()
	if current.IsContract(callee) || active.IsContract(callee) {
		return nil
	}

	var availableOn []LocalForkID
	for _, id := range b.inner.localForkIDs() {
		if id == b.active.id {
			continue
		}
		index, err := b.inner.ensureForkIndexByLocalID(id)
		if err != nil {
			continue
		}
		if fork := b.inner.forks[index]; fork != nil && fork.IsContract(callee) {
			availableOn = append(availableOn, id)
		}
	}

	if len(availableOn) == 0 {
		return ContractDoesNotExist{
			Contract:   callee,
			Active:     b.active.id,
			Persistent: b.inner.isPersistent(callee),
		}
	}
	return ContractExistsOnOtherForks{
		Contract:    callee,
		Active:      b.active.id,
		AvailableOn: availableOn,
	}
}

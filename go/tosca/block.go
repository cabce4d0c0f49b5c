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

import "slices"

// BlockParameters contains information about the current block and the
// chain configuration it is executed under.
type BlockParameters struct {
	ChainID     Word
	BlockNumber int64
	Timestamp   int64
	Coinbase    Address
	GasLimit    Gas
	PrevRandao  Hash
	BaseFee     Value
	BlobBaseFee Value
	Revision    Revision
}

// Log is the type summarizing a log message emitted as a side effect of a
// contract execution.
type Log struct {
	Address Address
	Topics  []Hash
	Data    Data
}

// Clone creates an independent copy of the log.
func (l Log) Clone() Log {
	return Log{
		Address: l.Address,
		Topics:  slices.Clone(l.Topics),
		Data:    slices.Clone(l.Data),
	}
}

// Revision is an enumeration for EVM specification revisions (aka. Hard-Forks).
type Revision int

// The list of revisions supported so far.
const (
	R07_Istanbul Revision = iota
	R09_Berlin
	R10_London
	R11_Paris
	R12_Shanghai
	R13_Cancun
	numRevisions int = iota
)

// R99_UnknownNextRevision is a revision newer than every supported one.
const R99_UnknownNextRevision Revision = 99

// GetAllKnownRevisions returns all supported revisions in ascending order.
func GetAllKnownRevisions() []Revision {
	res := make([]Revision, 0, numRevisions)
	for i := 0; i < numRevisions; i++ {
		res = append(res, Revision(i))
	}
	return res
}

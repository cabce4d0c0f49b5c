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
	"github.com/holiman/uint256"
)

// Snapshots stores values under monotonically increasing ids.
type Snapshots[T any] struct {
	id        uint256.Int
	snapshots map[uint256.Int]T
}

func NewSnapshots[T any]() *Snapshots[T] {
	return &Snapshots[T]{snapshots: map[uint256.Int]T{}}
}

// Insert stores the given value under a fresh id.
func (s *Snapshots[T]) Insert(value T) uint256.Int {
	id := s.id
	s.snapshots[id] = value
	s.id.AddUint64(&s.id, 1)
	return id
}

// InsertAt stores the given value under an id issued before.
func (s *Snapshots[T]) InsertAt(value T, id uint256.Int) {
	s.snapshots[id] = value
}

func (s *Snapshots[T]) Get(id uint256.Int) (T, bool) {
	value, found := s.snapshots[id]
	return value, found
}

// Remove deletes the value with the given id together with all values
// inserted after it. The value with the given id is returned. Nothing is
// deleted if there is no value with the given id.
func (s *Snapshots[T]) Remove(id uint256.Int) (T, bool) {
	value, found := s.snapshots[id]
	if !found {
		return value, false
	}
	for cur := range s.snapshots {
		if cur.Cmp(&id) >= 0 {
			delete(s.snapshots, cur)
		}
	}
	return value, true
}

// RemoveAt deletes only the value with the given id.
func (s *Snapshots[T]) RemoveAt(id uint256.Int) (T, bool) {
	value, found := s.snapshots[id]
	delete(s.snapshots, id)
	return value, found
}

// Clear deletes all values. Ids are not reused.
func (s *Snapshots[T]) Clear() {
	s.snapshots = map[uint256.Int]T{}
}

func (s *Snapshots[T]) Len() int {
	return len(s.snapshots)
}

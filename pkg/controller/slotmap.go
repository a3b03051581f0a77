// Copyright The OpenTelemetry Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package controller

// SlotKey identifies an entry in a SlotMap. Keys remain stable across
// insertions/removals elsewhere in the map, and a stale key (one whose slot
// was removed and reused) is detected via the generation counter, per the
// design note "the controller tracks PipelinePhase per instance in an
// in-memory observed-state keyed by (PipelineGroupKey, PipelineKey) using a
// slot-map for stable keys under churn" (spec section 4.7).
type SlotKey struct {
	index      int
	generation uint64
}

type slot[T any] struct {
	value      T
	generation uint64
	occupied   bool
}

// SlotMap is a generation-counted slot map: O(1) insert/remove/get, stable
// keys, and safe reuse of freed slots.
type SlotMap[T any] struct {
	slots []slot[T]
	free  []int
}

// NewSlotMap returns an empty slot map.
func NewSlotMap[T any]() *SlotMap[T] {
	return &SlotMap[T]{}
}

// Insert adds value and returns its stable key.
func (m *SlotMap[T]) Insert(value T) SlotKey {
	if len(m.free) > 0 {
		idx := m.free[len(m.free)-1]
		m.free = m.free[:len(m.free)-1]
		m.slots[idx].value = value
		m.slots[idx].occupied = true
		return SlotKey{index: idx, generation: m.slots[idx].generation}
	}
	m.slots = append(m.slots, slot[T]{value: value, occupied: true})
	return SlotKey{index: len(m.slots) - 1, generation: 0}
}

// Get returns the value at key, or false if the key is stale or the slot is
// empty.
func (m *SlotMap[T]) Get(key SlotKey) (T, bool) {
	var zero T
	if key.index < 0 || key.index >= len(m.slots) {
		return zero, false
	}
	s := m.slots[key.index]
	if !s.occupied || s.generation != key.generation {
		return zero, false
	}
	return s.value, true
}

// Set overwrites the value at key if it is still live, returning false if
// the key is stale.
func (m *SlotMap[T]) Set(key SlotKey, value T) bool {
	if key.index < 0 || key.index >= len(m.slots) {
		return false
	}
	s := &m.slots[key.index]
	if !s.occupied || s.generation != key.generation {
		return false
	}
	s.value = value
	return true
}

// Remove frees key's slot, bumping its generation so any outstanding copy of
// key becomes stale.
func (m *SlotMap[T]) Remove(key SlotKey) bool {
	if key.index < 0 || key.index >= len(m.slots) {
		return false
	}
	s := &m.slots[key.index]
	if !s.occupied || s.generation != key.generation {
		return false
	}
	var zero T
	s.value = zero
	s.occupied = false
	s.generation++
	m.free = append(m.free, key.index)
	return true
}

// Keys returns every currently occupied key, in slot order.
func (m *SlotMap[T]) Keys() []SlotKey {
	out := make([]SlotKey, 0, len(m.slots))
	for i, s := range m.slots {
		if s.occupied {
			out = append(out, SlotKey{index: i, generation: s.generation})
		}
	}
	return out
}

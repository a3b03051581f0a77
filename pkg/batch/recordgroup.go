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

package batch

import (
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v12/arrow"
)

// RecordGroup is an ordered collection of payload-typed Arrow record batches
// linked by parent-id columns, representing one signal columnarly (spec
// section 3.1).
type RecordGroup struct {
	Signal   SignalType
	Payloads map[PayloadType]arrow.Record
}

// NewRecordGroup builds a record group for the given signal from a set of
// payload records. The signal type is fixed at construction; mixing payload
// types from different signals is rejected here rather than left to be
// discovered later (spec section 3.1: "Signal type of a record group is
// fixed at construction; mixing is forbidden.").
func NewRecordGroup(signal SignalType, payloads map[PayloadType]arrow.Record) (*RecordGroup, error) {
	root, err := RootPayloadType(signal)
	if err != nil {
		return nil, err
	}
	if _, ok := payloads[root]; !ok {
		return nil, fmt.Errorf("batch: record group for signal %v missing root payload %v", signal, root)
	}
	for pt := range payloads {
		if pt == root {
			continue
		}
		if _, ok := ParentPayloadType(signal, pt); !ok {
			return nil, fmt.Errorf("batch: payload type %v has no defined parent for signal %v", pt, signal)
		}
	}
	return &RecordGroup{Signal: signal, Payloads: payloads}, nil
}

// RootPayload returns the record for this group's root payload type.
func (g *RecordGroup) RootPayload() arrow.Record {
	root, err := RootPayloadType(g.Signal)
	if err != nil {
		return nil
	}
	return g.Payloads[root]
}

// RootRowCount returns the row count of the root-signal payload, the unit
// spec section 4.4 batches against.
func (g *RecordGroup) RootRowCount() int64 {
	rec := g.RootPayload()
	if rec == nil {
		return 0
	}
	return rec.NumRows()
}

// IsEmpty reports whether the group carries zero root rows (spec section
// 4.4 edge case: "Empty record groups are dropped.").
func (g *RecordGroup) IsEmpty() bool {
	return g.RootRowCount() == 0
}

// OrderedPayloadTypes returns this group's payload types in a deterministic
// order (root first, then ascending by enum value) suitable for stable
// iteration during split/concatenate.
func (g *RecordGroup) OrderedPayloadTypes() []PayloadType {
	root, _ := RootPayloadType(g.Signal)
	out := make([]PayloadType, 0, len(g.Payloads))
	for pt := range g.Payloads {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i] == root {
			return true
		}
		if out[j] == root {
			return false
		}
		return out[i] < out[j]
	})
	return out
}

// ValidateReferentialIntegrity checks, for every child payload type, that
// each row's delta-decoded parent_id identifies a row in the corresponding
// parent payload (spec section 3.1 invariant). It returns the first
// violation found.
func (g *RecordGroup) ValidateReferentialIntegrity() error {
	for _, pt := range g.OrderedPayloadTypes() {
		parentType, ok := ParentPayloadType(g.Signal, pt)
		if !ok {
			continue
		}
		parentRec, ok := g.Payloads[parentType]
		if !ok {
			return fmt.Errorf("batch: payload %v references missing parent payload %v", pt, parentType)
		}
		childRec := g.Payloads[pt]
		parentIDs, err := DecodeIDs(parentRec)
		if err != nil {
			return fmt.Errorf("batch: decoding ids of parent payload %v: %w", parentType, err)
		}
		present := make(map[int64]struct{}, len(parentIDs))
		for _, id := range parentIDs {
			present[id] = struct{}{}
		}
		childParentIDs, err := DecodeDeltaParentIDs(childRec)
		if err != nil {
			return fmt.Errorf("batch: decoding parent ids of payload %v: %w", pt, err)
		}
		for i, pid := range childParentIDs {
			if _, ok := present[pid]; !ok {
				return fmt.Errorf("batch: row %d of payload %v references parent id %d not present in %v", i, pt, pid, parentType)
			}
		}
	}
	return nil
}

// Retain bumps the refcount on every underlying Arrow record and returns a
// new RecordGroup value sharing the same buffers (spec section 4.3:
// broadcast clone of columnar data is O(1) since Arrow buffers are
// reference-counted).
func (g *RecordGroup) Retain() *RecordGroup {
	cp := make(map[PayloadType]arrow.Record, len(g.Payloads))
	for pt, rec := range g.Payloads {
		rec.Retain()
		cp[pt] = rec
	}
	return &RecordGroup{Signal: g.Signal, Payloads: cp}
}

// Release drops this RecordGroup's reference on every underlying Arrow
// record.
func (g *RecordGroup) Release() {
	for _, rec := range g.Payloads {
		rec.Release()
	}
}

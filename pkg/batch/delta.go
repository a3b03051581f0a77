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

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
)

// DecodeDeltaParentIDs reads the parent_id column of rec and returns the
// absolute parent id for every row, applying the running-sum rule of spec
// design note "Delta-encoded parent ids": "running sum from row 0 within a
// batch, reset per batch."
func DecodeDeltaParentIDs(rec arrow.Record) ([]int64, error) {
	col, err := int64Column(rec, ColumnParentID)
	if err != nil {
		return nil, err
	}
	out := make([]int64, rec.NumRows())
	var running int64
	for i := 0; i < int(rec.NumRows()); i++ {
		if col.IsNull(i) {
			return nil, fmt.Errorf("batch: parent_id is null at row %d", i)
		}
		running += col.Value(i)
		out[i] = running
	}
	return out, nil
}

// EncodeDeltaParentIDs is the inverse of DecodeDeltaParentIDs: given absolute
// parent ids it returns the per-row deltas, resetting the running sum at
// index 0 as required when a new batch starts.
func EncodeDeltaParentIDs(absolute []int64) []int64 {
	out := make([]int64, len(absolute))
	var prev int64
	for i, v := range absolute {
		out[i] = v - prev
		prev = v
	}
	return out
}

// RebaseFirstRow rewrites deltas so that the first entry is the absolute
// value of firstAbsolute rather than a delta from whatever preceded this
// chunk. This implements the rebatch engine's rewrite-parent-ids step (spec
// section 4.4 step 4): "the first row of each appended chunk re-bases its
// parent_id as the absolute value... and subsequent rows retain their
// original deltas."
func RebaseFirstRow(deltas []int64, firstAbsolute int64) []int64 {
	if len(deltas) == 0 {
		return deltas
	}
	out := make([]int64, len(deltas))
	copy(out, deltas)
	out[0] = firstAbsolute
	return out
}

// DecodeIDs reads the absolute "id" column of a root payload record.
func DecodeIDs(rec arrow.Record) ([]int64, error) {
	col, err := int64Column(rec, ColumnID)
	if err != nil {
		return nil, err
	}
	out := make([]int64, rec.NumRows())
	for i := range out {
		out[i] = col.Value(i)
	}
	return out, nil
}

func int64Column(rec arrow.Record, name string) (*array.Int64, error) {
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("batch: record schema has no column %q", name)
	}
	col, ok := rec.Column(idx[0]).(*array.Int64)
	if !ok {
		return nil, fmt.Errorf("batch: column %q is not int64", name)
	}
	return col, nil
}

// FindParentRange returns the contiguous [start, end) row range in parent's
// "id" column, in row-of-parent order, that covers the inclusive id range
// [minID, maxID]. Parent ids are assumed strictly increasing within a
// record, which holds for every root payload produced by this engine's
// OTLP->OTAP decoder.
func FindParentRange(parent arrow.Record, minID, maxID int64) (start, end int, err error) {
	ids, err := DecodeIDs(parent)
	if err != nil {
		return 0, 0, err
	}
	start = -1
	for i, id := range ids {
		if id >= minID && start == -1 {
			start = i
		}
		if id <= maxID {
			end = i + 1
		}
	}
	if start == -1 {
		return 0, 0, fmt.Errorf("batch: no parent rows found in id range [%d,%d]", minID, maxID)
	}
	return start, end, nil
}

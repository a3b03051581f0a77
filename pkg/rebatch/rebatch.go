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

// Package rebatch implements the OTAP batching/rebatching engine of spec
// section 4.4: separate, split, concatenate, with parent-id rewriting at
// every chunk boundary introduced by the concatenate step.
package rebatch

import (
	"github.com/apache/arrow/go/v12/arrow"

	"github.com/open-telemetry/otap-dataflow-go/pkg/batch"
	"github.com/open-telemetry/otap-dataflow-go/pkg/otaperrors"
)

// Budget bounds one call to Rebatch.
type Budget struct {
	// MaxOutputRows caps the root-signal row count of every output group. A
	// nil value makes split a no-op (spec section 4.4 edge case): "If
	// max_output_rows is None, split is a no-op; concatenate still merges
	// until a natural boundary."
	MaxOutputRows *uint64
	// MaxOutputBytes is a per-payload byte budget enforced during
	// concatenation; zero means unbounded.
	MaxOutputBytes int64
	// MaxConcurrency bounds how many payload types mergeChunks concatenates
	// in parallel per merged group. Zero means one worker per payload type
	// present, grounded on concurrentbatchprocessor's *semaphore.Weighted
	// bound on in-flight export goroutines.
	MaxConcurrency int
}

// Stats reports the engine's bookkeeping counters (spec section 6:
// dropped-empty and batching-error counts).
type Stats struct {
	DroppedEmpty   int
	BatchingErrors int
}

// chunkInfo is one contiguous slice of an input group produced by split (or
// the group itself, unsplit), along with the absolute parent id that
// belongs in row 0 of each child payload -- needed because slicing a
// record does not rewrite the stored delta values, only concatenate does
// (spec section 4.4 step 4).
type chunkInfo struct {
	group          *batch.RecordGroup
	firstParentAbs map[batch.PayloadType]int64
}

func (c *chunkInfo) release() {
	c.group.Release()
}

// Rebatch implements spec section 4.4's algorithm: partition by signal
// (callers are expected to call Rebatch once per signal; a mismatched
// group is a fatal error rather than silently reassigned), split any group
// whose root row count exceeds budget.MaxOutputRows, then greedily
// concatenate consecutive chunks under the row and byte budgets.
//
// Rebatch takes ownership of groups: every input RecordGroup is released
// once its rows have been folded into an output group (or dropped as
// empty); callers must not use them afterward.
func Rebatch(signal batch.SignalType, groups []*batch.RecordGroup, budget Budget) ([]*batch.RecordGroup, Stats, error) {
	var stats Stats
	var chunks []*chunkInfo

	for _, g := range groups {
		if g.Signal != signal {
			return nil, stats, &otaperrors.BatchingError{
				Kind: otaperrors.SignalTypeMismatch, Payload: g.Signal.String(),
				Detail: "record group signal does not match the signal passed to Rebatch",
			}
		}
		if g.IsEmpty() {
			stats.DroppedEmpty++
			g.Release()
			continue
		}
		if err := g.ValidateReferentialIntegrity(); err != nil {
			stats.BatchingErrors++
			g.Release()
			return nil, stats, &otaperrors.BatchingError{
				Kind:    otaperrors.UnreferencedParentID,
				Payload: g.Signal.String(),
				Detail:  err.Error(),
			}
		}

		split, err := splitGroup(g, budget.MaxOutputRows)
		if err != nil {
			stats.BatchingErrors++
			g.Release()
			return nil, stats, err
		}
		chunks = append(chunks, split...)
	}

	out, err := concatenate(signal, chunks, budget)
	if err != nil {
		stats.BatchingErrors++
		return nil, stats, err
	}
	return out, stats, nil
}

// splitGroup slices g along its root-signal row ranges so that every
// resulting chunk has at most limit root rows, slicing every child payload
// to the row range whose delta-decoded parent ids fall within the chunk's
// root id range (spec section 4.4 step 2). A group that already fits is
// returned unsplit, as a single chunk.
func splitGroup(g *batch.RecordGroup, maxOutputRows *uint64) ([]*chunkInfo, error) {
	root := g.RootPayload()
	total := root.NumRows()

	if maxOutputRows == nil || total <= int64(*maxOutputRows) {
		return []*chunkInfo{{group: g, firstParentAbs: firstParentAbsolutes(g)}}, nil
	}
	limit := int64(*maxOutputRows)

	rootIDs, err := batch.DecodeIDs(root)
	if err != nil {
		return nil, err
	}

	rootType, _ := batch.RootPayloadType(g.Signal)
	childAbs := make(map[batch.PayloadType][]int64, len(g.Payloads)-1)
	for pt, rec := range g.Payloads {
		if pt == rootType {
			continue
		}
		abs, err := batch.DecodeDeltaParentIDs(rec)
		if err != nil {
			return nil, err
		}
		childAbs[pt] = abs
	}

	var out []*chunkInfo
	for start := int64(0); start < total; start += limit {
		end := start + limit
		if end > total {
			end = total
		}
		minID, maxID := rootIDs[start], rootIDs[end-1]

		chunkPayloads := make(map[batch.PayloadType]arrow.Record, len(g.Payloads))
		chunkPayloads[rootType] = root.NewSlice(start, end)

		firstAbs := make(map[batch.PayloadType]int64, len(g.Payloads)-1)
		for pt, rec := range g.Payloads {
			if pt == rootType {
				continue
			}
			cs, ce := childRowRange(childAbs[pt], minID, maxID)
			if cs == -1 {
				continue
			}
			chunkPayloads[pt] = rec.NewSlice(int64(cs), int64(ce))
			firstAbs[pt] = childAbs[pt][cs]
		}

		rg, err := batch.NewRecordGroup(g.Signal, chunkPayloads)
		if err != nil {
			return nil, err
		}
		out = append(out, &chunkInfo{group: rg, firstParentAbs: firstAbs})
	}

	g.Release()
	return out, nil
}

// childRowRange returns the contiguous [start, end) index range in an
// already-parent-grouped child payload whose absolute parent ids fall in
// [minID, maxID], or (-1, -1) if none do.
func childRowRange(absoluteParentIDs []int64, minID, maxID int64) (start, end int) {
	start = -1
	for i, id := range absoluteParentIDs {
		if id >= minID && id <= maxID {
			if start == -1 {
				start = i
			}
			end = i + 1
		}
	}
	if start == -1 {
		return -1, -1
	}
	return start, end
}

// firstParentAbsolutes computes, for every child payload of an unsplit
// group, the absolute parent id that belongs in its row 0 -- the value
// already stored there, decoded from the delta-encoded column.
func firstParentAbsolutes(g *batch.RecordGroup) map[batch.PayloadType]int64 {
	rootType, _ := batch.RootPayloadType(g.Signal)
	out := make(map[batch.PayloadType]int64, len(g.Payloads)-1)
	for pt, rec := range g.Payloads {
		if pt == rootType || rec.NumRows() == 0 {
			continue
		}
		abs, err := batch.DecodeDeltaParentIDs(rec)
		if err != nil || len(abs) == 0 {
			continue
		}
		out[pt] = abs[0]
	}
	return out
}

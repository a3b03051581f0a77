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

package rebatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/open-telemetry/otap-dataflow-go/pkg/batch"
)

// concatenate greedily packs consecutive chunks into merged groups until the
// next addition would exceed budget.MaxOutputRows or the per-payload byte
// budget (spec section 4.4 step 3).
func concatenate(signal batch.SignalType, chunks []*chunkInfo, budget Budget) ([]*batch.RecordGroup, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	var out []*batch.RecordGroup
	var pending []*chunkInfo
	var pendingRows int64

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		merged, err := mergeChunks(signal, pending, budget.MaxConcurrency)
		if err != nil {
			for _, c := range pending {
				c.release()
			}
			return err
		}
		out = append(out, merged)
		pending = nil
		pendingRows = 0
		return nil
	}

	for _, c := range chunks {
		rows := c.group.RootRowCount()

		fits := true
		if budget.MaxOutputRows != nil && pendingRows+rows > int64(*budget.MaxOutputRows) {
			fits = false
		}
		if fits && budget.MaxOutputBytes > 0 && len(pending) > 0 {
			if pendingByteSize(pending)+recordByteSize(c.group.RootPayload()) > budget.MaxOutputBytes {
				fits = false
			}
		}

		if !fits && len(pending) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		pending = append(pending, c)
		pendingRows += rows
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeChunks folds a run of chunks into one RecordGroup. The root payload
// is concatenated as-is; every child payload is concatenated with its
// first row, for every chunk after the first that carries that payload,
// rewritten to its chunk's recorded absolute parent id (spec section 4.4
// step 4).
//
// Every payload type is independent of every other, so they are
// concatenated concurrently, bounded by maxConcurrency (0 means one worker
// per payload type present), grounded on concurrentbatchprocessor's
// *semaphore.Weighted-gated export goroutines.
func mergeChunks(signal batch.SignalType, chunks []*chunkInfo, maxConcurrency int) (*batch.RecordGroup, error) {
	if len(chunks) == 1 {
		g := chunks[0].group
		return g, nil
	}

	rootType, err := batch.RootPayloadType(signal)
	if err != nil {
		return nil, err
	}

	payloadTypes := make([]batch.PayloadType, 0, len(chunks[0].group.Payloads))
	seen := make(map[batch.PayloadType]struct{})
	for _, c := range chunks {
		for pt := range c.group.Payloads {
			if _, ok := seen[pt]; !ok {
				seen[pt] = struct{}{}
				payloadTypes = append(payloadTypes, pt)
			}
		}
	}

	limit := maxConcurrency
	if limit <= 0 {
		limit = len(payloadTypes)
	}
	sem := semaphore.NewWeighted(int64(limit))

	var mu sync.Mutex
	merged := make(map[batch.PayloadType]arrow.Record, len(payloadTypes))

	g, ctx := errgroup.WithContext(context.Background())
	for _, pt := range payloadTypes {
		pt := pt
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			rec, err := concatPayload(pt, pt == rootType, chunks)
			if err != nil {
				return err
			}
			if rec != nil {
				mu.Lock()
				merged[pt] = rec
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, m := range merged {
			m.Release()
		}
		return nil, err
	}

	rg, err := batch.NewRecordGroup(signal, merged)
	for _, c := range chunks {
		c.release()
	}
	if err != nil {
		for _, m := range merged {
			m.Release()
		}
		return nil, err
	}
	return rg, nil
}

// concatPayload concatenates payload type pt across chunks, skipping
// chunks that don't carry it. For child payloads, every kept record after
// the first has its row-0 parent_id rewritten to the chunk's recorded
// absolute value before concatenation.
func concatPayload(pt batch.PayloadType, isRoot bool, chunks []*chunkInfo) (arrow.Record, error) {
	var recs []arrow.Record
	var releaseAfter []arrow.Record

	for _, c := range chunks {
		rec, ok := c.group.Payloads[pt]
		if !ok {
			continue
		}
		if !isRoot && len(recs) > 0 {
			if abs, ok := c.firstParentAbs[pt]; ok {
				patched, err := patchFirstParentID(rec, abs)
				if err != nil {
					for _, r := range releaseAfter {
						r.Release()
					}
					return nil, err
				}
				recs = append(recs, patched)
				releaseAfter = append(releaseAfter, patched)
				continue
			}
		}
		recs = append(recs, rec)
	}
	defer func() {
		for _, r := range releaseAfter {
			r.Release()
		}
	}()

	if len(recs) == 0 {
		return nil, nil
	}
	if len(recs) == 1 {
		recs[0].Retain()
		return recs[0], nil
	}

	schema := recs[0].Schema()
	numCols := int(schema.NumFields())
	mem := memory.NewGoAllocator()
	cols := make([]arrow.Array, numCols)
	var totalRows int64
	for ci := 0; ci < numCols; ci++ {
		arrs := make([]arrow.Array, len(recs))
		for ri, r := range recs {
			arrs[ri] = r.Column(ci)
		}
		out, err := array.Concatenate(arrs, mem)
		if err != nil {
			for _, c := range cols[:ci] {
				if c != nil {
					c.Release()
				}
			}
			return nil, fmt.Errorf("rebatch: concatenating column %q of payload %v: %w", schema.Field(ci).Name, pt, err)
		}
		cols[ci] = out
	}
	for _, r := range recs {
		totalRows += r.NumRows()
	}

	merged := array.NewRecord(schema, cols, totalRows)
	for _, c := range cols {
		c.Release()
	}
	return merged, nil
}

// patchFirstParentID returns a copy of rec with row 0 of its parent_id
// column replaced by absolute, preserving every other value and column.
func patchFirstParentID(rec arrow.Record, absolute int64) (arrow.Record, error) {
	idx := rec.Schema().FieldIndices(batch.ColumnParentID)
	if len(idx) == 0 {
		return nil, fmt.Errorf("rebatch: payload has no %s column", batch.ColumnParentID)
	}
	col, ok := rec.Column(idx[0]).(*array.Int64)
	if !ok {
		return nil, fmt.Errorf("rebatch: %s column is not int64", batch.ColumnParentID)
	}

	mem := memory.NewGoAllocator()
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.Reserve(int(rec.NumRows()))
	for i := 0; i < int(rec.NumRows()); i++ {
		if i == 0 {
			b.Append(absolute)
			continue
		}
		if col.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(col.Value(i))
	}
	patched := b.NewInt64Array()
	defer patched.Release()

	cols := make([]arrow.Array, rec.NumCols())
	for i := 0; i < int(rec.NumCols()); i++ {
		if i == idx[0] {
			cols[i] = patched
			continue
		}
		cols[i] = rec.Column(i)
	}
	return array.NewRecord(rec.Schema(), cols, rec.NumRows()), nil
}

// recordByteSize estimates a record's footprint by summing every column's
// underlying buffer lengths -- an approximation of the per-payload byte
// budget check (spec section 4.4 step 3), since Arrow does not expose an
// authoritative serialized size without a full IPC encode.
func recordByteSize(rec arrow.Record) int64 {
	if rec == nil {
		return 0
	}
	var total int64
	for i := 0; i < int(rec.NumCols()); i++ {
		for _, buf := range rec.Column(i).Data().Buffers() {
			if buf != nil {
				total += int64(buf.Len())
			}
		}
	}
	return total
}

func pendingByteSize(chunks []*chunkInfo) int64 {
	var total int64
	for _, c := range chunks {
		total += recordByteSize(c.group.RootPayload())
	}
	return total
}

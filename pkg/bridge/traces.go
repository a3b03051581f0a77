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

package bridge

import (
	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/open-telemetry/otap-dataflow-go/pkg/batch"
)

var spansRootSchema = arrow.NewSchema([]arrow.Field{
	{Name: batch.ColumnID, Type: arrow.PrimitiveTypes.Int64},
	{Name: colResourceSchemaURL, Type: arrow.BinaryTypes.String},
	{Name: colScopeName, Type: arrow.BinaryTypes.String},
	{Name: colScopeVersion, Type: arrow.BinaryTypes.String},
	{Name: "trace_id", Type: arrow.BinaryTypes.Binary},
	{Name: "span_id", Type: arrow.BinaryTypes.Binary},
	{Name: "parent_span_id", Type: arrow.BinaryTypes.Binary},
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "kind", Type: arrow.PrimitiveTypes.Int32},
	{Name: "start_time_unix_nano", Type: arrow.PrimitiveTypes.Int64},
	{Name: "end_time_unix_nano", Type: arrow.PrimitiveTypes.Int64},
	{Name: "status_code", Type: arrow.PrimitiveTypes.Int32},
	{Name: "status_message", Type: arrow.BinaryTypes.String},
}, nil)

// spanEventsSchema and spanLinksSchema carry their own monotonic id (so
// EventAttrs/LinkAttrs can reference them) alongside the parent_id
// referencing their owning span.
var spanEventsSchema = arrow.NewSchema([]arrow.Field{
	{Name: batch.ColumnID, Type: arrow.PrimitiveTypes.Int64},
	{Name: batch.ColumnParentID, Type: arrow.PrimitiveTypes.Int64},
	{Name: "time_unix_nano", Type: arrow.PrimitiveTypes.Int64},
	{Name: "name", Type: arrow.BinaryTypes.String},
}, nil)

var spanLinksSchema = arrow.NewSchema([]arrow.Field{
	{Name: batch.ColumnID, Type: arrow.PrimitiveTypes.Int64},
	{Name: batch.ColumnParentID, Type: arrow.PrimitiveTypes.Int64},
	{Name: "trace_id", Type: arrow.BinaryTypes.Binary},
	{Name: "span_id", Type: arrow.BinaryTypes.Binary},
}, nil)

// DecodeTraces implements spec section 4.5's OTLP -> OTAP decode for the
// traces signal, following the same anchor-row attribute attachment scheme
// as DecodeLogs, plus span-scoped event/link children each carrying their
// own id so event/link attributes can reference them in turn.
func DecodeTraces(traces ptrace.Traces) (*batch.RecordGroup, error) {
	mem := memory.NewGoAllocator()

	idB := array.NewInt64Builder(mem)
	defer idB.Release()
	urlB := array.NewStringBuilder(mem)
	defer urlB.Release()
	scopeNameB := array.NewStringBuilder(mem)
	defer scopeNameB.Release()
	scopeVerB := array.NewStringBuilder(mem)
	defer scopeVerB.Release()
	traceIDB := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer traceIDB.Release()
	spanIDB := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer spanIDB.Release()
	parentSpanIDB := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer parentSpanIDB.Release()
	nameB := array.NewStringBuilder(mem)
	defer nameB.Release()
	kindB := array.NewInt32Builder(mem)
	defer kindB.Release()
	startB := array.NewInt64Builder(mem)
	defer startB.Release()
	endB := array.NewInt64Builder(mem)
	defer endB.Release()
	statusCodeB := array.NewInt32Builder(mem)
	defer statusCodeB.Release()
	statusMsgB := array.NewStringBuilder(mem)
	defer statusMsgB.Release()

	resAttrs := newAttrBuilder(mem)
	defer resAttrs.release()
	scopeAttrs := newAttrBuilder(mem)
	defer scopeAttrs.release()
	spanAttrs := newAttrBuilder(mem)
	defer spanAttrs.release()
	eventAttrs := newAttrBuilder(mem)
	defer eventAttrs.release()
	linkAttrs := newAttrBuilder(mem)
	defer linkAttrs.release()

	eventIDB := array.NewInt64Builder(mem)
	defer eventIDB.Release()
	eventParentB := array.NewInt64Builder(mem)
	defer eventParentB.Release()
	eventTimeB := array.NewInt64Builder(mem)
	defer eventTimeB.Release()
	eventNameB := array.NewStringBuilder(mem)
	defer eventNameB.Release()
	var eventRows, eventPrevParent int64

	linkIDB := array.NewInt64Builder(mem)
	defer linkIDB.Release()
	linkParentB := array.NewInt64Builder(mem)
	defer linkParentB.Release()
	linkTraceIDB := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer linkTraceIDB.Release()
	linkSpanIDB := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer linkSpanIDB.Release()
	var linkRows, linkPrevParent int64

	var nextSpanID, nextEventID, nextLinkID int64
	var rows int64

	rss := traces.ResourceSpans()
	for i := 0; i < rss.Len(); i++ {
		rs := rss.At(i)
		resourceAnchor := int64(-1)

		sss := rs.ScopeSpans()
		for j := 0; j < sss.Len(); j++ {
			ss := sss.At(j)
			scopeAnchor := int64(-1)

			spans := ss.Spans()
			for k := 0; k < spans.Len(); k++ {
				sp := spans.At(k)
				id := nextSpanID
				nextSpanID++
				rows++

				tid := sp.TraceID()
				sid := sp.SpanID()
				psid := sp.ParentSpanID()

				idB.Append(id)
				urlB.Append(rs.SchemaUrl())
				scopeNameB.Append(ss.Scope().Name())
				scopeVerB.Append(ss.Scope().Version())
				traceIDB.Append(tid[:])
				spanIDB.Append(sid[:])
				parentSpanIDB.Append(psid[:])
				nameB.Append(sp.Name())
				kindB.Append(int32(sp.Kind()))
				startB.Append(int64(sp.StartTimestamp()))
				endB.Append(int64(sp.EndTimestamp()))
				statusCodeB.Append(int32(sp.Status().Code()))
				statusMsgB.Append(sp.Status().Message())

				if resourceAnchor == -1 {
					resourceAnchor = id
					if err := rangeAppend(rs.Resource().Attributes(), resAttrs, resourceAnchor); err != nil {
						return nil, err
					}
				}
				if scopeAnchor == -1 {
					scopeAnchor = id
					if err := rangeAppend(ss.Scope().Attributes(), scopeAttrs, scopeAnchor); err != nil {
						return nil, err
					}
				}
				if err := rangeAppend(sp.Attributes(), spanAttrs, id); err != nil {
					return nil, err
				}

				evs := sp.Events()
				for e := 0; e < evs.Len(); e++ {
					ev := evs.At(e)
					evID := nextEventID
					nextEventID++
					eventIDB.Append(evID)
					eventParentB.Append(id - eventPrevParent)
					eventPrevParent = id
					eventTimeB.Append(int64(ev.Timestamp()))
					eventNameB.Append(ev.Name())
					eventRows++
					if err := rangeAppend(ev.Attributes(), eventAttrs, evID); err != nil {
						return nil, err
					}
				}

				lks := sp.Links()
				for l := 0; l < lks.Len(); l++ {
					lk := lks.At(l)
					lkID := nextLinkID
					nextLinkID++
					linkIDB.Append(lkID)
					linkParentB.Append(id - linkPrevParent)
					linkPrevParent = id
					ltid := lk.TraceID()
					lsid := lk.SpanID()
					linkTraceIDB.Append(ltid[:])
					linkSpanIDB.Append(lsid[:])
					linkRows++
					if err := rangeAppend(lk.Attributes(), linkAttrs, lkID); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	rootCols := []arrow.Array{
		idB.NewInt64Array(), urlB.NewStringArray(), scopeNameB.NewStringArray(), scopeVerB.NewStringArray(),
		traceIDB.NewBinaryArray(), spanIDB.NewBinaryArray(), parentSpanIDB.NewBinaryArray(),
		nameB.NewStringArray(), kindB.NewInt32Array(), startB.NewInt64Array(), endB.NewInt64Array(),
		statusCodeB.NewInt32Array(), statusMsgB.NewStringArray(),
	}
	rootRec := array.NewRecord(spansRootSchema, rootCols, rows)
	for _, c := range rootCols {
		c.Release()
	}

	eventCols := []arrow.Array{eventIDB.NewInt64Array(), eventParentB.NewInt64Array(), eventTimeB.NewInt64Array(), eventNameB.NewStringArray()}
	eventsRec := array.NewRecord(spanEventsSchema, eventCols, eventRows)
	for _, c := range eventCols {
		c.Release()
	}

	linkCols := []arrow.Array{linkIDB.NewInt64Array(), linkParentB.NewInt64Array(), linkTraceIDB.NewBinaryArray(), linkSpanIDB.NewBinaryArray()}
	linksRec := array.NewRecord(spanLinksSchema, linkCols, linkRows)
	for _, c := range linkCols {
		c.Release()
	}

	return batch.NewRecordGroup(batch.SignalTraces, map[batch.PayloadType]arrow.Record{
		batch.PayloadSpans:          rootRec,
		batch.PayloadResourceAttrs:  resAttrs.newRecord(),
		batch.PayloadScopeAttrs:     scopeAttrs.newRecord(),
		batch.PayloadSpanAttrs:      spanAttrs.newRecord(),
		batch.PayloadSpanEvents:     eventsRec,
		batch.PayloadSpanLinks:      linksRec,
		batch.PayloadEventAttrs:     eventAttrs.newRecord(),
		batch.PayloadLinkAttrs:      linkAttrs.newRecord(),
	})
}

// rangeAppend copies every entry of m into b, attributed to parentAbsolute,
// stopping at the first error.
func rangeAppend(m pcommon.Map, b *attrBuilder, parentAbsolute int64) error {
	var err error
	m.Range(func(k string, v pcommon.Value) bool {
		err = b.append(parentAbsolute, k, v)
		return err == nil
	})
	return err
}

// EncodeTraces implements spec section 4.5's OTAP -> OTLP encode for the
// traces signal, mirroring EncodeLogs's resource/scope boundary detection
// and cursor-based attribute attachment, plus per-span event/link cursors
// keyed off the span's own id.
func EncodeTraces(g *batch.RecordGroup) (ptrace.Traces, error) {
	out := ptrace.NewTraces()

	root := g.Payloads[batch.PayloadSpans]
	if root == nil || root.NumRows() == 0 {
		return out, nil
	}

	ids, err := batch.DecodeIDs(root)
	if err != nil {
		return out, err
	}

	resAttrCur, err := newAttrCursor(g.Payloads[batch.PayloadResourceAttrs])
	if err != nil {
		return out, err
	}
	scopeAttrCur, err := newAttrCursor(g.Payloads[batch.PayloadScopeAttrs])
	if err != nil {
		return out, err
	}
	spanAttrCur, err := newAttrCursor(g.Payloads[batch.PayloadSpanAttrs])
	if err != nil {
		return out, err
	}
	eventsCur, err := newAttrCursor(g.Payloads[batch.PayloadSpanEvents])
	if err != nil {
		return out, err
	}
	linksCur, err := newAttrCursor(g.Payloads[batch.PayloadSpanLinks])
	if err != nil {
		return out, err
	}
	eventAttrCur, err := newAttrCursor(g.Payloads[batch.PayloadEventAttrs])
	if err != nil {
		return out, err
	}
	linkAttrCur, err := newAttrCursor(g.Payloads[batch.PayloadLinkAttrs])
	if err != nil {
		return out, err
	}

	urlCol := columnByName(root, colResourceSchemaURL).(*array.String)
	scopeNameCol := columnByName(root, colScopeName).(*array.String)
	scopeVerCol := columnByName(root, colScopeVersion).(*array.String)
	traceIDCol := columnByName(root, "trace_id").(*array.Binary)
	spanIDCol := columnByName(root, "span_id").(*array.Binary)
	parentSpanIDCol := columnByName(root, "parent_span_id").(*array.Binary)
	nameCol := columnByName(root, "name").(*array.String)
	kindCol := columnByName(root, "kind").(*array.Int32)
	startCol := columnByName(root, "start_time_unix_nano").(*array.Int64)
	endCol := columnByName(root, "end_time_unix_nano").(*array.Int64)
	statusCodeCol := columnByName(root, "status_code").(*array.Int32)
	statusMsgCol := columnByName(root, "status_message").(*array.String)

	var curRS ptrace.ResourceSpans
	var curSS ptrace.ScopeSpans
	haveRS, haveSS := false, false
	var curURL, curScopeName string

	eventsRec := g.Payloads[batch.PayloadSpanEvents]
	var eventIDCol *array.Int64
	var eventTimeCol *array.Int64
	var eventNameCol *array.String
	if eventsRec != nil {
		eventIDCol = columnByName(eventsRec, batch.ColumnID).(*array.Int64)
		eventTimeCol = columnByName(eventsRec, "time_unix_nano").(*array.Int64)
		eventNameCol = columnByName(eventsRec, "name").(*array.String)
	}
	linksRec := g.Payloads[batch.PayloadSpanLinks]
	var linkIDCol *array.Int64
	var linkTraceIDCol, linkSpanIDCol *array.Binary
	if linksRec != nil {
		linkIDCol = columnByName(linksRec, batch.ColumnID).(*array.Int64)
		linkTraceIDCol = columnByName(linksRec, "trace_id").(*array.Binary)
		linkSpanIDCol = columnByName(linksRec, "span_id").(*array.Binary)
	}

	for row := 0; row < int(root.NumRows()); row++ {
		url := urlCol.Value(row)
		scopeName := scopeNameCol.Value(row)

		if !haveRS || url != curURL {
			curRS = out.ResourceSpans().AppendEmpty()
			curRS.SetSchemaUrl(url)
			haveRS, haveSS = true, false
			curURL = url
			if err := applyAttrs(resAttrCur, g.Payloads[batch.PayloadResourceAttrs], ids[row], curRS.Resource().Attributes()); err != nil {
				return out, err
			}
		}
		if !haveSS || scopeName != curScopeName {
			curSS = curRS.ScopeSpans().AppendEmpty()
			curSS.Scope().SetName(scopeName)
			curSS.Scope().SetVersion(scopeVerCol.Value(row))
			haveSS = true
			curScopeName = scopeName
			if err := applyAttrs(scopeAttrCur, g.Payloads[batch.PayloadScopeAttrs], ids[row], curSS.Scope().Attributes()); err != nil {
				return out, err
			}
		}

		sp := curSS.Spans().AppendEmpty()
		var tid pcommon.TraceID
		copy(tid[:], traceIDCol.Value(row))
		sp.SetTraceID(tid)
		var sid pcommon.SpanID
		copy(sid[:], spanIDCol.Value(row))
		sp.SetSpanID(sid)
		var psid pcommon.SpanID
		copy(psid[:], parentSpanIDCol.Value(row))
		sp.SetParentSpanID(psid)
		sp.SetName(nameCol.Value(row))
		sp.SetKind(ptrace.SpanKind(kindCol.Value(row)))
		sp.SetStartTimestamp(pcommon.Timestamp(startCol.Value(row)))
		sp.SetEndTimestamp(pcommon.Timestamp(endCol.Value(row)))
		sp.Status().SetCode(ptrace.StatusCode(statusCodeCol.Value(row)))
		sp.Status().SetMessage(statusMsgCol.Value(row))

		if err := applyAttrs(spanAttrCur, g.Payloads[batch.PayloadSpanAttrs], ids[row], sp.Attributes()); err != nil {
			return out, err
		}

		for _, er := range eventsCur.rowsFor(ids[row]) {
			ev := sp.Events().AppendEmpty()
			ev.SetTimestamp(pcommon.Timestamp(eventTimeCol.Value(er)))
			ev.SetName(eventNameCol.Value(er))
			if err := applyAttrs(eventAttrCur, g.Payloads[batch.PayloadEventAttrs], eventIDCol.Value(er), ev.Attributes()); err != nil {
				return out, err
			}
		}
		for _, lr := range linksCur.rowsFor(ids[row]) {
			lk := sp.Links().AppendEmpty()
			var ltid pcommon.TraceID
			copy(ltid[:], linkTraceIDCol.Value(lr))
			lk.SetTraceID(ltid)
			var lsid pcommon.SpanID
			copy(lsid[:], linkSpanIDCol.Value(lr))
			lk.SetSpanID(lsid)
			if err := applyAttrs(linkAttrCur, g.Payloads[batch.PayloadLinkAttrs], linkIDCol.Value(lr), lk.Attributes()); err != nil {
				return out, err
			}
		}
	}

	return out, nil
}

// applyAttrs decodes every row cur yields for parentID and copies it into
// dst.
func applyAttrs(cur *attrCursor, rec arrow.Record, parentID int64, dst pcommon.Map) error {
	for _, r := range cur.rowsFor(parentID) {
		k, v, err := decodeAttrRow(rec, r)
		if err != nil {
			return err
		}
		v.CopyTo(dst.PutEmpty(k))
	}
	return nil
}

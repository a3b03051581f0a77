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
	"go.opentelemetry.io/collector/pdata/plog"

	"github.com/open-telemetry/otap-dataflow-go/pkg/batch"
)

const (
	colResourceSchemaURL = "resource_schema_url"
	colScopeName         = "scope_name"
	colScopeVersion      = "scope_version"
	colSeverityNumber    = "severity_number"
	colSeverityText      = "severity_text"
	colBody              = "body"
	colTimeUnixNano      = "time_unix_nano"
)

var logsRootSchema = arrow.NewSchema([]arrow.Field{
	{Name: batch.ColumnID, Type: arrow.PrimitiveTypes.Int64},
	{Name: colResourceSchemaURL, Type: arrow.BinaryTypes.String},
	{Name: colScopeName, Type: arrow.BinaryTypes.String},
	{Name: colScopeVersion, Type: arrow.BinaryTypes.String},
	{Name: colSeverityNumber, Type: arrow.PrimitiveTypes.Int32},
	{Name: colSeverityText, Type: arrow.BinaryTypes.String},
	{Name: colBody, Type: arrow.BinaryTypes.String},
	{Name: colTimeUnixNano, Type: arrow.PrimitiveTypes.Int64},
}, nil)

// DecodeLogs implements spec section 4.5's OTLP -> OTAP decode for the logs
// signal: one Consumer pass over the resource/scope/record tree, assigning
// each log record a monotonic id and attaching resource/scope/log
// attributes to the row that first established that resource or scope.
func DecodeLogs(logs plog.Logs) (*batch.RecordGroup, error) {
	mem := memory.NewGoAllocator()

	idB := array.NewInt64Builder(mem)
	defer idB.Release()
	urlB := array.NewStringBuilder(mem)
	defer urlB.Release()
	scopeNameB := array.NewStringBuilder(mem)
	defer scopeNameB.Release()
	scopeVerB := array.NewStringBuilder(mem)
	defer scopeVerB.Release()
	sevNumB := array.NewInt32Builder(mem)
	defer sevNumB.Release()
	sevTxtB := array.NewStringBuilder(mem)
	defer sevTxtB.Release()
	bodyB := array.NewStringBuilder(mem)
	defer bodyB.Release()
	tsB := array.NewInt64Builder(mem)
	defer tsB.Release()

	resAttrs := newAttrBuilder(mem)
	defer resAttrs.release()
	scopeAttrs := newAttrBuilder(mem)
	defer scopeAttrs.release()
	logAttrs := newAttrBuilder(mem)
	defer logAttrs.release()

	var nextID int64
	var rows int64

	rls := logs.ResourceLogs()
	for i := 0; i < rls.Len(); i++ {
		rl := rls.At(i)
		resourceAnchor := int64(-1)

		sls := rl.ScopeLogs()
		for j := 0; j < sls.Len(); j++ {
			sl := sls.At(j)
			scopeAnchor := int64(-1)

			lrs := sl.LogRecords()
			for k := 0; k < lrs.Len(); k++ {
				lr := lrs.At(k)
				id := nextID
				nextID++
				rows++

				idB.Append(id)
				urlB.Append(rl.SchemaUrl())
				scopeNameB.Append(sl.Scope().Name())
				scopeVerB.Append(sl.Scope().Version())
				sevNumB.Append(int32(lr.SeverityNumber()))
				sevTxtB.Append(lr.SeverityText())
				bodyB.Append(lr.Body().AsString())
				tsB.Append(int64(lr.Timestamp()))

				if resourceAnchor == -1 {
					resourceAnchor = id
					var err error
					rl.Resource().Attributes().Range(func(k string, v pcommon.Value) bool {
						err = resAttrs.append(resourceAnchor, k, v)
						return err == nil
					})
					if err != nil {
						return nil, err
					}
				}
				if scopeAnchor == -1 {
					scopeAnchor = id
					var err error
					sl.Scope().Attributes().Range(func(k string, v pcommon.Value) bool {
						err = scopeAttrs.append(scopeAnchor, k, v)
						return err == nil
					})
					if err != nil {
						return nil, err
					}
				}

				var err error
				lr.Attributes().Range(func(k string, v pcommon.Value) bool {
					err = logAttrs.append(id, k, v)
					return err == nil
				})
				if err != nil {
					return nil, err
				}
			}
		}
	}

	rootCols := []arrow.Array{
		idB.NewInt64Array(), urlB.NewStringArray(), scopeNameB.NewStringArray(),
		scopeVerB.NewStringArray(), sevNumB.NewInt32Array(), sevTxtB.NewStringArray(),
		bodyB.NewStringArray(), tsB.NewInt64Array(),
	}
	rootRec := array.NewRecord(logsRootSchema, rootCols, rows)
	for _, c := range rootCols {
		c.Release()
	}

	return batch.NewRecordGroup(batch.SignalLogs, map[batch.PayloadType]arrow.Record{
		batch.PayloadLogs:          rootRec,
		batch.PayloadResourceAttrs: resAttrs.newRecord(),
		batch.PayloadScopeAttrs:    scopeAttrs.newRecord(),
		batch.PayloadLogAttrs:      logAttrs.newRecord(),
	})
}

// EncodeLogs implements spec section 4.5's OTAP -> OTLP encode for the logs
// signal: a stateful walk of the root record that opens a new ResourceLogs
// whenever resource_schema_url changes and a new ScopeLogs whenever
// scope_name changes, attaching attribute batches via a sorted cursor.
func EncodeLogs(g *batch.RecordGroup) (plog.Logs, error) {
	out := plog.NewLogs()

	root := g.Payloads[batch.PayloadLogs]
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
	logAttrCur, err := newAttrCursor(g.Payloads[batch.PayloadLogAttrs])
	if err != nil {
		return out, err
	}

	urlCol := columnByName(root, colResourceSchemaURL).(*array.String)
	scopeNameCol := columnByName(root, colScopeName).(*array.String)
	scopeVerCol := columnByName(root, colScopeVersion).(*array.String)
	sevNumCol := columnByName(root, colSeverityNumber).(*array.Int32)
	sevTxtCol := columnByName(root, colSeverityText).(*array.String)
	bodyCol := columnByName(root, colBody).(*array.String)
	tsCol := columnByName(root, colTimeUnixNano).(*array.Int64)

	var curRL plog.ResourceLogs
	var curSL plog.ScopeLogs
	haveRL, haveSL := false, false
	var curURL, curScopeName string

	for row := 0; row < int(root.NumRows()); row++ {
		url := urlCol.Value(row)
		scopeName := scopeNameCol.Value(row)

		if !haveRL || url != curURL {
			curRL = out.ResourceLogs().AppendEmpty()
			curRL.SetSchemaUrl(url)
			haveRL = true
			curURL = url
			haveSL = false
			for _, r := range resAttrCur.rowsFor(ids[row]) {
				k, v, err := decodeAttrRow(g.Payloads[batch.PayloadResourceAttrs], r)
				if err != nil {
					return out, err
				}
				v.CopyTo(curRL.Resource().Attributes().PutEmpty(k))
			}
		}
		if !haveSL || scopeName != curScopeName {
			curSL = curRL.ScopeLogs().AppendEmpty()
			curSL.Scope().SetName(scopeName)
			curSL.Scope().SetVersion(scopeVerCol.Value(row))
			haveSL = true
			curScopeName = scopeName
			for _, r := range scopeAttrCur.rowsFor(ids[row]) {
				k, v, err := decodeAttrRow(g.Payloads[batch.PayloadScopeAttrs], r)
				if err != nil {
					return out, err
				}
				v.CopyTo(curSL.Scope().Attributes().PutEmpty(k))
			}
		}

		lr := curSL.LogRecords().AppendEmpty()
		lr.SetSeverityNumber(plog.SeverityNumber(sevNumCol.Value(row)))
		lr.SetSeverityText(sevTxtCol.Value(row))
		lr.Body().SetStr(bodyCol.Value(row))
		lr.SetTimestamp(pcommon.Timestamp(tsCol.Value(row)))

		for _, r := range logAttrCur.rowsFor(ids[row]) {
			k, v, err := decodeAttrRow(g.Payloads[batch.PayloadLogAttrs], r)
			if err != nil {
				return out, err
			}
			v.CopyTo(lr.Attributes().PutEmpty(k))
		}
	}

	return out, nil
}

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
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"go.opentelemetry.io/collector/pdata/pcommon"

	"github.com/open-telemetry/otap-dataflow-go/pkg/batch"
	"github.com/open-telemetry/otap-dataflow-go/pkg/otaperrors"
)

// attrSchema is the Arrow schema shared by every attribute payload type
// (ResourceAttrs, ScopeAttrs, LogAttrs, SpanAttrs, EventAttrs, LinkAttrs):
// a delta-encoded parent_id, a key, and exactly one non-null typed value
// column per row (spec section 3.1).
var attrSchema = arrow.NewSchema([]arrow.Field{
	{Name: batch.ColumnParentID, Type: arrow.PrimitiveTypes.Int64},
	{Name: batch.ColumnKey, Type: arrow.BinaryTypes.String},
	{Name: batch.ColumnValueStr, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: batch.ColumnValueInt, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: batch.ColumnValueDouble, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: batch.ColumnValueBool, Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
	{Name: batch.ColumnValueBytes, Type: arrow.BinaryTypes.Binary, Nullable: true},
	{Name: batch.ColumnValueSer, Type: arrow.BinaryTypes.Binary, Nullable: true},
}, nil)

// attrBuilder accumulates one attribute payload's rows.
type attrBuilder struct {
	mem    memory.Allocator
	parent *array.Int64Builder
	key    *array.StringBuilder
	str    *array.StringBuilder
	intv   *array.Int64Builder
	dbl    *array.Float64Builder
	bl     *array.BooleanBuilder
	bytesv *array.BinaryBuilder
	ser    *array.BinaryBuilder
	rows   int64
	prev   int64
}

func newAttrBuilder(mem memory.Allocator) *attrBuilder {
	return &attrBuilder{
		mem:    mem,
		parent: array.NewInt64Builder(mem),
		key:    array.NewStringBuilder(mem),
		str:    array.NewStringBuilder(mem),
		intv:   array.NewInt64Builder(mem),
		dbl:    array.NewFloat64Builder(mem),
		bl:     array.NewBooleanBuilder(mem),
		bytesv: array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary),
		ser:    array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary),
	}
}

// append adds one attribute row, with parentAbsolute the absolute id of the
// row this attribute belongs to -- the builder delta-encodes it against the
// previous row appended (spec section 4.5: "writing parent_id as the delta
// from the previous child row sharing the same parent").
func (b *attrBuilder) append(parentAbsolute int64, key string, v pcommon.Value) error {
	b.parent.Append(parentAbsolute - b.prev)
	b.prev = parentAbsolute
	b.key.Append(key)
	b.rows++

	switch v.Type() {
	case pcommon.ValueTypeStr:
		b.str.Append(v.Str())
	case pcommon.ValueTypeInt:
		b.intv.Append(v.Int())
	case pcommon.ValueTypeDouble:
		b.dbl.Append(v.Double())
	case pcommon.ValueTypeBool:
		b.bl.Append(v.Bool())
	case pcommon.ValueTypeBytes:
		b.bytesv.Append(v.Bytes().AsRaw())
	case pcommon.ValueTypeSlice, pcommon.ValueTypeMap:
		raw, err := encodeSer(v)
		if err != nil {
			return &otaperrors.RuntimeError{Kind: otaperrors.IOError, Err: err}
		}
		b.ser.Append(raw)
	case pcommon.ValueTypeEmpty:
		// every typed column stays null; a bare presence/absence marker.
	default:
		return fmt.Errorf("bridge: unsupported attribute value type %v for key %q", v.Type(), key)
	}
	for _, bld := range []array.Builder{b.str, b.intv, b.dbl, b.bl, b.bytesv, b.ser} {
		if int64(bld.Len()) < b.rows {
			bld.AppendNull()
		}
	}
	return nil
}

func (b *attrBuilder) newRecord() arrow.Record {
	cols := []arrow.Array{
		b.parent.NewInt64Array(),
		b.key.NewStringArray(),
		b.str.NewStringArray(),
		b.intv.NewInt64Array(),
		b.dbl.NewFloat64Array(),
		b.bl.NewBooleanArray(),
		b.bytesv.NewBinaryArray(),
		b.ser.NewBinaryArray(),
	}
	rec := array.NewRecord(attrSchema, cols, b.rows)
	for _, c := range cols {
		c.Release()
	}
	return rec
}

func (b *attrBuilder) release() {
	b.parent.Release()
	b.key.Release()
	b.str.Release()
	b.intv.Release()
	b.dbl.Release()
	b.bl.Release()
	b.bytesv.Release()
	b.ser.Release()
}

// decodeAttrRow reads back row i of an attribute record as a (key, value)
// pair, reconstructing nested values from the "ser" column (spec section
// 4.5's typed decode table, in reverse).
func decodeAttrRow(rec arrow.Record, row int) (string, pcommon.Value, error) {
	keyCol, ok := columnByName(rec, batch.ColumnKey).(*array.String)
	if !ok {
		return "", pcommon.Value{}, fmt.Errorf("bridge: attribute record missing %s column", batch.ColumnKey)
	}
	key := keyCol.Value(row)

	if col, ok := columnByName(rec, batch.ColumnValueStr).(*array.String); ok && !col.IsNull(row) {
		return key, pcommon.NewValueStr(col.Value(row)), nil
	}
	if col, ok := columnByName(rec, batch.ColumnValueInt).(*array.Int64); ok && !col.IsNull(row) {
		return key, pcommon.NewValueInt(col.Value(row)), nil
	}
	if col, ok := columnByName(rec, batch.ColumnValueDouble).(*array.Float64); ok && !col.IsNull(row) {
		return key, pcommon.NewValueDouble(col.Value(row)), nil
	}
	if col, ok := columnByName(rec, batch.ColumnValueBool).(*array.Boolean); ok && !col.IsNull(row) {
		return key, pcommon.NewValueBool(col.Value(row)), nil
	}
	if col, ok := columnByName(rec, batch.ColumnValueBytes).(*array.Binary); ok && !col.IsNull(row) {
		v := pcommon.NewValueBytes()
		v.Bytes().FromRaw(col.Value(row))
		return key, v, nil
	}
	if col, ok := columnByName(rec, batch.ColumnValueSer).(*array.Binary); ok && !col.IsNull(row) {
		v, err := decodeSer(col.Value(row))
		return key, v, err
	}
	return key, pcommon.NewValueEmpty(), nil
}

func columnByName(rec arrow.Record, name string) arrow.Array {
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil
	}
	return rec.Column(idx[0])
}

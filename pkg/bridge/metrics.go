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
	"go.opentelemetry.io/collector/pdata/pmetric"

	"github.com/open-telemetry/otap-dataflow-go/pkg/batch"
)

var metricsRootSchema = arrow.NewSchema([]arrow.Field{
	{Name: batch.ColumnID, Type: arrow.PrimitiveTypes.Int64},
	{Name: colResourceSchemaURL, Type: arrow.BinaryTypes.String},
	{Name: colScopeName, Type: arrow.BinaryTypes.String},
	{Name: colScopeVersion, Type: arrow.BinaryTypes.String},
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "description", Type: arrow.BinaryTypes.String},
	{Name: "unit", Type: arrow.BinaryTypes.String},
	{Name: "type", Type: arrow.PrimitiveTypes.Int32}, // 0=gauge, 1=sum
	{Name: "is_monotonic", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "aggregation_temporality", Type: arrow.PrimitiveTypes.Int32},
}, nil)

// dataPointsSchema carries one row per number data point, with its
// attributes CBOR-serialized into a single "ser" column rather than a
// separate attribute payload type, since datapoint attributes have no
// registered child payload of their own (spec section 3.1's hierarchy
// stops at NumberDataPoints for metrics).
var dataPointsSchema = arrow.NewSchema([]arrow.Field{
	{Name: batch.ColumnParentID, Type: arrow.PrimitiveTypes.Int64},
	{Name: "time_unix_nano", Type: arrow.PrimitiveTypes.Int64},
	{Name: "value_double", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "value_int", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: batch.ColumnValueSer, Type: arrow.BinaryTypes.Binary, Nullable: true},
}, nil)

const (
	metricTypeGauge int32 = 0
	metricTypeSum   int32 = 1
)

// DecodeMetrics implements spec section 4.5's OTLP -> OTAP decode for the
// metrics signal, restricted to Gauge and Sum (the number-valued metric
// types); histogram/summary/exponential-histogram are out of scope for
// this bridge (spec section 1's "Non-goals" does not name metrics
// aggregation types individually, but the columnar NumberDataPoints
// payload type defined by the record-group model only covers number
// points).
func DecodeMetrics(metrics pmetric.Metrics) (*batch.RecordGroup, error) {
	mem := memory.NewGoAllocator()

	idB := array.NewInt64Builder(mem)
	defer idB.Release()
	urlB := array.NewStringBuilder(mem)
	defer urlB.Release()
	scopeNameB := array.NewStringBuilder(mem)
	defer scopeNameB.Release()
	scopeVerB := array.NewStringBuilder(mem)
	defer scopeVerB.Release()
	nameB := array.NewStringBuilder(mem)
	defer nameB.Release()
	descB := array.NewStringBuilder(mem)
	defer descB.Release()
	unitB := array.NewStringBuilder(mem)
	defer unitB.Release()
	typeB := array.NewInt32Builder(mem)
	defer typeB.Release()
	monoB := array.NewBooleanBuilder(mem)
	defer monoB.Release()
	tempB := array.NewInt32Builder(mem)
	defer tempB.Release()

	dpParentB := array.NewInt64Builder(mem)
	defer dpParentB.Release()
	dpTimeB := array.NewInt64Builder(mem)
	defer dpTimeB.Release()
	dpDoubleB := array.NewFloat64Builder(mem)
	defer dpDoubleB.Release()
	dpIntB := array.NewInt64Builder(mem)
	defer dpIntB.Release()
	dpSerB := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer dpSerB.Release()
	var dpRows, dpPrevParent int64

	resAttrs := newAttrBuilder(mem)
	defer resAttrs.release()
	scopeAttrs := newAttrBuilder(mem)
	defer scopeAttrs.release()

	var nextID int64
	var rows int64

	appendDP := func(parent int64, ts int64, hasDouble bool, dv float64, hasInt bool, iv int64, attrs pcommon.Map) {
		dpParentB.Append(parent - dpPrevParent)
		dpPrevParent = parent
		dpTimeB.Append(ts)
		if hasDouble {
			dpDoubleB.Append(dv)
		} else {
			dpDoubleB.AppendNull()
		}
		if hasInt {
			dpIntB.Append(iv)
		} else {
			dpIntB.AppendNull()
		}
		if attrs.Len() > 0 {
			m := pcommon.NewValueMap()
			attrs.CopyTo(m.Map())
			raw, err := encodeSer(m)
			if err == nil {
				dpSerB.Append(raw)
			} else {
				dpSerB.AppendNull()
			}
		} else {
			dpSerB.AppendNull()
		}
		dpRows++
	}

	rms := metrics.ResourceMetrics()
	for i := 0; i < rms.Len(); i++ {
		rm := rms.At(i)
		resourceAnchor := int64(-1)

		sms := rm.ScopeMetrics()
		for j := 0; j < sms.Len(); j++ {
			sm := sms.At(j)
			scopeAnchor := int64(-1)

			ms := sm.Metrics()
			for k := 0; k < ms.Len(); k++ {
				m := ms.At(k)
				id := nextID
				nextID++
				rows++

				idB.Append(id)
				urlB.Append(rm.SchemaUrl())
				scopeNameB.Append(sm.Scope().Name())
				scopeVerB.Append(sm.Scope().Version())
				nameB.Append(m.Name())
				descB.Append(m.Description())
				unitB.Append(m.Unit())

				if resourceAnchor == -1 {
					resourceAnchor = id
					if err := rangeAppend(rm.Resource().Attributes(), resAttrs, resourceAnchor); err != nil {
						return nil, err
					}
				}
				if scopeAnchor == -1 {
					scopeAnchor = id
					if err := rangeAppend(sm.Scope().Attributes(), scopeAttrs, scopeAnchor); err != nil {
						return nil, err
					}
				}

				switch m.Type() {
				case pmetric.MetricTypeGauge:
					typeB.Append(metricTypeGauge)
					monoB.Append(false)
					tempB.Append(int32(pmetric.AggregationTemporalityUnspecified))
					dps := m.Gauge().DataPoints()
					for d := 0; d < dps.Len(); d++ {
						dp := dps.At(d)
						switch dp.ValueType() {
						case pmetric.NumberDataPointValueTypeDouble:
							appendDP(id, int64(dp.Timestamp()), true, dp.DoubleValue(), false, 0, dp.Attributes())
						default:
							appendDP(id, int64(dp.Timestamp()), false, 0, true, dp.IntValue(), dp.Attributes())
						}
					}
				case pmetric.MetricTypeSum:
					typeB.Append(metricTypeSum)
					monoB.Append(m.Sum().IsMonotonic())
					tempB.Append(int32(m.Sum().AggregationTemporality()))
					dps := m.Sum().DataPoints()
					for d := 0; d < dps.Len(); d++ {
						dp := dps.At(d)
						switch dp.ValueType() {
						case pmetric.NumberDataPointValueTypeDouble:
							appendDP(id, int64(dp.Timestamp()), true, dp.DoubleValue(), false, 0, dp.Attributes())
						default:
							appendDP(id, int64(dp.Timestamp()), false, 0, true, dp.IntValue(), dp.Attributes())
						}
					}
				default:
					typeB.Append(-1)
					monoB.Append(false)
					tempB.Append(int32(pmetric.AggregationTemporalityUnspecified))
				}
			}
		}
	}

	rootCols := []arrow.Array{
		idB.NewInt64Array(), urlB.NewStringArray(), scopeNameB.NewStringArray(), scopeVerB.NewStringArray(),
		nameB.NewStringArray(), descB.NewStringArray(), unitB.NewStringArray(),
		typeB.NewInt32Array(), monoB.NewBooleanArray(), tempB.NewInt32Array(),
	}
	rootRec := array.NewRecord(metricsRootSchema, rootCols, rows)
	for _, c := range rootCols {
		c.Release()
	}

	dpCols := []arrow.Array{
		dpParentB.NewInt64Array(), dpTimeB.NewInt64Array(), dpDoubleB.NewFloat64Array(),
		dpIntB.NewInt64Array(), dpSerB.NewBinaryArray(),
	}
	dpRec := array.NewRecord(dataPointsSchema, dpCols, dpRows)
	for _, c := range dpCols {
		c.Release()
	}

	return batch.NewRecordGroup(batch.SignalMetrics, map[batch.PayloadType]arrow.Record{
		batch.PayloadMetrics:         rootRec,
		batch.PayloadResourceAttrs:   resAttrs.newRecord(),
		batch.PayloadScopeAttrs:      scopeAttrs.newRecord(),
		batch.PayloadNumberDataPoints: dpRec,
	})
}

// EncodeMetrics implements spec section 4.5's OTAP -> OTLP encode for the
// metrics signal, mirroring EncodeLogs's resource/scope boundary detection.
func EncodeMetrics(g *batch.RecordGroup) (pmetric.Metrics, error) {
	out := pmetric.NewMetrics()

	root := g.Payloads[batch.PayloadMetrics]
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
	dpCur, err := newAttrCursor(g.Payloads[batch.PayloadNumberDataPoints])
	if err != nil {
		return out, err
	}

	urlCol := columnByName(root, colResourceSchemaURL).(*array.String)
	scopeNameCol := columnByName(root, colScopeName).(*array.String)
	scopeVerCol := columnByName(root, colScopeVersion).(*array.String)
	nameCol := columnByName(root, "name").(*array.String)
	descCol := columnByName(root, "description").(*array.String)
	unitCol := columnByName(root, "unit").(*array.String)
	typeCol := columnByName(root, "type").(*array.Int32)
	monoCol := columnByName(root, "is_monotonic").(*array.Boolean)
	tempCol := columnByName(root, "aggregation_temporality").(*array.Int32)

	dpRec := g.Payloads[batch.PayloadNumberDataPoints]
	var dpTimeCol, dpIntCol *array.Int64
	var dpDoubleCol *array.Float64
	var dpSerCol *array.Binary
	if dpRec != nil {
		dpTimeCol = columnByName(dpRec, "time_unix_nano").(*array.Int64)
		dpDoubleCol = columnByName(dpRec, "value_double").(*array.Float64)
		dpIntCol = columnByName(dpRec, "value_int").(*array.Int64)
		dpSerCol = columnByName(dpRec, batch.ColumnValueSer).(*array.Binary)
	}

	var curRM pmetric.ResourceMetrics
	var curSM pmetric.ScopeMetrics
	haveRM, haveSM := false, false
	var curURL, curScopeName string

	for row := 0; row < int(root.NumRows()); row++ {
		url := urlCol.Value(row)
		scopeName := scopeNameCol.Value(row)

		if !haveRM || url != curURL {
			curRM = out.ResourceMetrics().AppendEmpty()
			curRM.SetSchemaUrl(url)
			haveRM, haveSM = true, false
			curURL = url
			if err := applyAttrs(resAttrCur, g.Payloads[batch.PayloadResourceAttrs], ids[row], curRM.Resource().Attributes()); err != nil {
				return out, err
			}
		}
		if !haveSM || scopeName != curScopeName {
			curSM = curRM.ScopeMetrics().AppendEmpty()
			curSM.Scope().SetName(scopeName)
			curSM.Scope().SetVersion(scopeVerCol.Value(row))
			haveSM = true
			curScopeName = scopeName
			if err := applyAttrs(scopeAttrCur, g.Payloads[batch.PayloadScopeAttrs], ids[row], curSM.Scope().Attributes()); err != nil {
				return out, err
			}
		}

		metric := curSM.Metrics().AppendEmpty()
		metric.SetName(nameCol.Value(row))
		metric.SetDescription(descCol.Value(row))
		metric.SetUnit(unitCol.Value(row))

		rowsForMetric := dpCur.rowsFor(ids[row])

		switch typeCol.Value(row) {
		case metricTypeSum:
			sum := metric.SetEmptySum()
			sum.SetIsMonotonic(monoCol.Value(row))
			sum.SetAggregationTemporality(pmetric.AggregationTemporality(tempCol.Value(row)))
			for _, r := range rowsForMetric {
				dp := sum.DataPoints().AppendEmpty()
				if err := fillDataPoint(dp, dpTimeCol, dpDoubleCol, dpIntCol, dpSerCol, r); err != nil {
					return out, err
				}
			}
		default:
			gauge := metric.SetEmptyGauge()
			for _, r := range rowsForMetric {
				dp := gauge.DataPoints().AppendEmpty()
				if err := fillDataPoint(dp, dpTimeCol, dpDoubleCol, dpIntCol, dpSerCol, r); err != nil {
					return out, err
				}
			}
		}
	}

	return out, nil
}

func fillDataPoint(dp pmetric.NumberDataPoint, timeCol *array.Int64, doubleCol *array.Float64, intCol *array.Int64, serCol *array.Binary, row int) error {
	dp.SetTimestamp(pcommon.Timestamp(timeCol.Value(row)))
	if !doubleCol.IsNull(row) {
		dp.SetDoubleValue(doubleCol.Value(row))
	} else if !intCol.IsNull(row) {
		dp.SetIntValue(intCol.Value(row))
	}
	if !serCol.IsNull(row) {
		v, err := decodeSer(serCol.Value(row))
		if err != nil {
			return err
		}
		if v.Type() == pcommon.ValueTypeMap {
			v.Map().CopyTo(dp.Attributes())
		}
	}
	return nil
}

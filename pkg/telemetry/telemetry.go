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

// Package telemetry implements the scoped metric-set registry behind the
// effect handler's register_metrics<T>() (spec section 4.1), backed by the
// real go.opentelemetry.io/otel/metric API and a sdk/metric ManualReader the
// registry controls directly, so a snapshot can be taken synchronously for
// the admin surface (spec section 6.4) rather than waiting on a push
// exporter's interval -- grounded on the teacher's own use of
// metric.NewManualReader in collector/netstats/netstats_test.go and on
// concurrentbatchprocessor's batchProcessorTelemetry for instrument
// construction.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

const scopePrefix = "github.com/open-telemetry/otap-dataflow-go/pkg/telemetry/"

// InstrumentKind mirrors the admin JSON format's instrument_kind field (spec
// section 6.4).
type InstrumentKind string

const (
	InstrumentCounter   InstrumentKind = "counter"
	InstrumentUpDown    InstrumentKind = "up_down_counter"
	InstrumentHistogram InstrumentKind = "histogram"
	InstrumentGauge     InstrumentKind = "gauge"
)

// Temporality mirrors the admin JSON format's temporality field.
type Temporality string

const (
	TemporalityCumulative Temporality = "cumulative"
	TemporalityDelta      Temporality = "delta"
)

// DataPoint is one row of the admin snapshot (spec section 6.4): "name,
// brief, attributes, data points including instrument kind, temporality,
// value type and value."
type DataPoint struct {
	Name           string             `json:"name"`
	Brief          string             `json:"brief,omitempty"`
	Attributes     map[string]string  `json:"attributes"`
	InstrumentKind InstrumentKind     `json:"instrument_kind"`
	Temporality    Temporality        `json:"temporality"`
	ValueType      string             `json:"value_type"` // "int64" | "float64" | "histogram"
	Value          float64            `json:"value,omitempty"`
	Histogram      *HistogramSnapshot `json:"histogram,omitempty"`
}

// HistogramSnapshot is a point-in-time read of an HDR histogram, used by
// latency-tracking metric sets (e.g. drain/export latency) to serve
// percentiles the OTel SDK's bucketed histogram data points don't carry
// directly.
type HistogramSnapshot struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
	Count int64   `json:"count"`
}

// SnapshotHistogram reads a *hdrhistogram.Histogram into a HistogramSnapshot.
func SnapshotHistogram(h *hdrhistogram.Histogram) *HistogramSnapshot {
	return &HistogramSnapshot{
		Min:   float64(h.Min()),
		Max:   float64(h.Max()),
		Mean:  h.Mean(),
		P50:   float64(h.ValueAtQuantile(50)),
		P90:   float64(h.ValueAtQuantile(90)),
		P99:   float64(h.ValueAtQuantile(99)),
		Count: h.TotalCount(),
	}
}

// Handle is the typed metric set handle returned by register_metrics<T>().
type Handle[T any] struct {
	Set T
}

// Registry owns the engine's MeterProvider and the ManualReader it reads
// back from on every Snapshot call (spec section 4.1/6.4).
type Registry struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader

	mu     sync.Mutex
	briefs map[string]string // "scope/name" -> description, since metricdata carries none
}

// NewRegistry returns a telemetry registry with its own in-process OTel
// MeterProvider; it does not export anywhere on its own, it is read
// synchronously via Snapshot.
func NewRegistry() *Registry {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.Empty()),
		sdkmetric.WithReader(reader),
	)
	return &Registry{
		provider: provider,
		reader:   reader,
		briefs:   map[string]string{},
	}
}

// Meter returns the metric.Meter a node should use to create its
// instruments, scoped so Snapshot can recover which node an instrument
// belongs to from its scope name.
func (r *Registry) Meter(node string) metric.Meter {
	return r.provider.Meter(scopePrefix + node)
}

// Register constructs a metric set via newSet, which creates whatever
// counters/histograms/gauges T holds off the supplied meter (the same
// shape as concurrentbatchprocessor's createOtelMetrics), and records a
// brief for the admin snapshot.
func Register[T any](r *Registry, node, name, brief string, newSet func(meter metric.Meter) (T, error)) (*Handle[T], error) {
	set, err := newSet(r.Meter(node))
	if err != nil {
		return nil, fmt.Errorf("telemetry: registering metric set %q for node %q: %w", name, node, err)
	}
	r.mu.Lock()
	r.briefs[node+"/"+name] = brief
	r.mu.Unlock()
	return &Handle[T]{Set: set}, nil
}

// HistogramHandle pairs a real OTel int64 histogram instrument with an HDR
// histogram feeding an ObservableGauge of p50/p90/p99, following the
// teacher's pattern of deriving a reported value via an Int64Observer
// callback (concurrentbatchprocessor's batchMetadataCardinality).
type HistogramHandle struct {
	otel metric.Int64Histogram
	mu   sync.Mutex
	hdr  *hdrhistogram.Histogram
}

// NewHistogramHandle creates the underlying instrument and registers the
// quantile callback on meter.
func NewHistogramHandle(meter metric.Meter, name, brief, unit string) (*HistogramHandle, error) {
	otelHist, err := meter.Int64Histogram(name, metric.WithDescription(brief), metric.WithUnit(unit))
	if err != nil {
		return nil, err
	}
	hh := &HistogramHandle{hdr: hdrhistogram.New(1, 3_600_000_000, 3), otel: otelHist}

	_, err = meter.Int64ObservableGauge(
		name+"_quantile",
		metric.WithDescription(brief+" (quantiles)"),
		metric.WithUnit(unit),
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			hh.mu.Lock()
			p50, p90, p99 := hh.hdr.ValueAtQuantile(50), hh.hdr.ValueAtQuantile(90), hh.hdr.ValueAtQuantile(99)
			hh.mu.Unlock()
			obs.Observe(p50, metric.WithAttributes(attribute.String("quantile", "p50")))
			obs.Observe(p90, metric.WithAttributes(attribute.String("quantile", "p90")))
			obs.Observe(p99, metric.WithAttributes(attribute.String("quantile", "p99")))
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return hh, nil
}

// Record records value into both the OTel histogram and the HDR histogram
// feeding the quantile gauge.
func (hh *HistogramHandle) Record(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	hh.otel.Record(ctx, value, metric.WithAttributes(attrs...))
	hh.mu.Lock()
	_ = hh.hdr.RecordValue(value)
	hh.mu.Unlock()
}

// Snapshot collects every instrument the registry's meters have produced,
// the payload of GET /telemetry/metrics?format=json (spec section 6.4).
func (r *Registry) Snapshot(ctx context.Context) ([]DataPoint, error) {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("telemetry: collecting metrics: %w", err)
	}

	quantiles := make(map[string]map[string]float64) // "node/base" -> quantile label -> value
	var out []DataPoint

	for _, sm := range rm.ScopeMetrics {
		node := strings.TrimPrefix(sm.Scope.Name, scopePrefix)
		for _, mm := range sm.Metrics {
			if base, quantile, ok := strings.Cut(mm.Name, "_quantile"); ok && quantile == "" {
				gauge, ok := mm.Data.(metricdata.Gauge[int64])
				if !ok {
					continue
				}
				key := node + "/" + base
				if quantiles[key] == nil {
					quantiles[key] = map[string]float64{}
				}
				for _, dp := range gauge.DataPoints {
					for _, attr := range dp.Attributes.ToSlice() {
						if attr.Key == "quantile" {
							quantiles[key][attr.Value.AsString()] = float64(dp.Value)
						}
					}
				}
				continue
			}

			out = append(out, r.dataPoints(node, mm)...)
		}
	}

	for i := range out {
		if out[i].InstrumentKind != InstrumentHistogram {
			continue
		}
		key := out[i].Attributes["node"] + "/" + out[i].Name
		q, ok := quantiles[key]
		if !ok || out[i].Histogram == nil {
			continue
		}
		out[i].Histogram.P50 = q["p50"]
		out[i].Histogram.P90 = q["p90"]
		out[i].Histogram.P99 = q["p99"]
	}
	return out, nil
}

func (r *Registry) dataPoints(node string, mm metricdata.Metrics) []DataPoint {
	r.mu.Lock()
	brief := r.briefs[node+"/"+mm.Name]
	r.mu.Unlock()

	base := DataPoint{Name: mm.Name, Brief: brief, Temporality: TemporalityCumulative}

	switch data := mm.Data.(type) {
	case metricdata.Sum[int64]:
		kind := InstrumentCounter
		if !data.IsMonotonic {
			kind = InstrumentUpDown
		}
		var out []DataPoint
		for _, dp := range data.DataPoints {
			out = append(out, withPoint(base, node, kind, "int64", float64(dp.Value), dp.Attributes, nil))
		}
		return out
	case metricdata.Sum[float64]:
		kind := InstrumentCounter
		if !data.IsMonotonic {
			kind = InstrumentUpDown
		}
		var out []DataPoint
		for _, dp := range data.DataPoints {
			out = append(out, withPoint(base, node, kind, "float64", dp.Value, dp.Attributes, nil))
		}
		return out
	case metricdata.Gauge[int64]:
		var out []DataPoint
		for _, dp := range data.DataPoints {
			out = append(out, withPoint(base, node, InstrumentGauge, "int64", float64(dp.Value), dp.Attributes, nil))
		}
		return out
	case metricdata.Gauge[float64]:
		var out []DataPoint
		for _, dp := range data.DataPoints {
			out = append(out, withPoint(base, node, InstrumentGauge, "float64", dp.Value, dp.Attributes, nil))
		}
		return out
	case metricdata.Histogram[int64]:
		var out []DataPoint
		for _, dp := range data.DataPoints {
			hs := &HistogramSnapshot{Count: int64(dp.Count)}
			if dp.Count > 0 {
				hs.Mean = dp.Sum / float64(dp.Count)
			}
			if v, ok := dp.Min.Value(); ok {
				hs.Min = float64(v)
			}
			if v, ok := dp.Max.Value(); ok {
				hs.Max = float64(v)
			}
			out = append(out, withPoint(base, node, InstrumentHistogram, "histogram", 0, dp.Attributes, hs))
		}
		return out
	case metricdata.Histogram[float64]:
		var out []DataPoint
		for _, dp := range data.DataPoints {
			hs := &HistogramSnapshot{Count: int64(dp.Count)}
			if dp.Count > 0 {
				hs.Mean = dp.Sum / float64(dp.Count)
			}
			if v, ok := dp.Min.Value(); ok {
				hs.Min = v
			}
			if v, ok := dp.Max.Value(); ok {
				hs.Max = v
			}
			out = append(out, withPoint(base, node, InstrumentHistogram, "histogram", 0, dp.Attributes, hs))
		}
		return out
	default:
		return nil
	}
}

func withPoint(base DataPoint, node string, kind InstrumentKind, valueType string, value float64, attrs attribute.Set, hist *HistogramSnapshot) DataPoint {
	dp := base
	dp.InstrumentKind = kind
	dp.ValueType = valueType
	dp.Value = value
	dp.Histogram = hist
	dp.Attributes = map[string]string{"node": node}
	for _, attr := range attrs.ToSlice() {
		dp.Attributes[string(attr.Key)] = attr.Value.Emit()
	}
	return dp
}

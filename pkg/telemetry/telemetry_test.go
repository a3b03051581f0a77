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

package telemetry

import (
	"context"
	"testing"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
)

type counterSet struct {
	received metric.Int64Counter
}

func TestSnapshotEmptyRegistryReturnsNoDataPoints(t *testing.T) {
	r := NewRegistry()
	out, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestRegisterCounterIsReflectedInSnapshot(t *testing.T) {
	r := NewRegistry()
	handle, err := Register(r, "receiver-1", "items_received", "items received total", func(m metric.Meter) (counterSet, error) {
		c, err := m.Int64Counter("items_received", metric.WithDescription("items received total"))
		return counterSet{received: c}, err
	})
	require.NoError(t, err)

	handle.Set.received.Add(context.Background(), 5)

	out, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "items_received", out[0].Name)
	require.Equal(t, "items received total", out[0].Brief)
	require.Equal(t, InstrumentCounter, out[0].InstrumentKind)
	require.Equal(t, "int64", out[0].ValueType)
	require.Equal(t, float64(5), out[0].Value)
	require.Equal(t, "receiver-1", out[0].Attributes["node"])
}

func TestRegisterUpDownCounterKind(t *testing.T) {
	r := NewRegistry()
	handle, err := Register(r, "proc-1", "in_flight", "in-flight items", func(m metric.Meter) (metric.Int64UpDownCounter, error) {
		return m.Int64UpDownCounter("in_flight")
	})
	require.NoError(t, err)

	handle.Set.Add(context.Background(), 3)

	out, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, InstrumentUpDown, out[0].InstrumentKind)
}

func TestHistogramHandleRecordsBothOtelAndHDR(t *testing.T) {
	r := NewRegistry()
	meter := r.Meter("exporter-1")
	hh, err := NewHistogramHandle(meter, "export_latency", "export latency", "ms")
	require.NoError(t, err)

	ctx := context.Background()
	for _, v := range []int64{10, 20, 30, 40, 50} {
		hh.Record(ctx, v)
	}

	out, err := r.Snapshot(ctx)
	require.NoError(t, err)

	var hist *DataPoint
	for i := range out {
		if out[i].Name == "export_latency" && out[i].InstrumentKind == InstrumentHistogram {
			hist = &out[i]
		}
	}
	require.NotNil(t, hist)
	require.NotNil(t, hist.Histogram)
	require.Equal(t, int64(5), hist.Histogram.Count)
	require.Greater(t, hist.Histogram.P50, float64(0))
}

func TestMeterIsScopedPerNode(t *testing.T) {
	r := NewRegistry()
	_, err := Register(r, "node-a", "c", "", func(m metric.Meter) (metric.Int64Counter, error) {
		return m.Int64Counter("c")
	})
	require.NoError(t, err)
	_, err = Register(r, "node-b", "c", "", func(m metric.Meter) (metric.Int64Counter, error) {
		return m.Int64Counter("c")
	})
	require.NoError(t, err)

	out, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	nodes := map[string]bool{}
	for _, dp := range out {
		nodes[dp.Attributes["node"]] = true
	}
	require.True(t, nodes["node-a"])
	require.True(t, nodes["node-b"])
}

func TestSnapshotHistogramFromHDR(t *testing.T) {
	// SnapshotHistogram is the helper used outside the OTel-backed path
	// (e.g. a node's own ad hoc latency tracking).
	h := hdrhistogram.New(1, 3_600_000_000, 3)
	require.NoError(t, h.RecordValue(10))
	require.NoError(t, h.RecordValue(20))
	require.NoError(t, h.RecordValue(30))

	snap := SnapshotHistogram(h)
	require.Equal(t, int64(3), snap.Count)
}

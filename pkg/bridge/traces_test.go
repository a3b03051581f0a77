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
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/open-telemetry/otap-dataflow-go/pkg/batch"
)

func buildTraces() ptrace.Traces {
	traces := ptrace.NewTraces()
	rs := traces.ResourceSpans().AppendEmpty()
	rs.SetSchemaUrl("https://example.com/resource-schema")
	rs.Resource().Attributes().PutStr("service.name", "checkout")

	ss := rs.ScopeSpans().AppendEmpty()
	ss.Scope().SetName("checkout-scope")
	ss.Scope().SetVersion("1.0")

	sp := ss.Spans().AppendEmpty()
	sp.SetName("handle-order")
	sp.SetTraceID([16]byte{1, 2, 3, 4})
	sp.SetSpanID([8]byte{5, 6, 7, 8})
	sp.SetKind(ptrace.SpanKindServer)
	sp.SetStartTimestamp(pcommon.Timestamp(1000))
	sp.SetEndTimestamp(pcommon.Timestamp(2000))
	sp.Status().SetCode(ptrace.StatusCodeOk)
	sp.Attributes().PutStr("order.id", "o-1")

	ev := sp.Events().AppendEmpty()
	ev.SetName("validated")
	ev.SetTimestamp(pcommon.Timestamp(1500))
	ev.Attributes().PutBool("valid", true)

	lk := sp.Links().AppendEmpty()
	lk.SetTraceID([16]byte{9, 9, 9, 9})
	lk.SetSpanID([8]byte{1, 1, 1, 1})
	lk.Attributes().PutStr("relation", "follows-from")

	return traces
}

func TestTracesRoundTrip(t *testing.T) {
	traces := buildTraces()

	group, err := DecodeTraces(traces)
	require.NoError(t, err)
	require.NoError(t, group.ValidateReferentialIntegrity())
	require.Equal(t, int64(1), group.RootRowCount())

	out, err := EncodeTraces(group)
	require.NoError(t, err)

	require.Equal(t, 1, out.ResourceSpans().Len())
	rs := out.ResourceSpans().At(0)
	require.Equal(t, "https://example.com/resource-schema", rs.SchemaUrl())
	name, ok := rs.Resource().Attributes().Get("service.name")
	require.True(t, ok)
	require.Equal(t, "checkout", name.Str())

	require.Equal(t, 1, rs.ScopeSpans().Len())
	ss := rs.ScopeSpans().At(0)
	require.Equal(t, "checkout-scope", ss.Scope().Name())

	require.Equal(t, 1, ss.Spans().Len())
	sp := ss.Spans().At(0)
	require.Equal(t, "handle-order", sp.Name())
	require.Equal(t, ptrace.SpanKindServer, sp.Kind())
	require.Equal(t, ptrace.StatusCodeOk, sp.Status().Code())
	orderID, ok := sp.Attributes().Get("order.id")
	require.True(t, ok)
	require.Equal(t, "o-1", orderID.Str())

	require.Equal(t, 1, sp.Events().Len())
	gotEv := sp.Events().At(0)
	require.Equal(t, "validated", gotEv.Name())
	valid, ok := gotEv.Attributes().Get("valid")
	require.True(t, ok)
	require.True(t, valid.Bool())

	require.Equal(t, 1, sp.Links().Len())
	gotLk := sp.Links().At(0)
	relation, ok := gotLk.Attributes().Get("relation")
	require.True(t, ok)
	require.Equal(t, "follows-from", relation.Str())
}

func TestTracesRoundTripEmpty(t *testing.T) {
	group, err := DecodeTraces(ptrace.NewTraces())
	require.NoError(t, err)
	require.True(t, group.IsEmpty())
	require.Equal(t, batch.SignalTraces, group.Signal)

	out, err := EncodeTraces(group)
	require.NoError(t, err)
	require.Equal(t, 0, out.ResourceSpans().Len())
}

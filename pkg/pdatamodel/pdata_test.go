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

package pdatamodel

import (
	"testing"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/open-telemetry/otap-dataflow-go/pkg/batch"
)

func TestNewFingerprintIsUnique(t *testing.T) {
	a := NewFingerprint()
	b := NewFingerprint()
	require.NotEqual(t, a, b)
}

func TestOTLPBytesValidate(t *testing.T) {
	p := NewOTLPBytes(SignalLogs, Context{}, []byte("payload"))
	require.NoError(t, p.Validate())
}

func TestOTLPBytesValidateRejectsNilBytes(t *testing.T) {
	p := Pdata{Kind: KindOTLPBytes, Signal: SignalLogs}
	require.Error(t, p.Validate())
}

func TestOTLPBytesValidateRejectsBothSet(t *testing.T) {
	rg := newTestRecordGroup(t)
	defer rg.Release()
	p := Pdata{Kind: KindOTLPBytes, Signal: SignalLogs, OTLPBytes: []byte("x"), RecordGroup: rg}
	require.Error(t, p.Validate())
}

func TestRecordGroupValidateSignalMismatch(t *testing.T) {
	rg := newTestRecordGroup(t)
	defer rg.Release()
	p := Pdata{Kind: KindOTAPRecordGroup, Signal: SignalMetrics, RecordGroup: rg}
	require.Error(t, p.Validate())
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	p := Pdata{Kind: Kind(99)}
	require.Error(t, p.Validate())
}

func TestCloneOTLPBytesCopiesBuffer(t *testing.T) {
	orig := NewOTLPBytes(SignalTraces, Context{Fingerprint: 1}, []byte("abc"))
	clone := orig.Clone()

	clone.OTLPBytes[0] = 'z'
	require.Equal(t, byte('a'), orig.OTLPBytes[0])
	require.Equal(t, byte('z'), clone.OTLPBytes[0])
}

func TestCloneRecordGroupRetains(t *testing.T) {
	rg := newTestRecordGroup(t)
	p := NewOTAPRecordGroup(Context{}, rg)

	clone := p.Clone()
	require.Equal(t, p.Signal, clone.Signal)

	p.Release()
	clone.Release()
}

func newTestRecordGroup(t *testing.T) *batch.RecordGroup {
	t.Helper()
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: batch.ColumnID, Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues([]int64{0, 1}, nil)
	col := b.NewInt64Array()
	defer col.Release()
	rec := array.NewRecord(schema, []arrow.Array{col}, 2)

	rg, err := batch.NewRecordGroup(batch.SignalLogs, map[batch.PayloadType]arrow.Record{
		batch.PayloadLogs: rec,
	})
	require.NoError(t, err)
	return rg
}

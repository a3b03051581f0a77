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

package walprogress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/open-telemetry/otap-dataflow-go/pkg/benchmark"
)

func TestFileSegmentProviderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := NewFileSegmentProvider(dir, benchmark.Zstd)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("bundle-data"), 32)
	idx, err := p.AppendBundle(1, payload)
	require.NoError(t, err)
	require.Equal(t, uint32(0), idx)

	idx2, err := p.AppendBundle(1, payload)
	require.NoError(t, err)
	require.Equal(t, uint32(1), idx2)

	count, ok := p.BundleCount(1)
	require.True(t, ok)
	require.Equal(t, uint32(2), count)

	got, err := p.Load(BundleRef{SegmentSeq: 1, BundleIndex: 0})
	require.NoError(t, err)
	require.Equal(t, payload, got)

	_, ok = p.BundleCount(99)
	require.False(t, ok)
}

func TestFileSegmentProviderRescansExisting(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte("hello-bundle-"), 16)
	p, err := NewFileSegmentProvider(dir, benchmark.Lz4)
	require.NoError(t, err)
	_, err = p.AppendBundle(5, payload)
	require.NoError(t, err)

	reopened, err := NewFileSegmentProvider(dir, benchmark.Lz4)
	require.NoError(t, err)
	count, ok := reopened.BundleCount(5)
	require.True(t, ok)
	require.Equal(t, uint32(1), count)

	data, err := reopened.Load(BundleRef{SegmentSeq: 5, BundleIndex: 0})
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

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

// Package pdatamodel defines pdata, the tagged variant that flows across
// every channel in the engine (spec section 3.1): either row-oriented OTLP
// proto bytes for one signal, or a columnar OTAP record group.
package pdatamodel

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/open-telemetry/otap-dataflow-go/pkg/batch"
)

// SignalType identifies which OpenTelemetry signal a pdata value carries.
// Aliased from pkg/batch, which owns the canonical definition to avoid an
// import cycle between pdatamodel and batch.
type SignalType = batch.SignalType

const (
	SignalUnspecified = batch.SignalUnspecified
	SignalLogs        = batch.SignalLogs
	SignalMetrics     = batch.SignalMetrics
	SignalTraces      = batch.SignalTraces
)

// Context carries the routing and correlation metadata attached to every
// pdata value (spec section 3.1).
type Context struct {
	PipelineGroupID string
	PipelineID      string
	ShardID         uint32
	// CallData is an opaque slot used by subscribers/retry logic to stash
	// state alongside the data without the pipeline runtime interpreting it.
	CallData any
	// Fingerprint is a monotonic value used for ack correlation.
	Fingerprint uint64
}

// NewFingerprint returns a process-unique correlation id. The teacher's
// RecordMessage keys batches by a generated sub-stream id; here the
// fingerprint plays the analogous role for ack/nack correlation.
func NewFingerprint() uint64 {
	id := uuid.New()
	var v uint64
	for _, b := range id[:8] {
		v = v<<8 | uint64(b)
	}
	return v
}

// Kind distinguishes the two representations a Pdata value may hold.
type Kind int

const (
	KindOTLPBytes Kind = iota
	KindOTAPRecordGroup
)

// Pdata is the tagged variant of spec section 3.1: exactly one of OTLPBytes
// or RecordGroup is populated, selected by Kind.
type Pdata struct {
	Kind    Kind
	Signal  SignalType
	Context Context

	// OTLPBytes holds protobuf-encoded OTLP request bytes when Kind ==
	// KindOTLPBytes. Decoding is on demand, never eager, matching spec
	// section 3.1: "byte-addressable, decodable on demand."
	OTLPBytes []byte

	// RecordGroup holds the columnar OTAP representation when Kind ==
	// KindOTAPRecordGroup.
	RecordGroup *batch.RecordGroup
}

// NewOTLPBytes wraps raw OTLP proto bytes for the given signal.
func NewOTLPBytes(signal SignalType, ctx Context, b []byte) Pdata {
	return Pdata{Kind: KindOTLPBytes, Signal: signal, Context: ctx, OTLPBytes: b}
}

// NewOTAPRecordGroup wraps a columnar record group. The signal type of a
// record group is fixed at construction; mixing is forbidden (spec section
// 3.1), so this constructor takes the group's own Signal rather than a
// separate argument.
func NewOTAPRecordGroup(ctx Context, rg *batch.RecordGroup) Pdata {
	return Pdata{Kind: KindOTAPRecordGroup, Signal: rg.Signal, Context: ctx, RecordGroup: rg}
}

// Validate checks the tag/payload invariant: exactly one representation is
// populated and it matches Kind.
func (p *Pdata) Validate() error {
	switch p.Kind {
	case KindOTLPBytes:
		if p.OTLPBytes == nil {
			return fmt.Errorf("pdata: Kind=KindOTLPBytes but OTLPBytes is nil")
		}
		if p.RecordGroup != nil {
			return fmt.Errorf("pdata: Kind=KindOTLPBytes but RecordGroup is also set")
		}
	case KindOTAPRecordGroup:
		if p.RecordGroup == nil {
			return fmt.Errorf("pdata: Kind=KindOTAPRecordGroup but RecordGroup is nil")
		}
		if p.OTLPBytes != nil {
			return fmt.Errorf("pdata: Kind=KindOTAPRecordGroup but OTLPBytes is also set")
		}
		if p.RecordGroup.Signal != p.Signal {
			return fmt.Errorf("pdata: Signal %v does not match record group signal %v", p.Signal, p.RecordGroup.Signal)
		}
	default:
		return fmt.Errorf("pdata: unknown Kind %d", p.Kind)
	}
	return nil
}

// Clone returns a copy suitable for Broadcast fanout. Arrow buffers
// underlying a RecordGroup are reference-counted, so cloning a record group
// is O(1) (spec section 4.3): Retain bumps refcounts without copying data.
// OTLP bytes, by contrast, are copied into a new buffer.
func (p Pdata) Clone() Pdata {
	out := p
	if p.Kind == KindOTAPRecordGroup && p.RecordGroup != nil {
		out.RecordGroup = p.RecordGroup.Retain()
	} else if p.Kind == KindOTLPBytes {
		b := make([]byte, len(p.OTLPBytes))
		copy(b, p.OTLPBytes)
		out.OTLPBytes = b
	}
	return out
}

// Release drops the reference this Pdata value holds on underlying Arrow
// buffers, if any. Callers that Clone() or otherwise fan out a record group
// must Release every copy once consumed.
func (p Pdata) Release() {
	if p.Kind == KindOTAPRecordGroup && p.RecordGroup != nil {
		p.RecordGroup.Release()
	}
}

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

// Package batch implements the OTAP columnar record-group model of spec
// section 3.1/3.2: named payload types linked by delta-encoded parent-id
// columns, the cursors used to walk them, and the delta decoders shared by
// the bridge and rebatch engines.
package batch

import "fmt"

// SignalType identifies which OpenTelemetry signal a record group carries.
// Mirrored by pkg/pdatamodel.SignalType; it lives here to avoid an import
// cycle between pdatamodel and batch.
type SignalType int

const (
	SignalUnspecified SignalType = iota
	SignalLogs
	SignalMetrics
	SignalTraces
)

func (s SignalType) String() string {
	switch s {
	case SignalLogs:
		return "logs"
	case SignalMetrics:
		return "metrics"
	case SignalTraces:
		return "traces"
	default:
		return "unspecified"
	}
}

// PayloadType names an Arrow schema within an OTAP group (spec GLOSSARY).
type PayloadType int

const (
	PayloadUnspecified PayloadType = iota
	PayloadLogs
	PayloadLogAttrs
	PayloadScopeAttrs
	PayloadResourceAttrs
	PayloadMetrics
	PayloadNumberDataPoints
	PayloadSpans
	PayloadSpanEvents
	PayloadSpanLinks
	PayloadSpanAttrs
	PayloadEventAttrs
	PayloadLinkAttrs
)

func (p PayloadType) String() string {
	switch p {
	case PayloadLogs:
		return "Logs"
	case PayloadLogAttrs:
		return "LogAttrs"
	case PayloadScopeAttrs:
		return "ScopeAttrs"
	case PayloadResourceAttrs:
		return "ResourceAttrs"
	case PayloadMetrics:
		return "Metrics"
	case PayloadNumberDataPoints:
		return "NumberDataPoints"
	case PayloadSpans:
		return "Spans"
	case PayloadSpanEvents:
		return "SpanEvents"
	case PayloadSpanLinks:
		return "SpanLinks"
	case PayloadSpanAttrs:
		return "SpanAttrs"
	case PayloadEventAttrs:
		return "EventAttrs"
	case PayloadLinkAttrs:
		return "LinkAttrs"
	default:
		return "Unspecified"
	}
}

// IsAttribute reports whether a payload type is an attribute payload (spec
// section 3.1: "Attribute record batches carry a key column ... and exactly
// one non-null typed value column.").
func (p PayloadType) IsAttribute() bool {
	switch p {
	case PayloadLogAttrs, PayloadScopeAttrs, PayloadResourceAttrs, PayloadSpanAttrs, PayloadEventAttrs, PayloadLinkAttrs:
		return true
	default:
		return false
	}
}

// RootPayloadType returns the signal's root payload type, i.e. the one
// carrying no parent_id column and anchoring every other payload type's
// delta-decoded references.
func RootPayloadType(signal SignalType) (PayloadType, error) {
	switch signal {
	case SignalLogs:
		return PayloadLogs, nil
	case SignalMetrics:
		return PayloadMetrics, nil
	case SignalTraces:
		return PayloadSpans, nil
	default:
		return PayloadUnspecified, fmt.Errorf("batch: unknown signal type %v", signal)
	}
}

// ParentPayloadType returns the payload type that child's parent_id column
// references, per the signal's fixed resource->scope->record->attribute
// hierarchy (spec section 3.1). Root payload types return (Unspecified,
// false).
func ParentPayloadType(signal SignalType, child PayloadType) (PayloadType, bool) {
	root, err := RootPayloadType(signal)
	if err != nil {
		return PayloadUnspecified, false
	}
	switch child {
	case root:
		return PayloadUnspecified, false
	case PayloadLogAttrs:
		return PayloadLogs, true
	case PayloadScopeAttrs, PayloadResourceAttrs:
		return root, true
	case PayloadNumberDataPoints:
		return PayloadMetrics, true
	case PayloadSpanEvents, PayloadSpanLinks, PayloadSpanAttrs:
		return PayloadSpans, true
	case PayloadEventAttrs:
		return PayloadSpanEvents, true
	case PayloadLinkAttrs:
		return PayloadSpanLinks, true
	default:
		return PayloadUnspecified, false
	}
}

// Schema column names shared across payload types.
const (
	ColumnID       = "id"
	ColumnParentID = "parent_id"
	ColumnKey      = "key"

	ColumnValueStr    = "str"
	ColumnValueInt    = "int"
	ColumnValueDouble = "double"
	ColumnValueBool   = "bool"
	ColumnValueBytes  = "bytes"
	ColumnValueSer    = "ser"
)

// AttributeValueColumns lists the typed value columns an attribute payload
// may carry; exactly one must be non-null per row (spec section 3.1).
var AttributeValueColumns = []string{
	ColumnValueStr, ColumnValueInt, ColumnValueDouble, ColumnValueBool, ColumnValueBytes, ColumnValueSer,
}

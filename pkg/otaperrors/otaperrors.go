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

// Package otaperrors implements the error taxonomy described in spec section
// 7: each variant carries enough context to identify the failing
// node/component and the cause, and every variant implements Unwrap so
// errors.Is/errors.As work across the taxonomy.
package otaperrors

import (
	"fmt"

	"go.uber.org/multierr"
)

// ConfigurationError covers invalid version, duplicate ids, unknown plugin
// URNs, invalid user config, wiring contract violations and file
// read/deserialization errors.
type ConfigurationError struct {
	Kind   string // e.g. "invalid_version", "duplicate_pipeline_id", "unknown_plugin_urn"
	Detail string
	Node   string // empty when not node-scoped
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("configuration error (%s) at node %q: %s", e.Kind, e.Node, e.Detail)
	}
	return fmt.Sprintf("configuration error (%s): %s", e.Kind, e.Detail)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InvalidConfiguration aggregates every ConfigurationError discovered during
// a single validation pass, per spec section 6.1: "All validation errors are
// aggregated into a single InvalidConfiguration{errors} with file context."
type InvalidConfiguration struct {
	File   string
	Errors []error
}

func (e *InvalidConfiguration) Error() string {
	return fmt.Sprintf("invalid configuration in %s: %s", e.File, multierr.Combine(e.Errors...))
}

func (e *InvalidConfiguration) Unwrap() []error { return e.Errors }

// NewInvalidConfiguration returns nil if errs is empty, matching the
// aggregation contract used by config validation callers.
func NewInvalidConfiguration(file string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &InvalidConfiguration{File: file, Errors: errs}
}

// RuntimeErrorKind enumerates the runtime error variants of spec section 7.
type RuntimeErrorKind string

const (
	ChannelClosedOnSend                RuntimeErrorKind = "channel_closed_on_send"
	ChannelClosedOnRecv                RuntimeErrorKind = "channel_closed_on_recv"
	IOError                            RuntimeErrorKind = "io"
	UnknownPort                        RuntimeErrorKind = "unknown_port"
	PluginError                        RuntimeErrorKind = "plugin"
	UnsupportedSerializedAttributeValue RuntimeErrorKind = "unsupported_serialized_attribute_value"
)

// RuntimeError wraps a failure originating from node execution.
type RuntimeError struct {
	Kind RuntimeErrorKind
	Node string
	Err  error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error (%s) in node %q: %v", e.Kind, e.Node, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// IsChannelClosedOnRecv reports whether err is a normal shutdown signal
// rather than a genuine runtime failure (spec section 7: "Channel closed on
// recv is a normal shutdown signal, not an error.").
func IsChannelClosedOnRecv(err error) bool {
	var re *RuntimeError
	return asRuntimeError(err, &re) && re.Kind == ChannelClosedOnRecv
}

func asRuntimeError(err error, target **RuntimeError) bool {
	for err != nil {
		if re, ok := err.(*RuntimeError); ok {
			*target = re
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// BatchingErrorKind enumerates the batching error variants of spec section 7.
type BatchingErrorKind string

const (
	UnreferencedParentID BatchingErrorKind = "unreferenced_parent_id"
	SchemaMismatch       BatchingErrorKind = "schema_mismatch"
	SignalTypeMismatch   BatchingErrorKind = "signal_type_mismatch"
)

// BatchingError reports a failure in the rebatching engine (spec section
// 4.4): "A child row whose parent id cannot be located is a fatal batching
// error... the batch is rejected, never silently discarded."
type BatchingError struct {
	Kind    BatchingErrorKind
	Payload string
	Detail  string
}

func (e *BatchingError) Error() string {
	return fmt.Sprintf("batching error (%s) in payload %q: %s", e.Kind, e.Payload, e.Detail)
}

// SubscriberErrorKind enumerates the subscriber error variants of spec
// section 7.
type SubscriberErrorKind string

const (
	InvalidSubscriberID   SubscriberErrorKind = "invalid_id"
	SubscriberNotFound    SubscriberErrorKind = "not_found"
	SubscriberExists      SubscriberErrorKind = "already_exists"
	BundleNotAvailable    SubscriberErrorKind = "bundle_not_available"
	SegmentNotFound       SubscriberErrorKind = "segment_not_found"
	SegmentIOError        SubscriberErrorKind = "segment_io"
	ProgressIOError       SubscriberErrorKind = "progress_io"
	ProgressCorrupt       SubscriberErrorKind = "progress_corruption"
	RegistryShuttingDown  SubscriberErrorKind = "registry_shutting_down"
)

// SubscriberError reports a failure in the subscriber registry or WAL
// progress layer (spec section 4.6/4.7).
type SubscriberError struct {
	Kind         SubscriberErrorKind
	SubscriberID string
	Err          error
}

func (e *SubscriberError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("subscriber error (%s) for %q: %v", e.Kind, e.SubscriberID, e.Err)
	}
	return fmt.Sprintf("subscriber error (%s) for %q", e.Kind, e.SubscriberID)
}

func (e *SubscriberError) Unwrap() error { return e.Err }

// LifecycleErrorKind enumerates the lifecycle error variants of spec section
// 7.
type LifecycleErrorKind string

const (
	ThreadSpawnError    LifecycleErrorKind = "thread_spawn"
	ThreadJoinPanic     LifecycleErrorKind = "thread_join_panic"
	DrainDeadlineExceed LifecycleErrorKind = "drain_deadline_exceeded"
)

// LifecycleError reports a controller/thread-task level failure (spec
// section 4.7).
type LifecycleError struct {
	Kind       LifecycleErrorKind
	ThreadName string
	Err        error
}

func (e *LifecycleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lifecycle error (%s) on thread %q: %v", e.Kind, e.ThreadName, e.Err)
	}
	return fmt.Sprintf("lifecycle error (%s) on thread %q", e.Kind, e.ThreadName)
}

func (e *LifecycleError) Unwrap() error { return e.Err }

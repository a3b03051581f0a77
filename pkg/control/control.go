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

// Package control defines the typed control messages interleaved with
// payload (pdata) messages described in spec section 1 item 2 and section
// 4.2: Ack, Nack, Shutdown, Config, TimerTick, and CollectTelemetry.
package control

import "time"

// Kind discriminates the control message variants.
type Kind int

const (
	KindAck Kind = iota
	KindNack
	KindShutdown
	KindConfig
	KindTimerTick
	KindCollectTelemetry
)

func (k Kind) String() string {
	switch k {
	case KindAck:
		return "Ack"
	case KindNack:
		return "Nack"
	case KindShutdown:
		return "Shutdown"
	case KindConfig:
		return "Config"
	case KindTimerTick:
		return "TimerTick"
	case KindCollectTelemetry:
		return "CollectTelemetry"
	default:
		return "Unknown"
	}
}

// NackMsg carries enough context for upstream compensation (spec section
// 4.1: "notify_nack(NackMsg)").
type NackMsg struct {
	// Fingerprint correlates this Nack with the pdata it refers to (spec
	// section 3.1's ack-correlation fingerprint).
	Fingerprint uint64
	Reason      string
}

// ShutdownMsg instructs a node to drain and stop within Deadline (spec
// section 4.2). Deadline == 0 means "stop immediately, possibly dropping
// in-flight data."
type ShutdownMsg struct {
	Deadline time.Duration
	Reason   string
}

// ConfigMsg carries a runtime configuration update. Dynamic pipeline
// mutation is a non-goal (spec section 1); in practice this variant is used
// for in-place knob changes a node's own config schema explicitly allows
// (e.g. adjusting a sampling rate), not graph rewiring.
type ConfigMsg struct {
	UserConfig []byte
}

// Message is a control-plane envelope. Exactly one field matching Kind is
// populated.
type Message struct {
	Kind Kind

	AckFingerprint uint64
	Nack           NackMsg
	Shutdown       ShutdownMsg
	Config         ConfigMsg
	// TimerTick carries no payload beyond its occurrence.
	// CollectTelemetry carries no payload; it instructs the node to flush
	// its registered metric sets into the engine's telemetry pipeline.
}

// NewAck returns an Ack control message for the given fingerprint.
func NewAck(fingerprint uint64) Message {
	return Message{Kind: KindAck, AckFingerprint: fingerprint}
}

// NewNack returns a Nack control message.
func NewNack(fingerprint uint64, reason string) Message {
	return Message{Kind: KindNack, Nack: NackMsg{Fingerprint: fingerprint, Reason: reason}}
}

// NewShutdown returns a Shutdown control message.
func NewShutdown(deadline time.Duration, reason string) Message {
	return Message{Kind: KindShutdown, Shutdown: ShutdownMsg{Deadline: deadline, Reason: reason}}
}

// NewConfig returns a Config control message.
func NewConfig(userConfig []byte) Message {
	return Message{Kind: KindConfig, Config: ConfigMsg{UserConfig: userConfig}}
}

// NewTimerTick returns a TimerTick control message.
func NewTimerTick() Message { return Message{Kind: KindTimerTick} }

// NewCollectTelemetry returns a CollectTelemetry control message.
func NewCollectTelemetry() Message { return Message{Kind: KindCollectTelemetry} }

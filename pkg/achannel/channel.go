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

// Package achannel implements the bounded channel primitives of spec section
// 4.1: a per-node pdata channel and a higher-priority control channel, both
// FIFO and closed-channel aware, wrapped by a MessageChannel that drains
// ready control messages before yielding pdata.
package achannel

import (
	"context"

	"github.com/open-telemetry/otap-dataflow-go/pkg/control"
	"github.com/open-telemetry/otap-dataflow-go/pkg/otaperrors"
	"github.com/open-telemetry/otap-dataflow-go/pkg/pdatamodel"
)

// Default channel capacities, powers of two for cache-friendliness (spec
// section 5).
const (
	DefaultPdataCapacity   = 256
	DefaultControlCapacity = 32
)

// Channel is a bounded, closable queue. Send suspends the caller (by
// blocking on the underlying Go channel) when full; this is the engine's
// sole backpressure mechanism (spec section 5). It is not an error.
type Channel[T any] struct {
	ch     chan T
	closed chan struct{}
}

// NewChannel returns a bounded channel of the given capacity.
func NewChannel[T any](capacity int) *Channel[T] {
	return &Channel[T]{ch: make(chan T, capacity), closed: make(chan struct{})}
}

// Send enqueues v, blocking (suspending the caller) while the channel is
// full, and returning a ChannelClosedOnSend RuntimeError if the channel was
// closed before v could be delivered.
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	select {
	case <-c.closed:
		return &otaperrors.RuntimeError{Kind: otaperrors.ChannelClosedOnSend, Err: errChannelClosed}
	default:
	}
	select {
	case c.ch <- v:
		return nil
	case <-c.closed:
		return &otaperrors.RuntimeError{Kind: otaperrors.ChannelClosedOnSend, Err: errChannelClosed}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend attempts a non-blocking send, returning false if the channel is
// currently full. Used by dispatch strategies that need to probe available
// capacity (e.g. LeastLoaded) without committing to suspend.
func (c *Channel[T]) TrySend(v T) bool {
	select {
	case c.ch <- v:
		return true
	default:
		return false
	}
}

// Recv dequeues the next value, blocking until one is available or the
// channel is closed and drained, in which case ok is false. A closed-and-
// drained channel on recv is a normal shutdown signal, not an error (spec
// section 7).
func (c *Channel[T]) Recv(ctx context.Context) (v T, ok bool, err error) {
	select {
	case v, ok = <-c.ch:
		return v, ok, nil
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// TryRecv attempts a non-blocking receive, returning ok=false immediately if
// nothing is buffered. Used during the bounded Shutdown drain (spec section
// 4.2) to service only what is already queued rather than waiting for more.
func (c *Channel[T]) TryRecv() (v T, ok bool) {
	select {
	case v, ok = <-c.ch:
		return v, ok
	default:
		var zero T
		return zero, false
	}
}

// Close marks the channel closed. Safe to call once; callers must not send
// after closing.
func (c *Channel[T]) Close() {
	close(c.closed)
	close(c.ch)
}

// Len reports the number of values currently buffered.
func (c *Channel[T]) Len() int { return len(c.ch) }

// Cap reports the channel's capacity.
func (c *Channel[T]) Cap() int { return cap(c.ch) }

// AvailableCapacity reports remaining buffer slots, used by the LeastLoaded
// dispatch strategy (spec section 4.3).
func (c *Channel[T]) AvailableCapacity() int { return cap(c.ch) - len(c.ch) }

var errChannelClosed = &closedErr{}

type closedErr struct{}

func (*closedErr) Error() string { return "achannel: channel closed" }

// MessageChannel wraps a node's inbound control and pdata channels. On each
// Recv it drains ready control messages before yielding the next pdata, or
// blocks awaiting either (spec section 4.1).
type MessageChannel struct {
	Control *Channel[control.Message]
	Pdata   *Channel[pdatamodel.Pdata]
}

// NewMessageChannel constructs a MessageChannel with the default capacities.
func NewMessageChannel() *MessageChannel {
	return &MessageChannel{
		Control: NewChannel[control.Message](DefaultControlCapacity),
		Pdata:   NewChannel[pdatamodel.Pdata](DefaultPdataCapacity),
	}
}

// Received is the tagged result of MessageChannel.Recv.
type Received struct {
	IsControl bool
	Control   control.Message
	Pdata     pdatamodel.Pdata
}

// Recv drains any ready control message first; only once the control
// channel has nothing immediately available does it wait on both channels
// together. Control is merely prioritized at the recv site, not globally
// ordered against pdata (spec section 4.2).
func (m *MessageChannel) Recv(ctx context.Context) (Received, bool, error) {
	select {
	case msg, ok := <-m.Control.ch:
		if !ok {
			return Received{}, false, nil
		}
		return Received{IsControl: true, Control: msg}, true, nil
	default:
	}

	select {
	case msg, ok := <-m.Control.ch:
		if !ok {
			return Received{}, false, nil
		}
		return Received{IsControl: true, Control: msg}, true, nil
	case pd, ok := <-m.Pdata.ch:
		if !ok {
			return Received{}, false, nil
		}
		return Received{Pdata: pd}, true, nil
	case <-ctx.Done():
		return Received{}, false, ctx.Err()
	}
}

// Close closes both underlying channels.
func (m *MessageChannel) Close() {
	m.Control.Close()
	m.Pdata.Close()
}

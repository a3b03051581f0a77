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

// Package node implements the per-node lifecycle and effect handler of spec
// section 4.2: init/process/stop, with every side effect routed through an
// EffectHandler so node code never touches channels, sockets, or the
// telemetry pipeline directly.
package node

import (
	"context"
	"time"

	"github.com/open-telemetry/otap-dataflow-go/pkg/achannel"
	"github.com/open-telemetry/otap-dataflow-go/pkg/control"
)

// Kind enumerates the node kinds of spec section 3.2.
type Kind int

const (
	KindReceiver Kind = iota
	KindProcessor
	KindExporter
	KindConnector
	KindProcessorChain
)

func (k Kind) String() string {
	switch k {
	case KindReceiver:
		return "Receiver"
	case KindProcessor:
		return "Processor"
	case KindExporter:
		return "Exporter"
	case KindConnector:
		return "Connector"
	case KindProcessorChain:
		return "ProcessorChain"
	default:
		return "Unknown"
	}
}

// Node is the behavior every receiver/processor/exporter/connector
// implements. Receivers never see a pdata message on Process (they have no
// pdata input per spec section 3.2); they instead drive production from a
// goroutine started in Init, using the EffectHandler to send and to obtain
// listeners.
type Node interface {
	ID() string
	Kind() Kind

	// Init performs one-shot setup. Failing here propagates to the
	// controller and fails pipeline start (spec section 4.2 step 1).
	Init(ctx context.Context, eh *EffectHandler) error

	// Process handles one message, control or pdata, received by the
	// node's MessageChannel (spec section 4.2 step 2).
	Process(ctx context.Context, msg achannel.Received, eh *EffectHandler) error

	// Stop is called on terminal shutdown (spec section 4.2 step 3).
	Stop(ctx context.Context) error
}

// Base provides an embeddable no-op Init/Stop for nodes that don't need
// them, in the manner of the teacher's factory helpers that default optional
// lifecycle hooks.
type Base struct{}

func (Base) Init(context.Context, *EffectHandler) error { return nil }
func (Base) Stop(context.Context) error                 { return nil }

// RunLoop drives a node's message loop until its MessageChannel is closed or
// ctx is cancelled, implementing the init -> loop -> stop sequence of spec
// section 4.2. It returns the error that ended the loop, or nil on a clean
// shutdown.
func RunLoop(ctx context.Context, n Node, mc *achannel.MessageChannel, eh *EffectHandler) error {
	if err := n.Init(ctx, eh); err != nil {
		return err
	}
	defer n.Stop(ctx)

	for {
		recv, ok, err := mc.Recv(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if recv.IsControl && recv.Control.Kind == control.KindShutdown {
			return drainAndStop(ctx, n, mc, eh, recv.Control.Shutdown.Deadline)
		}
		if err := n.Process(ctx, recv, eh); err != nil {
			return err
		}
	}
}

// drainAndStop implements the Shutdown protocol of spec section 4.2:
// receivers stop accepting new input first, processors drain their input
// channel, exporters flush, then stop() is called. Since this runtime calls
// node.Process uniformly, "draining" here means continuing to service
// already-buffered pdata until the channel is empty or the deadline elapses.
func drainAndStop(ctx context.Context, n Node, mc *achannel.MessageChannel, eh *EffectHandler, deadline time.Duration) error {
	if deadline <= 0 {
		return nil // stop immediately, possibly dropping in-flight data.
	}
	drainCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	for {
		if drainCtx.Err() != nil {
			return nil // deadline elapsed: remaining buffered pdata is dropped.
		}
		pd, ok := mc.Pdata.TryRecv()
		if !ok {
			return nil
		}
		if err := n.Process(drainCtx, achannel.Received{Pdata: pd}, eh); err != nil {
			return err
		}
	}
}

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

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/open-telemetry/otap-dataflow-go/pkg/achannel"
	"github.com/open-telemetry/otap-dataflow-go/pkg/control"
	"github.com/open-telemetry/otap-dataflow-go/pkg/node"
	"github.com/open-telemetry/otap-dataflow-go/pkg/otaperrors"
	"github.com/open-telemetry/otap-dataflow-go/pkg/pdatamodel"
	"github.com/open-telemetry/otap-dataflow-go/pkg/telemetry"
)

// builtNode bundles a constructed node with its own inbound channels and the
// effect handler wired for it.
type builtNode struct {
	spec  NodeSpec
	impl  node.Node
	mc    *achannel.MessageChannel
	eh    *node.EffectHandler
	edges map[string]*HyperEdge // this node's own outgoing hyper-edges, by port
}

// ackBus is the minimal AckSink every built node in an instance shares:
// acks/nacks land on a bounded channel any interested collaborator (e.g. a
// receiver implementing redelivery, or the subscriber registry) can drain.
// This keeps node->controller ack plumbing one-directional, matching the
// design note on breaking cyclic controller<->node ownership.
type ackBus struct {
	ch *achannel.Channel[control.Message]
}

func newAckBus() *ackBus {
	return &ackBus{ch: achannel.NewChannel[control.Message](achannel.DefaultControlCapacity)}
}

func (b *ackBus) NotifyAck(ctx context.Context, fingerprint uint64) error {
	return b.ch.Send(ctx, control.NewAck(fingerprint))
}

func (b *ackBus) NotifyNack(ctx context.Context, nack control.NackMsg) error {
	return b.ch.Send(ctx, control.Message{Kind: control.KindNack, Nack: nack})
}

// Instance is one fully wired, constructed pipeline, ready to run on its
// dedicated per-core thread (spec section 4.2/4.7). Building one instance
// is spec section 4.3's "pipeline build time": instantiate, validate,
// construct channels, resolve wiring.
type Instance struct {
	GroupID    string
	PipelineID string
	ShardID    uint32

	nodes  map[string]*builtNode
	acks   *ackBus
	logger *zap.Logger
}

// Acks exposes the shared ack/nack bus for this instance.
func (p *Instance) Acks() *achannel.Channel[control.Message] {
	return p.acks.ch
}

// Build validates g against reg and constructs every node, wiring channels
// for each hyper-edge destination and attaching dispatch strategies (spec
// section 4.3).
func Build(ctx context.Context, reg *Registry, bctx BuildContext, g Graph, logger *zap.Logger, metrics *telemetry.Registry) (*Instance, []error) {
	if errs := ValidateGraph(g, reg); len(errs) > 0 {
		return nil, errs
	}

	bus := newAckBus()
	inst := &Instance{
		GroupID:    bctx.PipelineGroupID,
		PipelineID: bctx.PipelineID,
		ShardID:    bctx.ShardID,
		nodes:      make(map[string]*builtNode, len(g.Nodes)),
		acks:       bus,
		logger:     logger,
	}

	// Pass 1: construct message channels for every node so hyper-edges can
	// reference any destination regardless of declaration order.
	mcs := make(map[string]*achannel.MessageChannel, len(g.Nodes))
	for id := range g.Nodes {
		mcs[id] = achannel.NewMessageChannel()
	}

	var errs []error

	// Pass 2: construct nodes and wire their outgoing hyper-edges against
	// the channels built in pass 1.
	for id, spec := range g.Nodes {
		factory, _ := reg.Lookup(spec.PluginURN) // presence already validated

		n, err := factory.Create(ctx, bctx, id, spec.UserConfig, spec)
		if err != nil {
			errs = append(errs, &otaperrors.ConfigurationError{Kind: "factory_create_failed", Node: id, Err: err, Detail: err.Error()})
			continue
		}

		edges := make(map[string]*HyperEdge, len(spec.OutPorts))
		var defaultPort string
		for portName, port := range spec.OutPorts {
			chans := make([]*achannel.Channel[pdatamodel.Pdata], 0, len(port.Destinations))
			for _, dst := range port.Destinations {
				chans = append(chans, mcs[dst].Pdata)
			}
			edges[portName] = NewHyperEdge(port.Dispatch, port.Destinations, chans)
			if defaultPort == "" {
				defaultPort = portName
			}
		}

		ports := make(map[string]node.OutputPort, len(edges))
		for name, e := range edges {
			ports[name] = e
		}

		eh := node.NewEffectHandler(id, defaultPort, ports, bus, logger.With(zap.String("node", id)), metrics)

		inst.nodes[id] = &builtNode{spec: spec, impl: n, mc: mcs[id], eh: eh, edges: edges}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return inst, nil
}

// Run starts every node's message loop and blocks until all of them return,
// which happens once every node has observed Shutdown/closed channels (spec
// section 4.2). The caller (pkg/controller) is responsible for pinning the
// calling goroutine to a dedicated OS thread; node message loops run as
// goroutines under that thread's local scheduling rather than as true
// stackful coroutines, an accepted approximation documented in DESIGN.md.
func (p *Instance) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(p.nodes))

	for id, n := range p.nodes {
		wg.Add(1)
		go func(id string, n *builtNode) {
			defer wg.Done()
			if err := node.RunLoop(ctx, n.impl, n.mc, n.eh); err != nil {
				errCh <- fmt.Errorf("node %q: %w", id, err)
			}
		}(id, n)
	}

	wg.Wait()
	close(errCh)

	var firstErr error
	for err := range errCh {
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Shutdown broadcasts a Shutdown control message, with the given deadline,
// to every node's control channel (spec section 4.2).
func (p *Instance) Shutdown(ctx context.Context, deadline time.Duration, reason string) error {
	msg := control.NewShutdown(deadline, reason)
	for _, n := range p.nodes {
		if err := n.mc.Control.Send(ctx, msg); err != nil {
			if re, ok := err.(interface{ Unwrap() error }); ok {
				_ = re
			}
			return err
		}
	}
	return nil
}

// NodeChannel returns node id's message channel, for receivers that are fed
// externally (e.g. a TCP listener pushing decoded pdata) rather than by
// another node's hyper-edge.
func (p *Instance) NodeChannel(id string) (*achannel.MessageChannel, bool) {
	n, ok := p.nodes[id]
	if !ok {
		return nil, false
	}
	return n.mc, true
}

// CloseAll closes every node's message channel, used when tearing an
// instance down after Run has returned.
func (p *Instance) CloseAll() {
	for _, n := range p.nodes {
		n.mc.Close()
	}
}

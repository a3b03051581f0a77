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

package main

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/open-telemetry/otap-dataflow-go/pkg/achannel"
	"github.com/open-telemetry/otap-dataflow-go/pkg/node"
	"github.com/open-telemetry/otap-dataflow-go/pkg/pipeline"
)

// registerDemoPlugins populates reg with two minimal factories: a
// pass-through processor and a logging exporter. These exist only so this binary
// has something to build and run; a real deployment registers concrete
// plugins (OTLP gRPC receiver, rebatch processor, Parquet exporter, etc.)
// against the same Registry, as noted in spec section 1's non-goals.
func registerDemoPlugins(reg *pipeline.Registry) {
	reg.Register("demo_forwarder", forwarderFactory{})
	reg.Register("demo_log_exporter", logExporterFactory{})
}

// forwarderFactory builds a pass-through processor: every message received
// is sent unchanged to the default output port.
type forwarderFactory struct{}

func (forwarderFactory) Create(_ context.Context, _ pipeline.BuildContext, id string, _ json.RawMessage, _ pipeline.NodeSpec) (node.Node, error) {
	return &forwarderNode{id: id}, nil
}

func (forwarderFactory) ValidateConfig(json.RawMessage) error { return nil }

func (forwarderFactory) WiringContract() pipeline.WiringContract {
	return pipeline.WiringContract{}
}

type forwarderNode struct {
	node.Base
	id string
}

func (n *forwarderNode) ID() string     { return n.id }
func (n *forwarderNode) Kind() node.Kind { return node.KindProcessor }

func (n *forwarderNode) Process(ctx context.Context, msg achannel.Received, eh *node.EffectHandler) error {
	if msg.IsControl {
		return nil
	}
	return eh.SendMessage(ctx, msg.Pdata)
}

// logExporterFactory builds an exporter that logs every received pdata
// value's signal type at debug level, then acks it, in the manner of the
// teacher's loggingexporter.
type logExporterFactory struct{}

func (logExporterFactory) Create(_ context.Context, _ pipeline.BuildContext, id string, _ json.RawMessage, _ pipeline.NodeSpec) (node.Node, error) {
	return &logExporterNode{id: id}, nil
}

func (logExporterFactory) ValidateConfig(json.RawMessage) error { return nil }

func (logExporterFactory) WiringContract() pipeline.WiringContract {
	return pipeline.WiringContract{}
}

type logExporterNode struct {
	node.Base
	id string
}

func (n *logExporterNode) ID() string     { return n.id }
func (n *logExporterNode) Kind() node.Kind { return node.KindExporter }

func (n *logExporterNode) Process(ctx context.Context, msg achannel.Received, eh *node.EffectHandler) error {
	if msg.IsControl {
		return nil
	}
	pd := msg.Pdata
	eh.Logger().Debug("exported pdata", zap.String("signal", pd.Signal.String()))
	return eh.NotifyAck(ctx, pd.Context.Fingerprint)
}

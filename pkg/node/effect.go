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

package node

import (
	"context"
	"fmt"
	"net"
	"sort"
	"syscall"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/open-telemetry/otap-dataflow-go/pkg/control"
	"github.com/open-telemetry/otap-dataflow-go/pkg/otaperrors"
	"github.com/open-telemetry/otap-dataflow-go/pkg/pdatamodel"
	"github.com/open-telemetry/otap-dataflow-go/pkg/telemetry"
)

// OutputPort is the send side of one wired hyper-edge, implemented by
// pkg/pipeline's dispatch strategies. It lives here, rather than in
// pipeline, so that node does not import pipeline (pipeline imports node to
// wire nodes together).
type OutputPort interface {
	Send(ctx context.Context, pd pdatamodel.Pdata) error
}

// AckSink receives upstream Ack/Nack notifications. Implemented by the
// pipeline runtime, which routes them to the upstream node's control
// channel.
type AckSink interface {
	NotifyAck(ctx context.Context, fingerprint uint64) error
	NotifyNack(ctx context.Context, nack control.NackMsg) error
}

// EffectHandler is the runtime-provided object through which a node performs
// every side effect: send, log, allocate I/O, register metrics (spec
// section 4.1).
type EffectHandler struct {
	nodeID      string
	defaultPort string
	ports       map[string]OutputPort
	acks        AckSink
	logger      *zap.Logger
	metrics     *telemetry.Registry
}

// NewEffectHandler constructs an EffectHandler for one node instance. ports
// maps output port name to its wired hyper-edge dispatcher; defaultPort
// names the port send_message uses.
func NewEffectHandler(nodeID, defaultPort string, ports map[string]OutputPort, acks AckSink, logger *zap.Logger, metrics *telemetry.Registry) *EffectHandler {
	return &EffectHandler{
		nodeID:      nodeID,
		defaultPort: defaultPort,
		ports:       ports,
		acks:        acks,
		logger:      logger,
		metrics:     metrics,
	}
}

// SendMessage sends to the node's single default outgoing edge (spec section
// 4.1).
func (h *EffectHandler) SendMessage(ctx context.Context, pd pdatamodel.Pdata) error {
	return h.SendMessageTo(ctx, h.defaultPort, pd)
}

// SendMessageTo sends to a named port, failing with an UnknownPort
// RuntimeError if the port was not resolved at wiring time (spec section
// 4.1).
func (h *EffectHandler) SendMessageTo(ctx context.Context, port string, pd pdatamodel.Pdata) error {
	p, ok := h.ports[port]
	if !ok {
		return &otaperrors.RuntimeError{
			Kind: otaperrors.UnknownPort,
			Node: h.nodeID,
			Err:  fmt.Errorf("unknown output port %q", port),
		}
	}
	return p.Send(ctx, pd)
}

// ConnectedPorts enumerates the ports resolved at wiring time (spec section
// 4.1).
func (h *EffectHandler) ConnectedPorts() []string {
	out := make([]string, 0, len(h.ports))
	for name := range h.ports {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NotifyAck emits an upstream acknowledgment (spec section 4.1).
func (h *EffectHandler) NotifyAck(ctx context.Context, fingerprint uint64) error {
	if h.acks == nil {
		return nil
	}
	return h.acks.NotifyAck(ctx, fingerprint)
}

// NotifyNack emits an upstream negative acknowledgment (spec section 4.1).
func (h *EffectHandler) NotifyNack(ctx context.Context, nack control.NackMsg) error {
	if h.acks == nil {
		return nil
	}
	return h.acks.NotifyNack(ctx, nack)
}

// Logger returns this node's structured logger, pre-tagged with its node id.
func (h *EffectHandler) Logger() *zap.Logger { return h.logger }

// Metrics returns the registry RegisterMetrics draws from.
func (h *EffectHandler) Metrics() *telemetry.Registry { return h.metrics }

// RegisterMetrics returns a typed metric set handle scoped to this node,
// whose instruments are created off a real go.opentelemetry.io/otel/metric
// Meter and read back by the engine's telemetry pipeline (spec section
// 4.1). Go methods cannot be generic, so this is a package-level function
// taking the handler rather than EffectHandler.RegisterMetrics[T].
func RegisterMetrics[T any](h *EffectHandler, name, brief string, newSet func(meter metric.Meter) (T, error)) (*telemetry.Handle[T], error) {
	return telemetry.Register(h.metrics, h.nodeID, name, brief, newSet)
}

// TCPListener returns a non-blocking listener with SO_REUSEADDR|SO_REUSEPORT
// set, used when a receiver binds a port on each per-core instance so the
// kernel load-balances across cores (spec sections 4.1 and 5). The listen
// backlog is the Go runtime's default (the system's somaxconn);
// ListenBacklog is not applied to the socket.
func (h *EffectHandler) TCPListener(addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					ctrlErr = err
					return
				}
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
					ctrlErr = err
					return
				}
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, &otaperrors.RuntimeError{Kind: otaperrors.IOError, Node: h.nodeID, Err: err}
	}
	return ln, nil
}

const ListenBacklog = 8192

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
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/open-telemetry/otap-dataflow-go/pkg/achannel"
	"github.com/open-telemetry/otap-dataflow-go/pkg/otaperrors"
	"github.com/open-telemetry/otap-dataflow-go/pkg/pdatamodel"
)

// destination is one hyper-edge target: the node id it was wired to (for
// deterministic tie-breaking and diagnostics) and the channel feeding that
// node's pdata input.
type destination struct {
	nodeID string
	ch     *achannel.Channel[pdatamodel.Pdata]
	closed atomic.Bool
}

// HyperEdge implements node.OutputPort, fanning pdata out to every
// destination according to its DispatchStrategy (spec section 4.3).
type HyperEdge struct {
	strategy DispatchStrategy
	dests    []*destination
	rrNext   uint64
	mu       sync.Mutex // guards rrNext under concurrent sends, if any
}

// NewHyperEdge constructs a hyper-edge over the given destination channels,
// in the same order as the node ids they were wired from (used to break
// LeastLoaded ties deterministically by destination id).
func NewHyperEdge(strategy DispatchStrategy, destNodeIDs []string, destChannels []*achannel.Channel[pdatamodel.Pdata]) *HyperEdge {
	dests := make([]*destination, len(destNodeIDs))
	for i := range destNodeIDs {
		dests[i] = &destination{nodeID: destNodeIDs[i], ch: destChannels[i]}
	}
	return &HyperEdge{strategy: strategy, dests: dests}
}

// MarkClosed records that a destination's channel has been closed, so
// RoundRobin/Random can skip it (spec section 4.3: "RoundRobin - ... skip
// closed destinations").
func (h *HyperEdge) MarkClosed(nodeID string) {
	for _, d := range h.dests {
		if d.nodeID == nodeID {
			d.closed.Store(true)
		}
	}
}

// Send dispatches pd according to the hyper-edge's strategy.
func (h *HyperEdge) Send(ctx context.Context, pd pdatamodel.Pdata) error {
	switch h.strategy {
	case Broadcast:
		return h.sendBroadcast(ctx, pd)
	case RoundRobin:
		return h.sendRoundRobin(ctx, pd)
	case Random:
		return h.sendRandom(ctx, pd)
	case LeastLoaded:
		return h.sendLeastLoaded(ctx, pd)
	default:
		return &otaperrors.RuntimeError{Kind: otaperrors.PluginError, Err: errUnknownStrategy}
	}
}

var errUnknownStrategy = dispatchErr("pipeline: unknown dispatch strategy")

type dispatchErr string

func (e dispatchErr) Error() string { return string(e) }

// sendBroadcast clones pd (O(1) for columnar OTAP data, since Arrow buffers
// are reference-counted) and sends to every live destination; if any
// destination's channel is full, the sender suspends (spec section 4.3).
func (h *HyperEdge) sendBroadcast(ctx context.Context, pd pdatamodel.Pdata) error {
	live := h.liveDests()
	if len(live) == 0 {
		return nil
	}
	for i, d := range live {
		var toSend pdatamodel.Pdata
		if i == len(live)-1 {
			toSend = pd // last destination consumes the original, no extra clone
		} else {
			toSend = pd.Clone()
		}
		if err := d.ch.Send(ctx, toSend); err != nil {
			return err
		}
	}
	return nil
}

// sendRoundRobin sends to destinations in rotation, skipping closed
// destinations, suspending if the chosen destination is full (spec section
// 4.3).
func (h *HyperEdge) sendRoundRobin(ctx context.Context, pd pdatamodel.Pdata) error {
	live := h.liveDests()
	if len(live) == 0 {
		return nil
	}
	h.mu.Lock()
	idx := h.rrNext % uint64(len(live))
	h.rrNext++
	h.mu.Unlock()
	return live[idx].ch.Send(ctx, pd)
}

// sendRandom chooses a destination uniformly, suspending if full (spec
// section 4.3).
func (h *HyperEdge) sendRandom(ctx context.Context, pd pdatamodel.Pdata) error {
	live := h.liveDests()
	if len(live) == 0 {
		return nil
	}
	idx := rand.Intn(len(live))
	return live[idx].ch.Send(ctx, pd)
}

// sendLeastLoaded chooses the destination with the largest available
// capacity, ties broken deterministically by destination id (spec section
// 4.3).
func (h *HyperEdge) sendLeastLoaded(ctx context.Context, pd pdatamodel.Pdata) error {
	live := h.liveDests()
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool { return live[i].nodeID < live[j].nodeID })
	best := live[0]
	bestAvail := best.ch.AvailableCapacity()
	for _, d := range live[1:] {
		if avail := d.ch.AvailableCapacity(); avail > bestAvail {
			best, bestAvail = d, avail
		}
	}
	return best.ch.Send(ctx, pd)
}

func (h *HyperEdge) liveDests() []*destination {
	out := make([]*destination, 0, len(h.dests))
	for _, d := range h.dests {
		if !d.closed.Load() {
			out = append(out, d)
		}
	}
	return out
}

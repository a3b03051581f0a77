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

// Package pipeline implements the node graph model, factory/wiring
// contracts, and dispatch strategies of spec sections 3.2 and 4.3.
package pipeline

import (
	"encoding/json"

	"github.com/open-telemetry/otap-dataflow-go/pkg/node"
)

// DispatchStrategy selects how a hyper-edge fans pdata out to its
// destinations (spec section 4.3).
type DispatchStrategy int

const (
	Broadcast DispatchStrategy = iota
	RoundRobin
	Random
	LeastLoaded
)

func (d DispatchStrategy) String() string {
	switch d {
	case Broadcast:
		return "Broadcast"
	case RoundRobin:
		return "RoundRobin"
	case Random:
		return "Random"
	case LeastLoaded:
		return "LeastLoaded"
	default:
		return "Unknown"
	}
}

// OutPortSpec is one named output port's configuration: a hyper-edge of
// destination node ids plus a dispatch strategy (spec section 3.2).
type OutPortSpec struct {
	Destinations []string
	Dispatch     DispatchStrategy
}

// NodeSpec is the configuration-time description of one graph node (spec
// section 3.2), before Factory.Create constructs its runtime Node.
type NodeSpec struct {
	ID         string
	Kind       node.Kind
	PluginURN  string
	UserConfig json.RawMessage
	OutPorts   map[string]OutPortSpec
}

// Graph is a pipeline's full node set, keyed by node id.
type Graph struct {
	Nodes map[string]NodeSpec
}

// FanoutRule is a wiring contract's per-output restriction (spec section
// 3.2): either unrestricted, or capped at N destinations.
type FanoutRule struct {
	Unrestricted bool
	MaxPerOutput int
}

// AtMostPerOutput returns a FanoutRule capping a port's destination count.
func AtMostPerOutput(n int) FanoutRule { return FanoutRule{MaxPerOutput: n} }

// UnrestrictedFanout is the FanoutRule allowing any number of destinations.
var UnrestrictedFanout = FanoutRule{Unrestricted: true}

// WiringContract declares, per plugin, the fanout rule of each named output
// port it exposes (spec section 3.2). A port with no entry defaults to
// UnrestrictedFanout.
type WiringContract struct {
	PerOutput map[string]FanoutRule
}

// RuleFor returns the fanout rule for a named port, defaulting to
// unrestricted.
func (w WiringContract) RuleFor(port string) FanoutRule {
	if w.PerOutput == nil {
		return UnrestrictedFanout
	}
	if r, ok := w.PerOutput[port]; ok {
		return r
	}
	return UnrestrictedFanout
}

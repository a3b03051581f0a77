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
	"fmt"
	"sort"

	"github.com/open-telemetry/otap-dataflow-go/pkg/node"
	"github.com/open-telemetry/otap-dataflow-go/pkg/otaperrors"
)

// ValidateGraph checks the static invariants of spec sections 3.2 and 4.3:
// destinations exist, a node's wiring contract permits its actual fanout,
// the graph is acyclic, receivers have no pdata input, and exporters have no
// pdata output. It returns every violation found, aggregated (spec section
// 6.1).
func ValidateGraph(g Graph, reg *Registry) []error {
	var errs []error

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	indegree := make(map[string]int, len(g.Nodes))
	outedges := make(map[string][]string, len(g.Nodes))
	for _, id := range ids {
		indegree[id] = 0
	}

	for _, id := range ids {
		spec := g.Nodes[id]

		if spec.Kind == node.KindReceiver && len(spec.OutPorts) == 0 {
			errs = append(errs, &otaperrors.ConfigurationError{
				Kind: "receiver_without_output", Node: id,
				Detail: "receivers must declare at least one output port",
			})
		}
		if spec.Kind == node.KindExporter && len(spec.OutPorts) != 0 {
			errs = append(errs, &otaperrors.ConfigurationError{
				Kind: "exporter_with_output", Node: id,
				Detail: "exporters have no pdata output",
			})
		}

		factory, ok := reg.Lookup(spec.PluginURN)
		if !ok {
			errs = append(errs, &otaperrors.ConfigurationError{
				Kind: "unknown_plugin_urn", Node: id,
				Detail: fmt.Sprintf("plugin URN %q is not registered", spec.PluginURN),
			})
			continue
		}
		contract := factory.WiringContract()

		portNames := make([]string, 0, len(spec.OutPorts))
		for name := range spec.OutPorts {
			portNames = append(portNames, name)
		}
		sort.Strings(portNames)

		for _, portName := range portNames {
			port := spec.OutPorts[portName]

			rule := contract.RuleFor(portName)
			if !rule.Unrestricted && len(port.Destinations) > rule.MaxPerOutput {
				errs = append(errs, &otaperrors.ConfigurationError{
					Kind: "wiring_contract_violation", Node: id,
					Detail: fmt.Sprintf("port %q allows at most %d destinations, got %d", portName, rule.MaxPerOutput, len(port.Destinations)),
				})
			}

			for _, dst := range port.Destinations {
				if _, ok := g.Nodes[dst]; !ok {
					errs = append(errs, &otaperrors.ConfigurationError{
						Kind: "destination_not_found", Node: id,
						Detail: fmt.Sprintf("port %q references unknown destination node %q", portName, dst),
					})
					continue
				}
				outedges[id] = append(outedges[id], dst)
				indegree[dst]++
			}
		}
	}

	for _, id := range ids {
		if g.Nodes[id].Kind == node.KindReceiver && indegree[id] > 0 {
			errs = append(errs, &otaperrors.ConfigurationError{
				Kind: "receiver_with_input", Node: id,
				Detail: "receivers have no pdata input",
			})
		}
	}

	if cyc := findCycle(ids, outedges); cyc != nil {
		errs = append(errs, &otaperrors.ConfigurationError{
			Kind:   "cyclic_graph",
			Detail: fmt.Sprintf("cycle detected: %v", cyc),
		})
	}

	return errs
}

// findCycle runs Kahn's algorithm and returns a representative cycle (as a
// node id slice) if the graph is not a DAG, or nil if it is acyclic (spec
// section 3.2: "The graph must be acyclic after processor-chain merging.").
func findCycle(ids []string, outedges map[string][]string) []string {
	indegree := make(map[string]int, len(ids))
	for _, id := range ids {
		indegree[id] = 0
	}
	for _, id := range ids {
		for _, dst := range outedges[id] {
			indegree[dst]++
		}
	}

	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		dests := append([]string(nil), outedges[n]...)
		sort.Strings(dests)
		for _, dst := range dests {
			indegree[dst]--
			if indegree[dst] == 0 {
				queue = append(queue, dst)
			}
		}
	}

	if visited == len(ids) {
		return nil
	}

	var remaining []string
	for _, id := range ids {
		if indegree[id] > 0 {
			remaining = append(remaining, id)
		}
	}
	sort.Strings(remaining)
	return remaining
}

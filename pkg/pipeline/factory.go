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
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/open-telemetry/otap-dataflow-go/pkg/node"
)

// BuildContext is handed to every Factory.Create call; it identifies the
// pipeline-group/pipeline/shard this node instance belongs to (spec section
// 3.1's Context, reused here at construction time).
type BuildContext struct {
	PipelineGroupID string
	PipelineID      string
	ShardID         uint32
}

// Factory constructs nodes for one plugin URN and statically validates their
// user configuration (spec section 4.3 step 1-2). The design note on
// "Dynamic plugin registration" treats the abstract requirement as "a
// registry that maps a plugin URN to a factory function and a static
// validator, populated at binary startup"; here that is an explicit
// in-memory Registry populated by RegisterFactory calls rather than a
// linker-section slice, since Go has no portable equivalent of Rust's
// distributed-slice.
type Factory interface {
	// Create instantiates a node. spec describes the node's own resolved
	// output ports, useful for plugins whose behavior depends on how many
	// destinations a port has.
	Create(ctx context.Context, bctx BuildContext, id string, userConfig json.RawMessage, spec NodeSpec) (node.Node, error)

	// ValidateConfig performs a static-only check that rejects clearly
	// invalid input (spec section 4.3 step 2), independent of any
	// particular pipeline wiring.
	ValidateConfig(userConfig json.RawMessage) error

	// WiringContract declares this plugin's fanout rules (spec section
	// 3.2).
	WiringContract() WiringContract
}

// Registry maps a plugin URN to its Factory, populated at binary startup
// (spec design notes).
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty factory registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given plugin URN. It panics on a
// duplicate URN, matching the teacher's pattern of failing fast on
// programmer error at startup (e.g. component.MustNewType in the collector
// factory registries) rather than returning an error callers would have to
// check at init time.
func (r *Registry) Register(urn string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[urn]; exists {
		panic(fmt.Sprintf("pipeline: plugin URN %q already registered", urn))
	}
	r.factories[urn] = f
}

// Lookup returns the factory registered for urn, or false if none is.
func (r *Registry) Lookup(urn string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[urn]
	return f, ok
}

// URNs returns every registered plugin URN, sorted, mainly for diagnostics.
func (r *Registry) URNs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for urn := range r.factories {
		out = append(out, urn)
	}
	sort.Strings(out)
	return out
}

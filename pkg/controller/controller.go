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

// Package controller implements spec section 4.7: it accepts pipeline
// specs, validates them, assigns one thread per pipeline-group x core, and
// tracks PipelinePhase in an in-memory observed-state keyed by
// (PipelineGroupKey, PipelineKey).
package controller

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/open-telemetry/otap-dataflow-go/pkg/phase"
	"github.com/open-telemetry/otap-dataflow-go/pkg/pipeline"
	"github.com/open-telemetry/otap-dataflow-go/pkg/telemetry"
)

// PipelineGroupKey and PipelineKey identify a pipeline-group and a pipeline
// within it (spec section 4.7).
type PipelineGroupKey string
type PipelineKey string

// instanceRecord is the controller's bookkeeping for one admitted per-core
// pipeline instance.
type instanceRecord struct {
	group PipelineGroupKey
	id    PipelineKey
	shard uint32
	state phase.State
	task  *ThreadTask
}

// Controller admits pipeline specs, validates them, and for each
// pipeline-group x core assigns one thread (spec section 4.7).
type Controller struct {
	mu       sync.Mutex // coarse-grained, guards observed (spec section 5)
	observed *SlotMap[*instanceRecord]
	byKey    map[PipelineGroupKey]map[PipelineKey][]SlotKey

	registry *pipeline.Registry
	metrics  *telemetry.Registry
	logger   *zap.Logger
}

// New returns a Controller backed by the given plugin registry and
// telemetry registry.
func New(registry *pipeline.Registry, metrics *telemetry.Registry, logger *zap.Logger) *Controller {
	return &Controller{
		observed: NewSlotMap[*instanceRecord](),
		byKey:    make(map[PipelineGroupKey]map[PipelineKey][]SlotKey),
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// Quota describes how many cores a pipeline-group is assigned. NumCores == 0
// means all available cores (spec section 5).
type Quota struct {
	NumCores int
}

func (q Quota) resolve() int {
	if q.NumCores <= 0 {
		return runtime.NumCPU()
	}
	return q.NumCores
}

// Admit validates spec, then spawns one per-core ThreadTask per shard,
// transitioning each from Pending through Starting to Running (spec section
// 3.3/4.7). It returns the keys of every shard admitted, or the validation
// errors if the graph itself was rejected.
func (c *Controller) Admit(ctx context.Context, group PipelineGroupKey, id PipelineKey, g pipeline.Graph, quota Quota) ([]SlotKey, []error) {
	numCores := quota.resolve()

	// Validate the graph once up front; per-shard Build calls
	// below reuse the same graph and will only fail for reasons already
	// caught here (the graph doesn't change per shard).
	if errs := pipeline.ValidateGraph(g, c.registry); len(errs) > 0 {
		return nil, errs
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]SlotKey, 0, numCores)
	for shard := 0; shard < numCores; shard++ {
		rec := &instanceRecord{group: group, id: id, shard: uint32(shard), state: phase.State{Phase: phase.Pending}}
		key := c.observed.Insert(rec)
		keys = append(keys, key)

		bctx := pipeline.BuildContext{PipelineGroupID: string(group), PipelineID: string(id), ShardID: uint32(shard)}
		inst, errs := pipeline.Build(ctx, c.registry, bctx, g, c.logger, c.metrics)
		if len(errs) > 0 {
			rec.state = phase.State{Phase: phase.Failed, Reason: phase.ReasonRuntimeError}
			c.observed.Set(key, rec)
			return keys, errs
		}

		rec.state, _ = phase.Transition(rec.state, phase.Starting, "")
		c.observed.Set(key, rec)

		threadName := fmt.Sprintf("%s/%s/shard-%d", group, id, shard)
		rec.task = StartThreadTask(threadName, shard, inst, c.logger)

		rec.state, _ = phase.Transition(rec.state, phase.Running, "")
		c.observed.Set(key, rec)
	}

	if c.byKey[group] == nil {
		c.byKey[group] = make(map[PipelineKey][]SlotKey)
	}
	c.byKey[group][id] = append(c.byKey[group][id], keys...)

	return keys, nil
}

// Phase returns the observed phase for one shard, or false if the key is
// stale.
func (c *Controller) Phase(key SlotKey) (phase.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.observed.Get(key)
	if !ok {
		return phase.State{}, false
	}
	return rec.state, true
}

// Drain transitions every shard of (group, id) to Draining and shuts down
// its thread task within deadline, then to Stopped (or Failed(DrainError)
// if the deadline is exceeded), per spec section 4.2's Shutdown protocol
// and section 4.7's drain-deadline enforcement.
func (c *Controller) Drain(group PipelineGroupKey, id PipelineKey, deadline time.Duration) error {
	c.mu.Lock()
	keys := append([]SlotKey(nil), c.byKey[group][id]...)
	c.mu.Unlock()

	var firstErr error
	for _, key := range keys {
		c.mu.Lock()
		rec, ok := c.observed.Get(key)
		if ok {
			rec.state, _ = phase.Transition(rec.state, phase.Draining, "")
			c.observed.Set(key, rec)
		}
		c.mu.Unlock()
		if !ok {
			continue
		}

		err := rec.task.ShutdownAndJoin(deadline)

		c.mu.Lock()
		if err != nil {
			rec.state = phase.State{Phase: phase.Failed, Reason: phase.ReasonDrainError}
			if firstErr == nil {
				firstErr = err
			}
		} else {
			rec.state, _ = phase.Transition(rec.state, phase.Stopped, "")
		}
		c.observed.Set(key, rec)
		c.mu.Unlock()
	}
	return firstErr
}

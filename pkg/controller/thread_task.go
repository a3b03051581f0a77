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

package controller

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/open-telemetry/otap-dataflow-go/pkg/otaperrors"
	"github.com/open-telemetry/otap-dataflow-go/pkg/pipeline"
)

// ThreadTask hosts one pipeline instance on a dedicated OS thread pinned to
// one CPU core (spec sections 4.2, 4.7, 5). Go has no portable stackful
// coroutine; the pinning guarantee is implemented with
// runtime.LockOSThread plus unix.SchedSetaffinity (Linux), and the
// single-threaded-per-instance contract is approximated by running every
// node of the instance as a goroutine spawned from that locked thread, per
// the design note's "fibers, stackful coroutines, or an explicit
// state-machine-per-node scheduler" alternative.
type ThreadTask struct {
	name   string
	cancel context.CancelFunc
	done   chan error
	once   sync.Once
}

// StartThreadTask spawns a pinned OS thread running inst.Run, returning a
// handle for shutdown/join.
func StartThreadTask(name string, coreID int, inst *pipeline.Instance, logger *zap.Logger) *ThreadTask {
	ctx, cancel := context.WithCancel(context.Background())
	t := &ThreadTask{name: name, cancel: cancel, done: make(chan error, 1)}

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if coreID >= 0 {
			if err := pinToCore(coreID); err != nil {
				logger.Warn("failed to pin pipeline thread to core",
					zap.String("thread", name), zap.Int("core", coreID), zap.Error(err))
			}
		}

		t.done <- runSafely(func() error { return inst.Run(ctx) })
	}()

	return t
}

// pinToCore sets the calling thread's CPU affinity mask to a single core.
func pinToCore(coreID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(coreID)
	return unix.SchedSetaffinity(0, &set)
}

// runSafely recovers a panic from fn and maps it to a ThreadJoinPanic
// LifecycleError (spec section 4.7: "mapping panics into a ThreadJoinPanic
// error with the thread name"). The thread name itself is attached by the
// caller (Shutdown/Join), since recover() only sees the panic value here.
func runSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Shutdown cancels the thread's cancellation token. Idempotent.
func (t *ThreadTask) Shutdown() {
	t.once.Do(t.cancel)
}

// ShutdownAndJoin signals shutdown then waits for the thread to exit,
// mapping a panic (surfaced as a plain error by runSafely) into a
// ThreadJoinPanic LifecycleError naming this thread, or timing out after
// deadline into a DrainDeadlineExceed error (spec sections 4.2, 4.7).
func (t *ThreadTask) ShutdownAndJoin(deadline time.Duration) error {
	t.Shutdown()
	select {
	case err := <-t.done:
		if err == nil {
			return nil
		}
		return &otaperrors.LifecycleError{Kind: otaperrors.ThreadJoinPanic, ThreadName: t.name, Err: err}
	case <-time.After(deadline):
		return &otaperrors.LifecycleError{Kind: otaperrors.DrainDeadlineExceed, ThreadName: t.name}
	}
}

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

package walprogress

import (
	"sync"

	"go.uber.org/zap"

	"github.com/open-telemetry/otap-dataflow-go/pkg/otaperrors"
)

// subscriberState is one subscriber's live, in-memory bookkeeping: its
// durable progress plus the set of bundles currently claimed by a live
// handle.
type subscriberState struct {
	mu       sync.Mutex
	progress SubscriberProgress
	claimed  map[BundleRef]bool
	writer   *progressWriter
}

// Registry maintains SubscriberId -> SubscriberState, a segment provider,
// and drives the bundle consumption protocol of spec section 4.6.
type Registry struct {
	mu          sync.Mutex
	subscribers map[SubscriberID]*subscriberState
	provider    SegmentProvider
	dir         string
	logger      *zap.Logger
}

// NewRegistry returns a Registry reading segments from provider and
// persisting subscriber progress files under dir.
func NewRegistry(provider SegmentProvider, dir string, logger *zap.Logger) *Registry {
	return &Registry{
		subscribers: make(map[SubscriberID]*subscriberState),
		provider:    provider,
		dir:         dir,
		logger:      logger,
	}
}

// Register adds a new subscriber starting from empty progress, or returns
// otaperrors.SubscriberError{Kind: SubscriberExists} if id is already
// registered (spec section 4.6).
func (r *Registry) Register(id SubscriberID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribers[id]; ok {
		return &otaperrors.SubscriberError{Kind: otaperrors.SubscriberExists, SubscriberID: string(id)}
	}
	r.subscribers[id] = &subscriberState{
		progress: SubscriberProgress{SubscriberID: id},
		claimed:  make(map[BundleRef]bool),
		writer:   newProgressWriter(r.dir, id, r.logger),
	}
	return nil
}

// Restore installs a subscriber with progress recovered from disk (used by
// scan_progress_files at startup), skipping the SubscriberExists check
// Register performs for fresh subscribers.
func (r *Registry) Restore(progress SubscriberProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[progress.SubscriberID] = &subscriberState{
		progress: progress,
		claimed:  make(map[BundleRef]bool),
		writer:   newProgressWriter(r.dir, progress.SubscriberID, r.logger),
	}
}

func (r *Registry) state(id SubscriberID) (*subscriberState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.subscribers[id]
	if !ok {
		return nil, &otaperrors.SubscriberError{Kind: otaperrors.SubscriberNotFound, SubscriberID: string(id)}
	}
	return st, nil
}

// BundleHandle grants exclusive, time-bounded consumption rights for one
// bundle (spec section 3.4). Exactly one of Ack, Reject, or Defer must be
// called; Close defers automatically if none was (spec section 4.6 step
// 4: "If the handle is dropped without an explicit call, the bundle is
// auto-deferred.").
type BundleHandle struct {
	ref      BundleRef
	Data     []byte
	resolver *Registry
	id       SubscriberID
	done     bool
}

// Ref returns the bundle this handle claims.
func (h *BundleHandle) Ref() BundleRef { return h.ref }

// Ack marks the bundle resolved, advances first_unresolved_bundle_index
// past any newly-contiguous run, and schedules a progress snapshot (spec
// section 4.6 step 3).
func (h *BundleHandle) Ack() error {
	return h.resolve(true)
}

// Reject marks the bundle permanently dropped; identical state transition
// to Ack (spec section 4.6 step 3). reason is not recorded.
func (h *BundleHandle) Reject(reason string) error {
	return h.resolve(true)
}

// Defer releases the claim without changing resolved state; the bundle
// becomes eligible for redelivery via NextBundle (spec section 4.6 step
// 3).
func (h *BundleHandle) Defer() error {
	return h.resolve(false)
}

// Close auto-defers an un-finalized handle (spec section 4.6 step 4).
// Callers should `defer handle.Close()` immediately after a successful
// NextBundle to guarantee this even on a panicking consumer.
func (h *BundleHandle) Close() error {
	if h.done {
		return nil
	}
	return h.Defer()
}

func (h *BundleHandle) resolve(mark bool) error {
	if h.done {
		return nil
	}
	h.done = true

	st, err := h.resolver.state(h.id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	delete(st.claimed, h.ref)
	if mark {
		e := st.progress.entryOrCreate(h.ref.SegmentSeq, h.ref.BundleIndex+1)
		e.Resolved.Set(h.ref.BundleIndex)
		if h.ref.BundleIndex == e.FirstUnresolvedBundleIdx {
			e.FirstUnresolvedBundleIdx = e.Resolved.FirstUnset(e.FirstUnresolvedBundleIdx)
		}
	}
	snapshot := cloneProgress(st.progress)
	writer := st.writer
	st.mu.Unlock()

	if mark {
		writer.scheduleSnapshot(snapshot)
	}
	return nil
}

// NextBundle atomically finds the oldest unresolved, unclaimed bundle
// across every in-progress segment and returns a BundleHandle granting
// exclusive claim, or otaperrors.SubscriberError{Kind: BundleNotAvailable}
// if nothing is currently eligible (spec section 4.6 step 1-2).
func (r *Registry) NextBundle(id SubscriberID) (*BundleHandle, error) {
	st, err := r.state(id)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	for _, segSeq := range r.provider.Segments() {
		count, ok := r.provider.BundleCount(segSeq)
		if !ok || count == 0 {
			continue
		}
		e := st.progress.entryOrCreate(segSeq, count)
		for idx := e.FirstUnresolvedBundleIdx; idx < count; idx++ {
			if e.Resolved.Get(idx) {
				continue
			}
			ref := BundleRef{SegmentSeq: segSeq, BundleIndex: idx}
			if st.claimed[ref] {
				continue
			}
			st.claimed[ref] = true
			st.mu.Unlock()

			data, err := r.provider.Load(ref)
			if err != nil {
				st.mu.Lock()
				delete(st.claimed, ref)
				st.mu.Unlock()
				return nil, &otaperrors.SubscriberError{Kind: otaperrors.SegmentIOError, SubscriberID: string(id), Err: err}
			}
			return &BundleHandle{ref: ref, Data: data, resolver: r, id: id}, nil
		}
	}
	st.mu.Unlock()
	return nil, &otaperrors.SubscriberError{Kind: otaperrors.BundleNotAvailable, SubscriberID: string(id)}
}

func cloneProgress(p SubscriberProgress) SubscriberProgress {
	cp := SubscriberProgress{SubscriberID: p.SubscriberID, Segments: make([]SegmentProgressEntry, len(p.Segments))}
	for i, e := range p.Segments {
		cp.Segments[i] = SegmentProgressEntry{
			SegmentSeq:               e.SegmentSeq,
			FirstUnresolvedBundleIdx: e.FirstUnresolvedBundleIdx,
			Resolved:                 e.Resolved.clone(),
		}
	}
	return cp
}

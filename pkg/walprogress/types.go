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

// Package walprogress implements the subscriber registry and WAL progress
// layer of spec section 4.6: named subscribers independently tracking
// resolved bundles of a segmented write-ahead log, with handle-based
// ack/reject/defer consumption and durable, atomically-written progress
// snapshots.
package walprogress

import (
	"regexp"

	"github.com/open-telemetry/otap-dataflow-go/pkg/otaperrors"
)

// SubscriberID is a validated subscriber name (spec section 3.4).
type SubscriberID string

var subscriberIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// NewSubscriberID validates s against the subscriber id grammar, returning
// otaperrors.SubscriberError{Kind: InvalidSubscriberID} on rejection.
func NewSubscriberID(s string) (SubscriberID, error) {
	if !subscriberIDPattern.MatchString(s) {
		return "", &otaperrors.SubscriberError{Kind: otaperrors.InvalidSubscriberID, SubscriberID: s}
	}
	return SubscriberID(s), nil
}

// BundleRef addresses one bundle of persisted pdata by segment and index
// within it (spec section 3.4).
type BundleRef struct {
	SegmentSeq   uint64
	BundleIndex  uint32
}

// SegmentProgressEntry tracks one segment's resolved bundles for a single
// subscriber: the running low-water mark plus a full resolved bitmap (spec
// section 3.4).
type SegmentProgressEntry struct {
	SegmentSeq               uint64
	FirstUnresolvedBundleIdx uint32
	Resolved                 *bitmap
}

// SubscriberProgress is one subscriber's durable state, snapshot-written
// atomically to quiver.sub.<id> (spec section 4.6).
type SubscriberProgress struct {
	SubscriberID SubscriberID
	Segments     []SegmentProgressEntry
}

func (p *SubscriberProgress) entry(segmentSeq uint64) *SegmentProgressEntry {
	for i := range p.Segments {
		if p.Segments[i].SegmentSeq == segmentSeq {
			return &p.Segments[i]
		}
	}
	return nil
}

func (p *SubscriberProgress) entryOrCreate(segmentSeq uint64, bundleCount uint32) *SegmentProgressEntry {
	if e := p.entry(segmentSeq); e != nil {
		return e
	}
	p.Segments = append(p.Segments, SegmentProgressEntry{
		SegmentSeq: segmentSeq,
		Resolved:   newBitmap(bundleCount),
	})
	return &p.Segments[len(p.Segments)-1]
}

// SegmentProvider enumerates the WAL segments a registry draws bundles
// from (spec section 4.6: "a segment provider which enumerates available
// segment_seqs and their bundle counts").
type SegmentProvider interface {
	// Segments returns every known segment_seq in ascending order.
	Segments() []uint64
	// BundleCount returns how many bundles segment currently holds, or
	// false if the segment is unknown (e.g. garbage-collected).
	BundleCount(segmentSeq uint64) (uint32, bool)
	// Load returns the raw pdata bytes for one bundle.
	Load(ref BundleRef) ([]byte, error)
}

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
	"os"
	"path/filepath"
	"strings"
)

// ScanProgressFiles implements spec section 4.6's crash recovery:
// scan_progress_files(dir) loads each subscriber's snapshot, drops
// segments no longer known to provider (GC'd), and treats bundles whose
// index now exceeds the segment's current bundle count as unresolved.
func ScanProgressFiles(dir string, provider SegmentProvider) ([]SubscriberProgress, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []SubscriberProgress
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "quiver.sub.") || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		progress, err := readProgressFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, reconcile(progress, provider))
	}
	return out, nil
}

// reconcile applies the segment-existence rules of spec section 4.6 to a
// recovered snapshot before it is installed into a live Registry.
func reconcile(p SubscriberProgress, provider SegmentProvider) SubscriberProgress {
	kept := p.Segments[:0]
	for _, e := range p.Segments {
		count, ok := provider.BundleCount(e.SegmentSeq)
		if !ok {
			// Segment garbage-collected: silently dropped from state.
			continue
		}
		if e.FirstUnresolvedBundleIdx > count {
			e.FirstUnresolvedBundleIdx = count
		}
		kept = append(kept, e)
	}
	p.Segments = kept
	return p
}

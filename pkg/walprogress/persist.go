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
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/open-telemetry/otap-dataflow-go/pkg/otaperrors"
)

const progressFileVersion uint32 = 1

// progressWriter is the coalescing writer task of spec section 4.6: one per
// subscriber, serializing snapshots and writing them via temp-file + fsync
// + rename. Multiple ack()s in quick succession collapse: the writer
// goroutine writes only the latest scheduled snapshot when it next runs,
// rather than one write per ack.
type progressWriter struct {
	dir    string
	id     SubscriberID
	logger *zap.Logger

	pending atomic.Pointer[SubscriberProgress]
	wake    chan struct{}
	once    sync.Once
	group   singleflight.Group
}

func newProgressWriter(dir string, id SubscriberID, logger *zap.Logger) *progressWriter {
	w := &progressWriter{dir: dir, id: id, logger: logger, wake: make(chan struct{}, 1)}
	go w.run()
	return w
}

// scheduleSnapshot records snap as the latest pending write and wakes the
// writer goroutine, coalescing with any write already queued.
func (w *progressWriter) scheduleSnapshot(snap SubscriberProgress) {
	w.pending.Store(&snap)
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *progressWriter) run() {
	for range w.wake {
		snap := w.pending.Swap(nil)
		if snap == nil {
			continue
		}
		if _, err, _ := w.group.Do(string(w.id), func() (interface{}, error) {
			return nil, writeProgressFile(w.dir, *snap)
		}); err != nil && w.logger != nil {
			w.logger.Error("walprogress: snapshot write failed", zap.String("subscriber", string(w.id)), zap.Error(err))
		}
	}
}

// Flush synchronously writes the most recently scheduled snapshot, if any,
// waiting for an in-flight write to the same file to complete rather than
// racing it (spec section 4.6: "writes to the same file are serialized").
func (w *progressWriter) Flush() error {
	snap := w.pending.Swap(nil)
	if snap == nil {
		return nil
	}
	_, err, _ := w.group.Do(string(w.id), func() (interface{}, error) {
		return nil, writeProgressFile(w.dir, *snap)
	})
	return err
}

func progressFilePath(dir string, id SubscriberID) string {
	return filepath.Join(dir, fmt.Sprintf("quiver.sub.%s", id))
}

// writeProgressFile implements spec section 4.6's atomic persistence:
// serialize, write to a temp file, fsync, then rename over the final path.
// The file is [version uint32][checksum uint32][json payload]; the
// checksum covers the payload so a truncated or corrupted file is
// detected on read rather than silently accepted.
func writeProgressFile(dir string, snap SubscriberProgress) error {
	payload, err := json.Marshal(wireProgress(snap))
	if err != nil {
		return &otaperrors.SubscriberError{Kind: otaperrors.ProgressIOError, SubscriberID: string(snap.SubscriberID), Err: err}
	}

	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], progressFileVersion)
	binary.BigEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(payload))

	final := progressFilePath(dir, snap.SubscriberID)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &otaperrors.SubscriberError{Kind: otaperrors.ProgressIOError, SubscriberID: string(snap.SubscriberID), Err: err}
	}
	if _, err := f.Write(header[:]); err != nil {
		f.Close()
		return &otaperrors.SubscriberError{Kind: otaperrors.ProgressIOError, SubscriberID: string(snap.SubscriberID), Err: err}
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return &otaperrors.SubscriberError{Kind: otaperrors.ProgressIOError, SubscriberID: string(snap.SubscriberID), Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return &otaperrors.SubscriberError{Kind: otaperrors.ProgressIOError, SubscriberID: string(snap.SubscriberID), Err: err}
	}
	if err := f.Close(); err != nil {
		return &otaperrors.SubscriberError{Kind: otaperrors.ProgressIOError, SubscriberID: string(snap.SubscriberID), Err: err}
	}
	if err := os.Rename(tmp, final); err != nil {
		return &otaperrors.SubscriberError{Kind: otaperrors.ProgressIOError, SubscriberID: string(snap.SubscriberID), Err: err}
	}
	return nil
}

// readProgressFile parses and validates one progress file, returning
// otaperrors.SubscriberError{Kind: ProgressCorrupt} on a checksum mismatch
// or malformed header rather than silently resetting progress (spec
// section 4.6).
func readProgressFile(path string) (SubscriberProgress, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SubscriberProgress{}, &otaperrors.SubscriberError{Kind: otaperrors.ProgressIOError, Err: err}
	}
	if len(raw) < 8 {
		return SubscriberProgress{}, &otaperrors.SubscriberError{Kind: otaperrors.ProgressCorrupt, Err: fmt.Errorf("walprogress: file %s shorter than header", path)}
	}
	version := binary.BigEndian.Uint32(raw[0:4])
	checksum := binary.BigEndian.Uint32(raw[4:8])
	payload := raw[8:]
	if version != progressFileVersion {
		return SubscriberProgress{}, &otaperrors.SubscriberError{Kind: otaperrors.ProgressCorrupt, Err: fmt.Errorf("walprogress: file %s has unsupported version %d", path, version)}
	}
	if crc32.ChecksumIEEE(payload) != checksum {
		return SubscriberProgress{}, &otaperrors.SubscriberError{Kind: otaperrors.ProgressCorrupt, Err: fmt.Errorf("walprogress: file %s failed checksum validation", path)}
	}

	var wp wireSubscriberProgress
	if err := json.Unmarshal(payload, &wp); err != nil {
		return SubscriberProgress{}, &otaperrors.SubscriberError{Kind: otaperrors.ProgressCorrupt, Err: err}
	}
	return wp.toProgress(), nil
}

// wireSubscriberProgress is the JSON-serializable form of
// SubscriberProgress; the bitmap's internal []uint64 representation is
// exposed directly since it is already a stable, compact encoding.
type wireSubscriberProgress struct {
	SubscriberID string             `json:"subscriber_id"`
	Segments     []wireSegmentEntry `json:"segments"`
}

type wireSegmentEntry struct {
	SegmentSeq               uint64   `json:"segment_seq"`
	FirstUnresolvedBundleIdx uint32   `json:"first_unresolved_bundle_index"`
	ResolvedBits             []uint64 `json:"resolved_bits"`
}

func wireProgress(p SubscriberProgress) wireSubscriberProgress {
	wp := wireSubscriberProgress{SubscriberID: string(p.SubscriberID), Segments: make([]wireSegmentEntry, len(p.Segments))}
	for i, e := range p.Segments {
		wp.Segments[i] = wireSegmentEntry{
			SegmentSeq:               e.SegmentSeq,
			FirstUnresolvedBundleIdx: e.FirstUnresolvedBundleIdx,
			ResolvedBits:             append([]uint64(nil), e.Resolved.bits...),
		}
	}
	return wp
}

func (wp wireSubscriberProgress) toProgress() SubscriberProgress {
	p := SubscriberProgress{SubscriberID: SubscriberID(wp.SubscriberID), Segments: make([]SegmentProgressEntry, len(wp.Segments))}
	for i, e := range wp.Segments {
		p.Segments[i] = SegmentProgressEntry{
			SegmentSeq:               e.SegmentSeq,
			FirstUnresolvedBundleIdx: e.FirstUnresolvedBundleIdx,
			Resolved:                 &bitmap{bits: append([]uint64(nil), e.ResolvedBits...)},
		}
	}
	return p
}

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

package bridge

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/ipc"

	"github.com/open-telemetry/otap-dataflow-go/pkg/batch"
	"github.com/open-telemetry/otap-dataflow-go/pkg/config"
)

// Encoder serializes RecordGroup payloads into the Arrow-IPC-stream bytes
// carried by a BatchArrowRecords envelope's ArrowPayload entries, with
// optional zstd compression at the IPC level (spec section 5). One
// ipc.Writer is kept open per payload type so its dictionaries accumulate
// across calls instead of being replayed from scratch every time, mirroring
// arrow_record.Producer's per-substream streamProducer.
type Encoder struct {
	cfg     *config.Config
	writers map[batch.PayloadType]*payloadWriter
}

type payloadWriter struct {
	buf    bytes.Buffer
	writer *ipc.Writer
	schema *arrow.Schema
}

// NewEncoder returns an Encoder configured by opts, defaulting to
// config.DefaultConfig() (dictionary-encoded, zstd-compressed IPC).
func NewEncoder(opts ...config.Option) *Encoder {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Encoder{cfg: cfg, writers: make(map[batch.PayloadType]*payloadWriter)}
}

// EncodePayload returns the IPC-stream bytes for one payload type's record,
// opening a new ipc.Writer for pt if none is open yet or rec's schema
// changed since the last call.
func (e *Encoder) EncodePayload(pt batch.PayloadType, rec arrow.Record) ([]byte, error) {
	pw, ok := e.writers[pt]
	if !ok || !pw.schema.Equal(rec.Schema()) {
		if ok {
			pw.writer.Close()
		}
		pw = &payloadWriter{schema: rec.Schema()}
		opts := []ipc.Option{
			ipc.WithAllocator(e.cfg.Pool),
			ipc.WithSchema(rec.Schema()),
			ipc.WithDictionaryDeltas(e.cfg.InitIndexSize > 0),
		}
		if e.cfg.Zstd {
			opts = append(opts, ipc.WithZstd())
		}
		pw.writer = ipc.NewWriter(&pw.buf, opts...)
		e.writers[pt] = pw
	}

	if err := pw.writer.Write(rec); err != nil {
		return nil, fmt.Errorf("bridge: encoding payload %v: %w", pt, err)
	}
	out := make([]byte, pw.buf.Len())
	copy(out, pw.buf.Bytes())
	pw.buf.Reset()
	return out, nil
}

// EncodeGroup encodes every payload of g, returning the IPC-stream bytes
// keyed by payload type.
func (e *Encoder) EncodeGroup(g *batch.RecordGroup) (map[batch.PayloadType][]byte, error) {
	out := make(map[batch.PayloadType][]byte, len(g.Payloads))
	for pt, rec := range g.Payloads {
		b, err := e.EncodePayload(pt, rec)
		if err != nil {
			return nil, err
		}
		out[pt] = b
	}
	return out, nil
}

// Close closes every IPC stream writer the encoder has opened.
func (e *Encoder) Close() error {
	var err error
	for _, pw := range e.writers {
		if cerr := pw.writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

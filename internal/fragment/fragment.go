// Copyright 2026 The SNI Proxy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fragment builds the fragmented byte sequence written upstream in
// place of a client's original ClientHello record, so that no single TLS
// record or TCP segment carries the whole SNI.
package fragment

import (
	"context"
	"io"
	"time"

	"github.com/quietwire/sniproxy/internal/wire"
)

const (
	preSNIMinLen  = 8
	sniMinLen     = 4
	postSNIMinLen = 8
	writeMinLen   = 4

	interWriteDelay = 10 * time.Millisecond
)

// Job is an immutable plan for the first upstream write: the original
// handshake bytes, the byte range of the SNI within them, and the 3-byte
// record type/version prefix to replay onto every re-framed record.
type Job struct {
	Handshake  []byte
	SNIStart   int
	SNIEnd     int // exclusive
	RecordHead [3]byte
}

// Records re-frames j.Handshake into a sequence of TLS records, splitting
// around the SNI span so that no single record holds the whole SNI
// whenever it is long enough to split. It returns the concatenation of all
// records, which reassembles byte-identically to j.Handshake.
func (j Job) Records() []byte {
	h := j.Handshake
	var out []byte

	out = appendRecordsForSpan(out, j.RecordHead, h, 0, j.SNIStart, preSNIMinLen)
	out = appendRecordsForSpan(out, j.RecordHead, h, j.SNIStart, j.SNIEnd, sniMinLen)
	out = appendRecordsForSpan(out, j.RecordHead, h, j.SNIEnd, len(h), postSNIMinLen)

	return out
}

// appendRecordsForSpan re-frames h[start:end] into one or more TLS records
// (prefix + 2-byte length + fragment), partitioned by wire.RandomSlice with
// the given minimum fragment length, and appends them to out.
func appendRecordsForSpan(out []byte, prefix [3]byte, h []byte, start, end, minLen int) []byte {
	span := h[start:end]
	for _, frag := range splitBytes(span, minLen) {
		out = append(out, prefix[:]...)
		out = wire.AppendBE16(out, uint16(len(frag)))
		out = append(out, frag...)
	}
	return out
}

// splitBytes partitions b per wire.RandomSlice into consecutive sub-slices.
func splitBytes(b []byte, minLen int) [][]byte {
	if len(b) == 0 {
		return nil
	}
	lengths := wire.RandomSlice(len(b), minLen)
	out := make([][]byte, len(lengths))
	off := 0
	for i, l := range lengths {
		out[i] = b[off : off+l]
		off += l
	}
	return out
}

// Chunks builds one re-framed record stream with j.Records() and partitions
// it into per-write byte chunks using wire.RandomSlice with the send-side
// minimum length. The concatenation of all chunks is byte-identical to that
// record stream. Cut points are drawn afresh on every call, so a separate
// call to j.Records() generally yields a different stream.
func (j Job) Chunks() [][]byte {
	return splitBytes(j.Records(), writeMinLen)
}

// Write sends j's fragmented ClientHello to w as a sequence of TCP writes,
// sleeping interWriteDelay between writes to encourage independent TCP
// segmentation. It returns the first write or context error encountered.
func Write(ctx context.Context, w io.Writer, j Job) error {
	chunks := j.Chunks()
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		if i < len(chunks)-1 {
			select {
			case <-time.After(interWriteDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

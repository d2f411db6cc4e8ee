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

package tlshello

import "github.com/quietwire/sniproxy/internal/wire"

const (
	// RecordHeaderLen is the length of a TLS record header: type(1) +
	// version(2) + length(2).
	RecordHeaderLen = 5

	// RecordTypeHandshake is the TLS record type carrying handshake
	// messages, including ClientHello.
	RecordTypeHandshake = 0x16

	// MaxRecordPayloadLen is the largest legal TLS record payload.
	MaxRecordPayloadLen = 1 << 14
)

// RecordHeader is the 5-byte header of a TLS record.
type RecordHeader [RecordHeaderLen]byte

// Type returns the record's content type byte.
func (h RecordHeader) Type() byte { return h[0] }

// PayloadLen returns the declared length of the record's payload.
func (h RecordHeader) PayloadLen() int { return int(wire.BE16(h[3:5])) }

// SetPayloadLen overwrites the length field in place.
func (h *RecordHeader) SetPayloadLen(n int) {
	wire.PutBE16(h[3:5], uint16(n))
}

// Validate checks that h declares a handshake record with a plausible
// payload length.
func (h RecordHeader) Validate() error {
	if h.Type() != RecordTypeHandshake {
		return malformed("record type")
	}
	if h.PayloadLen() <= 0 || h.PayloadLen() > MaxRecordPayloadLen {
		return malformed("record length")
	}
	return nil
}

// Prefix returns the 3-byte record type + legacy version prefix shared by
// every fragmented record derived from this header.
func (h RecordHeader) Prefix() [3]byte {
	return [3]byte{h[0], h[1], h[2]}
}

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

// Package tlshello decodes a TLS 1.3 ClientHello handshake message,
// extracting the SNI and its byte range within the message so the
// fragmenter can split around it without re-parsing.
package tlshello

import (
	"fmt"

	"github.com/quietwire/sniproxy/internal/wire"
)

const (
	msgTypeClientHello = 0x01

	extServerName = 0x0000
	extKeyShare   = 0x0033

	sniNameTypeDNS = 0x00
)

// MalformedTLSError reports which field of the handshake message failed to
// decode.
type MalformedTLSError struct {
	Where string
}

func (e *MalformedTLSError) Error() string {
	return fmt.Sprintf("malformed TLS ClientHello: %s", e.Where)
}

func malformed(where string) error {
	return &MalformedTLSError{Where: where}
}

// ClientHello is the result of parsing a ClientHello handshake message: the
// extracted server name, whether a key_share extension (TLS 1.3) was
// present, and the absolute byte range of the SNI within the input slice
// passed to Parse.
type ClientHello struct {
	SNI      string
	IsTLS13  bool
	SNIStart int
	SNIEnd   int // exclusive
}

// Parse decodes h, the contiguous bytes of a single handshake message
// (everything after the 5-byte TLS record header), per the TLS 1.3
// ClientHello wire format. It returns a *MalformedTLSError naming the field
// that failed whenever the input is inconsistent or truncated.
func Parse(h []byte) (ClientHello, error) {
	if len(h) < 4 {
		return ClientHello{}, malformed("handshake header")
	}
	msgType := h[0]
	length := wire.BE24(h[1:4])
	if msgType != msgTypeClientHello {
		return ClientHello{}, malformed("handshake msg_type")
	}
	if uint32(len(h)) != length+4 {
		return ClientHello{}, malformed("handshake length")
	}

	cur := 4
	// legacy_version(2) + random(32)
	if len(h) < cur+34 {
		return ClientHello{}, malformed("legacy_version/random")
	}
	cur += 34

	if len(h) < cur+1 {
		return ClientHello{}, malformed("session_id_len")
	}
	sessionIDLen := int(h[cur])
	cur++
	if len(h) < cur+sessionIDLen {
		return ClientHello{}, malformed("session_id")
	}
	cur += sessionIDLen

	if len(h) < cur+2 {
		return ClientHello{}, malformed("cipher_suites_len")
	}
	cipherSuitesLen := int(wire.BE16(h[cur : cur+2]))
	cur += 2
	if len(h) < cur+cipherSuitesLen {
		return ClientHello{}, malformed("cipher_suites")
	}
	cur += cipherSuitesLen

	if len(h) < cur+1 {
		return ClientHello{}, malformed("compression_methods_len")
	}
	compressionLen := int(h[cur])
	cur++
	if len(h) < cur+compressionLen {
		return ClientHello{}, malformed("compression_methods")
	}
	cur += compressionLen

	if len(h) < cur+2 {
		return ClientHello{}, malformed("extensions_total_len")
	}
	extTotalLen := int(wire.BE16(h[cur : cur+2]))
	cur += 2
	if len(h)-cur != extTotalLen {
		return ClientHello{}, malformed("extensions_total_len mismatch")
	}

	var out ClientHello
	for cur < len(h) {
		if len(h) < cur+4 {
			return ClientHello{}, malformed("extension header")
		}
		extID := wire.BE16(h[cur : cur+2])
		extLen := int(wire.BE16(h[cur+2 : cur+4]))
		bodyStart := cur + 4
		if len(h) < bodyStart+extLen {
			return ClientHello{}, malformed("extension body")
		}
		body := h[bodyStart : bodyStart+extLen]

		switch extID {
		case extServerName:
			sni, start, end, err := parseServerNameExtension(body, bodyStart)
			if err != nil {
				return ClientHello{}, err
			}
			if sni != "" {
				out.SNI = sni
				out.SNIStart = start
				out.SNIEnd = end
			}
		case extKeyShare:
			out.IsTLS13 = true
		}

		cur = bodyStart + extLen
	}

	return out, nil
}

// parseServerNameExtension decodes the body of a server_name extension
// (RFC 6066). bodyOffset is body's absolute offset within the original
// handshake slice, used to compute the SNI's absolute byte range.
func parseServerNameExtension(body []byte, bodyOffset int) (sni string, start, end int, err error) {
	if len(body) < 2 {
		return "", 0, 0, malformed("server_name list length")
	}
	listLen := int(wire.BE16(body[0:2]))
	if len(body)-2 != listLen {
		return "", 0, 0, malformed("server_name list length mismatch")
	}
	if len(body) < 3 {
		return "", 0, 0, malformed("server_name entry")
	}
	nameType := body[2]
	if nameType != sniNameTypeDNS {
		// Not a host_name entry; no SNI to report, but not an error either.
		return "", 0, 0, nil
	}
	if len(body) < 5 {
		return "", 0, 0, malformed("server_name host_name length")
	}
	nameLen := int(wire.BE16(body[3:5]))
	if len(body) < 5+nameLen {
		return "", 0, 0, malformed("server_name host_name")
	}
	name := string(body[5 : 5+nameLen])
	absStart := bodyOffset + 5
	return name, absStart, absStart + nameLen, nil
}

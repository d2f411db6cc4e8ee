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

// Package wire holds the small big-endian byte-codec helpers shared by the
// TLS ClientHello parser and the fragmenter.
package wire

import (
	"math/rand/v2"
)

// BE16 decodes the two bytes at b[0:2] as a big-endian uint16. The caller
// must ensure len(b) >= 2.
func BE16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// BE24 decodes the three bytes at b[0:3] as a big-endian uint24, the width
// TLS uses for handshake message lengths.
func BE24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// PutBE16 encodes v into b[0:2] as big-endian. The caller must ensure
// len(b) >= 2.
func PutBE16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

// AppendBE16 appends the big-endian encoding of v to b and returns the
// extended slice.
func AppendBE16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

// RandInt returns a pseudo-random integer in [min, max]. The fragmenter's
// cut points are not a security boundary by themselves (§9: "Randomness"),
// so math/rand/v2's auto-seeded generator is used rather than crypto/rand.
// It panics if max < min, which indicates a caller bug, not a runtime
// condition.
func RandInt(min, max int) int {
	if max < min {
		panic("wire: RandInt: max < min")
	}
	if max == min {
		return min
	}
	return min + rand.IntN(max-min+1)
}

// RandomSlice partitions the half-open range [0, n) into consecutive
// sub-range lengths, each at least minLen, except possibly the last, which
// may be shorter (down to 1) if residue remains after the last full cut.
// At least one cut is attempted whenever n >= 2*minLen; otherwise the
// whole range is returned as a single sub-range. Every returned length is
// at least 1, and the lengths sum to n. For n <= 0, RandomSlice returns
// nil — there is no range to partition.
func RandomSlice(n, minLen int) []int {
	if n <= 0 {
		return nil
	}
	if minLen < 1 {
		minLen = 1
	}
	var lengths []int
	remaining := n
	for remaining >= 2*minLen {
		cut := RandInt(minLen, remaining-minLen)
		lengths = append(lengths, cut)
		remaining -= cut
	}
	if remaining > 0 {
		lengths = append(lengths, remaining)
	}
	return lengths
}

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

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBE16RoundTrip(t *testing.T) {
	for _, v := range []uint16{0, 1, 255, 256, 0x1234, 0xffff} {
		b := make([]byte, 2)
		PutBE16(b, v)
		require.Equal(t, v, BE16(b))
		require.Equal(t, b, AppendBE16(nil, v))
	}
}

func TestBE24(t *testing.T) {
	require.Equal(t, uint32(0x010203), BE24([]byte{0x01, 0x02, 0x03}))
	require.Equal(t, uint32(0), BE24([]byte{0x00, 0x00, 0x00}))
}

func TestRandomSlicePartitionInvariants(t *testing.T) {
	for i := 0; i < 200; i++ {
		n := RandInt(0, 500)
		minLen := RandInt(1, 30)
		lengths := RandomSlice(n, minLen)

		sum := 0
		for _, l := range lengths {
			sum += l
		}
		require.Equal(t, n, sum, "n=%d minLen=%d lengths=%v", n, minLen, lengths)

		for i, l := range lengths {
			if i == len(lengths)-1 {
				require.GreaterOrEqual(t, l, 1, "n=%d minLen=%d lengths=%v", n, minLen, lengths)
				continue
			}
			require.GreaterOrEqual(t, l, minLen, "n=%d minLen=%d lengths=%v", n, minLen, lengths)
		}

		switch {
		case n == 0:
			require.Empty(t, lengths, "n=%d minLen=%d", n, minLen)
		case n < 2*minLen:
			require.Len(t, lengths, 1, "n=%d minLen=%d", n, minLen)
		default:
			require.GreaterOrEqual(t, len(lengths), 2, "n=%d minLen=%d expected at least one cut", n, minLen)
		}
	}
}

func TestRandomSliceNoRoomReturnsWholeRange(t *testing.T) {
	require.Equal(t, []int{4}, RandomSlice(4, 3))
}

func TestRandomSliceExactlyTwoMinLens(t *testing.T) {
	lengths := RandomSlice(8, 4)
	require.Equal(t, 2, len(lengths))
	require.Equal(t, 8, lengths[0]+lengths[1])
	require.GreaterOrEqual(t, lengths[0], 4)
}

func TestRandIntBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := RandInt(5, 5)
		require.Equal(t, 5, v)
	}
	for i := 0; i < 100; i++ {
		v := RandInt(1, 3)
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 3)
	}
}

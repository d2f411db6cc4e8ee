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

package resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBootstrapShortCircuitsNetwork(t *testing.T) {
	r := New("https://cloudflare-dns.com/dns-query", "127.0.0.1:1") // unreachable proxyAddr
	ip, err := r.Resolve(context.Background(), "cloudflare-dns.com", "A")
	require.NoError(t, err)
	require.Equal(t, bootstrapIP, ip)

	ip, err = r.Resolve(context.Background(), "one.one.one.one", "A")
	require.NoError(t, err)
	require.Equal(t, bootstrapIP, ip)
}

func TestCacheHitAvoidsQuery(t *testing.T) {
	r := New("https://cloudflare-dns.com/dns-query", "127.0.0.1:1")
	r.cache.put("foo.test/A", "203.0.113.9", 300, nowUnix())

	ip, err := r.Resolve(context.Background(), "foo.test", "A")
	require.NoError(t, err)
	require.Equal(t, "203.0.113.9", ip)
}

func TestCacheKeyIsCaseInsensitiveOnName(t *testing.T) {
	r := New("https://cloudflare-dns.com/dns-query", "127.0.0.1:1")
	r.cache.put("foo.test/A", "203.0.113.9", 300, nowUnix())

	ip, err := r.Resolve(context.Background(), "FOO.test", "A")
	require.NoError(t, err)
	require.Equal(t, "203.0.113.9", ip)
}

func TestSingleFlightCoalescesConcurrentLookups(t *testing.T) {
	r := New("https://cloudflare-dns.com/dns-query", "127.0.0.1:1")

	var calls atomic.Int32
	var wg sync.WaitGroup
	results := make([]string, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch := r.group.DoChan("bar.test/A", func() (interface{}, error) {
				calls.Add(1)
				time.Sleep(20 * time.Millisecond)
				r.cache.put("bar.test/A", "198.51.100.5", 300, nowUnix())
				return "198.51.100.5", nil
			})
			res := <-ch
			results[i] = res.Val.(string)
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		require.Equal(t, "198.51.100.5", v)
	}
	ip, ok := r.cache.get("bar.test/A", nowUnix())
	require.True(t, ok)
	require.Equal(t, "198.51.100.5", ip)
}

func TestCacheExpiryOnRead(t *testing.T) {
	c := newCache()
	c.put("k", "1.2.3.4", 5, nowUnix()-100) // already expired
	_, ok := c.get("k", nowUnix())
	require.False(t, ok)
	_, ok = c.get("k", nowUnix())
	require.False(t, ok)
}

func TestHTTPStatusErrorMessage(t *testing.T) {
	err := &HTTPStatusError{Status: 503}
	require.Contains(t, err.Error(), "503")
}

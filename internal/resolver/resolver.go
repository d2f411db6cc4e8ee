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

// Package resolver implements name resolution over DNS-over-HTTPS,
// single-flighted and TTL-cached, reached through this very proxy's own
// listener so the fragmenter's anti-censorship transform covers the
// resolver's own traffic too.
package resolver

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	dohHost = "cloudflare-dns.com"

	// bootstrapNames/bootstrapIP short-circuit the cyclic dependency
	// between this resolver and the proxy it is reached through (§4.E,
	// §9): resolving the DoH host itself never touches the network.
	bootstrapIP = "104.16.249.249"
)

var bootstrapNames = map[string]bool{
	"cloudflare-dns.com": true,
	"one.one.one.one":    true,
}

// ErrNoAnswer is returned when the DoH response contains no answer record
// matching the requested type.
var ErrNoAnswer = errors.New("resolver: no matching DoH answer")

// HTTPStatusError is returned when the DoH endpoint responds with a
// non-200 status.
type HTTPStatusError struct {
	Status int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("resolver: DoH endpoint returned HTTP %d", e.Status)
}

// dohAnswer mirrors one entry of Cloudflare's JSON DoH response.
type dohAnswer struct {
	Type int    `json:"type"`
	Data string `json:"data"`
	TTL  int64  `json:"TTL"`
}

type dohResponse struct {
	Answer []dohAnswer `json:"Answer"`
}

// Resolver resolves (name, qtype) pairs via DoH, deduplicating concurrent
// lookups of the same key with golang.org/x/sync/singleflight and caching
// successful results with a TTL.
type Resolver struct {
	endpoint string
	client   *http.Client
	cache    *cache
	group    singleflight.Group
}

// New builds a Resolver whose outbound HTTP requests are tunneled through
// proxyAddr (this proxy's own listen address) via an HTTP CONNECT request,
// so the DoH traffic is itself relayed (and its ClientHello fragmented) by
// this proxy rather than leaving the host directly.
func New(endpoint, proxyAddr string) *Resolver {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialThroughProxy(ctx, proxyAddr, addr)
		},
	}
	return &Resolver{
		endpoint: endpoint,
		client:   &http.Client{Transport: transport, Timeout: 10 * time.Second},
		cache:    newCache(),
	}
}

// dialThroughProxy opens a TCP connection to proxyAddr, issues an HTTP
// CONNECT request for addr, and once established, completes a TLS
// handshake over the tunnel so the returned conn is ready for net/http to
// use as-is.
func dialThroughProxy(ctx context.Context, proxyAddr, addr string) (net.Conn, error) {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, err
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		conn.Close()
		return nil, err
	}

	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", addr, addr)
	if _, err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return nil, err
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: "CONNECT"})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("resolver: CONNECT tunnel refused: %s", resp.Status)
	}

	tlsConn := tls.Client(conn, &tls.Config{ServerName: host})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// Resolve returns the IP address for name under the given qtype ("A" or
// "AAAA"), per the lookup flow of §4.E: cache hit, wait-for-in-flight, or
// issue a new single-flighted DoH request.
func (r *Resolver) Resolve(ctx context.Context, name, qtype string) (string, error) {
	if strings.EqualFold(qtype, "A") && bootstrapNames[strings.ToLower(name)] {
		return bootstrapIP, nil
	}

	key := strings.ToLower(name) + "/" + qtype
	if ip, ok := r.cache.get(key, nowUnix()); ok {
		return ip, nil
	}

	ch := r.group.DoChan(key, func() (interface{}, error) {
		// Deliberately not tied to the triggering caller's context: the
		// winning caller's cancellation must not abort a lookup that
		// other, still-waiting callers depend on.
		qCtx, cancel := context.WithTimeout(context.Background(), r.client.Timeout)
		defer cancel()

		ip, ttl, err := r.query(qCtx, name, qtype)
		if err != nil {
			return "", err
		}
		r.cache.put(key, ip, ttl, nowUnix())
		return ip, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// query performs the remote DoH HTTP GET and extracts the first answer
// matching qtype.
func (r *Resolver) query(ctx context.Context, name, qtype string) (ip string, ttl int64, err error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", 0, err
	}
	q := u.Query()
	q.Set("name", name)
	q.Set("type", qtype)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, &HTTPStatusError{Status: resp.StatusCode}
	}

	var parsed dohResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, err
	}

	wantType := 1
	if strings.EqualFold(qtype, "AAAA") {
		wantType = 28
	}
	for _, a := range parsed.Answer {
		if a.Type == wantType {
			return a.Data, a.TTL, nil
		}
	}
	return "", 0, ErrNoAnswer
}

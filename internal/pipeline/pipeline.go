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

// Package pipeline orchestrates a single accepted connection end to end:
// proxy handshake, ClientHello parse, policy lookup, DoH resolution,
// upstream connect, fragmented send, and bidirectional splice.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/quietwire/sniproxy/internal/fragment"
	"github.com/quietwire/sniproxy/internal/handshake"
	"github.com/quietwire/sniproxy/internal/logging"
	"github.com/quietwire/sniproxy/internal/policy"
	"github.com/quietwire/sniproxy/internal/resolver"
	"github.com/quietwire/sniproxy/internal/tlshello"
)

// Handle is the set of collaborators shared read-mostly across every
// connection's pipeline: the DoH resolver, the policy provider, and the
// upstream connect timeout. It is constructed once by the entry point and
// passed explicitly into Run for each accepted connection — never reached
// via a package-level singleton (§5, §9).
type Handle struct {
	Resolver    *resolver.Resolver
	Policy      policy.Provider
	ConnTimeout time.Duration
}

// Run drives one accepted connection through the full pipeline. client is
// closed on every exit path before Run returns. id is an opaque
// per-connection identifier used only for log correlation.
func (h *Handle) Run(ctx context.Context, id string, client net.Conn) {
	log := slog.Default().With(logging.ConnAttr(id))
	defer client.Close()

	if err := h.run(ctx, log, client); err != nil && !isQuiet(err) {
		log.Warn("connection failed", "error", err)
	}
}

// isQuiet reports whether err belongs to the error categories §7 says
// must never be logged. A clean EOF never reaches here as an error at
// all — io.CopyBuffer already reports it as a nil error (splice.go) — so
// only the benign-close race needs filtering.
func isQuiet(err error) bool {
	return errors.Is(err, ErrBenignBadFD)
}

func (h *Handle) run(ctx context.Context, log *slog.Logger, client net.Conn) error {
	outcome, err := handshake.Run(client)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	header, payload, err := readClientHelloRecord(client, outcome)
	if err != nil {
		return fmt.Errorf("first record read: %w", err)
	}

	ch, err := tlshello.Parse(payload)
	if err != nil {
		return fmt.Errorf("clienthello parse: %w", err)
	}
	if !ch.IsTLS13 || ch.SNI == "" {
		return ErrNotTLS13
	}

	host, port := outcome.Host, outcome.Port
	if host == "" || net.ParseIP(host) != nil {
		host, port = ch.SNI, 443
	}

	pol := h.Policy.Lookup(host)
	if pol.Port != 0 {
		port = pol.Port
	}

	remoteIP, err := h.resolveRemote(ctx, host, pol)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}

	upstream, err := h.connectUpstream(ctx, remoteIP, port)
	if err != nil {
		return err
	}
	defer func() {
		if upstream != nil {
			upstream.Close()
		}
	}()

	job := fragment.Job{
		Handshake:  payload,
		SNIStart:   ch.SNIStart,
		SNIEnd:     ch.SNIEnd,
		RecordHead: header.Prefix(),
	}
	if err := fragment.Write(ctx, upstream, job); err != nil {
		return fmt.Errorf("fragmented send: %w", err)
	}

	spliceErr := splice(client, upstream)
	upstream = nil // ownership transferred into splice, which already closed it
	return spliceErr
}

// resolveRemote applies policy (§4.D step 5): an explicit policy IP skips
// DNS entirely, otherwise the host is resolved via DoH with a qtype
// derived from the policy's address family.
func (h *Handle) resolveRemote(ctx context.Context, host string, pol policy.Policy) (string, error) {
	if pol.IP != "" {
		return pol.IP, nil
	}
	qtype := "A"
	if strings.EqualFold(pol.IPType, "ipv6") {
		qtype = "AAAA"
	}
	return h.Resolver.Resolve(ctx, host, qtype)
}

func (h *Handle) connectUpstream(ctx context.Context, ip string, port uint16) (net.Conn, error) {
	addr := net.JoinHostPort(ip, fmt.Sprint(port))
	dialer := &net.Dialer{Timeout: h.ConnTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, wrapConnectError(addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return conn, nil
}

// readClientHelloRecord reads the 5-byte TLS record header and its
// payload following the proxy handshake, per §4.F step 2: when the
// handshake already consumed the record's first byte (the None/raw-TLS
// path), it is prepended to the next 4 bytes read so both paths produce
// an identical 5-byte header by construction (§9, open question).
func readClientHelloRecord(conn net.Conn, outcome handshake.Outcome) (tlshello.RecordHeader, []byte, error) {
	var header tlshello.RecordHeader
	if outcome.Protocol == handshake.None {
		header[0] = outcome.FirstByte
		if _, err := readFull(conn, header[1:]); err != nil {
			return header, nil, err
		}
	} else {
		if _, err := readFull(conn, header[:]); err != nil {
			return header, nil, err
		}
	}

	if err := header.Validate(); err != nil {
		return header, nil, err
	}

	payload := make([]byte, header.PayloadLen())
	if _, err := readFull(conn, payload); err != nil {
		return header, nil, err
	}
	return header, payload, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

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

// Package server is the accept loop: bind, listen, accept, and hand each
// connection to the pipeline as an independent unit of concurrency. It
// holds no registry of connections — per-connection state is
// self-contained (§4.G).
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/quietwire/sniproxy/internal/pipeline"
)

// Server owns the listener and the shared pipeline.Handle every accepted
// connection is dispatched to.
type Server struct {
	listener net.Listener
	handle   *pipeline.Handle
	nextID   atomic.Uint64
}

// Listen binds addr with SO_REUSEADDR and SO_REUSEPORT and starts
// listening with the given backlog. handle is the shared DoH resolver +
// policy collaborator passed to every connection's pipeline.
func Listen(addr string, backlog int, handle *pipeline.Handle) (*Server, error) {
	ln, err := listenTCP(addr, backlog)
	if err != nil {
		return nil, err
	}
	return &Server{listener: ln, handle: handle}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until the listener is closed (typically via
// Close, driven by SIGINT in the entry point) or ctx is canceled, which
// closes the listener. It spawns one goroutine per accepted connection and
// returns nil once the listener is closed; any other accept error is
// logged and the loop continues.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.listener.Close() })
	defer stop()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			slog.Warn("accept failed", "error", err)
			continue
		}
		id := strconv.FormatUint(s.nextID.Add(1), 10)
		go s.handle.Run(ctx, id, conn)
	}
}

// Close closes the listener; in-flight connections finish independently
// (§5: the accept loop's termination closes the listener, in-flight
// connections are unaffected).
func (s *Server) Close() error {
	return s.listener.Close()
}

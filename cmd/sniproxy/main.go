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

package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/quietwire/sniproxy/internal/config"
	"github.com/quietwire/sniproxy/internal/logging"
	"github.com/quietwire/sniproxy/internal/pipeline"
	"github.com/quietwire/sniproxy/internal/resolver"
	"github.com/quietwire/sniproxy/internal/server"
)

func main() {
	configFlag := flag.String("config", "", "Path to the YAML configuration file")
	flag.Parse()

	cfg := &config.Config{}
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			log.Fatalf("loading config %v: %v", *configFlag, err)
		}
		cfg = loaded
	}
	cfg.ApplyDefaults()

	logging.Init(cfg.Logging.Level, cfg.Logging.Format)

	listenAddr := cfg.ListenAddr()

	handle := &pipeline.Handle{
		Resolver:    resolver.New(cfg.DoH.Endpoint, listenAddr),
		Policy:      cfg.PolicyProvider(),
		ConnTimeout: cfg.ConnTimeout(),
	}

	srv, err := server.Listen(listenAddr, cfg.Server.Backlog, handle)
	if err != nil {
		log.Fatalf("listening on %v: %v", listenAddr, err)
	}

	slog.Info("sniproxy listening", "addr", srv.Addr().String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		srv.Close()
		<-serveErr
	case err := <-serveErr:
		if err != nil {
			log.Fatalf("serve: %v", err)
		}
	}

	slog.Info("sniproxy stopped")
	os.Exit(0)
}

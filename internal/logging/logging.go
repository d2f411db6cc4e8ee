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

// Package logging initializes the process-wide structured logger, once,
// at startup.
package logging

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Init sets the process-wide slog default logger from the configured
// level and format. format "json" selects slog's stock JSON handler;
// anything else (including the default "text") selects tint for
// level-colored, human-readable output, matching the corpus's CLI tools.
func Init(level, format string) {
	lvl := parseLevel(level)

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			NoColor: !term.IsTerminal(int(os.Stderr.Fd())),
			Level:   lvl,
		})
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConnAttr returns the slog.Group attribute every pipeline log line for a
// connection should carry, so concurrent connections' lines stay
// distinguishable.
func ConnAttr(id string) slog.Attr {
	return slog.Group("conn", slog.String("id", id))
}

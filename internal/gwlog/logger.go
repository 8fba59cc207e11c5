// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package gwlog builds the single *slog.Logger the gateway's main
// constructs once and threads through every component, the way
// examples/logging-middleware wires slog in the teacher repo.
package gwlog

import (
	"io"
	"log/slog"
	"os"
)

// Level names accepted by --logLevel.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelNone  = "none"
)

// New builds a logger for the given level name, always writing to stderr.
// Every bridge reserves stdout for JSON-RPC traffic (either the child
// process's own stdin/stdout, or an outbound stream to a downstream
// client), so log output can never share a stream with protocol bytes —
// unlike the original, whose logger only forces stderr when the input
// side is stdio, our framing makes stderr-always the correct collapse of
// that rule (see DESIGN.md).
func New(level string) *slog.Logger {
	var w io.Writer = os.Stderr
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelNone:
		w = io.Discard
		slogLevel = slog.LevelError + 1 // suppress everything
	default:
		slogLevel = slog.LevelInfo
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel})
	return slog.New(h).With("component", "supergateway")
}

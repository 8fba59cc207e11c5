// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package stdiosse bridges a stdio-speaking child process to SSE: each
// browser/client GET on --ssePath gets its own event stream carrying
// everything the child writes to stdout, while POSTs to --messagePath
// (keyed by ?sessionId=) are written to the child's stdin. Grounded on
// gateways/stdio_to_sse.rs.
package stdiosse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/supergateway-go/gateway/internal/childproc"
	"github.com/supergateway-go/gateway/internal/cmdspec"
	"github.com/supergateway-go/gateway/internal/config"
	"github.com/supergateway-go/gateway/internal/corsmw"
	"github.com/supergateway-go/gateway/internal/headermerge"
	"github.com/supergateway-go/gateway/internal/runtimeargs"
	"github.com/supergateway-go/gateway/internal/runtimeupdate"
)

// clientSession is one connected SSE client's outbound event queue.
type clientSession struct {
	events chan sseEvent
}

type sseEvent struct {
	event string
	data  string
}

// clientEventDepth mirrors the original's mpsc::channel(64) per SSE
// client.
const clientEventDepth = 64

// Run starts the bridge and blocks until the listener fails or ctx is
// cancelled.
func Run(ctx context.Context, cfg *config.Config, runtime *runtimeargs.Store, updates chan runtimeupdate.Request, logger *slog.Logger) error {
	handler, err := newHandler(ctx, cfg, runtime, updates, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("listening", "addr", addr, "ssePath", cfg.SSEPath, "messagePath", cfg.MessagePath)

	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("sse server: %w", err)
	}
	return nil
}

// newHandler builds the bridge's http.Handler, spawning its shared
// child process and wiring the runtime-update apply loop. Split out
// from Run so it can be exercised against httptest without binding a
// real listener.
func newHandler(ctx context.Context, cfg *config.Config, runtime *runtimeargs.Store, updates chan runtimeupdate.Request, logger *slog.Logger) (http.Handler, error) {
	spec, err := cmdspec.Parse(cfg.Stdio)
	if err != nil {
		return nil, err
	}
	child := childproc.New(spec, true, logger)
	if err := child.Spawn(runtime.GetEffective("")); err != nil {
		return nil, fmt.Errorf("spawn child: %w", err)
	}

	var sessMu sync.Mutex
	sessions := make(map[string]*clientSession)

	lines, _ := child.Subscribe()
	go func() {
		for line := range lines {
			sessMu.Lock()
			dead := make([]string, 0)
			for id, sess := range sessions {
				select {
				case sess.events <- sseEvent{data: string(line)}:
				default:
					dead = append(dead, id)
				}
			}
			for _, id := range dead {
				delete(sessions, id)
			}
			sessMu.Unlock()
		}
	}()

	go applyRuntimeUpdates(updates, runtime, child, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+cfg.SSEPath, func(w http.ResponseWriter, r *http.Request) {
		sessionID := uuid.NewString()
		sess := &clientSession{events: make(chan sseEvent, clientEventDepth)}
		sessMu.Lock()
		sessions[sessionID] = sess
		sessMu.Unlock()
		defer func() {
			sessMu.Lock()
			delete(sessions, sessionID)
			sessMu.Unlock()
		}()

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		headermerge.Apply(w.Header(), cfg.Headers, runtime.GetEffective("").Headers)
		w.WriteHeader(http.StatusOK)

		endpoint := fmt.Sprintf("%s%s?sessionId=%s", cfg.BaseURL, cfg.MessagePath, sessionID)
		fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpoint)
		flusher.Flush()

		for {
			select {
			case ev := <-sess.events:
				if ev.event != "" {
					fmt.Fprintf(w, "event: %s\n", ev.event)
				}
				fmt.Fprintf(w, "data: %s\n\n", ev.data)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	mux.HandleFunc("POST "+cfg.MessagePath, func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("sessionId")
		if sessionID == "" {
			http.Error(w, "Missing sessionId parameter", http.StatusBadRequest)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		if err := child.Send(body); err != nil {
			http.Error(w, "Failed to write to child", http.StatusBadGateway)
			return
		}
		headermerge.Apply(w.Header(), cfg.Headers, runtime.GetEffective("").Headers)
		w.WriteHeader(http.StatusOK)
	})

	for _, ep := range cfg.HealthEndpoints {
		mux.HandleFunc("GET "+ep, func(w http.ResponseWriter, r *http.Request) {
			headermerge.Apply(w.Header(), cfg.Headers, runtime.GetEffective("").Headers)
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "ok")
		})
	}

	return corsmw.Build(cfg.Cors, mux), nil
}

func applyRuntimeUpdates(updates chan runtimeupdate.Request, runtime *runtimeargs.Store, child *childproc.Supervisor, logger *slog.Logger) {
	for req := range updates {
		var outcome runtimeupdate.Outcome
		if req.Scope.Session {
			outcome = runtimeupdate.Failed("Per-session runtime overrides are not supported for stdio->SSE")
		} else {
			result := runtime.UpdateGlobal(req.Update)
			if result.RestartNeeded {
				args := runtime.GetEffective("")
				if err := child.Restart(args); err != nil {
					logger.Error("failed to restart child", "err", err)
					outcome = runtimeupdate.Failed("Failed to restart child")
				} else {
					outcome = runtimeupdate.OK("Restarted child with new runtime args", true)
				}
			} else {
				outcome = runtimeupdate.OK("Updated runtime args", false)
			}
		}
		req.ReplyTo <- outcome
	}
}

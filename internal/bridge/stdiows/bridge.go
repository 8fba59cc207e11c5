// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package stdiows bridges a stdio-speaking child process to WebSocket:
// every connected client's request id is prefixed with its client id
// before being forwarded to the (shared) child, so replies can be routed
// back to the right client; unprefixed child-originated messages (most
// notably server notifications) are broadcast to every connected client.
// Grounded on gateways/stdio_to_ws.rs, using the teacher's own
// mcp/websocket.go upgrade pattern.
package stdiows

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/supergateway-go/gateway/internal/childproc"
	"github.com/supergateway-go/gateway/internal/cmdspec"
	"github.com/supergateway-go/gateway/internal/config"
	"github.com/supergateway-go/gateway/internal/corsmw"
	"github.com/supergateway-go/gateway/internal/headermerge"
	"github.com/supergateway-go/gateway/internal/jsonrpc"
	"github.com/supergateway-go/gateway/internal/runtimeargs"
	"github.com/supergateway-go/gateway/internal/runtimeupdate"
)

const clientDepth = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // CORS layer governs origin policy instead
}

// Run starts the bridge and blocks until the listener fails or ctx is
// cancelled.
func Run(ctx context.Context, cfg *config.Config, runtime *runtimeargs.Store, updates chan runtimeupdate.Request, logger *slog.Logger) error {
	handler, err := newHandler(ctx, cfg, runtime, updates, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("listening", "addr", addr, "messagePath", cfg.MessagePath)

	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ws server: %w", err)
	}
	return nil
}

// newHandler builds the bridge's http.Handler; split from Run for
// httptest-server-backed testing.
func newHandler(ctx context.Context, cfg *config.Config, runtime *runtimeargs.Store, updates chan runtimeupdate.Request, logger *slog.Logger) (http.Handler, error) {
	spec, err := cmdspec.Parse(cfg.Stdio)
	if err != nil {
		return nil, err
	}
	child := childproc.New(spec, true, logger)
	if err := child.Spawn(runtime.GetEffective("")); err != nil {
		return nil, fmt.Errorf("spawn child: %w", err)
	}

	var clientsMu sync.Mutex
	clients := make(map[string]chan []byte)

	lines, _ := child.Subscribe()
	go func() {
		for line := range lines {
			targetID, rewritten := stripPrefixedID(line)
			clientsMu.Lock()
			if targetID != "" {
				if ch, ok := clients[targetID]; ok {
					select {
					case ch <- rewritten:
					default:
						delete(clients, targetID)
					}
				}
			} else {
				dead := make([]string, 0)
				for id, ch := range clients {
					select {
					case ch <- line:
					default:
						dead = append(dead, id)
					}
				}
				for _, id := range dead {
					delete(clients, id)
				}
			}
			clientsMu.Unlock()
		}
	}()

	go applyRuntimeUpdates(updates, runtime, child, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+cfg.MessagePath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", "err", err)
			return
		}
		handleSocket(conn, child, &clientsMu, clients, logger)
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

func handleSocket(conn *websocket.Conn, child *childproc.Supervisor, clientsMu *sync.Mutex, clients map[string]chan []byte, logger *slog.Logger) {
	clientID := uuid.NewString()
	out := make(chan []byte, clientDepth)
	clientsMu.Lock()
	clients[clientID] = out
	clientsMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range out {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		prefixed := prefixID(clientID, data)
		if err := child.Send(prefixed); err != nil {
			logger.Error("failed to forward client message to child", "err", err)
		}
	}

	clientsMu.Lock()
	delete(clients, clientID)
	clientsMu.Unlock()
	close(out)
	<-done
	_ = conn.Close()
}

func applyRuntimeUpdates(updates chan runtimeupdate.Request, runtime *runtimeargs.Store, child *childproc.Supervisor, logger *slog.Logger) {
	for req := range updates {
		var outcome runtimeupdate.Outcome
		if req.Scope.Session {
			outcome = runtimeupdate.Failed("Per-session runtime overrides are not supported for stdio->WS")
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

// prefixID rewrites msg's "id" field to "<clientID>:<id>" so a shared
// child's replies can be routed back to the right WebSocket connection.
// A message without an id (a notification) is returned unchanged.
func prefixID(clientID string, msg []byte) []byte {
	m, err := jsonrpc.Decode(msg)
	if err != nil || len(m.ID) == 0 {
		return msg
	}
	idStr := strings.Trim(string(m.ID), `"`)
	m.ID = jsonrpc.RawID(strconv.Quote(clientID + ":" + idStr))
	out, err := m.Encode()
	if err != nil {
		return msg
	}
	return out
}

// stripPrefixedID extracts the client id and original id from a
// "<clientID>:<id>"-prefixed child message, returning ("", msg) if the id
// doesn't carry a recognizable prefix (i.e. it's a broadcast-worthy
// notification, not addressed to one client).
func stripPrefixedID(msg []byte) (string, []byte) {
	m, err := jsonrpc.Decode(msg)
	if err != nil || len(m.ID) == 0 {
		return "", msg
	}
	idStr := strings.Trim(string(m.ID), `"`)
	clientID, rawID, ok := strings.Cut(idStr, ":")
	if !ok {
		return "", msg
	}
	if n, err := strconv.ParseInt(rawID, 10, 64); err == nil {
		m.ID = jsonrpc.RawID(strconv.FormatInt(n, 10))
	} else {
		asJSON, _ := json.Marshal(rawID)
		m.ID = jsonrpc.RawID(string(asJSON))
	}
	out, err := m.Encode()
	if err != nil {
		return "", msg
	}
	return clientID, out
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package stdiohttp bridges a stdio-speaking child process to
// streamable HTTP. In stateful mode (cfg.Stateful) each Mcp-Session-Id
// owns its own child, created on the first initialize POST and reused
// by subsequent POST/GET/DELETE calls via internal/sessionmgr. In
// stateless mode every POST spawns and tears down its own child,
// auto-handshaking on its behalf when needed. Grounded on
// gateways/stdio_to_streamable_http.rs.
package stdiohttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/supergateway-go/gateway/internal/childproc"
	"github.com/supergateway-go/gateway/internal/cmdspec"
	"github.com/supergateway-go/gateway/internal/config"
	"github.com/supergateway-go/gateway/internal/corsmw"
	"github.com/supergateway-go/gateway/internal/handshake"
	"github.com/supergateway-go/gateway/internal/headermerge"
	"github.com/supergateway-go/gateway/internal/jsonrpc"
	"github.com/supergateway-go/gateway/internal/runtimeargs"
	"github.com/supergateway-go/gateway/internal/runtimeupdate"
	"github.com/supergateway-go/gateway/internal/sessionmgr"
)

// Run starts the bridge and blocks until the listener fails or ctx is
// cancelled.
func Run(ctx context.Context, cfg *config.Config, runtime *runtimeargs.Store, updates chan runtimeupdate.Request, logger *slog.Logger) error {
	handler, err := newHandler(ctx, cfg, runtime, updates, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("listening", "addr", addr, "streamableHttpPath", cfg.StreamableHTTPPath, "stateful", cfg.Stateful)

	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("streamableHttp server: %w", err)
	}
	return nil
}

// newHandler builds the bridge's http.Handler; split from Run for
// httptest-server-backed testing.
func newHandler(ctx context.Context, cfg *config.Config, runtime *runtimeargs.Store, updates chan runtimeupdate.Request, logger *slog.Logger) (http.Handler, error) {
	if cfg.Stdio == "" {
		return nil, fmt.Errorf("stdio command is required")
	}
	spec, err := cmdspec.Parse(cfg.Stdio)
	if err != nil {
		return nil, err
	}

	var manager *sessionmgr.Manager
	if cfg.Stateful {
		manager = sessionmgr.New(spec, runtime, time.Duration(cfg.SessionTimeoutMillis)*time.Millisecond, logger)
	}

	go applyRuntimeUpdates(updates, runtime, manager, cfg.Stateful, logger)

	mux := http.NewServeMux()
	if cfg.Stateful {
		mux.HandleFunc("POST "+cfg.StreamableHTTPPath, statefulPost(cfg, runtime, manager, logger))
		mux.HandleFunc("GET "+cfg.StreamableHTTPPath, statefulGet(cfg, runtime, manager))
		mux.HandleFunc("DELETE "+cfg.StreamableHTTPPath, statefulDelete(cfg, runtime, manager))
	} else {
		mux.HandleFunc("POST "+cfg.StreamableHTTPPath, statelessPost(cfg, runtime, spec, logger))
		mux.HandleFunc("GET "+cfg.StreamableHTTPPath, methodNotAllowed)
		mux.HandleFunc("DELETE "+cfg.StreamableHTTPPath, methodNotAllowed)
	}

	for _, ep := range cfg.HealthEndpoints {
		mux.HandleFunc("GET "+ep, func(w http.ResponseWriter, r *http.Request) {
			headermerge.Apply(w.Header(), cfg.Headers, runtime.GetEffective("").Headers)
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "ok")
		})
	}

	return corsmw.Build(cfg.Cors, mux), nil
}

func sessionHeader(r *http.Request) string {
	if id := r.Header.Get("Mcp-Session-Id"); id != "" {
		return id
	}
	return r.Header.Get("mcp-session-id")
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := (&jsonrpc.Message{JSONRPC: "2.0", ID: id, Error: &jsonrpc.Error{Code: code, Message: message}}).Encode()
	_, _ = w.Write(body)
}

func statefulPost(cfg *config.Config, runtime *runtimeargs.Store, manager *sessionmgr.Manager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := decodeBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, nil, jsonrpc.CodeParseError, "Invalid JSON")
			return
		}

		var session *sessionmgr.Session
		sessionID := sessionHeader(r)
		if sessionID != "" {
			s, ok := manager.GetSession(sessionID)
			if !ok {
				writeError(w, http.StatusBadRequest, nil, jsonrpc.CodeServerError, "Bad Request: No valid session ID provided")
				return
			}
			session = s
		} else if msg.Method == "initialize" {
			s, err := manager.CreateSession()
			if err != nil {
				writeError(w, http.StatusInternalServerError, nil, jsonrpc.CodeInternalError, err.Error())
				return
			}
			session = s
			sessionID = s.ID
		} else {
			writeError(w, http.StatusBadRequest, nil, jsonrpc.CodeServerError, "Bad Request: No valid session ID provided")
			return
		}

		manager.SessionInc(sessionID, "POST request for existing session")

		w.Header().Set("Mcp-Session-Id", sessionID)
		headermerge.Apply(w.Header(), cfg.Headers, runtime.GetEffective(sessionID).Headers)

		if len(msg.ID) > 0 {
			reply, err := session.Request(msg)
			if err != nil {
				writeError(w, http.StatusInternalServerError, msg.ID, jsonrpc.CodeInternalError, err.Error())
			} else {
				w.Header().Set("Content-Type", "application/json")
				body, _ := reply.Encode()
				_, _ = w.Write(body)
			}
		} else {
			if err := session.Send(msg); err != nil {
				writeError(w, http.StatusBadGateway, nil, jsonrpc.CodeInternalError, "Failed to send message")
			} else {
				w.WriteHeader(http.StatusNoContent)
			}
		}

		manager.SessionDec(sessionID, "POST response finished")
	}
}

func statefulGet(cfg *config.Config, runtime *runtimeargs.Store, manager *sessionmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := sessionHeader(r)
		if sessionID == "" {
			http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
			return
		}
		session, ok := manager.GetSession(sessionID)
		if !ok {
			http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
			return
		}
		manager.SessionInc(sessionID, "GET request for existing session")
		defer manager.SessionDec(sessionID, "GET connection closed")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		notifications, cancel := session.SubscribeNotifications()
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Mcp-Session-Id", sessionID)
		headermerge.Apply(w.Header(), cfg.Headers, runtime.GetEffective(sessionID).Headers)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case msg := <-notifications:
				body, err := msg.Encode()
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", body)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}

func statefulDelete(cfg *config.Config, runtime *runtimeargs.Store, manager *sessionmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := sessionHeader(r)
		if sessionID == "" {
			http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
			return
		}
		if manager.RemoveSession(sessionID) {
			headermerge.Apply(w.Header(), cfg.Headers, runtime.GetEffective(sessionID).Headers)
			w.WriteHeader(http.StatusOK)
		} else {
			http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
		}
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, nil, jsonrpc.CodeServerError, "Method not allowed.")
}

func decodeBody(r *http.Request) (*jsonrpc.Message, error) {
	var m jsonrpc.Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// statelessPost spawns a dedicated child for the single request,
// auto-handshaking on its behalf when the request isn't itself an
// initialize call, and kills the child once a matching reply (or, for
// notifications, the write itself) has been observed.
func statelessPost(cfg *config.Config, runtime *runtimeargs.Store, spec childproc.Spec, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := decodeBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, nil, jsonrpc.CodeParseError, "Invalid JSON")
			return
		}

		reply, err := handleStatelessRequest(spec, cfg.ProtocolVersion, runtime.GetEffective(""), msg, logger)
		headermerge.Apply(w.Header(), cfg.Headers, runtime.GetEffective("").Headers)
		if err != nil {
			writeError(w, http.StatusInternalServerError, nil, jsonrpc.CodeInternalError, err.Error())
			return
		}
		if reply == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		body, _ := reply.Encode()
		_, _ = w.Write(body)
	}
}

// handleStatelessRequest spawns spec, performs an auto-handshake if
// msg isn't an initialize call, forwards msg, and returns its matching
// reply. A fire-and-forget message (no id) is written and the child
// killed immediately, returning (nil, nil).
func handleStatelessRequest(spec childproc.Spec, protocolVersion string, runtime runtimeargs.Args, msg *jsonrpc.Message, logger *slog.Logger) (*jsonrpc.Message, error) {
	child := childproc.New(spec, false, logger)
	if err := child.Spawn(runtime); err != nil {
		return nil, err
	}
	defer child.Shutdown(context.Background())

	if len(msg.ID) == 0 {
		b, err := msg.Encode()
		if err != nil {
			return nil, err
		}
		return nil, child.Send(b)
	}

	lines, cancel := child.Subscribe()
	defer cancel()

	shim := handshake.New(protocolVersion)
	forward := func(m *jsonrpc.Message) (*jsonrpc.Message, error) {
		return requestChild(child, lines, m)
	}
	notify := func(m *jsonrpc.Message) error {
		b, err := m.Encode()
		if err != nil {
			return err
		}
		return child.Send(b)
	}

	return shim.Handle(msg, forward, notify)
}

func requestChild(child *childproc.Supervisor, lines <-chan []byte, msg *jsonrpc.Message) (*jsonrpc.Message, error) {
	b, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	if err := child.Send(b); err != nil {
		return nil, err
	}
	key := msg.IDKey()
	for line := range lines {
		reply, err := jsonrpc.Decode(line)
		if err != nil {
			continue
		}
		if reply.IDKey() == key {
			return reply, nil
		}
	}
	return nil, fmt.Errorf("child terminated before response")
}

func applyRuntimeUpdates(updates chan runtimeupdate.Request, runtime *runtimeargs.Store, manager *sessionmgr.Manager, stateful bool, logger *slog.Logger) {
	for req := range updates {
		var outcome runtimeupdate.Outcome
		if req.Scope.Session {
			if !stateful {
				outcome = runtimeupdate.Failed("Per-session overrides require stateful Streamable HTTP")
			} else {
				result := runtime.UpdateSession(req.Scope.SessionID, req.Update)
				if result.RestartNeeded {
					if err := manager.RestartSession(req.Scope.SessionID); err != nil {
						outcome = runtimeupdate.Failed("Failed to restart session")
					} else {
						outcome = runtimeupdate.OK("Restarted session with new runtime args", true)
					}
				} else {
					outcome = runtimeupdate.OK("Updated session runtime args", false)
				}
			}
		} else {
			result := runtime.UpdateGlobal(req.Update)
			if result.RestartNeeded {
				if stateful {
					manager.RestartAll()
					outcome = runtimeupdate.OK("Restarted all sessions with new runtime args", true)
				} else {
					outcome = runtimeupdate.OK("Updated runtime args for future requests", false)
				}
			} else {
				outcome = runtimeupdate.OK("Updated runtime args", false)
			}
		}
		req.ReplyTo <- outcome
	}
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package runtimeupdate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/supergateway-go/gateway/internal/runtimeargs"
	"github.com/supergateway-go/gateway/internal/util"
)

// wireUpdate is the wire shape accepted by the admin HTTP surface,
// matching the original's serde RuntimeArgsUpdate field names
// (runtime/store.rs) exactly: snake_case, since this body is consumed by
// external API clients rather than the in-process prompt.
type wireUpdate struct {
	ExtraCliArgs []string          `json:"extra_cli_args"`
	Env          map[string]string `json:"env"`
	Headers      map[string]string `json:"headers"`
}

func (w wireUpdate) toUpdate() runtimeargs.Update {
	return runtimeargs.Update{ExtraCliArgs: w.ExtraCliArgs, Env: w.Env, Headers: w.Headers}
}

// StartAdmin serves the runtime admin HTTP surface on addr, gated to
// loopback callers only (util.IsLoopback, the teacher's own helper).
// requests are published on updates and this function blocks until the
// listener fails or the process exits.
func StartAdmin(addr string, store *runtimeargs.Store, updates chan<- Request, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /runtime/defaults", func(w http.ResponseWriter, r *http.Request) {
		handleUpdate(w, r, GlobalScope, updates)
	})
	mux.HandleFunc("POST /runtime/session/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		handleUpdate(w, r, SessionScope(id), updates)
	})
	mux.HandleFunc("GET /runtime/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.ListSessions())
	})

	handler := loopbackOnly(mux)
	logger.Info("runtime admin endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		return fmt.Errorf("runtime admin server: %w", err)
	}
	return nil
}

func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !util.IsLoopback(r.RemoteAddr) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleUpdate(w http.ResponseWriter, r *http.Request, scope Scope, updates chan<- Request) {
	var wu wireUpdate
	if err := json.NewDecoder(r.Body).Decode(&wu); err != nil {
		writeJSON(w, http.StatusBadRequest, Failed("invalid JSON body: "+err.Error()))
		return
	}
	reply := make(chan Outcome, 1)
	updates <- Request{Scope: scope, Update: wu.toUpdate(), ReplyTo: reply}
	outcome := <-reply
	writeJSON(w, http.StatusOK, outcome)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ScopeLabel renders scope for logging, e.g. "global" or "session:abc".
func ScopeLabel(s Scope) string {
	if !s.Session {
		return "global"
	}
	return "session:" + strings.TrimSpace(s.SessionID)
}

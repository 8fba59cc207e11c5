// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package runtimeupdate

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoopbackOnlyRejectsNonLoopback(t *testing.T) {
	h := loopbackOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.1:12345"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestLoopbackOnlyAllowsLoopback(t *testing.T) {
	h := loopbackOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHandleUpdateRoundTripsToApplier(t *testing.T) {
	updates := NewChannel()
	go func() {
		req := <-updates
		if !req.Scope.Session || req.Scope.SessionID != "abc" {
			t.Errorf("unexpected scope %+v", req.Scope)
		}
		req.ReplyTo <- OK("applied", true)
	}()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/runtime/session/abc", strings.NewReader(`{"env":{"K":"V"}}`))
	handleUpdate(rec, req, SessionScope("abc"), updates)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"restart":true`) {
		t.Errorf("body = %s, want restart:true", rec.Body.String())
	}
}

func TestHandleUpdateRejectsInvalidJSON(t *testing.T) {
	updates := NewChannel()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/runtime/defaults", strings.NewReader(`not json`))
	handleUpdate(rec, req, GlobalScope, updates)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

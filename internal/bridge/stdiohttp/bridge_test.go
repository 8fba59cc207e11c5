// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package stdiohttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/supergateway-go/gateway/internal/config"
	"github.com/supergateway-go/gateway/internal/runtimeargs"
	"github.com/supergateway-go/gateway/internal/runtimeupdate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoChild() string {
	return `sh -c "while IFS= read -r line; do echo \"$line\"; done"`
}

func TestStatelessPostEchoesReply(t *testing.T) {
	cfg := &config.Config{
		Stdio:              echoChild(),
		StreamableHTTPPath: "/mcp",
		Stateful:           false,
	}
	runtime := runtimeargs.New(runtimeargs.Args{})
	updates := runtimeupdate.NewChannel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler, err := newHandler(ctx, cfg, runtime, updates, testLogger())
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `"method":"ping"`) {
		t.Fatalf("reply = %q, want it to echo the posted message", body)
	}
}

func TestStatefulPostCreatesSessionOnInitialize(t *testing.T) {
	cfg := &config.Config{
		Stdio:              echoChild(),
		StreamableHTTPPath: "/mcp",
		Stateful:           true,
	}
	runtime := runtimeargs.New(runtimeargs.Args{})
	updates := runtimeupdate.NewChannel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler, err := newHandler(ctx, cfg, runtime, updates, testLogger())
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	sessionID := resp.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		t.Fatal("initialize response carried no Mcp-Session-Id header")
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/mcp", nil)
	req.Header.Set("Mcp-Session-Id", sessionID)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("DELETE status = %d, want 200", delResp.StatusCode)
	}
}

func TestStatefulPostRejectsUnknownSession(t *testing.T) {
	cfg := &config.Config{
		Stdio:              echoChild(),
		StreamableHTTPPath: "/mcp",
		Stateful:           true,
	}
	runtime := runtimeargs.New(runtimeargs.Args{})
	updates := runtimeupdate.NewChannel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler, err := newHandler(ctx, cfg, runtime, updates, testLogger())
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	req.Header.Set("Mcp-Session-Id", "does-not-exist")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

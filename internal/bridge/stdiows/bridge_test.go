// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package stdiows

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/supergateway-go/gateway/internal/config"
	"github.com/supergateway-go/gateway/internal/runtimeargs"
	"github.com/supergateway-go/gateway/internal/runtimeupdate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBridgeRoutesReplyBackToRequestingClient(t *testing.T) {
	cfg := &config.Config{
		Stdio:       `sh -c "while IFS= read -r line; do echo \"$line\"; done"`,
		MessagePath: "/message",
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

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/message"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"method":"ping"`) {
		t.Fatalf("reply = %q, want it to echo the posted message", data)
	}
	if !strings.Contains(string(data), `"id":1`) {
		t.Fatalf("reply = %q, want the client-visible id restored to 1, not the internally prefixed form", data)
	}
}

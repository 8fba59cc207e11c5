// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package ssestdio

import (
	"bufio"
	"context"
	"fmt"
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

// fakeUpstream serves an SSE GET stream announcing a /message endpoint,
// and echoes POSTed requests back as a JSON-RPC result.
func fakeUpstream(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sse", func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "event: endpoint\ndata: /message\n\n")
		flusher.Flush()
		<-r.Context().Done()
	})
	mux.HandleFunc("POST /message", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"echoed":%s}}`, mustExtractMethod(body))
	})
	return httptest.NewServer(mux)
}

func mustExtractMethod(body []byte) string {
	s := string(body)
	if i := strings.Index(s, `"method":"`); i >= 0 {
		rest := s[i+len(`"method":"`):]
		if j := strings.Index(rest, `"`); j >= 0 {
			return `"` + rest[:j] + `"`
		}
	}
	return `""`
}

func TestBridgeForwardsStdinRequestToUpstream(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()

	cfg := &config.Config{SSE: upstream.URL + "/sse"}
	runtime := runtimeargs.New(runtimeargs.Args{})
	updates := runtimeupdate.NewChannel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, runtime, updates, testLogger(), stdinR, stdoutW) }()

	go func() {
		_, _ = stdinW.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"))
	}()

	reader := bufio.NewReader(stdoutR)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if !strings.Contains(line, `"echoed":"ping"`) {
		t.Fatalf("stdout line = %q, want it to carry the upstream's echoed reply", line)
	}

	cancel()
	_ = stdinW.Close()
}

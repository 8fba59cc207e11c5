// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package httpstdio bridges a local stdio MCP client to a remote
// streamable-HTTP MCP server: every line of JSON-RPC read from stdin is
// POSTed upstream (picking up the Mcp-Session-Id the server hands back
// on first response and carrying it on every subsequent request), while
// a background goroutine holds a long-lived GET SSE connection open to
// relay server-initiated messages back to stdout. Grounded on
// gateways/streamable_http_to_stdio.rs.
package httpstdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/supergateway-go/gateway/internal/config"
	"github.com/supergateway-go/gateway/internal/handshake"
	"github.com/supergateway-go/gateway/internal/jsonrpc"
	"github.com/supergateway-go/gateway/internal/runtimeargs"
	"github.com/supergateway-go/gateway/internal/runtimeupdate"
)

// sessionHolder stores the Mcp-Session-Id handed back by the upstream
// server, if any, shared between the request path and the SSE relay.
type sessionHolder struct {
	mu sync.RWMutex
	id string
}

func (s *sessionHolder) get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *sessionHolder) set(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// Run connects to cfg.StreamableHTTP and pumps stdin/stdout against it
// until in is closed or ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, runtime *runtimeargs.Store, updates chan runtimeupdate.Request, logger *slog.Logger, in io.Reader, out io.Writer) error {
	if cfg.StreamableHTTP == "" {
		return fmt.Errorf("streamableHttp url is required")
	}
	url := cfg.StreamableHTTP
	client := &http.Client{}
	session := &sessionHolder{}
	var outMu sync.Mutex

	go relaySSE(ctx, client, url, cfg, runtime, session, out, &outMu, logger)
	go applyRuntimeUpdates(updates, runtime, logger)

	shim := handshake.New(cfg.ProtocolVersion)
	forward := func(msg *jsonrpc.Message) (*jsonrpc.Message, error) {
		return sendRequest(client, url, cfg, runtime, session, msg)
	}
	notify := func(msg *jsonrpc.Message) error {
		_, err := sendRequest(client, url, cfg, runtime, session, msg)
		return err
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, err := jsonrpc.Decode(line)
		if err != nil {
			logger.Error("invalid JSON from stdin", "err", err)
			continue
		}
		if !msg.IsRequest() {
			// Not a request awaiting a reply (e.g. a client notification):
			// forward it upstream fire-and-forget and echo it straight
			// through, matching the original's pass-through of non-request
			// stdin lines.
			go func(m *jsonrpc.Message) { _, _ = sendRequest(client, url, cfg, runtime, session, m) }(msg)
			writeLine(out, &outMu, line)
			continue
		}

		reply, err := shim.Handle(msg, forward, notify)
		if err != nil {
			reply = jsonrpc.NewError(msg.ID, jsonrpc.CodeServerError, err.Error())
		}
		b, err := reply.Encode()
		if err != nil {
			continue
		}
		writeLine(out, &outMu, b)
	}
	return scanner.Err()
}

func writeLine(w io.Writer, mu *sync.Mutex, line []byte) {
	mu.Lock()
	defer mu.Unlock()
	_, _ = w.Write(line)
	_, _ = w.Write([]byte("\n"))
}

// sendRequest POSTs msg upstream, capturing any Mcp-Session-Id the
// server returns and normalizing the reply into a response carrying
// either a result or error, never both.
func sendRequest(client *http.Client, url string, cfg *config.Config, runtime *runtimeargs.Store, session *sessionHolder, msg *jsonrpc.Message) (*jsonrpc.Message, error) {
	body, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	applyHeaders(req, cfg, runtime)
	if sid := session.get(); sid != "" {
		req.Header.Set("Mcp-Session-Id", sid)
	}

	resp, err := client.Do(req)
	if err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeServerError, err.Error()), nil
	}
	defer resp.Body.Close()
	if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" {
		session.set(sid)
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeServerError, err.Error()), nil
	}
	if len(bytes.TrimSpace(text)) == 0 {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return jsonrpc.NewError(msg.ID, jsonrpc.CodeServerError, "Empty response"), nil
		}
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeServerError, fmt.Sprintf("Request failed with status %d", resp.StatusCode)), nil
	}

	var upstream jsonrpc.Message
	if err := json.Unmarshal(text, &upstream); err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeServerError, err.Error()), nil
	}
	reply := &jsonrpc.Message{JSONRPC: "2.0", ID: msg.ID}
	switch {
	case upstream.Error != nil:
		reply.Error = upstream.Error
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeServerError, fmt.Sprintf("Request failed with status %d", resp.StatusCode)), nil
	case len(upstream.Result) > 0:
		reply.Result = upstream.Result
	default:
		reply.Result = text
	}
	return reply, nil
}

func applyHeaders(req *http.Request, cfg *config.Config, runtime *runtimeargs.Store) {
	eff := runtime.GetEffective("")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range eff.Headers {
		req.Header.Set(k, v)
	}
}

// relaySSE holds a GET SSE connection open against the upstream server
// once a session id is known, printing each event's JSON payload to
// stdout, reconnecting on any error.
func relaySSE(ctx context.Context, client *http.Client, url string, cfg *config.Config, runtime *runtimeargs.Store, session *sessionHolder, out io.Writer, outMu *sync.Mutex, logger *slog.Logger) {
	var backoff atomic.Bool
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		sid := session.get()
		if sid == "" {
			time.Sleep(200 * time.Millisecond)
			continue
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return
		}
		req.Header.Set("Accept", "text/event-stream")
		applyHeaders(req, cfg, runtime)
		req.Header.Set("Mcp-Session-Id", sid)

		resp, err := client.Do(req)
		if err != nil {
			logger.Error("streamableHttp SSE connection failed", "err", err)
			sleepBackoff(&backoff)
			continue
		}
		readSSE(resp.Body, out, outMu, logger)
		resp.Body.Close()
		sleepBackoff(&backoff)
	}
}

func sleepBackoff(b *atomic.Bool) {
	if b.CompareAndSwap(false, true) {
		time.Sleep(1 * time.Second)
		b.Store(false)
		return
	}
	time.Sleep(1 * time.Second)
}

func readSSE(body io.Reader, out io.Writer, outMu *sync.Mutex, logger *slog.Logger) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}
		var js json.RawMessage
		if err := json.Unmarshal([]byte(data), &js); err != nil {
			continue
		}
		writeLine(out, outMu, js)
	}
	if err := scanner.Err(); err != nil {
		logger.Error("streamableHttp SSE error", "err", err)
	}
}

func applyRuntimeUpdates(updates chan runtimeupdate.Request, runtime *runtimeargs.Store, logger *slog.Logger) {
	for req := range updates {
		var outcome runtimeupdate.Outcome
		if req.Scope.Session {
			outcome = runtimeupdate.Failed("Per-session runtime overrides are not supported for StreamableHTTP->stdio")
		} else {
			result := runtime.UpdateGlobal(req.Update)
			if result.RestartNeeded {
				outcome = runtimeupdate.OK("Updated runtime args; env/CLI changes require restart of remote server", false)
			} else {
				outcome = runtimeupdate.OK("Updated runtime headers", false)
			}
		}
		req.ReplyTo <- outcome
	}
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package ssestdio bridges a local stdio MCP client to a remote SSE MCP
// server: a background goroutine holds the SSE stream open, learns the
// POST endpoint from its "endpoint" event, and relays every other event
// to stdout, while stdin lines are POSTed to that endpoint once known.
// Grounded on gateways/sse_to_stdio.rs.
package ssestdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/supergateway-go/gateway/internal/config"
	"github.com/supergateway-go/gateway/internal/handshake"
	"github.com/supergateway-go/gateway/internal/jsonrpc"
	"github.com/supergateway-go/gateway/internal/runtimeargs"
	"github.com/supergateway-go/gateway/internal/runtimeupdate"
)

type endpointHolder struct {
	mu  sync.RWMutex
	url *url.URL
}

func (e *endpointHolder) get() *url.URL {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.url
}

func (e *endpointHolder) set(u *url.URL) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.url = u
}

// Run connects to cfg.SSE and pumps stdin/stdout against it until in is
// closed or ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, runtime *runtimeargs.Store, updates chan runtimeupdate.Request, logger *slog.Logger, in io.Reader, out io.Writer) error {
	if cfg.SSE == "" {
		return fmt.Errorf("sse url is required")
	}
	baseURL, err := url.Parse(cfg.SSE)
	if err != nil {
		return fmt.Errorf("invalid sse url: %w", err)
	}

	client := &http.Client{}
	endpoint := &endpointHolder{}
	var outMu sync.Mutex

	go connectSSE(ctx, client, cfg, runtime, baseURL, endpoint, out, &outMu, logger)
	go applyRuntimeUpdates(updates, runtime, logger)

	shim := handshake.New(cfg.ProtocolVersion)
	forward := func(msg *jsonrpc.Message) (*jsonrpc.Message, error) {
		return postMessage(client, cfg, runtime, endpoint, msg)
	}
	notify := func(msg *jsonrpc.Message) error {
		_, err := postMessage(client, cfg, runtime, endpoint, msg)
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
			go func(m *jsonrpc.Message) { _, _ = postMessage(client, cfg, runtime, endpoint, m) }(msg)
			writeLine(out, &outMu, line)
			continue
		}

		waitForEndpoint(ctx, endpoint)
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

func waitForEndpoint(ctx context.Context, endpoint *endpointHolder) {
	for endpoint.get() == nil {
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func writeLine(w io.Writer, mu *sync.Mutex, line []byte) {
	mu.Lock()
	defer mu.Unlock()
	_, _ = w.Write(line)
	_, _ = w.Write([]byte("\n"))
}

func postMessage(client *http.Client, cfg *config.Config, runtime *runtimeargs.Store, endpoint *endpointHolder, msg *jsonrpc.Message) (*jsonrpc.Message, error) {
	u := endpoint.get()
	if u == nil {
		return nil, fmt.Errorf("message endpoint not yet known")
	}
	body, err := msg.Encode()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	eff := runtime.GetEffective("")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range eff.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return jsonrpc.NewError(msg.ID, jsonrpc.CodeServerError, err.Error()), nil
	}
	defer resp.Body.Close()

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

// connectSSE holds the upstream GET SSE stream open, resolving the
// "endpoint" event against baseURL and relaying every other event's
// JSON payload to stdout.
func connectSSE(ctx context.Context, client *http.Client, cfg *config.Config, runtime *runtimeargs.Store, baseURL *url.URL, endpoint *endpointHolder, out io.Writer, outMu *sync.Mutex, logger *slog.Logger) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		logger.Error("sse connection failed", "err", err)
		return
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.Error("sse connection failed", "err", err)
		return
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var eventName string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if eventName == "endpoint" {
				if joined, err := baseURL.Parse(data); err == nil {
					endpoint.set(joined)
					logger.Info("received message endpoint", "url", joined.String())
				}
				eventName = ""
				continue
			}
			if data == "" {
				continue
			}
			var js json.RawMessage
			if err := json.Unmarshal([]byte(data), &js); err == nil {
				writeLine(out, outMu, js)
			}
			eventName = ""
		case line == "":
			eventName = ""
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("sse error", "err", err)
	}
}

func applyRuntimeUpdates(updates chan runtimeupdate.Request, runtime *runtimeargs.Store, logger *slog.Logger) {
	for req := range updates {
		var outcome runtimeupdate.Outcome
		if req.Scope.Session {
			outcome = runtimeupdate.Failed("Per-session runtime overrides are not supported for SSE->stdio")
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

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package handshake implements the auto-initialize shim shared by every
// bridge that acts as an MCP client against something else (an upstream
// SSE/streamable-HTTP server, or a freshly spawned stdio child): if the
// downstream caller issues a non-initialize request before it has
// completed its own handshake, the shim transparently performs
// initialize/notifications-initialized on the caller's behalf first.
//
// The original implementation (sse_to_stdio.rs, streamable_http_to_stdio.rs,
// and the stateless path of stdio_to_streamable_http.rs) duplicates this
// logic three times; here it is factored into one component all three
// bridges share.
package handshake

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supergateway-go/gateway/internal/jsonrpc"
	"github.com/supergateway-go/gateway/internal/version"
)

// Forwarder sends a request and waits for its correlated reply. It is
// supplied by the bridge: over HTTP POST for sse/streamableHttp upstreams,
// or over a child's stdin/stdout for the stdio-owning stateless path.
type Forwarder func(msg *jsonrpc.Message) (*jsonrpc.Message, error)

// Notifier sends a one-way notification, with no reply expected.
type Notifier func(msg *jsonrpc.Message) error

// Shim tracks whether the upstream/child side of one logical connection
// has completed initialization yet. Not safe for concurrent use across
// multiple in-flight messages; each bridge serializes message handling
// per connection already (single stdin reader, or one child per request).
type Shim struct {
	protocolVersion string
	initialized     bool
}

// New builds a Shim for the given protocol version, advertised in the
// synthetic initialize request's params.
func New(protocolVersion string) *Shim {
	return &Shim{protocolVersion: protocolVersion}
}

// Handle forwards msg to forward, performing an auto-initialize first if
// msg isn't itself an initialize request and the shim hasn't completed
// one yet. It returns the final response Message to deliver to the
// original caller, carrying msg's own jsonrpc/id fields regardless of
// what the upstream init or real call replied with.
func (s *Shim) Handle(msg *jsonrpc.Message, forward Forwarder, notify Notifier) (*jsonrpc.Message, error) {
	if !s.initialized && msg.Method != "initialize" {
		initReq := BuildInitializeRequest(s.protocolVersion)
		initReply, err := forward(initReq)
		if err != nil {
			return nil, fmt.Errorf("auto-initialize: %w", err)
		}
		if initReply.Error != nil {
			return wrapResponse(msg, initReply), nil
		}
		if err := notify(BuildInitializedNotification()); err != nil {
			// Non-fatal: the original logs and proceeds regardless.
			_ = err
		} else {
			s.initialized = true
		}
	}

	reply, err := forward(msg)
	if err != nil {
		return nil, fmt.Errorf("forward request: %w", err)
	}

	if msg.Method == "initialize" && reply.Error == nil && !s.initialized {
		if err := notify(BuildInitializedNotification()); err == nil {
			s.initialized = true
		}
	}

	return wrapResponse(msg, reply), nil
}

// wrapResponse builds the final reply carrying the original request's
// jsonrpc/id and reply's result/error, normalizing any MCP error-code
// prefix in the message text.
func wrapResponse(req, reply *jsonrpc.Message) *jsonrpc.Message {
	out := &jsonrpc.Message{JSONRPC: "2.0", ID: req.ID}
	if req.JSONRPC != "" {
		out.JSONRPC = req.JSONRPC
	}
	switch {
	case reply.Error != nil:
		out.Error = &jsonrpc.Error{
			Code:    reply.Error.Code,
			Message: NormalizeErrorMessage(reply.Error.Code, reply.Error.Message),
			Data:    reply.Error.Data,
		}
	case len(reply.Result) > 0:
		out.Result = reply.Result
	default:
		// Upstream replied with neither error nor result: pass its raw
		// body through as the result, matching the original's fallback
		// of treating a bare payload as the result.
		raw, _ := json.Marshal(reply)
		out.Result = raw
	}
	return out
}

// NormalizeErrorMessage strips a leading "MCP error <code>:" prefix that
// some MCP servers include in their error text, so the gateway doesn't
// double-report the code.
func NormalizeErrorMessage(code int, message string) string {
	prefix := fmt.Sprintf("MCP error %d:", code)
	if strings.HasPrefix(message, prefix) {
		return strings.TrimSpace(message[len(prefix):])
	}
	return message
}

// BuildInitializeRequest synthesizes the initialize request the shim
// sends when a downstream caller skips its own handshake.
func BuildInitializeRequest(protocolVersion string) *jsonrpc.Message {
	params, _ := json.Marshal(map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"roots":    map[string]any{"listChanged": true},
			"sampling": map[string]any{},
		},
		"clientInfo": map[string]any{
			"name":    "supergateway",
			"version": version.Version,
		},
	})
	return &jsonrpc.Message{
		JSONRPC: "2.0",
		ID:      jsonrpc.RawID(strconv.Quote(autoInitID())),
		Method:  "initialize",
		Params:  params,
	}
}

// BuildInitializedNotification synthesizes the notifications/initialized
// notification sent immediately after a successful auto-initialize.
func BuildInitializedNotification() *jsonrpc.Message {
	return &jsonrpc.Message{JSONRPC: "2.0", Method: "notifications/initialized"}
}

// autoInitID synthesizes an id of the form init_<unix_millis>_<uuid>.
func autoInitID() string {
	return fmt.Sprintf("init_%d_%s", time.Now().UnixMilli(), uuid.NewString())
}

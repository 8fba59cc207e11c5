// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc models JSON-RPC 2.0 messages as an opaque envelope.
//
// The gateway never interprets message bodies beyond the fields it needs to
// route them: it is a tunnel, not an MCP server, so params/result payloads
// are carried as json.RawMessage rather than decoded into typed structs.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/supergateway-go/gateway/internal/jsonrpc2"
)

// Standard JSON-RPC / MCP error codes used when the gateway itself must
// answer on behalf of an unreachable or misbehaving endpoint.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// Message is a JSON-RPC 2.0 envelope. The id, params, result and error
// data ride along as raw bytes, so re-encoding reproduces those payloads
// as received. Top-level members Message has no field for are accepted by
// Decode but are not kept, so Encode does not emit them.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the JSON-RPC 2.0 error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Decode parses a single line of JSON-RPC traffic. It uses
// jsonrpc2.StrictUnmarshalAllowUnknownFields rather than plain
// encoding/json so a message carrying case-variant duplicate keys (e.g.
// both "id" and "Id") at any nesting depth — the smuggling trick Go's
// default case-insensitive field matching would otherwise let through —
// is rejected at the wire boundary instead of silently tunneled
// downstream. Unlike jsonrpc2.StrictUnmarshal, it does not reject an
// envelope carrying top-level members Message has no field for: the
// gateway is a faithful tunnel (never rewriting semantics) and some MCP
// peers attach vendor extensions alongside jsonrpc/id/method/params.
func Decode(line []byte) (*Message, error) {
	var m Message
	if err := jsonrpc2.StrictUnmarshalAllowUnknownFields(line, &m); err != nil {
		return nil, fmt.Errorf("decode jsonrpc message: %w", err)
	}
	return &m, nil
}

// Encode serializes m back into wire form.
func (m *Message) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode jsonrpc message: %w", err)
	}
	return b, nil
}

// IsRequest reports whether m carries both a method and an id, i.e. expects
// a correlated response.
func (m *Message) IsRequest() bool {
	return m.Method != "" && len(m.ID) > 0
}

// IsNotification reports whether m carries a method but no id.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// IsResponse reports whether m carries an id but no method, i.e. it is a
// reply rather than a call. It does not check for a result or error member.
func (m *Message) IsResponse() bool {
	return m.Method == "" && len(m.ID) > 0
}

// IDKey returns a comparable string key for m.ID, suitable for use as a map
// key in pending-request tables. IDs are opaque per JSON-RPC — they may be
// strings or numbers — so the raw bytes are normalized by trimming
// whitespace, never reinterpreted as a particular Go type.
func (m *Message) IDKey() string {
	return string(bytes.TrimSpace(m.ID))
}

// NewError builds a response Message carrying an error for the given id.
func NewError(id json.RawMessage, code int, message string) *Message {
	return &Message{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}

// RawID wraps a JSON scalar (string or number literal) as a json.RawMessage
// id. Callers pass already-quoted JSON, e.g. RawID(`"init_123_abc"`).
func RawID(jsonLiteral string) json.RawMessage {
	return json.RawMessage(jsonLiteral)
}

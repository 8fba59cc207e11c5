// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"regexp"
	"testing"

	"github.com/supergateway-go/gateway/internal/jsonrpc"
)

var initIDPattern = regexp.MustCompile(`^init_\d+_[0-9a-f-]{36}$`)

func TestAutoInitIDFormat(t *testing.T) {
	req := BuildInitializeRequest("2024-11-05")
	id := req.IDKey()
	// IDKey returns the raw JSON literal, which is quoted; strip quotes.
	unquoted := id[1 : len(id)-1]
	if !initIDPattern.MatchString(unquoted) {
		t.Errorf("auto-init id %q does not match init_<millis>_<uuid>", unquoted)
	}
}

func TestHandleSendsInitBeforeFirstRealRequest(t *testing.T) {
	s := New("2024-11-05")
	var forwarded []string
	var notified []string

	forward := func(msg *jsonrpc.Message) (*jsonrpc.Message, error) {
		forwarded = append(forwarded, msg.Method)
		return &jsonrpc.Message{JSONRPC: "2.0", ID: msg.ID, Result: []byte(`{}`)}, nil
	}
	notify := func(msg *jsonrpc.Message) error {
		notified = append(notified, msg.Method)
		return nil
	}

	realReq, _ := jsonrpc.Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	resp, err := s.Handle(realReq, forward, notify)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.IDKey() != realReq.IDKey() {
		t.Errorf("response id = %s, want %s", resp.IDKey(), realReq.IDKey())
	}
	if len(forwarded) != 2 || forwarded[0] != "initialize" || forwarded[1] != "tools/list" {
		t.Errorf("forwarded = %v, want [initialize tools/list]", forwarded)
	}
	if len(notified) != 1 || notified[0] != "notifications/initialized" {
		t.Errorf("notified = %v, want [notifications/initialized]", notified)
	}
	if !s.initialized {
		t.Error("shim should be marked initialized")
	}
}

func TestHandleSkipsAutoInitOnSecondCall(t *testing.T) {
	s := New("2024-11-05")
	callCount := 0
	forward := func(msg *jsonrpc.Message) (*jsonrpc.Message, error) {
		callCount++
		return &jsonrpc.Message{JSONRPC: "2.0", ID: msg.ID, Result: []byte(`{}`)}, nil
	}
	notify := func(msg *jsonrpc.Message) error { return nil }

	req1, _ := jsonrpc.Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"a"}`))
	req2, _ := jsonrpc.Decode([]byte(`{"jsonrpc":"2.0","id":2,"method":"b"}`))
	if _, err := s.Handle(req1, forward, notify); err != nil {
		t.Fatalf("Handle 1: %v", err)
	}
	if _, err := s.Handle(req2, forward, notify); err != nil {
		t.Fatalf("Handle 2: %v", err)
	}
	// req1 triggers 2 forward calls (init + real); req2 triggers 1.
	if callCount != 3 {
		t.Errorf("callCount = %d, want 3", callCount)
	}
}

func TestNormalizeErrorMessageStripsPrefix(t *testing.T) {
	got := NormalizeErrorMessage(-32601, "MCP error -32601: method not found")
	if got != "method not found" {
		t.Errorf("NormalizeErrorMessage = %q", got)
	}
	got = NormalizeErrorMessage(-32601, "plain message")
	if got != "plain message" {
		t.Errorf("NormalizeErrorMessage should pass through unprefixed text, got %q", got)
	}
}

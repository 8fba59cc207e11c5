// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`},
		{"response", `{"jsonrpc":"2.0","id":"abc","result":{"ok":true}}`},
		{"error response", `{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"not found"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.line))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			out, err := msg.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			msg2, err := Decode(out)
			if err != nil {
				t.Fatalf("Decode(Encode(x)): %v", err)
			}
			if diff := cmp.Diff(msg, msg2); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMessageKind(t *testing.T) {
	tests := []struct {
		name             string
		line             string
		wantReq, wantNot, wantResp bool
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"m"}`, true, false, false},
		{"notification", `{"jsonrpc":"2.0","method":"m"}`, false, true, false},
		{"response", `{"jsonrpc":"2.0","id":1,"result":{}}`, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.line))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got := msg.IsRequest(); got != tt.wantReq {
				t.Errorf("IsRequest() = %v, want %v", got, tt.wantReq)
			}
			if got := msg.IsNotification(); got != tt.wantNot {
				t.Errorf("IsNotification() = %v, want %v", got, tt.wantNot)
			}
			if got := msg.IsResponse(); got != tt.wantResp {
				t.Errorf("IsResponse() = %v, want %v", got, tt.wantResp)
			}
		})
	}
}

func TestIDKeyDistinguishesStringAndNumber(t *testing.T) {
	strMsg, _ := Decode([]byte(`{"jsonrpc":"2.0","id":"1","method":"m"}`))
	numMsg, _ := Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"m"}`))
	if strMsg.IDKey() == numMsg.IDKey() {
		t.Errorf("IDKey collapsed string id and number id: %q", strMsg.IDKey())
	}
}

func TestDecodeRejectsCaseVariantDuplicateKeys(t *testing.T) {
	_, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"m","params":{"name":"a","Name":"b"}}`))
	if err == nil {
		t.Fatal("Decode accepted a message with case-variant duplicate keys")
	}
}

func TestNewError(t *testing.T) {
	msg := NewError(RawID("5"), CodeMethodNotFound, "no such method")
	if msg.Error == nil || msg.Error.Code != CodeMethodNotFound {
		t.Fatalf("NewError produced %+v", msg)
	}
	if msg.IDKey() != "5" {
		t.Errorf("IDKey() = %q, want 5", msg.IDKey())
	}
}

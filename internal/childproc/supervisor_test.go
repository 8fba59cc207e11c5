// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package childproc

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/supergateway-go/gateway/internal/runtimeargs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoChild is a tiny shell one-liner that echoes each input line back,
// standing in for a real MCP server child in tests.
var echoChild = Spec{Program: "sh", Args: []string{"-c", "while IFS= read -r line; do echo \"$line\"; done"}}

func TestSpawnSendReceive(t *testing.T) {
	sup := New(echoChild, false, testLogger())
	if err := sup.Spawn(runtimeargs.Args{}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer sup.Shutdown(context.Background())

	ch, cancel := sup.Subscribe()
	defer cancel()

	if err := sup.Send([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case line := <-ch:
		if string(line) != `{"jsonrpc":"2.0","id":1,"method":"ping"}` {
			t.Errorf("got %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed line")
	}
}

func TestIsAliveAfterShutdown(t *testing.T) {
	sup := New(echoChild, false, testLogger())
	if err := sup.Spawn(runtimeargs.Args{}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if !sup.IsAlive() {
		t.Fatal("expected child alive right after spawn")
	}
	sup.Shutdown(context.Background())
	if sup.IsAlive() {
		t.Fatal("expected child dead after shutdown")
	}
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	sup := New(echoChild, false, testLogger())
	if err := sup.Spawn(runtimeargs.Args{}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer sup.Shutdown(context.Background())

	ch1, cancel1 := sup.Subscribe()
	defer cancel1()
	ch2, cancel2 := sup.Subscribe()
	defer cancel2()

	if err := sup.Send([]byte(`{"jsonrpc":"2.0","method":"notify"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for _, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber never received broadcast line")
		}
	}
}

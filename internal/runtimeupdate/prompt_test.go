// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package runtimeupdate

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStartPromptParsesGlobalScopeLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tty")
	if err := os.WriteFile(path, []byte(`{"scope":"global","env":{"K":"V"}}`+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	updates := NewChannel()
	StartPrompt(path, updates, testLogger())

	select {
	case req := <-updates:
		if req.Scope.Session {
			t.Errorf("expected global scope, got %+v", req.Scope)
		}
		if req.Update.Env["K"] != "V" {
			t.Errorf("Update.Env = %+v", req.Update.Env)
		}
		req.ReplyTo <- OK("applied", false)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for prompt-driven update")
	}
}

func TestStartPromptMissingFileLogsAndReturns(t *testing.T) {
	updates := NewChannel()
	StartPrompt(filepath.Join(t.TempDir(), "does-not-exist"), updates, testLogger())
	select {
	case req := <-updates:
		t.Fatalf("unexpected update from missing file: %+v", req)
	case <-time.After(100 * time.Millisecond):
	}
}

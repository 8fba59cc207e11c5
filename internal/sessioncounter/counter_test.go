// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sessioncounter

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIncDecBasic(t *testing.T) {
	var cleaned []string
	var mu sync.Mutex
	c := New(50*time.Millisecond, func(id string) {
		mu.Lock()
		cleaned = append(cleaned, id)
		mu.Unlock()
	}, testLogger())

	c.Inc("s1", "test")
	c.Inc("s1", "test")
	c.Dec("s1", "test")

	mu.Lock()
	n := len(cleaned)
	mu.Unlock()
	if n != 0 {
		t.Fatalf("cleanup should not run while count > 0, got %v", cleaned)
	}
}

func TestDecToZeroSchedulesCleanup(t *testing.T) {
	done := make(chan string, 1)
	c := New(20*time.Millisecond, func(id string) { done <- id }, testLogger())

	c.Inc("s1", "test")
	c.Dec("s1", "test")

	select {
	case id := <-done:
		if id != "s1" {
			t.Errorf("cleanup id = %q, want s1", id)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("cleanup never ran")
	}
}

func TestIncAfterZeroCancelsTimeout(t *testing.T) {
	done := make(chan string, 1)
	c := New(20*time.Millisecond, func(id string) { done <- id }, testLogger())

	c.Inc("s1", "test")
	c.Dec("s1", "test")
	c.Inc("s1", "test") // should cancel the pending cleanup

	select {
	case id := <-done:
		t.Fatalf("cleanup ran unexpectedly for %q", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDecOnAbsentSessionIsNoop(t *testing.T) {
	c := New(time.Second, func(string) { t.Fatal("cleanup should not run") }, testLogger())
	c.Dec("never-existed", "test") // must not panic
}

func TestClearCancelsPendingTimeoutAndOptionallyRunsCleanup(t *testing.T) {
	done := make(chan string, 1)
	c := New(10*time.Millisecond, func(id string) { done <- id }, testLogger())

	c.Inc("s1", "test")
	c.Dec("s1", "test")
	c.Clear("s1", true, "test")

	select {
	case id := <-done:
		if id != "s1" {
			t.Errorf("cleanup id = %q, want s1", id)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Clear(runCleanup=true) should invoke cleanup")
	}

	// The original timeout must not also fire a second cleanup.
	select {
	case id := <-done:
		t.Fatalf("cleanup ran twice, second for %q", id)
	case <-time.After(50 * time.Millisecond):
	}
}

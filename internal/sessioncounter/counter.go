// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package sessioncounter tracks reference counts per session id and
// schedules idle-cleanup after the last reference drops, the way
// support/session_access_counter.rs does with a tokio JoinHandle —
// here a *time.Timer plays that role.
package sessioncounter

import (
	"log/slog"
	"sync"
	"time"
)

type stateKind int

const (
	stateActive stateKind = iota
	stateTimeout
)

type sessionState struct {
	kind  stateKind
	count int         // meaningful when kind == stateActive
	timer *time.Timer // meaningful when kind == stateTimeout
}

// Counter is a reference counter per session id. When a session's count
// reaches zero it starts a Timeout timer; if the session is inc'd again
// before the timer fires, the timer is cancelled and the count resumes.
// If the timer fires, Cleanup is invoked with the session id.
type Counter struct {
	timeout time.Duration
	cleanup func(sessionID string)
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// New builds a Counter. timeout is the idle duration before Cleanup runs;
// cleanup is invoked exactly once per session that times out or is
// explicitly Clear()ed with runCleanup=true.
func New(timeout time.Duration, cleanup func(sessionID string), logger *slog.Logger) *Counter {
	return &Counter{
		timeout:  timeout,
		cleanup:  cleanup,
		logger:   logger,
		sessions: make(map[string]*sessionState),
	}
}

// Inc increments sessionID's reference count, creating it at 1 if absent,
// or cancelling a pending timeout and resuming at 1 if one was running.
// reason is a free-text label for the log line only.
func (c *Counter) Inc(sessionID, reason string) {
	c.logger.Info("session access counter inc", "session", sessionID, "reason", reason)
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.sessions[sessionID]
	switch {
	case !ok:
		c.logger.Info("session access count 0 -> 1 (new session)", "session", sessionID)
		c.sessions[sessionID] = &sessionState{kind: stateActive, count: 1}
	case state.kind == stateTimeout:
		state.timer.Stop()
		c.logger.Info("session access count 0 -> 1, clearing cleanup timeout", "session", sessionID)
		c.sessions[sessionID] = &sessionState{kind: stateActive, count: 1}
	default:
		c.logger.Info("session access count increment", "session", sessionID, "from", state.count, "to", state.count+1)
		state.count++
	}
}

// Dec decrements sessionID's reference count. Decrementing a session that
// is absent, already pending cleanup, or already at zero is logged as an
// error and is otherwise a no-op — these states indicate a caller bug,
// never a reason to crash the gateway.
func (c *Counter) Dec(sessionID, reason string) {
	c.logger.Info("session access counter dec", "session", sessionID, "reason", reason)
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.sessions[sessionID]
	if !ok {
		c.logger.Error("dec() on non-existent session, ignoring", "session", sessionID)
		return
	}
	if state.kind == stateTimeout {
		c.logger.Error("dec() on session already pending cleanup, ignoring", "session", sessionID)
		return
	}
	if state.count == 0 {
		c.logger.Error("invalid access count 0", "session", sessionID)
		return
	}
	state.count--
	c.logger.Info("session access count decrement", "session", sessionID, "to", state.count)
	if state.count > 0 {
		return
	}
	c.logger.Info("session access count reached 0, setting cleanup timeout", "session", sessionID)
	state.kind = stateTimeout
	state.timer = time.AfterFunc(c.timeout, func() {
		c.logger.Info("session timed out, cleaning up", "session", sessionID)
		c.mu.Lock()
		delete(c.sessions, sessionID)
		c.mu.Unlock()
		c.cleanup(sessionID)
	})
}

// Clear removes sessionID immediately, cancelling any pending timeout. If
// runCleanup is true, Cleanup is invoked synchronously (relative to the
// caller, not the lock) after the map entry is removed.
func (c *Counter) Clear(sessionID string, runCleanup bool, reason string) {
	c.logger.Info("session access counter clear", "session", sessionID, "reason", reason)
	c.mu.Lock()
	state, ok := c.sessions[sessionID]
	if ok {
		delete(c.sessions, sessionID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Info("attempted to clear non-existent session", "session", sessionID)
		return
	}
	if state.kind == stateTimeout {
		state.timer.Stop()
	}
	if runCleanup {
		c.cleanup(sessionID)
	}
}

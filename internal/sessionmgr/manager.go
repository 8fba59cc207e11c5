// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sessionmgr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supergateway-go/gateway/internal/childproc"
	"github.com/supergateway-go/gateway/internal/runtimeargs"
	"github.com/supergateway-go/gateway/internal/sessioncounter"
)

func shutdownContext() context.Context {
	return context.Background()
}

// Manager owns the set of live Sessions for the stateful
// stdio->streamableHttp bridge: one child per session, reclaimed by a
// sessioncounter.Counter after sessionTimeout of inactivity when one is
// configured.
type Manager struct {
	spec    childproc.Spec
	runtime *runtimeargs.Store
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	counter *sessioncounter.Counter // nil when no session timeout is configured
}

// New builds a Manager. sessionTimeout of zero disables idle reclamation.
func New(spec childproc.Spec, runtime *runtimeargs.Store, sessionTimeout time.Duration, logger *slog.Logger) *Manager {
	m := &Manager{
		spec:     spec,
		runtime:  runtime,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
	if sessionTimeout > 0 {
		m.counter = sessioncounter.New(sessionTimeout, m.reapSession, logger)
	}
	return m
}

func (m *Manager) reapSession(id string) {
	m.logger.Info("session timed out, cleaning up", "session", id)
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if ok {
		session.child.Shutdown(shutdownContext())
	}
}

// CreateSession spawns a fresh child and registers a new session for it.
func (m *Manager) CreateSession() (*Session, error) {
	id := uuid.NewString()
	runtime := m.runtime.GetEffective(id)
	child := childproc.New(m.spec, false, m.logger)
	if err := child.Spawn(runtime); err != nil {
		return nil, fmt.Errorf("spawn session child: %w", err)
	}
	session := newSession(id, child)
	session.startRouting()

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	if m.counter != nil {
		m.counter.Inc(id, "session initialization")
	}
	return session, nil
}

// GetSession returns the session for id, if any.
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// RemoveSession shuts down and forgets session id, returning whether it
// existed.
func (m *Manager) RemoveSession(id string) bool {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if m.counter != nil {
		m.counter.Clear(id, false, "session deletion")
	}
	if !ok {
		return false
	}
	session.child.Shutdown(shutdownContext())
	return true
}

// SessionInc/SessionDec forward to the idle counter, when configured;
// they are no-ops when no sessionTimeout was set.
func (m *Manager) SessionInc(id, reason string) {
	if m.counter != nil {
		m.counter.Inc(id, reason)
	}
}

func (m *Manager) SessionDec(id, reason string) {
	if m.counter != nil {
		m.counter.Dec(id, reason)
	}
}

// RestartSession restarts session id's child with its freshly merged
// runtime args.
func (m *Manager) RestartSession(id string) error {
	runtime := m.runtime.GetEffective(id)
	m.mu.Lock()
	session, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return session.Restart(runtime)
}

// RestartAll restarts every live session's child, used when a global
// runtime-args update requires a restart.
func (m *Manager) RestartAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		if err := m.RestartSession(id); err != nil {
			m.logger.Error("failed to restart session", "session", id, "err", err)
		}
	}
}

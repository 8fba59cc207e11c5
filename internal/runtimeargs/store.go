// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package runtimeargs holds the gateway's mutable child-process launch
// arguments: a global snapshot plus per-session overlays, merged on read.
// The mutex-guarded-map shape follows mcp.MemorySessionStore.
package runtimeargs

import "sync"

// Args is the set of launch-time values a child process can be
// reconfigured with at runtime: extra CLI arguments, environment
// variables, and upstream headers.
type Args struct {
	ExtraCliArgs []string
	Env          map[string]string
	Headers      map[string]string
}

func (a Args) clone() Args {
	out := Args{Env: make(map[string]string, len(a.Env)), Headers: make(map[string]string, len(a.Headers))}
	if len(a.ExtraCliArgs) > 0 {
		out.ExtraCliArgs = append([]string(nil), a.ExtraCliArgs...)
	}
	for k, v := range a.Env {
		out.Env[k] = v
	}
	for k, v := range a.Headers {
		out.Headers[k] = v
	}
	return out
}

// merge combines base and overlay. ExtraCliArgs uses REPLACE semantics: a
// non-empty overlay list replaces base's entirely, rather than appending
// to it (a deliberate divergence from the Rust original's extend
// behavior — see DESIGN.md). Env and Headers are key-wise overlaid.
func merge(base, overlay Args) Args {
	merged := base.clone()
	if len(overlay.ExtraCliArgs) > 0 {
		merged.ExtraCliArgs = append([]string(nil), overlay.ExtraCliArgs...)
	}
	for k, v := range overlay.Env {
		merged.Env[k] = v
	}
	for k, v := range overlay.Headers {
		merged.Headers[k] = v
	}
	return merged
}

// Update is a partial patch: nil fields are left untouched, matching the
// original's Option<T>-typed RuntimeArgsUpdate.
type Update struct {
	ExtraCliArgs []string
	Env          map[string]string
	Headers      map[string]string
}

// ApplyResult reports which kinds of change an update produced, so the
// caller (the runtime-update dispatcher) knows whether a child restart is
// required.
type ApplyResult struct {
	RestartNeeded bool
	HeadersChanged bool
}

func applyUpdate(dst *Args, u Update) ApplyResult {
	var r ApplyResult
	if u.ExtraCliArgs != nil {
		dst.ExtraCliArgs = append([]string(nil), u.ExtraCliArgs...)
		r.RestartNeeded = true
	}
	if u.Env != nil {
		dst.Env = make(map[string]string, len(u.Env))
		for k, v := range u.Env {
			dst.Env[k] = v
		}
		r.RestartNeeded = true
	}
	if u.Headers != nil {
		dst.Headers = make(map[string]string, len(u.Headers))
		for k, v := range u.Headers {
			dst.Headers[k] = v
		}
		r.HeadersChanged = true
	}
	return r
}

// Store holds one global Args snapshot plus a map of per-session overlays.
type Store struct {
	mu       sync.Mutex
	global   Args
	sessions map[string]Args
}

// New builds a Store seeded with initial as the global snapshot.
func New(initial Args) *Store {
	return &Store{
		global:   initial.clone(),
		sessions: make(map[string]Args),
	}
}

// UpdateGlobal patches the global snapshot.
func (s *Store) UpdateGlobal(u Update) ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return applyUpdate(&s.global, u)
}

// UpdateSession patches the overlay for sessionID, creating it if absent.
func (s *Store) UpdateSession(sessionID string, u Update) ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	overlay := s.sessions[sessionID]
	r := applyUpdate(&overlay, u)
	s.sessions[sessionID] = overlay
	return r
}

// GetEffective returns the merged Args for sessionID, or the bare global
// snapshot if sessionID is empty or has no overlay.
func (s *Store) GetEffective(sessionID string) Args {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID == "" {
		return s.global.clone()
	}
	overlay, ok := s.sessions[sessionID]
	if !ok {
		return s.global.clone()
	}
	return merge(s.global, overlay)
}

// ListSessions returns the session ids that currently carry an overlay.
func (s *Store) ListSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ClearSession removes sessionID's overlay, if any.
func (s *Store) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

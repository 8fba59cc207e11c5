// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package runtimeupdate carries live reconfiguration requests from two
// producers — a loopback-only admin HTTP server and an interactive
// /dev/tty prompt — to whichever bridge owns the child/session that must
// apply them. Grounded on runtime/mod.rs, runtime/admin.rs, runtime/prompt.rs.
package runtimeupdate

import "github.com/supergateway-go/gateway/internal/runtimeargs"

// dispatchDepth mirrors the original's mpsc::channel(32).
const dispatchDepth = 32

// Scope selects whether a Request targets the global RuntimeArgs
// snapshot or one session's overlay.
type Scope struct {
	Session   bool
	SessionID string
}

// GlobalScope is the zero-value convenience for targeting the global
// snapshot.
var GlobalScope = Scope{}

// SessionScope targets sessionID's overlay.
func SessionScope(sessionID string) Scope {
	return Scope{Session: true, SessionID: sessionID}
}

// Outcome is the result reported back to whichever producer issued a
// Request, mirroring RuntimeApplyResult's status/message/restart fields.
type Outcome struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Restart bool   `json:"restart"`
}

// OK builds a successful Outcome.
func OK(message string, restart bool) Outcome {
	return Outcome{Status: "ok", Message: message, Restart: restart}
}

// Failed builds an error Outcome.
func Failed(message string) Outcome {
	return Outcome{Status: "error", Message: message}
}

// Request is one pending runtime update, paired with a reply channel the
// bridge applying it uses to report the Outcome back to the producer.
type Request struct {
	Scope    Scope
	Update   runtimeargs.Update
	ReplyTo  chan Outcome
}

// NewChannel builds the bounded channel both producers publish Requests
// on and the bridge's apply loop consumes from.
func NewChannel() chan Request {
	return make(chan Request, dispatchDepth)
}

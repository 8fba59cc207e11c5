// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package sessionmgr implements the per-session child-process ownership
// used by the stateful stdio->streamableHttp bridge: one Supervisor per
// session, a pending-request table keyed by JSON-RPC id, and a
// notification broadcaster for everything that isn't a correlated reply.
// Grounded on the Session/SessionManager types in
// gateways/stdio_to_streamable_http.rs.
package sessionmgr

import (
	"fmt"
	"sync"

	"github.com/supergateway-go/gateway/internal/childproc"
	"github.com/supergateway-go/gateway/internal/jsonrpc"
	"github.com/supergateway-go/gateway/internal/runtimeargs"
)

// notificationDepth mirrors the original's broadcast::channel(64).
const notificationDepth = 64

// Session owns one child process and routes its output between pending
// request replies and a notification fan-out.
type Session struct {
	ID    string
	child *childproc.Supervisor

	pendingMu sync.Mutex
	pending   map[string]chan *jsonrpc.Message

	notifMu sync.Mutex
	notifSubs map[int]chan *jsonrpc.Message
	nextNotif int
}

func newSession(id string, child *childproc.Supervisor) *Session {
	return &Session{
		ID:        id,
		child:     child,
		pending:   make(map[string]chan *jsonrpc.Message),
		notifSubs: make(map[int]chan *jsonrpc.Message),
	}
}

// startRouting launches the goroutine that splits the child's broadcast
// stream between pending-request delivery and notification fan-out. The
// split happens under pendingMu so a reply can never be delivered to a
// subscriber as a notification and vice versa.
//
// When the child's subscriber channel closes (childproc.Supervisor.
// Shutdown, reached via session teardown or idle reap), the range loop
// ends and cancelPending fails every still-outstanding Session.Request
// call with "Request cancelled" instead of leaving it blocked forever.
func (s *Session) startRouting() {
	lines, _ := s.child.Subscribe()
	go func() {
		for line := range lines {
			msg, err := jsonrpc.Decode(line)
			if err != nil {
				continue
			}
			if len(msg.ID) > 0 {
				key := msg.IDKey()
				s.pendingMu.Lock()
				ch, ok := s.pending[key]
				if ok {
					delete(s.pending, key)
				}
				s.pendingMu.Unlock()
				if ok {
					ch <- msg
					continue
				}
			}
			s.publishNotification(msg)
		}
		s.cancelPending()
	}()
}

// cancelPending fails every outstanding Request call waiting on a reply,
// used once the child is gone for good and no further response will
// ever arrive.
func (s *Session) cancelPending() {
	s.pendingMu.Lock()
	pending := s.pending
	s.pending = make(map[string]chan *jsonrpc.Message)
	s.pendingMu.Unlock()
	for _, ch := range pending {
		ch <- nil
	}
}

// SubscribeNotifications returns a channel receiving every message not
// claimed as a pending request's reply (server-initiated notifications
// and requests), plus a cancel func.
func (s *Session) SubscribeNotifications() (<-chan *jsonrpc.Message, func()) {
	ch := make(chan *jsonrpc.Message, notificationDepth)
	s.notifMu.Lock()
	id := s.nextNotif
	s.nextNotif++
	s.notifSubs[id] = ch
	s.notifMu.Unlock()
	cancel := func() {
		s.notifMu.Lock()
		delete(s.notifSubs, id)
		s.notifMu.Unlock()
	}
	return ch, cancel
}

func (s *Session) publishNotification(msg *jsonrpc.Message) {
	s.notifMu.Lock()
	defer s.notifMu.Unlock()
	for _, ch := range s.notifSubs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Send forwards message to the child without expecting a correlated
// reply (a JSON-RPC notification, or a fire-and-forget request).
func (s *Session) Send(message *jsonrpc.Message) error {
	b, err := message.Encode()
	if err != nil {
		return err
	}
	return s.child.Send(b)
}

// Request forwards message and blocks until the child emits a reply
// whose id matches message's id, or returns a "Request cancelled" error
// if the session is torn down (DELETE, idle timeout, or shutdown) while
// the call is in flight.
func (s *Session) Request(message *jsonrpc.Message) (*jsonrpc.Message, error) {
	key := message.IDKey()
	reply := make(chan *jsonrpc.Message, 1)
	s.pendingMu.Lock()
	s.pending[key] = reply
	s.pendingMu.Unlock()

	if err := s.Send(message); err != nil {
		s.pendingMu.Lock()
		delete(s.pending, key)
		s.pendingMu.Unlock()
		return nil, err
	}

	msg := <-reply
	if msg == nil {
		return nil, fmt.Errorf("Request cancelled")
	}
	return msg, nil
}

// Restart restarts the underlying child with runtime's overlay applied.
func (s *Session) Restart(runtime runtimeargs.Args) error {
	return s.child.Restart(runtime)
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package runtimeupdate

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
)

// DefaultPromptPath is the terminal device the interactive prompt reads
// from, matching the original's hard-coded /dev/tty.
const DefaultPromptPath = "/dev/tty"

type promptInput struct {
	Scope        string            `json:"scope"`
	SessionID    string            `json:"sessionId"`
	ExtraCliArgs []string          `json:"extraCliArgs"`
	Env          map[string]string `json:"env"`
	Headers      map[string]string `json:"headers"`
}

// StartPrompt launches a dedicated goroutine reading newline-delimited
// JSON runtime updates from path and publishing them on updates. Reading
// a terminal device is blocking I/O, so this must never run on a
// cooperative-scheduler goroutine the gateway depends on elsewhere —
// it's given its own goroutine and nothing else shares it.
func StartPrompt(path string, updates chan<- Request, logger *slog.Logger) {
	go func() {
		f, err := os.Open(path)
		if err != nil {
			logger.Error("runtime prompt disabled: terminal unavailable", "path", path, "err", err)
			return
		}
		defer f.Close()

		logger.Info("runtime prompt enabled, enter JSON per line", "path", path)
		logger.Info(`example: {"scope":"global","extraCliArgs":["--token","abc"],"env":{"API_KEY":"xyz"},"headers":{"Authorization":"Bearer 123"}}`)

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var input promptInput
			if err := json.Unmarshal([]byte(line), &input); err != nil {
				logger.Error("invalid JSON input", "err", err)
				continue
			}

			var scope Scope
			switch input.Scope {
			case "global":
				scope = GlobalScope
			case "session":
				if input.SessionID == "" {
					logger.Error("prompt input missing sessionId for session scope")
					continue
				}
				scope = SessionScope(input.SessionID)
			default:
				logger.Error("unknown scope", "scope", input.Scope)
				continue
			}

			wu := wireUpdate{ExtraCliArgs: input.ExtraCliArgs, Env: input.Env, Headers: input.Headers}
			reply := make(chan Outcome, 1)
			updates <- Request{
				Scope:   scope,
				Update:  wu.toUpdate(),
				ReplyTo: reply,
			}
			outcome := <-reply
			logger.Info("runtime prompt update applied", "scope", ScopeLabel(scope), "outcome", outcome.Status, "message", outcome.Message)
		}
		if err := scanner.Err(); err != nil {
			logger.Error("runtime prompt read error", "err", err)
		}
	}()
}

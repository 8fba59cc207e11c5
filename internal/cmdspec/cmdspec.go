// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package cmdspec splits a --stdio command line the way a shell would,
// matching the original's use of shell_words::split.
package cmdspec

import (
	"fmt"

	"github.com/google/shlex"

	"github.com/supergateway-go/gateway/internal/childproc"
)

// Parse splits cmdLine into a childproc.Spec, honoring quoting the way a
// POSIX shell would (so `--stdio "python server.py --flag value"` works).
func Parse(cmdLine string) (childproc.Spec, error) {
	parts, err := shlex.Split(cmdLine)
	if err != nil {
		return childproc.Spec{}, fmt.Errorf("parse stdio command: %w", err)
	}
	if len(parts) == 0 {
		return childproc.Spec{}, fmt.Errorf("stdio command is empty")
	}
	return childproc.Spec{Program: parts[0], Args: parts[1:]}, nil
}

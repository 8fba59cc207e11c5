// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package version holds the gateway's build version, surfaced in the
// auto-handshake shim's clientInfo and the gateway's startup log line.
package version

// Version is baked in at build time via -ldflags "-X .../version.Version=...".
// It defaults to "dev" for local builds, matching how the rest of the
// corpus's examples stamp an unset build version.
var Version = "dev"

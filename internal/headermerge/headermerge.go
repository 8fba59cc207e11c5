// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package headermerge applies a base header set plus a runtime overlay
// to an outgoing http.Header, the pattern every bridge's apply_headers
// helper repeats in the original.
package headermerge

import "net/http"

// Apply sets every key in base then overlay onto h, overlay taking
// precedence on conflicts.
func Apply(h http.Header, base, overlay map[string]string) {
	for k, v := range base {
		h.Set(k, v)
	}
	for k, v := range overlay {
		h.Set(k, v)
	}
}

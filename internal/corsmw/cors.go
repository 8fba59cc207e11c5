// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package corsmw builds an rs/cors handler wrapper from a --cors
// configuration, matching support/cors.rs's allow-all / exact-list /
// regex-list semantics.
package corsmw

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/cors"

	"github.com/supergateway-go/gateway/internal/config"
)

// Build returns a middleware that applies cors to h, or h unchanged if
// cors.Mode is Disabled.
func Build(c config.Cors, h http.Handler) http.Handler {
	switch c.Mode {
	case config.CorsDisabled:
		return h
	case config.CorsAllowAll:
		return allowAll().Handler(h)
	case config.CorsAllowList:
		if len(c.Values) == 0 {
			return h
		}
		for _, origin := range c.Values {
			if origin == "*" {
				return allowAll().Handler(h)
			}
		}
		return allowList(c.Values).Handler(h)
	default:
		return h
	}
}

func allowAll() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Mcp-Session-Id"},
		AllowCredentials: false,
	})
}

// allowList splits raw entries into exact origins and "/regex/"-delimited
// patterns, same as the original's parsing of CorsConfig::AllowList.
func allowList(raw []string) *cors.Cors {
	var exact []string
	var regexes []*regexp.Regexp
	for _, origin := range raw {
		if len(origin) > 2 && strings.HasPrefix(origin, "/") && strings.HasSuffix(origin, "/") {
			if re, err := regexp.Compile(origin[1 : len(origin)-1]); err == nil {
				regexes = append(regexes, re)
				continue
			}
		}
		exact = append(exact, origin)
	}
	return cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			for _, v := range exact {
				if v == origin {
					return true
				}
			}
			for _, re := range regexes {
				if re.MatchString(origin) {
					return true
				}
			}
			return false
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
	})
}

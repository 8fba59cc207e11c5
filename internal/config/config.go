// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package config parses the gateway's command-line flags with the
// standard library's flag.FlagSet, the way examples/logging-middleware
// and examples/http parse theirs in the teacher repo.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// OutputTransport names the transport the gateway exposes downstream.
type OutputTransport string

const (
	TransportStdio          OutputTransport = "stdio"
	TransportSSE            OutputTransport = "sse"
	TransportWS             OutputTransport = "ws"
	TransportStreamableHTTP OutputTransport = "streamableHttp"
)

// CorsMode selects how the CORS layer is built; see internal/corsmw.
type CorsMode int

const (
	CorsDisabled CorsMode = iota
	CorsAllowAll
	CorsAllowList
)

// Cors is the parsed --cors configuration.
type Cors struct {
	Mode   CorsMode
	Values []string // only meaningful when Mode == CorsAllowList
}

// Config is the fully parsed, validated set of gateway flags.
type Config struct {
	Stdio                string
	SSE                  string
	StreamableHTTP       string
	OutputTransport      OutputTransport
	Port                 int
	BaseURL              string
	SSEPath              string
	MessagePath          string
	StreamableHTTPPath   string
	LogLevel             string
	Cors                 Cors
	HealthEndpoints      []string
	Headers              map[string]string
	Stateful             bool
	SessionTimeoutMillis int64 // 0 means unset
	ProtocolVersion      string
	RuntimePrompt        bool
	RuntimeAdminPort     int // 0 means unset
}

// Parse parses args (normally os.Args[1:]) into a validated Config. Error
// messages are worded to match the original implementation's
// ConfigError::Display output exactly, since operators and scripts may
// depend on the exact wording.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("supergateway", flag.ContinueOnError)

	stdio := fs.String("stdio", "", "command to spawn as the child MCP server")
	sse := fs.String("sse", "", "upstream SSE URL to bridge to stdio")
	streamableHTTP := fs.String("streamableHttp", "", "upstream streamable-HTTP URL to bridge to stdio")
	outputTransport := fs.String("outputTransport", "", "stdio|sse|ws|streamableHttp")
	port := fs.Int("port", 8000, "port to listen on")
	baseURL := fs.String("baseUrl", "", "base URL advertised in SSE endpoint events")
	ssePath := fs.String("ssePath", "/sse", "path for the SSE stream")
	messagePath := fs.String("messagePath", "/message", "path for posted client messages")
	streamableHTTPPath := fs.String("streamableHttpPath", "/mcp", "path for the streamable-HTTP endpoint")
	logLevel := fs.String("logLevel", "info", "debug|info|none")
	var corsFlags multiFlag
	fs.Var(&corsFlags, "cors", "enable CORS; repeatable, bare --cors allows all origins")
	var healthFlags multiFlag
	fs.Var(&healthFlags, "healthEndpoint", "path to answer 200 ok on; repeatable")
	var headerFlags multiFlag
	fs.Var(&headerFlags, "header", "extra header to send upstream, 'Name: value'; repeatable")
	oauth2Bearer := fs.String("oauth2Bearer", "", "convenience Authorization: Bearer <token> header")
	stateful := fs.Bool("stateful", false, "keep per-session state for stdio->streamableHttp")
	sessionTimeout := fs.String("sessionTimeout", "", "milliseconds of inactivity before a session is reclaimed")
	protocolVersion := fs.String("protocolVersion", "2024-11-05", "MCP protocol version advertised by the auto-handshake shim")
	runtimePrompt := fs.Bool("runtimePrompt", false, "read runtime updates as JSON lines from /dev/tty")
	runtimeAdminPort := fs.String("runtimeAdminPort", "", "loopback-only HTTP port for runtime updates")

	// --cors accepts an optional value ("--cors" alone means allow-all;
	// "--cors https://example.com" restricts), which flag.FlagSet's Var
	// hook can't express directly (it always consumes the next token as
	// the value once registered via -cors=X or -cors X). We replicate the
	// original's raw-argv scan before handing args to FlagSet.
	corsInput := scanCorsFlag(args)

	if err := fs.Parse(stripCorsValues(args, corsInput)); err != nil {
		return nil, err
	}

	active := 0
	for _, v := range []string{*stdio, *sse, *streamableHTTP} {
		if v != "" {
			active++
		}
	}
	if active == 0 {
		return nil, fmt.Errorf("You must specify one of --stdio, --sse, or --streamableHttp")
	}
	if active > 1 {
		return nil, fmt.Errorf("Specify only one of --stdio, --sse, or --streamableHttp")
	}

	ot := OutputTransport(*outputTransport)
	if ot == "" {
		ot = defaultOutputTransport(*stdio, *sse, *streamableHTTP)
	}
	if ot == "" {
		return nil, fmt.Errorf("outputTransport must be specified or inferable from input transport")
	}

	headers, err := parseHeaders(headerFlags, *oauth2Bearer)
	if err != nil {
		return nil, err
	}

	cors := Cors{Mode: CorsDisabled}
	if corsInput.present {
		switch {
		case corsInput.allowAll:
			cors = Cors{Mode: CorsAllowAll}
		case len(corsInput.values) > 0:
			cors = Cors{Mode: CorsAllowList, Values: corsInput.values}
		default:
			cors = Cors{Mode: CorsAllowAll}
		}
	}

	var sessionTimeoutMillis int64
	if *sessionTimeout != "" {
		v, err := strconv.ParseInt(*sessionTimeout, 10, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("sessionTimeout must be a positive number, received: %s", *sessionTimeout)
		}
		sessionTimeoutMillis = v
	}

	var runtimeAdminPortVal int
	if *runtimeAdminPort != "" {
		v, err := strconv.ParseInt(*runtimeAdminPort, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("runtimeAdminPort must be a valid port, received: %s", *runtimeAdminPort)
		}
		if v <= 0 || v > 65535 {
			return nil, fmt.Errorf("runtimeAdminPort must be in 1..=65535, received: %s", *runtimeAdminPort)
		}
		runtimeAdminPortVal = int(v)
	}

	var health []string
	for _, h := range healthFlags {
		if h != "" {
			health = append(health, h)
		}
	}

	return &Config{
		Stdio:                *stdio,
		SSE:                  *sse,
		StreamableHTTP:       *streamableHTTP,
		OutputTransport:      ot,
		Port:                 *port,
		BaseURL:              *baseURL,
		SSEPath:              *ssePath,
		MessagePath:          *messagePath,
		StreamableHTTPPath:   *streamableHTTPPath,
		LogLevel:             *logLevel,
		Cors:                 cors,
		HealthEndpoints:      health,
		Headers:              headers,
		Stateful:             *stateful,
		SessionTimeoutMillis: sessionTimeoutMillis,
		ProtocolVersion:      *protocolVersion,
		RuntimePrompt:        *runtimePrompt,
		RuntimeAdminPort:     runtimeAdminPortVal,
	}, nil
}

func defaultOutputTransport(stdio, sse, streamableHTTP string) OutputTransport {
	switch {
	case stdio != "":
		return TransportSSE
	case sse != "":
		return TransportStdio
	case streamableHTTP != "":
		return TransportStdio
	}
	return ""
}

func parseHeaders(raw []string, oauth2Bearer string) (map[string]string, error) {
	headers := make(map[string]string)
	for _, r := range raw {
		key, value, ok := strings.Cut(r, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		headers[key] = value
	}
	if oauth2Bearer != "" {
		headers["Authorization"] = "Bearer " + oauth2Bearer
	}
	return headers, nil
}

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

type corsInput struct {
	present  bool
	allowAll bool
	values   []string
}

// scanCorsFlag replicates the original's raw-argv scan for --cors, which
// clap's num_args(0..=1) expresses natively but Go's flag package cannot:
// a bare --cors means allow-all, while --cors <origin> (when the next
// token doesn't itself look like a flag) restricts to that origin, and
// the flag may repeat.
func scanCorsFlag(args []string) corsInput {
	var in corsInput
	for i := 0; i < len(args); i++ {
		if args[i] != "--cors" {
			continue
		}
		in.present = true
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			in.values = append(in.values, args[i+1])
			i++
		} else {
			in.allowAll = true
		}
	}
	return in
}

// stripCorsValues removes --cors and any value token it consumed from
// args, since flag.FlagSet has no variadic-arity flag of its own and
// would otherwise choke on a bare --cors or misparse its optional value.
func stripCorsValues(args []string, in corsInput) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] != "--cors" {
			out = append(out, args[i])
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			i++
		}
	}
	return out
}

// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// supergateway bridges an MCP server or client between transports:
// stdio, SSE, WebSocket, and streamable HTTP, in every direction the
// underlying command-line flags describe. Flag parsing follows
// examples/logging-middleware's flag.FlagSet usage; transport selection
// and runtime reconfiguration are grounded on main.rs and the runtime/
// and gateways/ modules of the original implementation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/supergateway-go/gateway/internal/bridge/httpstdio"
	"github.com/supergateway-go/gateway/internal/bridge/ssestdio"
	"github.com/supergateway-go/gateway/internal/bridge/stdiohttp"
	"github.com/supergateway-go/gateway/internal/bridge/stdiosse"
	"github.com/supergateway-go/gateway/internal/bridge/stdiows"
	"github.com/supergateway-go/gateway/internal/config"
	"github.com/supergateway-go/gateway/internal/gwlog"
	"github.com/supergateway-go/gateway/internal/runtimeargs"
	"github.com/supergateway-go/gateway/internal/runtimeupdate"
	"github.com/supergateway-go/gateway/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	logger := gwlog.New(cfg.LogLevel)
	logger.Info("supergateway starting", "version", version.Version)
	logger.Info("  - Headers", "headers", cfg.Headers)

	runtime := runtimeargs.New(runtimeargs.Args{Headers: cfg.Headers})
	updates := runtimeupdate.NewChannel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigs
		logger.Info("shutting down")
		cancel()
	}()

	if cfg.RuntimeAdminPort > 0 {
		addr := fmt.Sprintf(":%d", cfg.RuntimeAdminPort)
		go func() {
			if err := runtimeupdate.StartAdmin(addr, runtime, updates, logger); err != nil {
				logger.Error("runtime admin server failed", "err", err)
			}
		}()
		logger.Info("runtime admin listening", "addr", addr)
	}
	if cfg.RuntimePrompt {
		go runtimeupdate.StartPrompt(runtimeupdate.DefaultPromptPath, updates, logger)
		logger.Info("runtime prompt reading from", "path", runtimeupdate.DefaultPromptPath)
	}

	return dispatch(ctx, cfg, runtime, updates, logger)
}

// dispatch picks the bridge implied by which input flag is set
// (--stdio, --sse, --streamableHttp) combined with --outputTransport.
func dispatch(ctx context.Context, cfg *config.Config, runtime *runtimeargs.Store, updates chan runtimeupdate.Request, logger *slog.Logger) error {
	switch {
	case cfg.Stdio != "":
		switch cfg.OutputTransport {
		case config.TransportSSE:
			return stdiosse.Run(ctx, cfg, runtime, updates, logger)
		case config.TransportWS:
			return stdiows.Run(ctx, cfg, runtime, updates, logger)
		case config.TransportStreamableHTTP:
			return stdiohttp.Run(ctx, cfg, runtime, updates, logger)
		default:
			return fmt.Errorf("unsupported outputTransport %q for --stdio input", cfg.OutputTransport)
		}
	case cfg.SSE != "":
		return ssestdio.Run(ctx, cfg, runtime, updates, logger, os.Stdin, os.Stdout)
	case cfg.StreamableHTTP != "":
		return httpstdio.Run(ctx, cfg, runtime, updates, logger, os.Stdin, os.Stdout)
	default:
		return fmt.Errorf("no input transport configured")
	}
}

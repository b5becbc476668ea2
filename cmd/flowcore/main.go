// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command flowcore starts the Flow Core API server.
//
// Flow Core correlates static application structure graphs with runtime
// execution traces:
//   - Bounded asynchronous ingestion with backpressure
//   - In-memory graph store with optimistic merge commits
//   - Trace buffering with dedup and TTL eviction
//   - Zoom slicing, flow extraction, and Cypher/Neo4j export
//
// Usage:
//
//	go run ./cmd/flowcore
//	go run ./cmd/flowcore -port 9090 -config flowcore.yaml
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8093/v1/flow/health
//
//	# Submit a static graph
//	curl -X POST http://localhost:8093/v1/flow/graphs \
//	  -H "Content-Type: application/json" \
//	  -d '{"graphId": "orders", "nodes": [{"id": "api.orders", "type": "ENDPOINT"}]}'
//
//	# Zoom slice
//	curl http://localhost:8093/v1/flow/graphs/orders/slice?level=2
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/flow-core/pkg/logging"
	flow "github.com/AleutianAI/flow-core/services/flow"
	"github.com/AleutianAI/flow-core/services/flow/config"
	"github.com/AleutianAI/flow-core/services/flow/telemetry"
)

const serviceName = "flowcore"

func main() {
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	configPath := flag.String("config", "", "Path to YAML config file")
	logDir := flag.String("log-dir", "", "Directory for JSON log files (stderr only when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *debug {
		cfg.Server.Debug = true
	}

	level := slog.LevelInfo
	if cfg.Server.Debug {
		level = slog.LevelDebug
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  *logDir,
		Service: serviceName,
	})
	if err != nil {
		slog.Error("Failed to create logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Close() }()
	slog.SetDefault(logger.Logger)

	shutdownTelemetry, err := telemetry.Setup(serviceName)
	if err != nil {
		logger.Error("Failed to set up telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry()

	ctx := context.Background()
	svc, err := flow.NewService(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to create service", "error", err)
		os.Exit(1)
	}
	svc.Start(ctx)

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	if cfg.Server.Debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers := flow.NewHandlers(svc)
	v1 := router.Group("/v1")
	flow.RegisterRoutes(v1, handlers)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("Starting Flow Core server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		logger.Info("Shutting down Flow Core server", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("Server failed", "error", err)
	}

	// Stop accepting requests first, then drain the pipeline.
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	svc.Stop(shutdownCtx)
}

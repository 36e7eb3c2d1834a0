// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"context"
	"fmt"

	"github.com/AccelByte/extend-drop-farmer/internal/bootstrap"
	"github.com/AccelByte/extend-drop-farmer/internal/config"
	"github.com/AccelByte/extend-drop-farmer/internal/server"
	"github.com/AccelByte/extend-drop-farmer/pkg/farm"
	"github.com/sirupsen/logrus"
)

// App holds all application dependencies and manages the application lifecycle.
type App struct {
	cfg               *config.Config
	manager           *farm.Manager
	storage           *bootstrap.Storage
	grpcServer        *server.GRPCServer
	httpServer        *server.HTTPServer
	shutdownTelemetry func(context.Context) error
}

// New creates and initializes a new application instance.
//
// ============================================================
// Application initialization order
// ============================================================
// Components are initialized in dependency order:
// 1. Telemetry (so gateway spans have a provider)
// 2. Storage (claim ledger, statistics; Redis when configured)
// 3. Remote gateway client
// 4. Farm manager (settings, event bus, orchestrator)
// 5. Servers (gRPC health, HTTP status/metrics)
// ============================================================
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logrus.Info("initializing application...")

	app := &App{cfg: cfg}

	// ============================================================
	// Step 1: Setup telemetry
	// ============================================================
	shutdownTelemetry, err := server.SetupTelemetry(ctx, cfg.ServiceName, cfg.Environment, cfg.ZipkinEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to setup telemetry: %w", err)
	}
	app.shutdownTelemetry = shutdownTelemetry

	// ============================================================
	// Step 2: Initialize storage
	// ============================================================
	storage, err := bootstrap.InitStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.storage = storage

	// ============================================================
	// Step 3-4: Gateway and orchestrator
	// ============================================================
	gw := bootstrap.InitGateway(cfg)
	manager, _, err := bootstrap.InitFarm(ctx, cfg, gw, storage)
	if err != nil {
		return nil, err
	}
	app.manager = manager

	// ============================================================
	// Step 5: Setup servers
	// ============================================================
	app.grpcServer = server.NewGRPCServer(cfg.GRPCPort)
	if err := app.grpcServer.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup gRPC server: %w", err)
	}
	manager.OnAuthChange(app.grpcServer.SetServing)

	checks := make([]server.HealthCheck, 0, len(storage.Checks))
	for _, c := range storage.Checks {
		checks = append(checks, c)
	}
	app.httpServer = server.NewHTTPServer(cfg.HTTPPort, manager, checks...)
	if err := app.httpServer.Setup(); err != nil {
		return nil, fmt.Errorf("failed to setup http server: %w", err)
	}

	logrus.Info("application initialized successfully")

	return app, nil
}

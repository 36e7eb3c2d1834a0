// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/farm"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

// Run starts the servers and the farm, then blocks until a shutdown signal is received.
// An invalid session at startup is not fatal: the servers keep reporting the
// orchestrator as unauthenticated until the process is restarted with a new token.
func (a *App) Run(ctx context.Context) error {
	if err := a.grpcServer.Start(ctx); err != nil {
		return err
	}
	if err := a.httpServer.Start(ctx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.manager.Start(ctx); err != nil {
		if !errors.Is(err, farm.ErrNotAuthenticated) {
			_ = a.Shutdown(context.Background())
			return fmt.Errorf("failed to start farm: %w", err)
		}
		logrus.Errorf("session rejected, farming disabled: %v", err)
	}

	logrus.Info("application started successfully")

	<-ctx.Done()
	logrus.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down all application components.
//
// ============================================================
// Shutdown order
// ============================================================
// Components are shut down in reverse dependency order:
// 1. Stop the orchestrator (no more gateway calls or ledger writes)
// 2. Stop accepting new requests (gRPC + HTTP servers)
// 3. Close external connections (Redis)
// 4. Flush telemetry data (OpenTelemetry)
//
// Shutdown errors are logged but don't stop the shutdown sequence.
// ============================================================
func (a *App) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down application...")

	if a.manager != nil {
		a.manager.Stop()
	}

	if a.grpcServer != nil {
		if err := a.grpcServer.Shutdown(ctx); err != nil {
			logrus.Errorf("gRPC server shutdown error: %v", err)
		}
	}
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			logrus.Errorf("http server shutdown error: %v", err)
		}
	}

	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			logrus.Errorf("Redis close error: %v", err)
		}
	}

	if a.shutdownTelemetry != nil {
		if err := a.shutdownTelemetry(ctx); err != nil {
			logrus.Errorf("telemetry shutdown error: %v", err)
		}
	}

	logrus.Info("application shutdown complete")
	return nil
}

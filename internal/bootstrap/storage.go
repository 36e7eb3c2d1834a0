// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/AccelByte/extend-drop-farmer/internal/config"
	"github.com/AccelByte/extend-drop-farmer/pkg/farm"
	"github.com/AccelByte/extend-drop-farmer/pkg/inventory"
	"github.com/AccelByte/extend-drop-farmer/pkg/state"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// HealthCheck is a dependency probed by /healthz.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// Storage is the persistence selected by LEDGER_BACKEND.
// Stats and Client are nil for the memory backend.
type Storage struct {
	Ledger inventory.Ledger
	Stats  farm.StatsRecorder
	Checks []HealthCheck
	Client *redis.Client
}

// Close releases the Redis connection, if any.
func (s *Storage) Close() error {
	if s.Client == nil {
		return nil
	}
	return s.Client.Close()
}

// InitStorage builds the claim ledger and statistics store.
//
// With LEDGER_BACKEND=redis the claim-attempt ledger survives restarts and
// per-user farming statistics are recorded. With memory, attempts are only
// remembered for the life of the process and no statistics are kept.
func InitStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if !cfg.UsesRedis() {
		logrus.Infof("using in-memory claim ledger")
		return &Storage{Ledger: inventory.NewMemoryLedger()}, nil
	}

	client, err := state.InitRedisClient(ctx, state.RedisConfig{
		Host:       cfg.RedisHost,
		Port:       cfg.RedisPort,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		MaxRetries: cfg.RedisMaxRetries,
		RetryDelay: time.Duration(cfg.RedisRetryDelayMs) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	logrus.Infof("using Redis claim ledger (ttl %v) and statistics store", cfg.LedgerTTL)
	return &Storage{
		Ledger: state.NewRedisClaimLedger(client, cfg.LedgerTTL),
		Stats:  state.NewRedisStatsStore(client),
		Checks: []HealthCheck{state.NewHealthChecker(client)},
		Client: client,
	}, nil
}

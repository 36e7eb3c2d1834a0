// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package state

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// KeyPrefix is the prefix for all drop farmer keys.
const KeyPrefix = "drop_farmer:"

// RedisConfig holds the connection settings.
type RedisConfig struct {
	Host       string
	Port       string
	Password   string
	DB         int
	MaxRetries int
	RetryDelay time.Duration
}

// InitRedisClient initializes and returns a Redis client, retrying the first ping with exponential backoff.
func InitRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	addr := cfg.Host + ":" + cfg.Port
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	b := backoff.NewExponentialBackOff()
	if cfg.RetryDelay > 0 {
		b.InitialInterval = cfg.RetryDelay
	}

	attempt := 0
	ping := func() error {
		attempt++
		return client.Ping(ctx).Err()
	}
	notify := func(err error, d time.Duration) {
		logrus.Warnf("Redis connection failed (attempt %d/%d): %v, retrying in %v...", attempt, maxRetries, err, d)
	}

	err := backoff.RetryNotify(ping, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries-1)), ctx), notify)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s after %d attempts: %w", addr, attempt, err)
	}

	logrus.Infof("connected to Redis at %s (attempt %d/%d)", addr, attempt, maxRetries)
	return client, nil
}

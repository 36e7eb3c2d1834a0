// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Load reads configuration from environment variables.
// It attempts to load from .env file first (for local development),
// then parses environment variables into the Config struct.
func Load() (*Config, error) {
	// In production (Docker/K8s), environment variables are injected directly
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("no .env file found or error loading it: %v (this is normal in production)", err)
	} else {
		logrus.Infof("loaded environment variables from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}

	return cfg, nil
}

// Validate performs range and cross-field checks after parsing.
func (c *Config) Validate() error {
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid GRPC_PORT: %d (must be 1-65535)", c.GRPCPort)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d (must be 1-65535)", c.HTTPPort)
	}
	if c.GRPCPort == c.HTTPPort {
		return fmt.Errorf("GRPC_PORT and HTTP_PORT must differ (both %d)", c.GRPCPort)
	}

	u, err := url.Parse(c.GatewayBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid GATEWAY_BASE_URL: %q", c.GatewayBaseURL)
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"GATEWAY_TIMEOUT", c.GatewayTimeout},
		{"POLL_INTERVAL", c.PollInterval},
		{"CHANNEL_REFRESH_INTERVAL", c.ChannelRefreshInterval},
		{"CHANNEL_CACHE_TTL", c.ChannelCacheTTL},
		{"HEARTBEAT_BASE", c.HeartbeatBase},
		{"CLAIM_COOLDOWN", c.ClaimCooldown},
		{"PROGRESS_TICK", c.ProgressTick},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", p.name, p.value)
		}
	}

	nonNegative := []struct {
		name  string
		value time.Duration
	}{
		{"GATEWAY_RETRY_INTERVAL", c.GatewayRetryInterval},
		{"HEARTBEAT_JITTER", c.HeartbeatJitter},
		{"CLAIM_FOLLOW_UP_DELAY", c.ClaimFollowUpDelay},
		{"DIFF_DISPLAY", c.DiffDisplay},
		{"SWITCH_DISPLAY", c.SwitchDisplay},
	}
	for _, n := range nonNegative {
		if n.value < 0 {
			return fmt.Errorf("%s must not be negative, got %v", n.name, n.value)
		}
	}

	switch c.LedgerBackend {
	case LedgerMemory:
	case LedgerRedis:
		if c.RedisHost == "" {
			return fmt.Errorf("REDIS_HOST is required when LEDGER_BACKEND=%s", LedgerRedis)
		}
		if c.RedisMaxRetries < 1 {
			return fmt.Errorf("REDIS_MAX_RETRIES must be at least 1, got %d", c.RedisMaxRetries)
		}
	default:
		return fmt.Errorf("invalid LEDGER_BACKEND: %q (must be %s or %s)", c.LedgerBackend, LedgerMemory, LedgerRedis)
	}

	return nil
}

// UsesRedis reports whether the claim ledger and statistics live in Redis.
func (c *Config) UsesRedis() bool {
	return c.LedgerBackend == LedgerRedis
}

// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import "time"

// Ledger backends.
const (
	LedgerMemory = "memory"
	LedgerRedis  = "redis"
)

// Config holds all application configuration loaded from environment variables.
// Parsed with github.com/caarlos0/env; farm settings (games, auto flags) live
// in the YAML file at SettingsPath.
type Config struct {
	// ============================================================
	// Server configuration
	// ============================================================
	GRPCPort    int    `env:"GRPC_PORT" envDefault:"6565"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"DropFarmer"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// ============================================================
	// Remote gateway (REQUIRED)
	// ============================================================
	GatewayBaseURL       string        `env:"GATEWAY_BASE_URL,required"`
	GatewayToken         string        `env:"GATEWAY_TOKEN,required"`
	GatewayMaxRetries    uint64        `env:"GATEWAY_MAX_RETRIES" envDefault:"3"`
	GatewayRetryInterval time.Duration `env:"GATEWAY_RETRY_INTERVAL" envDefault:"500ms"`
	GatewayTimeout       time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"30s"`

	// ============================================================
	// Orchestrator timing
	// ============================================================
	PollInterval           time.Duration `env:"POLL_INTERVAL" envDefault:"60s"`
	ChannelRefreshInterval time.Duration `env:"CHANNEL_REFRESH_INTERVAL" envDefault:"5m"`
	ChannelCacheTTL        time.Duration `env:"CHANNEL_CACHE_TTL" envDefault:"5m"`
	HeartbeatBase          time.Duration `env:"HEARTBEAT_BASE" envDefault:"59s"`
	HeartbeatJitter        time.Duration `env:"HEARTBEAT_JITTER" envDefault:"8s"`
	ClaimCooldown          time.Duration `env:"CLAIM_COOLDOWN" envDefault:"90s"`
	ClaimFollowUpDelay     time.Duration `env:"CLAIM_FOLLOW_UP_DELAY" envDefault:"1200ms"`
	DiffDisplay            time.Duration `env:"DIFF_DISPLAY" envDefault:"1400ms"`
	SwitchDisplay          time.Duration `env:"SWITCH_DISPLAY" envDefault:"12s"`
	ProgressTick           time.Duration `env:"PROGRESS_TICK" envDefault:"1s"`

	// ============================================================
	// Claim ledger / statistics storage
	// ============================================================
	LedgerBackend     string        `env:"LEDGER_BACKEND" envDefault:"memory"`
	LedgerTTL         time.Duration `env:"LEDGER_TTL" envDefault:"24h"`
	RedisHost         string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort         string        `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`
	RedisMaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"5"`
	RedisRetryDelayMs int           `env:"REDIS_RETRY_DELAY_MS" envDefault:"1000"`

	// ============================================================
	// Farm settings
	// ============================================================
	SettingsPath string `env:"SETTINGS_PATH" envDefault:"config/farm.yaml"`

	// ============================================================
	// Telemetry configuration
	// ============================================================
	ZipkinEndpoint string `env:"OTEL_EXPORTER_ZIPKIN_ENDPOINT"`
}

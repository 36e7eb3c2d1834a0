// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AccelByte/extend-drop-farmer/internal/config"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway/mock"
	"github.com/AccelByte/extend-drop-farmer/pkg/inventory"
	"github.com/AccelByte/extend-drop-farmer/pkg/state"
	"github.com/alicebob/miniredis/v2"
)

func testConfig() *config.Config {
	return &config.Config{
		GatewayBaseURL:         "http://localhost:9000",
		GatewayToken:           "token",
		GatewayTimeout:         time.Second,
		PollInterval:           30 * time.Second,
		ChannelRefreshInterval: 2 * time.Minute,
		ChannelCacheTTL:        3 * time.Minute,
		HeartbeatBase:          45 * time.Second,
		HeartbeatJitter:        5 * time.Second,
		ClaimCooldown:          time.Minute,
		ClaimFollowUpDelay:     time.Second,
		DiffDisplay:            2 * time.Second,
		SwitchDisplay:          10 * time.Second,
		ProgressTick:           500 * time.Millisecond,
		LedgerBackend:          config.LedgerMemory,
		LedgerTTL:              time.Hour,
		RedisMaxRetries:        1,
	}
}

func TestFarmConfig(t *testing.T) {
	fc := FarmConfig(testConfig())

	if fc.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, expected 30s", fc.PollInterval)
	}
	if fc.ChannelInterval != 2*time.Minute {
		t.Errorf("ChannelInterval = %v, expected 2m", fc.ChannelInterval)
	}
	if fc.Inventory.ClaimCooldown != time.Minute {
		t.Errorf("Inventory.ClaimCooldown = %v, expected 1m", fc.Inventory.ClaimCooldown)
	}
	if fc.Inventory.FollowUpDelay != time.Second {
		t.Errorf("Inventory.FollowUpDelay = %v, expected 1s", fc.Inventory.FollowUpDelay)
	}
	if fc.Channel.TTL != 3*time.Minute {
		t.Errorf("Channel.TTL = %v, expected 3m", fc.Channel.TTL)
	}
	if fc.Heartbeat.BaseInterval != 45*time.Second || fc.Heartbeat.MaxJitter != 5*time.Second {
		t.Errorf("Heartbeat = %+v, expected 45s/5s", fc.Heartbeat)
	}
	if fc.ProgressTick != 500*time.Millisecond {
		t.Errorf("ProgressTick = %v, expected 500ms", fc.ProgressTick)
	}
}

func TestInitStorage_Memory(t *testing.T) {
	storage, err := InitStorage(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("InitStorage() error = %v", err)
	}
	defer storage.Close()

	if _, ok := storage.Ledger.(*inventory.MemoryLedger); !ok {
		t.Errorf("Ledger = %T, expected *inventory.MemoryLedger", storage.Ledger)
	}
	if storage.Stats != nil {
		t.Errorf("Stats = %T, expected nil", storage.Stats)
	}
	if len(storage.Checks) != 0 {
		t.Errorf("Checks = %d, expected 0", len(storage.Checks))
	}
}

func TestInitStorage_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.LedgerBackend = config.LedgerRedis
	cfg.RedisHost = mr.Host()
	cfg.RedisPort = mr.Port()

	storage, err := InitStorage(context.Background(), cfg)
	if err != nil {
		t.Fatalf("InitStorage() error = %v", err)
	}
	defer storage.Close()

	if _, ok := storage.Ledger.(*state.RedisClaimLedger); !ok {
		t.Errorf("Ledger = %T, expected *state.RedisClaimLedger", storage.Ledger)
	}
	if _, ok := storage.Stats.(*state.RedisStatsStore); !ok {
		t.Errorf("Stats = %T, expected *state.RedisStatsStore", storage.Stats)
	}
	if len(storage.Checks) != 1 || storage.Checks[0].Name() != "redis" {
		t.Fatalf("Checks = %v, expected one redis check", storage.Checks)
	}
	if err := storage.Checks[0].Check(context.Background()); err != nil {
		t.Errorf("redis check error = %v", err)
	}
}

func TestInitStorage_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	cfg := testConfig()
	cfg.LedgerBackend = config.LedgerRedis
	cfg.RedisHost = host
	cfg.RedisPort = port

	if _, err := InitStorage(context.Background(), cfg); err == nil {
		t.Error("InitStorage() expected error when Redis is down")
	}
}

func TestInitFarm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "farm.yaml")
	if err := os.WriteFile(path, []byte("priority_games: [\"Game A\"]\nauto_claim: false\n"), 0o600); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}

	cfg := testConfig()
	cfg.SettingsPath = path

	storage := &Storage{Ledger: inventory.NewMemoryLedger()}
	manager, bus, err := InitFarm(context.Background(), cfg, mock.NewGateway(), storage)
	if err != nil {
		t.Fatalf("InitFarm() error = %v", err)
	}
	if manager == nil || bus == nil {
		t.Fatal("InitFarm() returned nil manager or bus")
	}

	st := manager.Status()
	if st.Authenticated {
		t.Errorf("Authenticated = true before Start, expected false")
	}
	if len(st.Settings.PriorityGames) != 1 || st.Settings.PriorityGames[0] != "Game A" {
		t.Errorf("PriorityGames = %v, expected [Game A]", st.Settings.PriorityGames)
	}
	if st.Settings.AutoClaim {
		t.Errorf("AutoClaim = true, expected false")
	}
}

func TestInitFarm_MissingSettings(t *testing.T) {
	cfg := testConfig()
	cfg.SettingsPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, _, err := InitFarm(context.Background(), cfg, mock.NewGateway(), &Storage{Ledger: inventory.NewMemoryLedger()})
	if err == nil {
		t.Error("InitFarm() expected error for missing settings file")
	}
}

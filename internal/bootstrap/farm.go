// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"context"
	"fmt"

	"github.com/AccelByte/extend-drop-farmer/internal/config"
	"github.com/AccelByte/extend-drop-farmer/pkg/event"
	"github.com/AccelByte/extend-drop-farmer/pkg/farm"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
	"github.com/sirupsen/logrus"
)

// FarmConfig maps the environment configuration onto the orchestrator timings.
func FarmConfig(cfg *config.Config) farm.Config {
	fc := farm.DefaultConfig()
	fc.PollInterval = cfg.PollInterval
	fc.ChannelInterval = cfg.ChannelRefreshInterval
	fc.ProgressTick = cfg.ProgressTick

	fc.Inventory.ClaimCooldown = cfg.ClaimCooldown
	fc.Inventory.FollowUpDelay = cfg.ClaimFollowUpDelay
	fc.Inventory.DiffDisplay = cfg.DiffDisplay

	fc.Channel.TTL = cfg.ChannelCacheTTL
	fc.Channel.SwitchDisplay = cfg.SwitchDisplay

	fc.Heartbeat.BaseInterval = cfg.HeartbeatBase
	fc.Heartbeat.MaxJitter = cfg.HeartbeatJitter
	return fc
}

// InitFarm loads the farm settings and builds the orchestrator.
// Every event is logged; statistics are recorded when storage provides a store.
func InitFarm(ctx context.Context, cfg *config.Config, gw gateway.RemoteGateway, storage *Storage) (*farm.Manager, *event.Bus, error) {
	settings, err := farm.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load farm settings from %s: %w", cfg.SettingsPath, err)
	}
	logrus.Infof("loaded farm settings from %s (priority games: %d, excluded games: %d)",
		cfg.SettingsPath, len(settings.PriorityGames), len(settings.ExcludedGames))

	bus := event.NewBus()
	for _, t := range event.Types() {
		bus.Subscribe(t, func(ev event.Event) {
			logrus.WithField("event_id", ev.ID()).Infof("%s: %+v", ev.Type(), ev)
		})
	}

	manager := farm.NewManager(gw, bus, storage.Ledger, *settings, FarmConfig(cfg))
	if storage.Stats != nil {
		manager.RecordStats(ctx, storage.Stats)
	}

	logrus.Infof("initialized farm manager")
	return manager, bus, nil
}

package farm

import (
	"context"
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/channel"
	"github.com/AccelByte/extend-drop-farmer/pkg/event"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
	"github.com/AccelByte/extend-drop-farmer/pkg/heartbeat"
	"github.com/AccelByte/extend-drop-farmer/pkg/inventory"
	"github.com/AccelByte/extend-drop-farmer/pkg/progress"
	"github.com/sirupsen/logrus"
)

// AutoSwitchInfo is the last automatic channel switch, shown for a short while.
type AutoSwitchInfo struct {
	At     time.Time `json:"at"`
	Reason string    `json:"reason"`
	From   string    `json:"from"`
	To     string    `json:"to"`
}

// Status is everything the UI layer renders.
type Status struct {
	Authenticated  bool                     `json:"authenticated"`
	Profile        *gateway.Profile         `json:"profile,omitempty"`
	Watching       *gateway.WatchingTarget  `json:"watching,omitempty"`
	PriorityOrder  []string                 `json:"priorityOrder"`
	ActiveGame     string                   `json:"activeGame,omitempty"`
	Inventory      inventory.Snapshot       `json:"inventory"`
	Heartbeat      heartbeat.Stats          `json:"heartbeat"`
	ActiveDrop     *progress.ActiveDropInfo `json:"activeDrop,omitempty"`
	Channels       []gateway.ChannelEntry   `json:"channels,omitempty"`
	ChannelDiff    channel.Diff             `json:"channelDiff"`
	ChannelError   *gateway.RemoteError     `json:"channelError,omitempty"`
	LastAutoSwitch *AutoSwitchInfo          `json:"lastAutoSwitch,omitempty"`
	Settings       Settings                 `json:"settings"`
}

// Status returns a snapshot of the orchestrator state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	s := Status{
		Authenticated: m.authenticated,
		Profile:       m.profile,
		PriorityOrder: append([]string(nil), m.priorityOrder...),
		ActiveGame:    m.activeGame,
		Settings:      m.settings,
	}
	if m.watching != nil {
		w := *m.watching
		s.Watching = &w
	}
	m.mu.Unlock()

	s.Inventory = m.inventory.Snapshot()
	s.Heartbeat = m.heartbeat.Stats()
	if info, ok := m.ticker.Latest(); ok {
		s.ActiveDrop = &info
	}
	if s.ActiveGame != "" {
		if c, ok := m.tracker.Cached(s.ActiveGame); ok {
			s.Channels = c.Entries
		}
	}
	s.ChannelDiff = m.tracker.Diff()
	s.ChannelError = m.tracker.LastError()
	if sw := m.tracker.LastSwitch(); sw != nil {
		s.LastAutoSwitch = &AutoSwitchInfo{At: sw.At, Reason: sw.Reason, From: sw.From, To: sw.To}
	}
	return s
}

// StatsRecorder persists usage statistics.
type StatsRecorder interface {
	AddMinutes(ctx context.Context, userID string, minutes int) error
	IncrementClaims(ctx context.Context, userID string) error
}

// RecordStats feeds minutes-earned and drop-claimed events into rec.
func (m *Manager) RecordStats(ctx context.Context, rec StatsRecorder) {
	m.bus.Subscribe(event.TypeMinutesEarned, func(ev event.Event) {
		e, ok := ev.(*event.MinutesEarned)
		if !ok {
			return
		}
		if p := m.Profile(); p != nil {
			if err := rec.AddMinutes(ctx, p.ID, e.Delta); err != nil {
				logrus.Errorf("failed to record %d earned minutes: %v", e.Delta, err)
			}
		}
	})

	m.bus.Subscribe(event.TypeDropClaimed, func(ev event.Event) {
		e, ok := ev.(*event.DropClaimed)
		if !ok {
			return
		}
		if p := m.Profile(); p != nil {
			if err := rec.IncrementClaims(ctx, p.ID); err != nil {
				logrus.Errorf("failed to record claim of %s: %v", e.DropID, err)
			}
		}
	})
}

// Package farm wires the inventory, selector, channel, heartbeat and
// progress components into the drop farming orchestrator.
package farm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/channel"
	"github.com/AccelByte/extend-drop-farmer/pkg/common"
	"github.com/AccelByte/extend-drop-farmer/pkg/event"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
	"github.com/AccelByte/extend-drop-farmer/pkg/heartbeat"
	"github.com/AccelByte/extend-drop-farmer/pkg/inventory"
	"github.com/AccelByte/extend-drop-farmer/pkg/metrics"
	"github.com/AccelByte/extend-drop-farmer/pkg/progress"
	"github.com/AccelByte/extend-drop-farmer/pkg/selector"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotAuthenticated is returned by operations that need a valid session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotStarted is returned when the manager is used before Start.
	ErrNotStarted = errors.New("farm manager not started")
)

const (
	taskPoll        = "inventory-poll"
	taskChannels    = "channel-refresh"
	taskStopRefresh = "stop-refresh"
)

// Config holds the orchestrator timings and component configs.
type Config struct {
	PollInterval    time.Duration
	ChannelInterval time.Duration
	ProgressTick    time.Duration
	Inventory       inventory.Config
	Channel         channel.Config
	Heartbeat       heartbeat.Config
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:    60 * time.Second,
		ChannelInterval: 5 * time.Minute,
		ProgressTick:    time.Second,
		Inventory:       inventory.DefaultConfig(),
		Channel:         channel.DefaultConfig(),
		Heartbeat:       heartbeat.DefaultConfig(),
	}
}

// Manager is the orchestrator. It is the only writer of the watched target.
type Manager struct {
	gw        gateway.RemoteGateway
	bus       *event.Bus
	settings  Settings
	cfg       Config
	inventory *inventory.Reconciler
	tracker   *channel.Tracker
	heartbeat *heartbeat.Heartbeat
	ticker    *progress.Ticker
	tasks     *common.Tasks
	now       func() time.Time

	authMu        sync.RWMutex
	authListeners []func(authenticated bool)

	mu            sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc
	authenticated bool
	generation    uint64
	profile       *gateway.Profile
	watching      *gateway.WatchingTarget
	paused        bool
	manual        bool
	plan          []string
	priorityOrder []string
	activeGame    string
}

// NewManager builds the orchestrator and its components.
// ledger may be nil for an in-memory claim ledger.
func NewManager(gw gateway.RemoteGateway, bus *event.Bus, ledger inventory.Ledger, settings Settings, cfg Config) *Manager {
	cfg.Inventory.AutoClaim = settings.AutoClaim
	cfg.Channel.AutoSelect = settings.AutoSelect
	cfg.Channel.AutoSwitch = settings.AutoSwitch

	m := &Manager{
		gw:       gw,
		bus:      bus,
		settings: settings,
		cfg:      cfg,
		tasks:    common.NewTasks(),
		now:      time.Now,
	}

	m.inventory = inventory.NewReconciler(gw, ledger, bus, cfg.Inventory)
	m.tracker = channel.NewTracker(gw, m, bus, cfg.Channel)
	m.heartbeat = heartbeat.New(gw, bus, cfg.Heartbeat)
	m.ticker = progress.NewTicker(cfg.ProgressTick, m.activeDrop)

	m.inventory.OnSnapshot(m.onInventory)
	bus.Subscribe(event.TypeAuthError, func(ev event.Event) {
		msg := ""
		if ae, ok := ev.(*event.AuthError); ok {
			msg = ae.Message
		}
		m.deauthenticate(msg)
	})

	return m
}

// OnAuthChange registers fn to be told when the session becomes valid or invalid.
func (m *Manager) OnAuthChange(fn func(authenticated bool)) {
	m.authMu.Lock()
	defer m.authMu.Unlock()
	m.authListeners = append(m.authListeners, fn)
}

// Start validates the session and starts the inventory poll loop.
// ctx bounds every background task of the manager.
func (m *Manager) Start(ctx context.Context) error {
	profile, err := m.gw.FetchProfile(ctx)
	if err != nil {
		if gateway.IsAuthInvalid(err) {
			return fmt.Errorf("failed to validate session: %w", ErrNotAuthenticated)
		}
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.inventory.Start(ctx)

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.ctx = ctx
	m.cancel = cancel
	m.authenticated = true
	m.generation++
	gen := m.generation
	m.profile = profile
	m.mu.Unlock()

	logrus.Infof("farming as %s (%s)", profile.DisplayName, profile.ID)
	m.notifyAuth(true)

	m.tasks.Ensure(ctx, taskPoll, strconv.FormatUint(gen, 10), m.pollLoop)
	return nil
}

// Stop cancels every background task, including pending inventory timers,
// and stops watching. Until the next Start the manager ignores watch requests.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.ctx = nil
	m.watching = nil
	m.manual = false
	m.mu.Unlock()

	m.tasks.CancelAll()
	m.inventory.Stop()
	m.heartbeat.Stop()
	m.ticker.Stop()
	metrics.Watching.Set(0)
}

// Refresh forces an inventory refresh.
func (m *Manager) Refresh(ctx context.Context) error {
	if !m.Authenticated() {
		return ErrNotAuthenticated
	}
	m.inventory.Refresh(ctx, true)
	return nil
}

// Authenticated reports whether the session is valid.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// Profile returns the authenticated user, if any.
func (m *Manager) Profile() *gateway.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// Watching returns a copy of the watched target, or nil.
func (m *Manager) Watching() *gateway.WatchingTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watching == nil {
		return nil
	}
	w := *m.watching
	return &w
}

// Watch makes target the watched channel. This is the user-initiated path: it
// lifts a previous manual stop, and the channel is kept over game-change
// requests until the active game changes.
func (m *Manager) Watch(target gateway.WatchingTarget) error {
	m.mu.Lock()
	if !m.authenticated {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	if m.ctx == nil {
		m.mu.Unlock()
		return ErrNotStarted
	}
	m.paused = false
	m.manual = true
	m.mu.Unlock()

	m.setWatching(target)
	return nil
}

// RequestWatch is how the channel tracker asks for a different channel.
// Auto-select is ignored after the user stopped watching, and game-change
// requests are ignored while the user's own channel is watched.
func (m *Manager) RequestWatch(ctx context.Context, target gateway.WatchingTarget, reason string) {
	m.mu.Lock()
	if !m.authenticated || m.ctx == nil {
		m.mu.Unlock()
		return
	}
	if m.paused && reason == channel.ReasonAutoSelect {
		m.mu.Unlock()
		logrus.Debugf("ignoring %s request for %s: watching was stopped by the user", reason, target.Login)
		return
	}
	if m.manual && reason == channel.ReasonGameChange {
		m.mu.Unlock()
		logrus.Debugf("ignoring %s request for %s: channel was chosen by the user", reason, target.Login)
		return
	}
	m.manual = false
	m.mu.Unlock()

	logrus.Infof("watching %s (%s)", target.Login, reason)
	m.setWatching(target)
}

// StopWatching clears the watched channel. A hard stop comes from the user:
// it pauses auto-select and forces an inventory refresh. A soft stop does neither.
func (m *Manager) StopWatching(hard bool) {
	m.mu.Lock()
	was := m.watching
	m.watching = nil
	m.manual = false
	if hard {
		m.paused = true
	}
	ctx := m.ctx
	m.mu.Unlock()

	m.heartbeat.Stop()
	m.ticker.Stop()
	metrics.Watching.Set(0)

	if was != nil {
		logrus.Infof("stopped watching %s", was.Login)
	}

	if hard && ctx != nil {
		m.tasks.Restart(ctx, taskStopRefresh, "", func(taskCtx context.Context) {
			m.inventory.Refresh(taskCtx, true)
		})
	}
}

func (m *Manager) setWatching(target gateway.WatchingTarget) {
	m.mu.Lock()
	if !m.authenticated {
		m.mu.Unlock()
		return
	}
	ctx := m.ctx
	if ctx == nil {
		m.mu.Unlock()
		return
	}
	t := target
	m.watching = &t
	m.mu.Unlock()

	m.heartbeat.Start(ctx, target)
	metrics.Watching.Set(1)
	m.updateProgress()
}

func (m *Manager) pollLoop(ctx context.Context) {
	for {
		m.inventory.Refresh(ctx, false)
		if !common.Sleep(ctx, m.cfg.PollInterval) {
			return
		}
	}
}

// onInventory runs after every reconciliation pass.
func (m *Manager) onInventory(snap inventory.Snapshot) {
	m.mu.Lock()
	ctx := m.ctx
	authenticated := m.authenticated
	m.mu.Unlock()
	if !authenticated || ctx == nil {
		return
	}

	if snap.Status == inventory.StatusReady {
		m.loadPlan(ctx)
	}
	m.evaluate(ctx)
}

// loadPlan asks the remote side to order the user's priority games.
// Failures fall back to the raw user list.
func (m *Manager) loadPlan(ctx context.Context) {
	if len(m.settings.PriorityGames) == 0 {
		return
	}

	plan, err := m.gw.FetchPriorityPlan(ctx, m.settings.PriorityGames)
	if err != nil {
		if gateway.IsAuthInvalid(err) {
			m.bus.Publish(event.NewAuthError("priority plan: " + err.Error()))
			return
		}
		logrus.Warnf("failed to fetch priority plan, using user priority list: %v", err)
		m.mu.Lock()
		m.plan = nil
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	m.plan = append([]string(nil), plan.Order...)
	m.mu.Unlock()
}

// evaluate runs the selector and applies its decision.
func (m *Manager) evaluate(ctx context.Context) {
	snap := m.inventory.Snapshot()

	m.mu.Lock()
	if !m.authenticated {
		m.mu.Unlock()
		return
	}
	in := selector.Input{
		Items:          snap.Items,
		InventoryReady: snap.Status == inventory.StatusReady,
		Plan:           m.plan,
		UserPriority:   m.settings.PriorityGames,
		ExcludedGames:  m.settings.ExcludedGames,
		ObeyPriority:   m.settings.ObeyPriority,
		CurrentGame:    m.activeGame,
		Watching:       m.watching != nil,
		Now:            m.now(),
	}
	d := selector.Decide(in)
	if d.Changed(in) {
		logrus.Infof("active game changed from %q to %q", in.CurrentGame, d.ActiveGame)
		m.paused = false
		m.manual = false
	}
	m.priorityOrder = d.PriorityOrder
	m.activeGame = d.ActiveGame
	m.mu.Unlock()

	if d.SoftStop {
		logrus.Info("no actionable drops left in the priority list")
		m.StopWatching(false)
	}

	if d.ActiveGame == "" {
		m.tasks.Cancel(taskChannels)
	} else {
		game := d.ActiveGame
		m.tasks.Ensure(ctx, taskChannels, game, func(taskCtx context.Context) {
			m.channelLoop(taskCtx, game)
		})
	}

	m.updateProgress()
}

// channelLoop keeps the channel list of game current while it is the active game.
func (m *Manager) channelLoop(ctx context.Context, game string) {
	for {
		if err := m.tracker.Reconcile(ctx, game, m.Watching()); err != nil && ctx.Err() == nil {
			logrus.Warnf("channel reconcile for %s: %v", game, err)
		}
		if !common.Sleep(ctx, m.cfg.ChannelInterval) {
			return
		}
	}
}

// updateProgress restarts the projection whenever the watched target or the
// snapshot behind it changes.
func (m *Manager) updateProgress() {
	m.mu.Lock()
	ctx := m.ctx
	watching := m.watching
	m.mu.Unlock()

	drop, fetchedAt, ok := m.activeDrop()
	if ctx == nil || watching == nil || !ok {
		m.ticker.Stop()
		return
	}

	key := fmt.Sprintf("%s|%s|%d", watching.ChannelID, drop.ID, fetchedAt.UnixNano())
	m.ticker.Start(ctx, key)
}

// activeDrop returns the drop progress is attributed to while watching.
func (m *Manager) activeDrop() (gateway.InventoryItem, time.Time, bool) {
	m.mu.Lock()
	watching := m.watching
	game := m.activeGame
	now := m.now()
	m.mu.Unlock()

	if watching == nil {
		return gateway.InventoryItem{}, time.Time{}, false
	}
	if game == "" {
		game = watching.Game
	}

	snap := m.inventory.Snapshot()
	drop, ok := selector.ActiveDrop(snap.Items, game, selector.ExcludedSet(m.settings.ExcludedGames), now)
	return drop, snap.FetchedAt, ok
}

// deauthenticate drops every piece of session state after the remote side
// rejected the session.
func (m *Manager) deauthenticate(reason string) {
	m.mu.Lock()
	if !m.authenticated {
		m.mu.Unlock()
		return
	}
	m.authenticated = false
	m.generation++
	m.profile = nil
	m.watching = nil
	m.paused = false
	m.manual = false
	m.plan = nil
	m.priorityOrder = nil
	m.activeGame = ""
	m.mu.Unlock()

	logrus.Warnf("session invalidated: %s", reason)

	m.tasks.CancelAll()
	m.heartbeat.Stop()
	m.ticker.Stop()
	m.tracker.Clear()
	m.inventory.Reset()
	metrics.Watching.Set(0)

	m.notifyAuth(false)
}

func (m *Manager) notifyAuth(authenticated bool) {
	m.authMu.RLock()
	listeners := make([]func(bool), len(m.authListeners))
	copy(listeners, m.authListeners)
	m.authMu.RUnlock()

	for _, fn := range listeners {
		fn(authenticated)
	}
}

var _ channel.WatchRequester = (*Manager)(nil)

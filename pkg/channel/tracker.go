// Package channel tracks the live channels of the active game and keeps a
// channel watched while one is available.
package channel

import (
	"context"
	"sync"
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/event"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
	"github.com/AccelByte/extend-drop-farmer/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Watch request reasons.
const (
	ReasonAutoSelect = "auto-select"
	ReasonGameChange = "game-change"
)

// Source is the part of the gateway the tracker needs.
type Source interface {
	FetchChannels(ctx context.Context, game string) ([]gateway.ChannelEntry, error)
}

// WatchRequester owns the watched channel. The tracker never sets it directly.
type WatchRequester interface {
	RequestWatch(ctx context.Context, target gateway.WatchingTarget, reason string)
}

// Config tunes the tracker.
type Config struct {
	AutoSelect    bool
	AutoSwitch    bool
	TTL           time.Duration
	SwitchDisplay time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		AutoSelect:    true,
		AutoSwitch:    true,
		TTL:           5 * time.Minute,
		SwitchDisplay: 12 * time.Second,
	}
}

// Tracker caches channel lists per game and drives auto-select and auto-switch.
type Tracker struct {
	src       Source
	requester WatchRequester
	publisher event.Publisher
	cfg       Config
	now       func() time.Time

	mu           sync.Mutex
	caches       map[string]*Cache
	displayed    []gateway.ChannelEntry
	diff         Diff
	lastErr      *gateway.RemoteError
	lastSwitch   *event.AutoSwitch
	switchedFrom string
	generation   uint64
}

// NewTracker creates an empty tracker.
func NewTracker(src Source, requester WatchRequester, publisher event.Publisher, cfg Config) *Tracker {
	return &Tracker{
		src:       src,
		requester: requester,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		caches:    make(map[string]*Cache),
	}
}

// SetClock replaces the time source.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// SetRequester sets the watch requester. Must be called before Reconcile.
func (t *Tracker) SetRequester(r WatchRequester) {
	t.requester = r
}

// Channels returns the channel list of game, fetching it unless a fresh
// non-empty cache exists or force is set. On a fetch failure the previous
// list is returned together with the error.
func (t *Tracker) Channels(ctx context.Context, game string, force bool) ([]gateway.ChannelEntry, error) {
	t.mu.Lock()
	gen := t.generation
	cached := t.caches[game]
	if !force && IsFresh(cached, t.now(), t.cfg.TTL) {
		entries := append([]gateway.ChannelEntry(nil), cached.Entries...)
		t.mu.Unlock()
		return entries, nil
	}
	t.mu.Unlock()

	entries, err := t.src.FetchChannels(ctx, game)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return nil, context.Canceled
	}

	if err != nil {
		if gateway.IsAuthInvalid(err) {
			t.clearLocked()
			t.mu.Unlock()
			metrics.ChannelFetchesTotal.WithLabelValues(metrics.OutcomeAuth).Inc()
			logrus.Warnf("channel fetch for %s rejected: session is no longer valid", game)
			t.publish(event.NewAuthError("channels: " + err.Error()))
			return nil, err
		}

		t.lastErr = gateway.AsRemoteError(err)
		var previous []gateway.ChannelEntry
		if cached != nil {
			previous = append(previous, cached.Entries...)
		}
		t.mu.Unlock()
		metrics.ChannelFetchesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		logrus.Errorf("channel fetch for %s failed: %v", game, err)
		return previous, err
	}

	for i := range entries {
		if entries[i].Game == "" {
			entries[i].Game = game
		}
	}

	t.diff = ComputeDiff(game, t.displayed, entries)
	t.displayed = entries
	t.caches[game] = &Cache{Game: game, FetchedAt: t.now(), Entries: entries}
	t.lastErr = nil
	t.mu.Unlock()

	metrics.ChannelFetchesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	logrus.Debugf("fetched %d channels for %s", len(entries), game)
	return append([]gateway.ChannelEntry(nil), entries...), nil
}

// Reconcile loads the channels of game and applies auto-select and
// auto-switch against the currently watched target.
func (t *Tracker) Reconcile(ctx context.Context, game string, watching *gateway.WatchingTarget) error {
	if game == "" {
		return nil
	}

	entries, err := t.Channels(ctx, game, false)
	if err != nil && (gateway.IsAuthInvalid(err) || ctx.Err() != nil) {
		return err
	}

	t.apply(ctx, game, entries, watching)
	return err
}

func (t *Tracker) apply(ctx context.Context, game string, entries []gateway.ChannelEntry, watching *gateway.WatchingTarget) {
	if t.requester == nil {
		return
	}

	switch {
	case watching == nil:
		if t.cfg.AutoSelect && len(entries) > 0 {
			logrus.Infof("auto-selecting channel %s for %s", entries[0].Login, game)
			t.requester.RequestWatch(ctx, gateway.TargetFromChannel(entries[0]), ReasonAutoSelect)
		}

	case watching.Game != game:
		if t.cfg.AutoSelect && len(entries) > 0 {
			logrus.Infof("active game changed to %s, watching %s", game, entries[0].Login)
			t.requester.RequestWatch(ctx, gateway.TargetFromChannel(entries[0]), ReasonGameChange)
		}

	case contains(entries, watching.ChannelID):
		t.mu.Lock()
		t.switchedFrom = ""
		t.mu.Unlock()

	default:
		t.autoSwitch(ctx, entries, watching)
	}
}

// autoSwitch moves off a channel that is no longer listed, once per transition.
func (t *Tracker) autoSwitch(ctx context.Context, entries []gateway.ChannelEntry, watching *gateway.WatchingTarget) {
	if !t.cfg.AutoSwitch {
		return
	}
	if len(entries) == 0 {
		logrus.Infof("watched channel %s went offline and no other channel is live", watching.Login)
		return
	}

	t.mu.Lock()
	if t.switchedFrom == watching.ChannelID {
		t.mu.Unlock()
		return
	}
	t.switchedFrom = watching.ChannelID
	next := entries[0]
	ev := event.NewAutoSwitch(t.now(), event.ReasonOffline, watching.Login, next.Login)
	t.lastSwitch = ev
	t.mu.Unlock()

	metrics.AutoSwitchesTotal.Inc()
	logrus.Infof("watched channel %s went offline, switching to %s", watching.Login, next.Login)
	t.requester.RequestWatch(ctx, gateway.TargetFromChannel(next), event.ReasonOffline)
	t.publish(ev)
}

// Diff returns the last computed diff.
func (t *Tracker) Diff() Diff {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.diff
	d.Added = append([]string(nil), t.diff.Added...)
	d.Removed = append([]string(nil), t.diff.Removed...)
	d.Updated = append([]string(nil), t.diff.Updated...)
	d.TitleChanged = append([]string(nil), t.diff.TitleChanged...)
	d.ViewerDelta = make(map[string]int, len(t.diff.ViewerDelta))
	for k, v := range t.diff.ViewerDelta {
		d.ViewerDelta[k] = v
	}
	return d
}

// Cached returns the cache entry of game, if any.
func (t *Tracker) Cached(game string) (Cache, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.caches[game]
	if !ok {
		return Cache{}, false
	}
	out := *c
	out.Entries = append([]gateway.ChannelEntry(nil), c.Entries...)
	return out, true
}

// LastError returns the error of the last failed fetch, cleared by a success.
func (t *Tracker) LastError() *gateway.RemoteError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// LastSwitch returns the last auto-switch while it is inside the display window.
func (t *Tracker) LastSwitch() *event.AutoSwitch {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastSwitch == nil || t.now().Sub(t.lastSwitch.At) > t.cfg.SwitchDisplay {
		return nil
	}
	return t.lastSwitch
}

// Clear drops all cached lists and diff state.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearLocked()
}

func (t *Tracker) clearLocked() {
	t.generation++
	t.caches = make(map[string]*Cache)
	t.displayed = nil
	t.diff = Diff{}
	t.lastErr = nil
	t.lastSwitch = nil
	t.switchedFrom = ""
}

func (t *Tracker) publish(ev event.Event) {
	if t.publisher != nil {
		t.publisher.Publish(ev)
	}
}

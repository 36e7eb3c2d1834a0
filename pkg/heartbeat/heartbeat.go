// Package heartbeat sends periodic watch pings for the watched channel.
package heartbeat

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/common"
	"github.com/AccelByte/extend-drop-farmer/pkg/event"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
	"github.com/AccelByte/extend-drop-farmer/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const taskName = "watch-ping"

// Pinger is the part of the gateway the heartbeat needs.
type Pinger interface {
	SendWatchPing(ctx context.Context, target gateway.PingTarget) error
}

// Config tunes the ping schedule.
type Config struct {
	BaseInterval time.Duration
	MaxJitter    time.Duration
}

// DefaultConfig returns the production schedule.
func DefaultConfig() Config {
	return Config{
		BaseInterval: 59 * time.Second,
		MaxJitter:    8 * time.Second,
	}
}

// Stats is the heartbeat state exposed to the UI. The zero value means idle.
type Stats struct {
	LastOK    time.Time            `json:"lastOk"`
	LastError *gateway.RemoteError `json:"lastError,omitempty"`
	NextAt    time.Time            `json:"nextAt"`
}

// Heartbeat pings one target at a time. Pings are strictly sequential.
type Heartbeat struct {
	src       Pinger
	publisher event.Publisher
	cfg       Config
	tasks     *common.Tasks
	now       func() time.Time

	randMu sync.Mutex
	rnd    *rand.Rand

	mu         sync.Mutex
	stats      Stats
	target     *gateway.WatchingTarget
	generation uint64
}

// New creates an idle heartbeat.
func New(src Pinger, publisher event.Publisher, cfg Config) *Heartbeat {
	return &Heartbeat{
		src:       src,
		publisher: publisher,
		cfg:       cfg,
		tasks:     common.NewTasks(),
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock replaces the time source.
func (h *Heartbeat) SetClock(now func() time.Time) {
	h.now = now
}

// SetRand replaces the jitter source.
func (h *Heartbeat) SetRand(r *rand.Rand) {
	h.randMu.Lock()
	defer h.randMu.Unlock()
	h.rnd = r
}

// NextDelay returns the wait before the next ping, in [base, base+maxJitter].
func (h *Heartbeat) NextDelay() time.Duration {
	if h.cfg.MaxJitter <= 0 {
		return h.cfg.BaseInterval
	}
	h.randMu.Lock()
	defer h.randMu.Unlock()
	return h.cfg.BaseInterval + time.Duration(h.rnd.Int63n(int64(h.cfg.MaxJitter)+1))
}

// Start begins pinging target. Starting the target already pinged is a no-op;
// a different target cancels the pending ping of the previous one.
func (h *Heartbeat) Start(ctx context.Context, target gateway.WatchingTarget) {
	key := target.ChannelID + "/" + target.StreamID
	if current, ok := h.tasks.Key(taskName); ok && current == key {
		return
	}

	h.mu.Lock()
	h.generation++
	gen := h.generation
	h.stats = Stats{}
	t := target
	h.target = &t
	h.mu.Unlock()

	logrus.Infof("heartbeat started for %s", target.Login)
	h.tasks.Restart(ctx, taskName, key, func(taskCtx context.Context) {
		h.loop(taskCtx, gen, target)
	})
}

// Stop cancels the pending ping and resets the stats.
func (h *Heartbeat) Stop() {
	h.tasks.Cancel(taskName)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.target != nil {
		logrus.Infof("heartbeat stopped for %s", h.target.Login)
	}
	h.generation++
	h.stats = Stats{}
	h.target = nil
}

// Stats returns a copy of the current stats.
func (h *Heartbeat) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Target returns the target being pinged, if any.
func (h *Heartbeat) Target() *gateway.WatchingTarget {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.target == nil {
		return nil
	}
	t := *h.target
	return &t
}

func (h *Heartbeat) loop(ctx context.Context, gen uint64, target gateway.WatchingTarget) {
	for {
		delay := h.NextDelay()
		if !h.ping(ctx, gen, target, delay) {
			return
		}
		if !common.Sleep(ctx, delay) {
			return
		}
	}
}

// ping sends one ping and records the outcome. Returns false when the loop must end.
func (h *Heartbeat) ping(ctx context.Context, gen uint64, target gateway.WatchingTarget, delay time.Duration) bool {
	err := h.src.SendWatchPing(ctx, target.PingTarget())
	if ctx.Err() != nil {
		return false
	}

	h.mu.Lock()
	if gen != h.generation {
		h.mu.Unlock()
		return false
	}
	now := h.now()

	switch {
	case err == nil:
		h.stats.LastOK = now
		h.stats.LastError = nil
		h.stats.NextAt = now.Add(h.cfg.BaseInterval)
		h.mu.Unlock()
		metrics.WatchPingsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		logrus.Debugf("watch ping for %s ok", target.Login)

	case gateway.IsAuthInvalid(err):
		h.stats.NextAt = now.Add(delay)
		h.mu.Unlock()
		metrics.WatchPingsTotal.WithLabelValues(metrics.OutcomeAuth).Inc()
		logrus.Warnf("watch ping for %s rejected: session is no longer valid", target.Login)
		if h.publisher != nil {
			h.publisher.Publish(event.NewAuthError("watch ping: " + err.Error()))
		}

	default:
		h.stats.LastError = gateway.AsRemoteError(err)
		h.stats.NextAt = now.Add(delay)
		h.mu.Unlock()
		metrics.WatchPingsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		logrus.Warnf("watch ping for %s failed: %v", target.Login, err)
	}
	return true
}

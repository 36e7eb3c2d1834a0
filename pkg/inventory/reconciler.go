// Package inventory keeps the local view of the user's drop inventory in sync
// with the remote service and claims completed drops.
package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/common"
	"github.com/AccelByte/extend-drop-farmer/pkg/event"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
	"github.com/AccelByte/extend-drop-farmer/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Status of the inventory view.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

const (
	taskFollowUp  = "claim-follow-up"
	taskDiffClear = "diff-clear"
)

// Source is the part of the gateway the reconciler needs.
type Source interface {
	FetchInventory(ctx context.Context) ([]gateway.InventoryItem, error)
	ClaimDrop(ctx context.Context, ref gateway.ClaimRef) error
}

// Config tunes the reconciler.
type Config struct {
	AutoClaim     bool
	ClaimCooldown time.Duration
	FollowUpDelay time.Duration
	DiffDisplay   time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		AutoClaim:     true,
		ClaimCooldown: 90 * time.Second,
		FollowUpDelay: 1200 * time.Millisecond,
		DiffDisplay:   1400 * time.Millisecond,
	}
}

// ClaimStatus is the outcome of the last claim attempt for a drop.
type ClaimStatus struct {
	DropID  string    `json:"dropId"`
	Title   string    `json:"title"`
	Game    string    `json:"game"`
	OK      bool      `json:"ok"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Snapshot is a copy of the reconciler state.
type Snapshot struct {
	Items     []gateway.InventoryItem `json:"items"`
	Status    Status                  `json:"status"`
	FetchedAt time.Time               `json:"fetchedAt"`
	Error     *gateway.RemoteError    `json:"error,omitempty"`
	Added     []string                `json:"added,omitempty"`
	Updated   []string                `json:"updated,omitempty"`
	Claims    map[string]ClaimStatus  `json:"claims,omitempty"`
}

// Reconciler owns the inventory view. Refreshes are coalesced: at most one
// fetch runs at a time and any number of requests made during it collapse
// into a single follow-up pass.
//
// Passes and timers run on the reconciler's own lifetime context, set by
// Start and cancelled by Stop. A caller's context only gates the request.
type Reconciler struct {
	src       Source
	ledger    Ledger
	publisher event.Publisher
	cfg       Config
	tasks     *common.Tasks
	now       func() time.Time

	listenersMu sync.RWMutex
	listeners   []func(Snapshot)

	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	inFlight     bool
	pending      bool
	pendingForce bool
	generation   uint64
	diffSeq      uint64
	hasSnapshot  bool
	items        []gateway.InventoryItem
	confirmed    map[string]int
	status       Status
	fetchedAt    time.Time
	lastErr      *gateway.RemoteError
	added        []string
	updated      []string
	claims       map[string]ClaimStatus
}

// NewReconciler creates a reconciler in the idle state.
func NewReconciler(src Source, ledger Ledger, publisher event.Publisher, cfg Config) *Reconciler {
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		ctx:       ctx,
		cancel:    cancel,
		src:       src,
		ledger:    ledger,
		publisher: publisher,
		cfg:       cfg,
		tasks:     common.NewTasks(),
		now:       time.Now,
		confirmed: make(map[string]int),
		status:    StatusIdle,
		claims:    make(map[string]ClaimStatus),
	}
}

// SetClock replaces the time source. Must be called before the first Refresh.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Start binds every pass and timer to ctx, replacing the previous lifetime.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel()
	r.ctx, r.cancel = context.WithCancel(ctx)
}

// Stop cancels the running pass and every pending timer. Refresh is a no-op
// until the next Start.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	r.cancel()
	r.pending = false
	r.pendingForce = false
	r.mu.Unlock()

	r.tasks.CancelAll()
}

// OnSnapshot registers fn to be called after every completed refresh pass.
func (r *Reconciler) OnSnapshot(fn func(Snapshot)) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Refresh fetches the inventory, or marks a pass pending if one is running.
// forceLoading puts the view into the loading state even when items exist;
// pending requests OR their force flags together.
//
// A request made with a cancelled ctx is dropped. Once accepted, the pass and
// any pending pass run to completion even if ctx is cancelled later.
func (r *Reconciler) Refresh(ctx context.Context, forceLoading bool) {
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	lifetime := r.ctx
	if lifetime.Err() != nil {
		r.mu.Unlock()
		return
	}
	if r.inFlight {
		r.pending = true
		r.pendingForce = r.pendingForce || forceLoading
		r.mu.Unlock()
		return
	}
	r.inFlight = true
	r.mu.Unlock()

	force := forceLoading
	for {
		r.runOnce(lifetime, force)

		r.mu.Lock()
		if !r.pending || lifetime.Err() != nil {
			r.inFlight = false
			r.pending = false
			r.pendingForce = false
			r.mu.Unlock()
			return
		}
		force = r.pendingForce
		r.pending = false
		r.pendingForce = false
		r.mu.Unlock()
	}
}

// Reset drops all state after the session was invalidated.
func (r *Reconciler) Reset() {
	r.tasks.CancelAll()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

func (r *Reconciler) resetLocked() {
	r.generation++
	r.hasSnapshot = false
	r.items = nil
	r.confirmed = make(map[string]int)
	r.status = StatusIdle
	r.fetchedAt = time.Time{}
	r.lastErr = nil
	r.added = nil
	r.updated = nil
	r.claims = make(map[string]ClaimStatus)
	r.pending = false
	r.pendingForce = false
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Reconciler) snapshotLocked() Snapshot {
	claims := make(map[string]ClaimStatus, len(r.claims))
	for k, v := range r.claims {
		claims[k] = v
	}
	return Snapshot{
		Items:     append([]gateway.InventoryItem(nil), r.items...),
		Status:    r.status,
		FetchedAt: r.fetchedAt,
		Error:     r.lastErr,
		Added:     append([]string(nil), r.added...),
		Updated:   append([]string(nil), r.updated...),
		Claims:    claims,
	}
}

func (r *Reconciler) runOnce(ctx context.Context, force bool) {
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	gen := r.generation
	prev := r.status
	if force || len(r.items) == 0 {
		r.status = StatusLoading
	}
	r.mu.Unlock()

	fetched, err := r.src.FetchInventory(ctx)
	if ctx.Err() != nil {
		r.mu.Lock()
		if gen == r.generation && r.status == StatusLoading {
			r.status = prev
		}
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		return
	}

	if err != nil {
		if gateway.IsAuthInvalid(err) {
			r.resetLocked()
			r.mu.Unlock()
			r.tasks.CancelAll()
			metrics.InventoryRefreshesTotal.WithLabelValues(metrics.OutcomeAuth).Inc()
			logrus.Warn("inventory refresh rejected: session is no longer valid")
			r.publish(event.NewAuthError("inventory: " + err.Error()))
			r.notify()
			return
		}

		r.lastErr = gateway.AsRemoteError(err)
		r.status = StatusError
		r.mu.Unlock()
		metrics.InventoryRefreshesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		logrus.Errorf("inventory refresh failed: %v", err)
		r.notify()
		return
	}

	merged := mergeItems(fetched, r.confirmed)
	delta := 0
	if r.hasSnapshot {
		delta = totalEarned(merged) - totalEarned(r.items)
	}
	added, updated := diffItems(r.items, merged)

	r.items = merged
	r.hasSnapshot = true
	r.status = StatusReady
	r.fetchedAt = r.now()
	r.lastErr = nil
	r.added = added
	r.updated = updated
	r.diffSeq++
	seq := r.diffSeq
	r.mu.Unlock()

	metrics.InventoryRefreshesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	logrus.Debugf("inventory refreshed: %d items, %d added, %d updated", len(merged), len(added), len(updated))

	if len(added) > 0 || len(updated) > 0 {
		r.scheduleDiffClear(ctx, seq)
	}

	if delta > 0 {
		metrics.MinutesEarnedTotal.Add(float64(delta))
		r.publish(event.NewMinutesEarned(delta))
	}

	if r.cfg.AutoClaim {
		r.autoClaim(ctx, gen)
	}

	r.notify()
}

// scheduleDiffClear empties the added/updated sets after the display window,
// unless a newer pass replaced them first.
func (r *Reconciler) scheduleDiffClear(ctx context.Context, seq uint64) {
	r.tasks.Restart(ctx, taskDiffClear, "", func(taskCtx context.Context) {
		if !common.Sleep(taskCtx, r.cfg.DiffDisplay) {
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.diffSeq == seq {
			r.added = nil
			r.updated = nil
		}
	})
}

func (r *Reconciler) publish(ev event.Event) {
	if r.publisher != nil {
		r.publisher.Publish(ev)
	}
}

func (r *Reconciler) notify() {
	r.listenersMu.RLock()
	listeners := make([]func(Snapshot), len(r.listeners))
	copy(listeners, r.listeners)
	r.listenersMu.RUnlock()

	if len(listeners) == 0 {
		return
	}
	snap := r.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}

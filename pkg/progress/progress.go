// Package progress extrapolates drop progress between inventory fetches.
// It is display data only and never feeds back into the inventory.
package progress

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/common"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
	"github.com/AccelByte/extend-drop-farmer/pkg/metrics"
)

const taskName = "progress-tick"

// ActiveDropInfo is the projected state of the drop being farmed.
type ActiveDropInfo struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Game             string     `json:"game"`
	RequiredMinutes  int        `json:"requiredMinutes"`
	EarnedMinutes    int        `json:"earnedMinutes"`
	VirtualEarned    float64    `json:"virtualEarned"`
	RemainingMinutes float64    `json:"remainingMinutes"`
	Percent          float64    `json:"percent"`
	ETA              *time.Time `json:"eta,omitempty"`
}

// Project computes the live view of drop given when its snapshot was fetched.
func Project(drop gateway.InventoryItem, lastFetchedAt, now time.Time) ActiveDropInfo {
	required := float64(drop.RequiredMinutes)
	earned := float64(drop.EarnedMinutes)
	atSnapshot := math.Max(0, required-earned)

	elapsed := 0.0
	if !lastFetchedAt.IsZero() {
		elapsed = math.Max(0, common.MinutesBetween(lastFetchedAt, now))
	}
	elapsed = math.Min(elapsed, atSnapshot)

	info := ActiveDropInfo{
		ID:               drop.ID,
		Title:            drop.Title,
		Game:             drop.Game,
		RequiredMinutes:  drop.RequiredMinutes,
		EarnedMinutes:    drop.EarnedMinutes,
		VirtualEarned:    earned + elapsed,
		RemainingMinutes: math.Max(0, required-earned-elapsed),
		Percent:          100,
	}
	if required > 0 {
		info.Percent = math.Min(100, info.VirtualEarned/required*100)
	}
	if info.RemainingMinutes > 0 {
		eta := now.Add(time.Duration(info.RemainingMinutes * float64(time.Minute)))
		info.ETA = &eta
	}
	return info
}

// Source returns the active drop and its fetch time, or false when nothing is watched.
type Source func() (drop gateway.InventoryItem, fetchedAt time.Time, ok bool)

// Ticker recomputes the projection on an interval while a drop is incomplete.
type Ticker struct {
	interval time.Duration
	source   Source
	tasks    *common.Tasks
	now      func() time.Time

	mu     sync.Mutex
	latest *ActiveDropInfo
}

// NewTicker creates a stopped ticker.
func NewTicker(interval time.Duration, source Source) *Ticker {
	return &Ticker{
		interval: interval,
		source:   source,
		tasks:    common.NewTasks(),
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (t *Ticker) SetClock(now func() time.Time) {
	t.now = now
}

// Start runs the ticker for key (the watched target and snapshot it projects).
// A running ticker with the same key is left alone.
func (t *Ticker) Start(ctx context.Context, key string) {
	t.tasks.Ensure(ctx, taskName, key, t.loop)
}

// Stop cancels the ticker and forgets the projection.
func (t *Ticker) Stop() {
	t.tasks.Cancel(taskName)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest = nil
	metrics.ActiveDropRemainingMinutes.Set(0)
}

// Latest returns the last projection.
func (t *Ticker) Latest() (ActiveDropInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return ActiveDropInfo{}, false
	}
	return *t.latest, true
}

// Tick computes one projection immediately. Returns false when there is nothing to project.
func (t *Ticker) Tick() (ActiveDropInfo, bool) {
	return t.tick(context.Background())
}

// tick drops its result when ctx ended while computing, so a stopped ticker
// cannot resurrect a projection.
func (t *Ticker) tick(ctx context.Context) (ActiveDropInfo, bool) {
	drop, fetchedAt, ok := t.source()

	t.mu.Lock()
	defer t.mu.Unlock()
	if ctx.Err() != nil {
		return ActiveDropInfo{}, false
	}
	if !ok {
		t.latest = nil
		return ActiveDropInfo{}, false
	}

	info := Project(drop, fetchedAt, t.now())
	t.latest = &info
	metrics.ActiveDropRemainingMinutes.Set(info.RemainingMinutes)
	return info, true
}

func (t *Ticker) loop(ctx context.Context) {
	for {
		info, ok := t.tick(ctx)
		if !ok || info.RemainingMinutes <= 0 {
			return
		}
		if !common.Sleep(ctx, t.interval) {
			return
		}
	}
}

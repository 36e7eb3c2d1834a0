package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/event"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway"
	"github.com/AccelByte/extend-drop-farmer/pkg/gateway/mock"
	"github.com/AccelByte/extend-drop-farmer/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() Config {
	return Config{
		AutoClaim:     true,
		ClaimCooldown: 90 * time.Second,
		FollowUpDelay: 10 * time.Millisecond,
		DiffDisplay:   10 * time.Millisecond,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func item(id string, earned, required int, status gateway.DropStatus) gateway.InventoryItem {
	return gateway.InventoryItem{
		ID:              id,
		CampaignID:      "camp-" + id,
		Game:            "Game A",
		Title:           "Drop " + id,
		RequiredMinutes: required,
		EarnedMinutes:   earned,
		Status:          status,
		ClaimRef:        &gateway.ClaimRef{DropID: id, DropInstanceID: "inst-" + id},
	}
}

func TestRefresh_FirstSnapshotIsReadyWithoutMinutesEvent(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 10, 60, gateway.StatusProgress)})
	rec := &event.Recorder{}

	r := NewReconciler(gw, nil, rec, testConfig())
	r.Refresh(context.Background(), false)

	snap := r.Snapshot()
	if snap.Status != StatusReady {
		t.Errorf("Status = %s, expected ready", snap.Status)
	}
	if len(snap.Items) != 1 {
		t.Fatalf("len(Items) = %d, expected 1", len(snap.Items))
	}
	if len(snap.Added) != 1 || snap.Added[0] != "d1" {
		t.Errorf("Added = %v, expected [d1]", snap.Added)
	}
	if n := len(rec.OfType(event.TypeMinutesEarned)); n != 0 {
		t.Errorf("got %d minutes events on first snapshot, expected 0", n)
	}
}

func TestRefresh_EmitsPositiveMinutesDelta(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 10, 60, gateway.StatusProgress)})
	rec := &event.Recorder{}

	r := NewReconciler(gw, nil, rec, testConfig())
	r.Refresh(context.Background(), false)

	minutesBefore := testutil.ToFloat64(metrics.MinutesEarnedTotal)
	gw.SetInventory([]gateway.InventoryItem{item("d1", 15, 60, gateway.StatusProgress)})
	r.Refresh(context.Background(), false)

	if got := testutil.ToFloat64(metrics.MinutesEarnedTotal) - minutesBefore; got != 5 {
		t.Errorf("minutes earned counted = %v, expected 5", got)
	}

	events := rec.OfType(event.TypeMinutesEarned)
	if len(events) != 1 {
		t.Fatalf("got %d minutes events, expected 1", len(events))
	}
	if d := events[0].(*event.MinutesEarned).Delta; d != 5 {
		t.Errorf("Delta = %d, expected 5", d)
	}

	snap := r.Snapshot()
	if len(snap.Updated) != 1 || snap.Updated[0] != "d1" {
		t.Errorf("Updated = %v, expected [d1]", snap.Updated)
	}
}

func TestRefresh_ProgressNeverDecreases(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 30, 60, gateway.StatusProgress)})
	rec := &event.Recorder{}

	r := NewReconciler(gw, nil, rec, testConfig())
	r.Refresh(context.Background(), false)

	gw.SetInventory([]gateway.InventoryItem{item("d1", 20, 60, gateway.StatusProgress)})
	r.Refresh(context.Background(), false)

	snap := r.Snapshot()
	if got := snap.Items[0].EarnedMinutes; got != 30 {
		t.Errorf("EarnedMinutes = %d, expected 30", got)
	}
	if n := len(rec.OfType(event.TypeMinutesEarned)); n != 0 {
		t.Errorf("got %d minutes events, expected 0", n)
	}
}

func TestRefresh_ClampsEarnedToRequired(t *testing.T) {
	gw := mock.NewGateway()
	over := item("d1", 80, 60, gateway.StatusProgress)
	over.ClaimRef = nil
	claimed := item("d2", 5, 60, gateway.StatusClaimed)
	gw.SetInventory([]gateway.InventoryItem{over, claimed})

	r := NewReconciler(gw, nil, nil, testConfig())
	r.Refresh(context.Background(), false)

	snap := r.Snapshot()
	for _, it := range snap.Items {
		if it.EarnedMinutes != it.RequiredMinutes {
			t.Errorf("%s EarnedMinutes = %d, expected %d", it.ID, it.EarnedMinutes, it.RequiredMinutes)
		}
	}
}

func TestRefresh_CoalescesConcurrentRequests(t *testing.T) {
	gw := mock.NewGateway()
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	gw.FetchInventoryFunc = func(ctx context.Context) ([]gateway.InventoryItem, error) {
		started <- struct{}{}
		<-release
		return []gateway.InventoryItem{item("d1", 10, 60, gateway.StatusProgress)}, nil
	}

	r := NewReconciler(gw, nil, nil, testConfig())

	done := make(chan struct{})
	go func() {
		r.Refresh(context.Background(), false)
		close(done)
	}()
	<-started

	for i := 0; i < 5; i++ {
		r.Refresh(context.Background(), i == 2)
	}

	close(release)
	<-done

	if got := gw.InventoryCallCount(); got != 2 {
		t.Errorf("InventoryCallCount() = %d, expected 2", got)
	}
}

func TestRefresh_PendingForceIsOred(t *testing.T) {
	gw := mock.NewGateway()
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	var statuses []Status
	var mu sync.Mutex

	r := NewReconciler(gw, nil, nil, testConfig())
	gw.FetchInventoryFunc = func(ctx context.Context) ([]gateway.InventoryItem, error) {
		mu.Lock()
		statuses = append(statuses, r.Snapshot().Status)
		mu.Unlock()
		started <- struct{}{}
		<-release
		return []gateway.InventoryItem{item("d1", 10, 60, gateway.StatusProgress)}, nil
	}

	done := make(chan struct{})
	go func() {
		r.Refresh(context.Background(), false)
		close(done)
	}()
	<-started

	r.Refresh(context.Background(), true)
	r.Refresh(context.Background(), false)

	release <- struct{}{}
	<-started
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 2 {
		t.Fatalf("got %d fetches, expected 2", len(statuses))
	}
	if statuses[1] != StatusLoading {
		t.Errorf("second pass status = %s, expected loading", statuses[1])
	}
}

func TestRefresh_TransportErrorKeepsItems(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 10, 60, gateway.StatusProgress)})

	r := NewReconciler(gw, nil, nil, testConfig())
	r.Refresh(context.Background(), false)

	gw.FetchInventoryFunc = func(ctx context.Context) ([]gateway.InventoryItem, error) {
		return nil, &gateway.RemoteError{Code: gateway.CodeTransport, Message: "connection reset"}
	}
	r.Refresh(context.Background(), false)

	snap := r.Snapshot()
	if snap.Status != StatusError {
		t.Errorf("Status = %s, expected error", snap.Status)
	}
	if snap.Error == nil || snap.Error.Code != gateway.CodeTransport {
		t.Errorf("Error = %v, expected transport error", snap.Error)
	}
	if len(snap.Items) != 1 {
		t.Errorf("len(Items) = %d, expected items to be kept", len(snap.Items))
	}
}

func TestRefresh_AuthInvalidResetsAndPublishes(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 10, 60, gateway.StatusProgress)})
	rec := &event.Recorder{}

	r := NewReconciler(gw, nil, rec, testConfig())
	r.Refresh(context.Background(), false)

	gw.FetchInventoryFunc = func(ctx context.Context) ([]gateway.InventoryItem, error) {
		return nil, gateway.ErrAuthInvalid
	}
	r.Refresh(context.Background(), false)

	snap := r.Snapshot()
	if snap.Status != StatusIdle {
		t.Errorf("Status = %s, expected idle", snap.Status)
	}
	if len(snap.Items) != 0 {
		t.Errorf("len(Items) = %d, expected 0", len(snap.Items))
	}
	if n := len(rec.OfType(event.TypeAuthError)); n != 1 {
		t.Errorf("got %d auth events, expected 1", n)
	}
}

func TestAutoClaim_ClaimsCompletedDropAndFollowsUp(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 60, 60, gateway.StatusProgress)})
	rec := &event.Recorder{}

	r := NewReconciler(gw, nil, rec, testConfig())
	r.Refresh(context.Background(), false)

	if got := gw.ClaimCallCount(); got != 1 {
		t.Fatalf("ClaimCallCount() = %d, expected 1", got)
	}
	if gw.ClaimCalls[0].DropInstanceID != "inst-d1" {
		t.Errorf("claimed %+v, expected instance inst-d1", gw.ClaimCalls[0])
	}

	snap := r.Snapshot()
	if snap.Items[0].Status != gateway.StatusClaimed {
		t.Errorf("Status = %s, expected claimed", snap.Items[0].Status)
	}
	if !snap.Claims["d1"].OK {
		t.Errorf("Claims[d1] = %+v, expected ok", snap.Claims["d1"])
	}

	claimed := rec.OfType(event.TypeDropClaimed)
	if len(claimed) != 1 {
		t.Fatalf("got %d claimed events, expected 1", len(claimed))
	}
	if ev := claimed[0].(*event.DropClaimed); ev.DropID != "d1" || ev.Game != "Game A" {
		t.Errorf("event = %+v", ev)
	}

	waitFor(t, func() bool { return gw.InventoryCallCount() == 2 }, "follow-up refresh")
}

func TestAutoClaim_OneFollowUpPerBatch(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{
		item("d1", 60, 60, gateway.StatusProgress),
		item("d2", 30, 30, gateway.StatusProgress),
		item("d3", 0, 0, gateway.StatusLocked),
	})

	cfg := testConfig()
	cfg.FollowUpDelay = 50 * time.Millisecond
	r := NewReconciler(gw, nil, nil, cfg)
	r.Refresh(context.Background(), false)

	if got := gw.ClaimCallCount(); got != 3 {
		t.Fatalf("ClaimCallCount() = %d, expected 3", got)
	}

	waitFor(t, func() bool { return gw.InventoryCallCount() >= 2 }, "follow-up refresh")
	time.Sleep(100 * time.Millisecond)
	if got := gw.InventoryCallCount(); got != 2 {
		t.Errorf("InventoryCallCount() = %d, expected 2", got)
	}
}

func TestAutoClaim_CooldownBlocksRetry(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 60, 60, gateway.StatusProgress)})
	gw.ClaimDropFunc = func(ctx context.Context, ref gateway.ClaimRef) error {
		return &gateway.RemoteError{Code: "claim_failed", Message: "try later"}
	}

	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	r := NewReconciler(gw, nil, nil, testConfig())
	r.SetClock(clock.Now)

	failedBefore := testutil.ToFloat64(metrics.ClaimAttemptsTotal.WithLabelValues(metrics.OutcomeError))

	r.Refresh(context.Background(), false)
	if got := gw.ClaimCallCount(); got != 1 {
		t.Fatalf("ClaimCallCount() = %d, expected 1", got)
	}
	if got := testutil.ToFloat64(metrics.ClaimAttemptsTotal.WithLabelValues(metrics.OutcomeError)) - failedBefore; got != 1 {
		t.Errorf("failed claim attempts counted = %v, expected 1", got)
	}
	snap := r.Snapshot()
	if snap.Claims["d1"].OK || snap.Claims["d1"].Code != "claim_failed" {
		t.Errorf("Claims[d1] = %+v, expected claim_failed", snap.Claims["d1"])
	}

	clock.Advance(30 * time.Second)
	r.Refresh(context.Background(), false)
	r.Refresh(context.Background(), false)
	if got := gw.ClaimCallCount(); got != 1 {
		t.Errorf("ClaimCallCount() = %d within cooldown, expected 1", got)
	}

	clock.Advance(61 * time.Second)
	r.Refresh(context.Background(), false)
	if got := gw.ClaimCallCount(); got != 2 {
		t.Errorf("ClaimCallCount() = %d after cooldown, expected 2", got)
	}
}

func TestAutoClaim_DisabledDoesNotClaim(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 60, 60, gateway.StatusProgress)})

	cfg := testConfig()
	cfg.AutoClaim = false
	r := NewReconciler(gw, nil, nil, cfg)
	r.Refresh(context.Background(), false)

	if got := gw.ClaimCallCount(); got != 0 {
		t.Errorf("ClaimCallCount() = %d, expected 0", got)
	}
}

func TestAutoClaim_AuthStopsPass(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{
		item("d1", 60, 60, gateway.StatusProgress),
		item("d2", 60, 60, gateway.StatusProgress),
	})
	gw.ClaimDropFunc = func(ctx context.Context, ref gateway.ClaimRef) error {
		return gateway.ErrAuthInvalid
	}
	rec := &event.Recorder{}

	r := NewReconciler(gw, nil, rec, testConfig())
	r.Refresh(context.Background(), false)

	if got := gw.ClaimCallCount(); got != 1 {
		t.Errorf("ClaimCallCount() = %d, expected 1", got)
	}
	if n := len(rec.OfType(event.TypeAuthError)); n != 1 {
		t.Errorf("got %d auth events, expected 1", n)
	}
	if s := r.Snapshot().Status; s != StatusIdle {
		t.Errorf("Status = %s, expected idle", s)
	}
}

type failingLedger struct{}

func (failingLedger) LastAttempt(ctx context.Context, dropID string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("ledger down")
}

func (failingLedger) MarkAttempt(ctx context.Context, dropID string, at time.Time) error {
	return errors.New("ledger down")
}

func TestAutoClaim_LedgerFailureSkipsClaim(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 60, 60, gateway.StatusProgress)})

	r := NewReconciler(gw, failingLedger{}, nil, testConfig())
	r.Refresh(context.Background(), false)

	if got := gw.ClaimCallCount(); got != 0 {
		t.Errorf("ClaimCallCount() = %d, expected 0", got)
	}
}

func TestDiffClearsAfterDisplayWindow(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 10, 60, gateway.StatusProgress)})

	r := NewReconciler(gw, nil, nil, testConfig())
	r.Refresh(context.Background(), false)

	waitFor(t, func() bool { return len(r.Snapshot().Added) == 0 }, "diff to clear")
}

func TestOnSnapshot_CalledAfterEachPass(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 10, 60, gateway.StatusProgress)})

	r := NewReconciler(gw, nil, nil, testConfig())
	var got []Snapshot
	r.OnSnapshot(func(s Snapshot) { got = append(got, s) })

	r.Refresh(context.Background(), false)
	r.Refresh(context.Background(), false)

	if len(got) != 2 {
		t.Fatalf("listener called %d times, expected 2", len(got))
	}
	if got[1].Status != StatusReady {
		t.Errorf("Status = %s, expected ready", got[1].Status)
	}
}

func TestRefresh_PendingPassSurvivesCancelledOwner(t *testing.T) {
	gw := mock.NewGateway()
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	gw.FetchInventoryFunc = func(ctx context.Context) ([]gateway.InventoryItem, error) {
		started <- struct{}{}
		<-release
		return []gateway.InventoryItem{item("d1", 10, 60, gateway.StatusProgress)}, nil
	}

	r := NewReconciler(gw, nil, nil, testConfig())

	reqCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Refresh(reqCtx, true)
		close(done)
	}()
	<-started

	r.Refresh(context.Background(), false)
	cancel()

	close(release)
	<-done

	if got := gw.InventoryCallCount(); got != 2 {
		t.Errorf("InventoryCallCount() = %d, expected 2", got)
	}
	if s := r.Snapshot().Status; s != StatusReady {
		t.Errorf("Status = %s, expected ready", s)
	}
}

func TestRefresh_CancelledRequestIsDropped(t *testing.T) {
	gw := mock.NewGateway()
	r := NewReconciler(gw, nil, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Refresh(ctx, true)

	if got := gw.InventoryCallCount(); got != 0 {
		t.Errorf("InventoryCallCount() = %d, expected 0", got)
	}
	if s := r.Snapshot().Status; s != StatusIdle {
		t.Errorf("Status = %s, expected idle", s)
	}
}

func TestStop_RestoresStatusOfAbortedPass(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 10, 60, gateway.StatusProgress)})

	r := NewReconciler(gw, nil, nil, testConfig())
	r.Refresh(context.Background(), false)

	started := make(chan struct{})
	gw.FetchInventoryFunc = func(ctx context.Context) ([]gateway.InventoryItem, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		r.Refresh(context.Background(), true)
		close(done)
	}()
	<-started

	if s := r.Snapshot().Status; s != StatusLoading {
		t.Errorf("Status during fetch = %s, expected loading", s)
	}
	r.Stop()
	<-done

	snap := r.Snapshot()
	if snap.Status != StatusReady {
		t.Errorf("Status = %s, expected ready", snap.Status)
	}
	if len(snap.Items) != 1 {
		t.Errorf("len(Items) = %d, expected 1", len(snap.Items))
	}
}

func TestTimersStopWithOwner(t *testing.T) {
	tests := []struct {
		name string
		stop func(r *Reconciler)
	}{
		{name: "stop", stop: func(r *Reconciler) { r.Stop() }},
		{name: "reset", stop: func(r *Reconciler) { r.Reset() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := mock.NewGateway()
			gw.SetInventory([]gateway.InventoryItem{item("d1", 60, 60, gateway.StatusProgress)})

			cfg := testConfig()
			cfg.FollowUpDelay = 50 * time.Millisecond
			cfg.DiffDisplay = 50 * time.Millisecond
			r := NewReconciler(gw, nil, nil, cfg)
			r.Refresh(context.Background(), false)

			if got := gw.ClaimCallCount(); got != 1 {
				t.Fatalf("ClaimCallCount() = %d, expected 1", got)
			}
			tt.stop(r)

			time.Sleep(150 * time.Millisecond)
			if got := gw.InventoryCallCount(); got != 1 {
				t.Errorf("InventoryCallCount() = %d, expected no follow-up", got)
			}
			if got := gw.ClaimCallCount(); got != 1 {
				t.Errorf("ClaimCallCount() = %d, expected 1", got)
			}
		})
	}
}

func TestStop_KeepsDiffAndRejectsRefresh(t *testing.T) {
	gw := mock.NewGateway()
	gw.SetInventory([]gateway.InventoryItem{item("d1", 10, 60, gateway.StatusProgress)})

	cfg := testConfig()
	cfg.DiffDisplay = 50 * time.Millisecond
	r := NewReconciler(gw, nil, nil, cfg)
	r.Refresh(context.Background(), false)
	r.Stop()

	time.Sleep(100 * time.Millisecond)
	if got := r.Snapshot().Added; len(got) != 1 {
		t.Errorf("Added = %v, expected diff-clear to be cancelled", got)
	}

	r.Refresh(context.Background(), true)
	if got := gw.InventoryCallCount(); got != 1 {
		t.Errorf("InventoryCallCount() = %d, expected Refresh after Stop to be a no-op", got)
	}

	r.Start(context.Background())
	r.Refresh(context.Background(), false)
	if got := gw.InventoryCallCount(); got != 2 {
		t.Errorf("InventoryCallCount() = %d, expected Refresh after Start to fetch", got)
	}
}

package event

import (
	"testing"
	"time"
)

func TestBus_PublishDeliversByType(t *testing.T) {
	bus := NewBus()

	var claimed, auth int
	bus.Subscribe(TypeDropClaimed, func(ev Event) { claimed++ })
	bus.Subscribe(TypeDropClaimed, func(ev Event) { claimed++ })
	bus.Subscribe(TypeAuthError, func(ev Event) { auth++ })

	bus.Publish(NewDropClaimed("d1", "Badge", "Game A"))

	if claimed != 2 {
		t.Errorf("claimed handlers called %d times, expected 2", claimed)
	}
	if auth != 0 {
		t.Errorf("auth handler called %d times, expected 0", auth)
	}
	if bus.Count(TypeDropClaimed) != 2 {
		t.Errorf("Count() = %d, expected 2", bus.Count(TypeDropClaimed))
	}
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()

	called := false
	bus.Subscribe(TypeAuthError, func(ev Event) { panic("boom") })
	bus.Subscribe(TypeAuthError, func(ev Event) { called = true })

	bus.Publish(NewAuthError("expired"))

	if !called {
		t.Error("second handler should still be called")
	}
}

func TestBus_PublishNil(t *testing.T) {
	bus := NewBus()
	bus.Publish(nil)
}

func TestEvents_CarryIDsAndPayload(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sw := NewAutoSwitch(at, ReasonOffline, "alice", "bob")

	if sw.Type() != TypeAutoSwitch {
		t.Errorf("Type() = %s, expected %s", sw.Type(), TypeAutoSwitch)
	}
	if sw.ID() == "" {
		t.Error("ID() should not be empty")
	}
	if !sw.Timestamp().Equal(at) {
		t.Errorf("Timestamp() = %v, expected %v", sw.Timestamp(), at)
	}
	if sw.From != "alice" || sw.To != "bob" || sw.Reason != ReasonOffline {
		t.Errorf("unexpected payload: %+v", sw)
	}

	a, b := NewMinutesEarned(1), NewMinutesEarned(1)
	if a.ID() == b.ID() {
		t.Error("events should have distinct IDs")
	}
}

func TestRecorder_OfType(t *testing.T) {
	rec := &Recorder{}
	rec.Publish(NewMinutesEarned(5))
	rec.Publish(NewAuthError(""))
	rec.Publish(NewMinutesEarned(3))

	if got := len(rec.Events()); got != 3 {
		t.Errorf("Events() len = %d, expected 3", got)
	}
	earned := rec.OfType(TypeMinutesEarned)
	if len(earned) != 2 {
		t.Fatalf("OfType() len = %d, expected 2", len(earned))
	}
	if earned[1].(*MinutesEarned).Delta != 3 {
		t.Errorf("second delta = %d, expected 3", earned[1].(*MinutesEarned).Delta)
	}
}

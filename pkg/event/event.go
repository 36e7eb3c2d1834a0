package event

import (
	"time"

	"github.com/google/uuid"
)

// Event type identifiers.
const (
	TypeMinutesEarned = "minutes_earned"
	TypeDropClaimed   = "drop_claimed"
	TypeAuthError     = "auth_error"
	TypeAutoSwitch    = "auto_switch"
)

// Types lists every event type.
func Types() []string {
	return []string{TypeMinutesEarned, TypeDropClaimed, TypeAuthError, TypeAutoSwitch}
}

// ReasonOffline is the only auto-switch reason the tracker emits.
const ReasonOffline = "offline"

// Event is a typed notification emitted upward by the orchestrator.
// Consumers (statistics, notifications, metrics) subscribe by Type.
type Event interface {
	// Type returns the event type identifier (e.g., "drop_claimed").
	Type() string

	// ID returns a unique identifier for log correlation.
	ID() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type base struct {
	id string
	at time.Time
}

func newBase(at time.Time) base {
	if at.IsZero() {
		at = time.Now()
	}
	return base{id: uuid.NewString(), at: at}
}

func (b base) ID() string           { return b.id }
func (b base) Timestamp() time.Time { return b.at }

// MinutesEarned reports a positive delta of total earned minutes between two snapshots.
type MinutesEarned struct {
	base
	Delta int
}

// NewMinutesEarned creates a MinutesEarned event.
func NewMinutesEarned(delta int) *MinutesEarned {
	return &MinutesEarned{base: newBase(time.Now()), Delta: delta}
}

func (e *MinutesEarned) Type() string { return TypeMinutesEarned }

// DropClaimed reports a successful claim.
type DropClaimed struct {
	base
	DropID string
	Title  string
	Game   string
}

// NewDropClaimed creates a DropClaimed event.
func NewDropClaimed(dropID, title, game string) *DropClaimed {
	return &DropClaimed{base: newBase(time.Now()), DropID: dropID, Title: title, Game: game}
}

func (e *DropClaimed) Type() string { return TypeDropClaimed }

// AuthError reports that the remote service rejected the session.
type AuthError struct {
	base
	Message string
}

// NewAuthError creates an AuthError event.
func NewAuthError(message string) *AuthError {
	return &AuthError{base: newBase(time.Now()), Message: message}
}

func (e *AuthError) Type() string { return TypeAuthError }

// AutoSwitch reports that the watched channel went away and another one was picked.
type AutoSwitch struct {
	base
	At     time.Time
	Reason string
	From   string
	To     string
}

// NewAutoSwitch creates an AutoSwitch event.
func NewAutoSwitch(at time.Time, reason, from, to string) *AutoSwitch {
	return &AutoSwitch{base: newBase(at), At: at, Reason: reason, From: from, To: to}
}

func (e *AutoSwitch) Type() string { return TypeAutoSwitch }

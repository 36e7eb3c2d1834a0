package inventory

import (
	"context"
	"sync"
	"time"
)

// Ledger remembers when a claim was last attempted for a drop.
// It only exists to enforce the minimum retry interval between attempts.
type Ledger interface {
	LastAttempt(ctx context.Context, dropID string) (time.Time, bool, error)
	MarkAttempt(ctx context.Context, dropID string, at time.Time) error
}

// MemoryLedger is an in-process Ledger. Entries are never expired.
type MemoryLedger struct {
	mu       sync.RWMutex
	attempts map[string]time.Time
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{attempts: make(map[string]time.Time)}
}

func (l *MemoryLedger) LastAttempt(ctx context.Context, dropID string) (time.Time, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	at, ok := l.attempts[dropID]
	return at, ok, nil
}

func (l *MemoryLedger) MarkAttempt(ctx context.Context, dropID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts[dropID] = at
	return nil
}

// CoolingDown reports whether a drop attempted at last may not be retried at now.
func CoolingDown(last, now time.Time, cooldown time.Duration) bool {
	return now.Sub(last) < cooldown
}

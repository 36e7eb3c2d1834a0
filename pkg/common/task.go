package common

import (
	"context"
	"sync"
)

// Tasks runs at most one goroutine per name. Each task is keyed by the
// condition that governs it (target id, game, auth generation); asking for a
// different key cancels the running task before the new one starts.
//
// Cancellation does not wait for the old goroutine to return, so task bodies
// must check their context before writing shared state.
type Tasks struct {
	mu      sync.Mutex
	running map[string]*task
	seq     uint64
}

type task struct {
	id     uint64
	key    string
	cancel context.CancelFunc
}

// NewTasks creates an empty task set.
func NewTasks() *Tasks {
	return &Tasks{running: make(map[string]*task)}
}

// Ensure starts fn under name unless a task with the same key is already running.
// Returns true if a new task was started.
func (t *Tasks) Ensure(parent context.Context, name, key string, fn func(ctx context.Context)) bool {
	t.mu.Lock()
	if cur, ok := t.running[name]; ok {
		if cur.key == key {
			t.mu.Unlock()
			return false
		}
		cur.cancel()
		delete(t.running, name)
	}
	t.seq++
	ctx, cancel := context.WithCancel(parent)
	tk := &task{id: t.seq, key: key, cancel: cancel}
	t.running[name] = tk
	t.mu.Unlock()

	go func() {
		defer t.finish(name, tk.id)
		fn(ctx)
	}()
	return true
}

// Restart cancels any task under name and starts fn, even if the key matches.
func (t *Tasks) Restart(parent context.Context, name, key string, fn func(ctx context.Context)) {
	t.Cancel(name)
	t.Ensure(parent, name, key, fn)
}

// Cancel stops the task under name, if any.
func (t *Tasks) Cancel(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.running[name]; ok {
		cur.cancel()
		delete(t.running, name)
	}
}

// CancelAll stops every task.
func (t *Tasks) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name, cur := range t.running {
		cur.cancel()
		delete(t.running, name)
	}
}

// Key returns the key of the task running under name.
func (t *Tasks) Key(name string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.running[name]
	if !ok {
		return "", false
	}
	return cur.key, true
}

func (t *Tasks) finish(name string, id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.running[name]; ok && cur.id == id {
		cur.cancel()
		delete(t.running, name)
	}
}

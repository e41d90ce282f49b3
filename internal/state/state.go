package state

import (
	"sync"
	"time"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

type SyncState struct {
	Status          Status     `json:"status"`
	PendingCount    int64      `json:"pending_count"`
	DeadLetterCount int64      `json:"dead_letter_count"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	IsMigrated      bool       `json:"is_migrated"`
}

type Listener func(SyncState)

type subscription struct {
	id int
	fn Listener
}

// Board holds the published sync state and its observers. Listeners run on
// the updating goroutine, in update order and then in subscription order,
// and must not call Update.
type Board struct {
	mu     sync.RWMutex
	emitMu sync.Mutex

	state     SyncState
	listeners []subscription
	nextID    int
}

func NewBoard(initial SyncState) *Board {
	if initial.Status == "" {
		initial.Status = StatusIdle
	}
	return &Board{state: initial}
}

func (b *Board) Snapshot() SyncState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyState(b.state)
}

// Update applies fn to the state and notifies every listener with the result.
func (b *Board) Update(fn func(*SyncState)) SyncState {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	fn(&b.state)
	snap := copyState(b.state)
	listeners := append([]subscription(nil), b.listeners...)
	b.mu.Unlock()

	for _, l := range listeners {
		l.fn(snap)
	}
	return snap
}

// Subscribe registers l and returns a func that removes it.
func (b *Board) Subscribe(l Listener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners = append(b.listeners, subscription{id: id, fn: l})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			for i, sub := range b.listeners {
				if sub.id == id {
					b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
		})
	}
}

func copyState(in SyncState) SyncState {
	out := in
	if in.LastSyncAt != nil {
		t := *in.LastSyncAt
		out.LastSyncAt = &t
	}
	return out
}

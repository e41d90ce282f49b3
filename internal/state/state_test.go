package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscribeReceivesUpdatesUntilUnsubscribed(t *testing.T) {
	b := NewBoard(SyncState{})
	assert.Equal(t, StatusIdle, b.Snapshot().Status)

	var got []Status
	unsubscribe := b.Subscribe(func(s SyncState) { got = append(got, s.Status) })

	b.Update(func(s *SyncState) { s.Status = StatusSyncing })
	b.Update(func(s *SyncState) { s.Status = StatusIdle; s.PendingCount = 2 })
	unsubscribe()
	unsubscribe()
	b.Update(func(s *SyncState) { s.Status = StatusOffline })

	assert.Equal(t, []Status{StatusSyncing, StatusIdle}, got)
	assert.Equal(t, StatusOffline, b.Snapshot().Status)
	assert.EqualValues(t, 2, b.Snapshot().PendingCount)
}

func TestListenersRunInSubscriptionOrder(t *testing.T) {
	b := NewBoard(SyncState{})
	var calls []int
	var unsub []func()
	for i := 0; i < 8; i++ {
		unsub = append(unsub, b.Subscribe(func(SyncState) { calls = append(calls, i) }))
	}
	b.Update(func(s *SyncState) { s.PendingCount = 1 })
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, calls)

	unsub[3]()
	unsub[0]()
	b.Subscribe(func(SyncState) { calls = append(calls, 8) })
	calls = nil
	b.Update(func(s *SyncState) { s.PendingCount = 2 })
	assert.Equal(t, []int{1, 2, 4, 5, 6, 7, 8}, calls)
}

func TestSnapshotIsACopy(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBoard(SyncState{LastSyncAt: &at})

	snap := b.Snapshot()
	*snap.LastSyncAt = at.Add(time.Hour)

	assert.True(t, b.Snapshot().LastSyncAt.Equal(at))
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	b := NewBoard(SyncState{})
	var mu sync.Mutex
	var last int64
	ordered := true
	b.Subscribe(func(s SyncState) {
		mu.Lock()
		defer mu.Unlock()
		if s.PendingCount != last+1 {
			ordered = false
		}
		last = s.PendingCount
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Update(func(s *SyncState) { s.PendingCount++ })
		}()
	}
	wg.Wait()

	assert.True(t, ordered)
	assert.EqualValues(t, 50, b.Snapshot().PendingCount)
}

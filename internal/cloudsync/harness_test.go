package cloudsync_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fitlog-go/internal/cloudsync"
	"fitlog-go/internal/logging"
	"fitlog-go/internal/outbox"
	"fitlog-go/internal/state"
	"fitlog-go/internal/store"
	"fitlog-go/internal/testutil"
	"fitlog-go/pkg/types"
)

const testUserID = "5b0c2d3e-8f1a-4c6b-9d7e-2a1b3c4d5e6f"

var _ cloudsync.Remote = (*testutil.Remote)(nil)

type harness struct {
	t      *testing.T
	store  *store.Store
	remote *testutil.Remote
	gate   *testutil.Gate
	board  *state.Board
	coord  *cloudsync.Coordinator
	queue  *outbox.Queue
	clock  time.Time
}

type harnessOpt func(*cloudsync.Options)

func withRetention(n int) harnessOpt {
	return func(o *cloudsync.Options) { o.RetentionKeep = n }
}

func withBackoff(base time.Duration) harnessOpt {
	return func(o *cloudsync.Options) { o.BackoffBase = base; o.BackoffMax = time.Hour }
}

func newHarness(t *testing.T, remote *testutil.Remote, withAccount bool, opts ...harnessOpt) *harness {
	t.Helper()
	o := cloudsync.Options{MaxRetries: 5, RetentionKeep: 100}
	for _, fn := range opts {
		fn(&o)
	}
	if remote == nil {
		remote = testutil.NewRemote()
	}
	h := &harness{
		t:      t,
		store:  testutil.NewStore(t),
		remote: remote,
		gate:   testutil.NewGate(true, true),
		board:  state.NewBoard(state.SyncState{}),
		clock:  time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
	}
	h.coord = cloudsync.NewCoordinator(h.store, remote, h.gate, h.board, o, logging.Discard())
	h.coord.SetClock(h.now)
	h.queue = outbox.New(h.store, h.gate, logging.Discard())
	h.queue.SetNotifier(h.coord)
	h.queue.SetClock(h.now)
	if withAccount {
		require.NoError(t, h.store.CreateUser(context.Background(), &store.User{ID: testUserID, Name: "Ana", CreatedAt: h.clock}))
	}
	return h
}

// now advances a millisecond per call so created_at order follows call order.
func (h *harness) now() time.Time {
	h.clock = h.clock.Add(time.Millisecond)
	return h.clock
}

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

func (h *harness) enqueue(table store.Table, localID string, payload any) *store.OutboxItem {
	h.t.Helper()
	item, err := h.queue.Enqueue(context.Background(), table, store.ActionInsert, localID, payload)
	require.NoError(h.t, err)
	return item
}

func (h *harness) session(id int64) store.Session {
	h.t.Helper()
	s := store.Session{ID: id, UserID: testUserID, TemplateID: "upper", Date: "2026-04-01", StartedAt: h.now()}
	require.NoError(h.t, h.store.CreateSession(context.Background(), &s))
	h.enqueue(store.TableSessions, localID(id), s)
	return s
}

func (h *harness) setLog(id, sessionID int64) store.SetLog {
	h.t.Helper()
	l := store.SetLog{ID: id, SessionID: sessionID, ExerciseID: "bench", SetNumber: 1, Weight: 80, Reps: 5, LoggedAt: h.now()}
	require.NoError(h.t, h.store.CreateSetLog(context.Background(), &l))
	h.enqueue(store.TableSetLogs, localID(id), l)
	return l
}

func (h *harness) weight(id int64, kg float64) store.WeightEntry {
	h.t.Helper()
	w := store.WeightEntry{ID: id, UserID: testUserID, Weight: kg, Unit: "kg", RecordedAt: h.now()}
	require.NoError(h.t, h.store.CreateWeight(context.Background(), &w))
	h.enqueue(store.TableWeightHistory, localID(id), w)
	return w
}

func (h *harness) drain() *cloudsync.DrainResult {
	h.t.Helper()
	res, err := h.coord.Drain(context.Background())
	require.NoError(h.t, err)
	return res
}

func (h *harness) pending() int64 {
	h.t.Helper()
	n, err := h.store.CountPending(context.Background(), 5)
	require.NoError(h.t, err)
	return n
}

func localID(id int64) string { return cloudsync.LocalID(id).String() }

func sessionRowFor(local string) types.SessionRow {
	return types.SessionRow{
		UserID:     testUserID,
		LocalID:    local,
		TemplateID: "lower",
		Date:       "2026-03-30",
		StartedAt:  time.Date(2026, 3, 30, 18, 0, 0, 0, time.UTC),
	}
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "fitlog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func appendItem(t *testing.T, s *Store, table Table, localID string, at time.Time) *OutboxItem {
	t.Helper()
	item := &OutboxItem{Table: table, Action: ActionInsert, LocalID: localID, Payload: []byte(`{}`), CreatedAt: at}
	require.NoError(t, s.AppendOutbox(context.Background(), item))
	return item
}

func TestPendingOutboxOrdersAcrossTables(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	a := appendItem(t, s, TableSessions, "7", base)
	b := appendItem(t, s, TableWeightHistory, "1", base.Add(time.Second))
	c := appendItem(t, s, TableSetLogs, "42", base.Add(time.Second))

	items, err := s.PendingOutbox(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, []int64{items[0].ID, items[1].ID, items[2].ID})
}

func TestPendingOutboxIgnoresClockSteps(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	parent := appendItem(t, s, TableSessions, "7", base)
	// wall clock corrected backwards between the two writes
	child := appendItem(t, s, TableSetLogs, "42", base.Add(-time.Hour))
	later := appendItem(t, s, TableSetLogs, "43", base.Add(-30*time.Minute))

	items, err := s.PendingOutbox(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []int64{parent.ID, child.ID, later.ID}, []int64{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, TableSessions, items[0].Table)
}

func TestPendingExcludesSyncedAndExhausted(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now().UTC()

	synced := appendItem(t, s, TableSessions, "1", now)
	exhausted := appendItem(t, s, TableSetLogs, "2", now)
	live := appendItem(t, s, TableSetLogs, "3", now)

	require.NoError(t, s.MarkOutboxSynced(ctx, synced.ID, now))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.MarkOutboxFailed(ctx, exhausted.ID, "boom", nil))
	}

	items, err := s.PendingOutbox(ctx, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, live.ID, items[0].ID)

	n, err := s.CountPending(ctx, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	dead, err := s.DeadLetters(ctx, 5)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, 5, dead[0].RetryCount)
	assert.Equal(t, "boom", dead[0].LastError)

	requeued, err := s.RequeueOutbox(ctx, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 1, requeued)
	n, err = s.CountPending(ctx, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestCompactKeepsMostRecentTerminal(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []int64
	for i := 0; i < 8; i++ {
		item := appendItem(t, s, TableWeightHistory, "w", base)
		require.NoError(t, s.MarkOutboxSynced(ctx, item.ID, base.Add(time.Duration(i)*time.Minute)))
		ids = append(ids, item.ID)
	}
	pending := appendItem(t, s, TableWeightHistory, "p", base)

	removed, err := s.CompactOutbox(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, removed)

	terminal, err := s.CountTerminal(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, terminal)

	_, err = s.GetOutboxItem(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetOutboxItem(ctx, ids[7])
	assert.NoError(t, err)
	_, err = s.GetOutboxItem(ctx, pending.ID)
	assert.NoError(t, err)
}

func TestMarkOutboxSyncedThrough(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now().UTC()

	appendItem(t, s, TableUsers, "u", now)
	appendItem(t, s, TableSessions, "1", now)
	data, err := s.ReadDataset(ctx, "nobody")
	require.NoError(t, err)
	later := appendItem(t, s, TableSessions, "2", now)

	n, err := s.MarkOutboxSyncedThrough(ctx, data.OutboxMax, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	items, err := s.PendingOutbox(ctx, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, later.ID, items[0].ID)
}

func TestReadDatasetAndLateInserts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now().UTC()
	const user = "u1"

	sess := &Session{UserID: user, StartedAt: now}
	require.NoError(t, s.CreateSession(ctx, sess))
	require.NoError(t, s.CreateSetLogs(ctx, []SetLog{{SessionID: sess.ID, LoggedAt: now}, {SessionID: sess.ID, LoggedAt: now}}))
	require.NoError(t, s.CreateWeight(ctx, &WeightEntry{UserID: user, Weight: 80, RecordedAt: now}))
	require.NoError(t, s.CreateWeight(ctx, &WeightEntry{UserID: "other", Weight: 60, RecordedAt: now}))
	appendItem(t, s, TableSessions, "1", now)

	data, err := s.ReadDataset(ctx, user)
	require.NoError(t, err)
	require.Len(t, data.Sessions, 1)
	assert.Len(t, data.SetLogs[sess.ID], 2)
	assert.Len(t, data.Weights, 1)
	assert.Empty(t, data.Maxes)
	assert.Empty(t, data.Feedback)

	late := appendItem(t, s, TableSetLogs, "1", now)
	update := &OutboxItem{Table: TableSessions, Action: ActionUpdate, LocalID: "1", Payload: []byte(`{}`), CreatedAt: now}
	require.NoError(t, s.AppendOutbox(ctx, update))
	unrelated := appendItem(t, s, TableSetLogs, "99", now)

	n, err := s.MarkInsertsSyncedAfter(ctx, data.OutboxMax, TableSetLogs, []string{"1", "2"}, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = s.MarkInsertsSyncedAfter(ctx, data.OutboxMax, TableSessions, []string{"1"}, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	items, err := s.PendingOutbox(ctx, 5)
	require.NoError(t, err)
	var ids []int64
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	assert.NotContains(t, ids, late.ID)
	assert.Contains(t, ids, update.ID)
	assert.Contains(t, ids, unrelated.ID)
}

func TestMetaFlags(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	migrated, err := s.IsMigrated(ctx)
	require.NoError(t, err)
	assert.False(t, migrated)
	last, err := s.LastSyncAt(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, s.SetMigrated(ctx, true))
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, s.SetLastSyncAt(ctx, at))

	migrated, err = s.IsMigrated(ctx)
	require.NoError(t, err)
	assert.True(t, migrated)
	last, err = s.LastSyncAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, at.Equal(*last))
}

func TestSessionRemoteIDAndCascade(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.CreateUser(ctx, &User{ID: "u-1", Name: "Ana"}))
	sess := &Session{UserID: "u-1", TemplateID: "push", Date: "2026-01-01", StartedAt: time.Now().UTC()}
	require.NoError(t, s.CreateSession(ctx, sess))
	require.NoError(t, s.CreateSetLogs(ctx, []SetLog{
		{SessionID: sess.ID, ExerciseID: "bench", SetNumber: 1, Weight: 60, Reps: 8},
		{SessionID: sess.ID, ExerciseID: "bench", SetNumber: 2, Weight: 60, Reps: 8},
	}))

	require.NoError(t, s.SetSessionRemoteID(ctx, sess.ID, 901))
	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RemoteID)
	assert.EqualValues(t, 901, *got.RemoteID)

	assert.ErrorIs(t, s.SetSessionRemoteID(ctx, 999, 1), ErrNotFound)

	require.NoError(t, s.DeleteSession(ctx, sess.ID))
	n, err := s.CountSetLogs(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCurrentUserMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

package cloudsync_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitlog-go/internal/cloudsync"
	"fitlog-go/internal/store"
	"fitlog-go/internal/testutil"
	"fitlog-go/pkg/types"
)

func TestMigrateUploadsLocalDataset(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, true)
	h.session(1)
	h.setLog(1, 1)
	h.setLog(2, 1)
	h.session(2)
	h.setLog(3, 2)
	h.weight(1, 82)
	one := int64(1)
	require.NoError(t, h.store.CreateEstimatedMax(ctx, &store.EstimatedMax{UserID: testUserID, ExerciseID: "squat", Weight: 120, Reps: 5, Value: 140, CalculatedAt: h.now()}))
	require.NoError(t, h.store.CreateFeedback(ctx, &store.Feedback{UserID: testUserID, SessionID: &one, Kind: "session", Content: "solid", CreatedAt: h.now()}))

	res, err := h.coord.Migrator().Migrate(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.AlreadyMigrated)
	assert.Equal(t, map[string]int{
		types.TableUsers:          1,
		types.TableWeightHistory:  1,
		types.TableSessions:       2,
		types.TableSetLogs:        3,
		types.TableEstimatedMaxes: 1,
		types.TableFeedback:       1,
	}, res.Counts)
	assert.EqualValues(t, 6, res.Settled)

	migrated, err := h.store.IsMigrated(ctx)
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.True(t, h.coord.State().IsMigrated)
	assert.Zero(t, h.pending())

	sessions, setLogs, weights := h.remote.Snapshot()
	require.Len(t, sessions, 2)
	assert.Len(t, setLogs, 3)
	assert.Len(t, weights, 1)
	require.Len(t, h.remote.Feedback, 1)
	require.NotNil(t, h.remote.Feedback[0].SessionID)
	r, ok := h.coord.IDs().Remote(1)
	require.True(t, ok)
	assert.Equal(t, int64(r), *h.remote.Feedback[0].SessionID)

	// the outbox was settled, so a drain must not upload anything twice
	res2 := h.drain()
	assert.Zero(t, res2.Attempted)
	_, setLogs, _ = h.remote.Snapshot()
	assert.Len(t, setLogs, 3)
}

func TestMigrateKeepsItemsEnqueuedAfterSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, true)
	h.session(1)

	h.remote.Hook = func(op string) {
		if op == "UpsertUser" {
			h.remote.Hook = nil
			// lands after the snapshot id was taken
			h.enqueue(store.TableWeightHistory, "9", store.WeightEntry{ID: 9, UserID: testUserID, Weight: 77, Unit: "kg"})
		}
	}
	res, err := h.coord.Migrator().Migrate(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Settled)
	assert.EqualValues(t, 1, h.pending())
}

func TestMigrateSettlesInsertQueuedAfterItsRow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, true)
	s := h.session(1)
	w := store.WeightEntry{ID: 4, UserID: testUserID, Weight: 79, Unit: "kg", RecordedAt: h.now()}
	require.NoError(t, h.store.CreateWeight(ctx, &w))

	h.remote.Hook = func(op string) {
		if op == "UpsertUser" {
			h.remote.Hook = nil
			h.enqueue(store.TableWeightHistory, localID(4), w)
			done := s
			at := h.now()
			done.CompletedAt = &at
			_, err := h.queue.Enqueue(ctx, store.TableSessions, store.ActionUpdate, localID(1), done)
			require.NoError(t, err)
		}
	}
	res, err := h.coord.Migrator().Migrate(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Settled)
	assert.EqualValues(t, 1, h.pending())

	drained := h.drain()
	assert.Equal(t, 1, drained.Synced)
	sessions, _, weights := h.remote.Snapshot()
	assert.Len(t, weights, 1)
	require.Len(t, sessions, 1)
	assert.NotNil(t, sessions[0].CompletedAt)
}

func TestMigrateShortCircuitsWhenRemoteUserExists(t *testing.T) {
	ctx := context.Background()
	remote := testutil.NewRemote()
	remote.Users[testUserID] = types.UserRow{ID: testUserID, Name: "Ana"}
	h := newHarness(t, remote, true)
	h.session(1)
	h.setLog(1, 1)

	res, err := h.coord.Migrator().Migrate(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.AlreadyMigrated)
	assert.Equal(t, 1, remote.TotalCalls())
	assert.Equal(t, 1, remote.Calls("GetUser"))

	migrated, err := h.store.IsMigrated(ctx)
	require.NoError(t, err)
	assert.True(t, migrated)
	assert.EqualValues(t, 2, h.pending())
}

func TestMigrateIsOncePerDevice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, true)
	require.NoError(t, h.store.SetMigrated(ctx, true))

	res, err := h.coord.Migrator().Migrate(ctx)
	require.NoError(t, err)
	assert.True(t, res.AlreadyMigrated)
	assert.Zero(t, h.remote.TotalCalls())
}

func TestMigrateAbortsOnFailedStep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, true)
	h.session(1)
	h.setLog(1, 1)
	h.weight(1, 80)
	h.remote.FailOp("InsertSetLogs", 1)

	res, err := h.coord.Migrator().Migrate(ctx)
	require.Error(t, err)
	var merr *cloudsync.MigrationError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, types.TableSetLogs, merr.Step)
	assert.ErrorIs(t, err, testutil.ErrInjected)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Contains(t, h.coord.State().LastError, "set_logs")

	migrated, err := h.store.IsMigrated(ctx)
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.EqualValues(t, 3, h.pending())

	// rows uploaded before the failure stay on the remote
	sessions, setLogs, weights := h.remote.Snapshot()
	assert.Len(t, sessions, 1)
	assert.Empty(t, setLogs)
	assert.Len(t, weights, 1)

	// the retry finds the remote user and leaves the rest to the outbox
	res, err = h.coord.Migrator().Migrate(ctx)
	require.NoError(t, err)
	assert.True(t, res.AlreadyMigrated)
	h.drain()
	sessions, setLogs, _ = h.remote.Snapshot()
	assert.Len(t, sessions, 1)
	require.Len(t, setLogs, 1)
	assert.Equal(t, sessions[0].ID, setLogs[0].SessionID)
}

func TestMigratePreconditions(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, nil, true)
	h.gate.Configured = false
	_, err := h.coord.Migrator().Migrate(ctx)
	assert.ErrorIs(t, err, cloudsync.ErrNotConfigured)

	h = newHarness(t, nil, true)
	h.gate.SetOnline(false)
	_, err = h.coord.Migrator().Migrate(ctx)
	assert.ErrorIs(t, err, cloudsync.ErrOffline)

	h = newHarness(t, nil, false)
	_, err = h.coord.Migrator().Migrate(ctx)
	assert.ErrorIs(t, err, cloudsync.ErrNoAccount)
	assert.Zero(t, h.remote.TotalCalls())
}

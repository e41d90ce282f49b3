package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitlog-go/internal/config"
	"fitlog-go/internal/logging"
	"fitlog-go/internal/state"
	"fitlog-go/internal/testutil"
)

type okProber struct{}

func (okProber) Probe(context.Context) error { return nil }

func testConfig(t *testing.T, configured bool) config.Config {
	cfg := config.Config{
		DBPath: filepath.Join(t.TempDir(), "data", "fitlog.db"),
		Sync:   config.SyncConfig{MaxRetries: 5, RetentionKeep: 100},
	}
	if configured {
		cfg.Remote = config.RemoteConfig{URL: "http://remote.test", AccessKey: "k"}
	}
	return cfg
}

func newTestApp(t *testing.T, configured bool) (*App, *testutil.Remote) {
	t.Helper()
	remote := testutil.NewRemote()
	a, err := New(testConfig(t, configured), logging.Discard(), WithRemote(remote), WithProber(okProber{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, remote
}

func TestSyncNowMigratesThenDrains(t *testing.T) {
	ctx := context.Background()
	a, remote := newTestApp(t, true)

	_, err := a.Accounts.Create(ctx, "Ana")
	require.NoError(t, err)
	s, err := a.Logbook.StartSession(ctx, "legs", "")
	require.NoError(t, err)

	res, err := a.SyncNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Attempted, "migration settles what was queued before it")

	sessions, _, _ := remote.Snapshot()
	require.Len(t, sessions, 1)
	assert.Equal(t, "legs", sessions[0].TemplateID)
	assert.True(t, a.Coordinator.State().IsMigrated)

	local, err := a.Store.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, local.RemoteID)
	assert.Equal(t, sessions[0].ID, *local.RemoteID)
}

func TestStartedWorkerDrainsNewWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a, remote := newTestApp(t, true)

	_, err := a.Accounts.Create(ctx, "Ana")
	require.NoError(t, err)
	_, err = a.Logbook.RecordWeight(ctx, 80, "kg")
	require.NoError(t, err)

	a.Start(ctx)
	require.Eventually(t, func() bool {
		_, _, weights := remote.Snapshot()
		return len(weights) == 1 && a.Coordinator.State().PendingCount == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err = a.Logbook.RecordWeight(ctx, 79.5, "kg")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, _, weights := remote.Snapshot()
		return len(weights) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	a.Wait()
}

func TestGateChangesReachCoordinator(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t, true)
	_, err := a.Accounts.Create(ctx, "Ana")
	require.NoError(t, err)

	a.Gate.SetOnline(false)
	st := a.Coordinator.State()
	assert.Equal(t, state.StatusOffline, st.Status)
	assert.EqualValues(t, 1, st.PendingCount)
}

func TestLocalOnlyModeQueuesNothing(t *testing.T) {
	ctx := context.Background()
	a, remote := newTestApp(t, false)

	_, err := a.Accounts.Create(ctx, "Ana")
	require.NoError(t, err)
	_, err = a.Logbook.RecordWeight(ctx, 80, "")
	require.NoError(t, err)

	res, err := a.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, "not_configured", res.Skipped)
	assert.Zero(t, remote.TotalCalls())

	n, err := a.Store.CountPending(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, n)

	a.Start(ctx)
	a.Wait()
}

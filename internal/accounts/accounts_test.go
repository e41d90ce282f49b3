package accounts

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitlog-go/internal/logging"
	"fitlog-go/internal/outbox"
	"fitlog-go/internal/store"
	"fitlog-go/internal/testutil"
)

func newService(t *testing.T, configured bool) (*Service, *store.Store) {
	t.Helper()
	st := testutil.NewStore(t)
	q := outbox.New(st, testutil.NewGate(configured, true), logging.Discard())
	return NewService(st, q), st
}

func TestCreateAccountQueuesUserRow(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, true)

	u, err := svc.Create(ctx, "  Ana ")
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)
	_, err = uuid.Parse(u.ID)
	require.NoError(t, err)

	items, err := st.PendingOutbox(ctx, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, store.TableUsers, items[0].Table)
	assert.Equal(t, u.ID, items[0].LocalID)
	var payload store.User
	require.NoError(t, json.Unmarshal(items[0].Payload, &payload))
	assert.Equal(t, "Ana", payload.Name)

	_, err = svc.Create(ctx, "Bob")
	assert.ErrorIs(t, err, ErrExists)
}

func TestCreateAccountOffline(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, false)

	_, err := svc.Create(ctx, "Ana")
	require.NoError(t, err)
	n, err := st.CountPending(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, true)

	_, err := svc.Rename(ctx, "Ana")
	assert.ErrorIs(t, err, ErrNoAccount)

	_, err = svc.Create(ctx, "Ana")
	require.NoError(t, err)
	u, err := svc.Rename(ctx, "Ana B")
	require.NoError(t, err)
	assert.Equal(t, "Ana B", u.Name)

	_, err = svc.Rename(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidName)

	items, err := st.PendingOutbox(ctx, 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, store.ActionUpdate, items[1].Action)
}

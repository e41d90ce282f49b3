package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"fitlog-go/internal/remotestore/repos"
	"fitlog-go/pkg/types"
)

const userA = "0f4b7f0e-58d2-4c55-9a5e-5b2f6a1c9d01"
const userB = "9a0e1c3b-7d44-4e1f-8b6a-2c5d3e4f5a6b"

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := repos.Open("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	svc := NewService(repos.NewRepo(db))
	svc.SetHashCost(bcrypt.MinCost)
	return svc
}

func seedUser(t *testing.T, svc *Service, id string) {
	t.Helper()
	_, err := svc.UpsertUser(context.Background(), types.UserRow{ID: id, Name: "lifter", CreatedAt: time.Now()})
	require.NoError(t, err)
}

func TestProfileNamesAreUnique(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, userA)
	seedUser(t, svc, userB)

	ok, err := svc.RegisterProfile(ctx, types.RegisterProfileRequest{UserID: userA, ProfileName: "Ana", PIN: "1234"})
	require.NoError(t, err)
	assert.True(t, ok)

	free, err := svc.CheckProfileNameAvailable(ctx, "ana")
	require.NoError(t, err)
	assert.False(t, free, "names compare case-insensitively")

	ok, err = svc.RegisterProfile(ctx, types.RegisterProfileRequest{UserID: userB, ProfileName: "ana", PIN: "5678"})
	require.NoError(t, err)
	assert.False(t, ok)

	// re-registering your own name just rotates the PIN
	ok, err = svc.RegisterProfile(ctx, types.RegisterProfileRequest{UserID: userA, ProfileName: "Ana", PIN: "4321"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterProfileValidates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, userA)

	for _, pin := range []string{"", "12", "123456789", "12a4"} {
		_, err := svc.RegisterProfile(ctx, types.RegisterProfileRequest{UserID: userA, ProfileName: "ana", PIN: pin})
		assert.ErrorIs(t, err, ErrInvalid, "pin %q", pin)
	}
	_, err := svc.RegisterProfile(ctx, types.RegisterProfileRequest{UserID: userA, ProfileName: "   ", PIN: "1234"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.RegisterProfile(ctx, types.RegisterProfileRequest{UserID: userB, ProfileName: "bob", PIN: "1234"})
	assert.ErrorIs(t, err, repos.ErrNotFound)
}

func TestVerifyRecoverySummarizesAccount(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, userA)
	_, err := svc.RegisterProfile(ctx, types.RegisterProfileRequest{UserID: userA, ProfileName: "ana", PIN: "1234"})
	require.NoError(t, err)

	start := time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		s, err := svc.UpsertSession(ctx, types.SessionRow{UserID: userA, LocalID: string(rune('1' + i)), StartedAt: start.Add(time.Duration(i) * 24 * time.Hour)})
		require.NoError(t, err)
		require.NoError(t, svc.InsertSetLogs(ctx, []types.SetLogRow{
			{UserID: userA, LocalID: "x", SessionID: s.ID, LoggedAt: start},
			{UserID: userA, LocalID: "y", SessionID: s.ID, LoggedAt: start},
		}))
	}

	out, err := svc.VerifyRecovery(ctx, types.VerifyRecoveryRequest{ProfileName: " ana ", PIN: "1234"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, userA, out[0].User.ID)
	assert.Equal(t, "ana", out[0].User.ProfileName)
	assert.Equal(t, 2, out[0].SessionCount)
	assert.Equal(t, 4, out[0].TotalSets)
	require.NotNil(t, out[0].LastSessionAt)
	assert.True(t, out[0].LastSessionAt.Equal(start.Add(24*time.Hour)))

	for _, in := range []types.VerifyRecoveryRequest{
		{ProfileName: "ana", PIN: "0000"},
		{ProfileName: "nobody", PIN: "1234"},
		{ProfileName: "", PIN: ""},
	} {
		out, err := svc.VerifyRecovery(ctx, in)
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func TestChangeRecoveryPIN(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, userA)
	_, err := svc.RegisterProfile(ctx, types.RegisterProfileRequest{UserID: userA, ProfileName: "ana", PIN: "1234"})
	require.NoError(t, err)

	ok, err := svc.ChangeRecoveryPIN(ctx, types.ChangeRecoveryPINRequest{UserID: userA, CurrentPIN: "9999", NewPIN: "5555"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.ChangeRecoveryPIN(ctx, types.ChangeRecoveryPINRequest{UserID: userA, CurrentPIN: "1234", NewPIN: "5555"})
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := svc.VerifyRecovery(ctx, types.VerifyRecoveryRequest{ProfileName: "ana", PIN: "5555"})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	ok, err = svc.ChangeRecoveryPIN(ctx, types.ChangeRecoveryPINRequest{UserID: userB, CurrentPIN: "1234", NewPIN: "5555"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionUpsertConverges(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	row := types.SessionRow{UserID: userA, LocalID: "7", TemplateID: "push", StartedAt: time.Now()}

	first, err := svc.UpsertSession(ctx, row)
	require.NoError(t, err)
	row.Notes = "felt strong"
	second, err := svc.UpsertSession(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "felt strong", second.Notes)

	all, err := svc.ListSessions(ctx, userA, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = svc.UpsertSession(ctx, types.SessionRow{UserID: userA})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSessionUpsertByIDRekeys(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	first, err := svc.UpsertSession(ctx, types.SessionRow{UserID: userA, LocalID: "web-1", StartedAt: time.Now()})
	require.NoError(t, err)

	moved, err := svc.UpsertSession(ctx, types.SessionRow{ID: first.ID, UserID: userA, LocalID: "5", Notes: "restored", StartedAt: first.StartedAt})
	require.NoError(t, err)
	assert.Equal(t, first.ID, moved.ID)
	assert.Equal(t, "5", moved.LocalID)

	old, err := svc.ListSessions(ctx, userA, "web-1")
	require.NoError(t, err)
	assert.Empty(t, old)

	// an id that is gone falls back to the (user_id, local_id) upsert
	again, err := svc.UpsertSession(ctx, types.SessionRow{ID: first.ID + 100, UserID: userA, LocalID: "5", Notes: "again", StartedAt: first.StartedAt})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "again", again.Notes)
}

func TestDeleteSessionDropsItsSetLogs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	s, err := svc.UpsertSession(ctx, types.SessionRow{UserID: userA, LocalID: "3", StartedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, svc.InsertSetLogs(ctx, []types.SetLogRow{{UserID: userA, LocalID: "30", SessionID: s.ID, LoggedAt: time.Now()}}))

	n, err := svc.DeleteRows(ctx, types.TableSessions, userA, "3")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	logs, err := svc.ListSetLogs(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = svc.DeleteRows(ctx, "users", userA, "3")
	assert.ErrorIs(t, err, repos.ErrNotFound)
}

package cloudsync

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"fitlog-go/internal/state"
	"fitlog-go/internal/store"
	"fitlog-go/pkg/types"
)

type RestoreResult struct {
	UserID         string `json:"user_id"`
	Sessions       int    `json:"sessions"`
	SetLogs        int    `json:"set_logs"`
	WeightHistory  int    `json:"weight_history"`
	EstimatedMaxes int    `json:"estimated_maxes"`
}

// Recovery pulls an existing remote account onto a device with no local
// account, and fronts the profile RPCs that make an account recoverable.
type Recovery struct {
	c *Coordinator
}

func (r *Recovery) ready() error {
	if !r.c.gate.IsConfigured() {
		return ErrNotConfigured
	}
	if !r.c.gate.IsOnline() {
		return ErrOffline
	}
	return nil
}

// Verify looks up an account by profile name and PIN. A wrong name and a
// wrong PIN both yield ErrRecoveryNotFound.
func (r *Recovery) Verify(ctx context.Context, profileName, pin string) (*types.RecoverySnapshot, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	profileName = strings.TrimSpace(profileName)
	if profileName == "" || pin == "" {
		return nil, ErrRecoveryNotFound
	}
	snap, err := r.c.remote.VerifyRecovery(ctx, profileName, pin)
	if err != nil {
		return nil, err
	}
	if snap == nil || snap.User.ID == "" {
		return nil, ErrRecoveryNotFound
	}
	return snap, nil
}

// Restore rebuilds the local dataset from a verified snapshot. The remote
// UUID becomes the local account id; sessions get fresh local ids, their set
// logs are re-parented onto them and the remote session rows are re-keyed
// to match. Nothing is rolled back on failure.
func (r *Recovery) Restore(ctx context.Context, snap *types.RecoverySnapshot) (*RestoreResult, error) {
	if snap == nil || snap.User.ID == "" {
		return nil, ErrRecoveryNotFound
	}
	if err := r.ready(); err != nil {
		return nil, err
	}
	c := r.c
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	has, err := c.store.HasAccount(ctx)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, ErrAccountExists
	}

	userID := snap.User.ID
	res := &RestoreResult{UserID: userID}
	if err := c.store.CreateUser(ctx, &store.User{
		ID:          userID,
		Name:        snap.User.Name,
		ProfileName: snap.User.ProfileName,
		CreatedAt:   snap.User.CreatedAt,
	}); err != nil {
		return res, r.abort(types.TableUsers, err)
	}

	weights, err := c.remote.ListWeightHistory(ctx, userID)
	if err != nil {
		return res, r.abort(types.TableWeightHistory, err)
	}
	for _, w := range weights {
		if err := c.store.CreateWeight(ctx, &store.WeightEntry{UserID: userID, Weight: w.Weight, Unit: w.Unit, RecordedAt: w.RecordedAt}); err != nil {
			return res, r.abort(types.TableWeightHistory, err)
		}
		res.WeightHistory++
	}

	sessions, err := c.remote.ListSessions(ctx, userID)
	if err != nil {
		return res, r.abort(types.TableSessions, err)
	}
	var moved []types.SessionRow
	for _, row := range sessions {
		remoteID := row.ID
		sess := &store.Session{
			UserID:      userID,
			TemplateID:  row.TemplateID,
			Date:        row.Date,
			StartedAt:   row.StartedAt,
			CompletedAt: row.CompletedAt,
			Notes:       row.Notes,
			RemoteID:    &remoteID,
		}
		if err := c.store.CreateSession(ctx, sess); err != nil {
			return res, r.abort(types.TableSessions, err)
		}
		c.ids.Put(LocalID(sess.ID), RemoteID(remoteID))
		res.Sessions++
		if key := localKey(sess.ID); key != row.LocalID {
			row.LocalID = key
			moved = append(moved, row)
		}

		logs, err := c.remote.ListSetLogs(ctx, remoteID)
		if err != nil {
			return res, r.abort(types.TableSetLogs, err)
		}
		local := make([]store.SetLog, 0, len(logs))
		for _, l := range logs {
			local = append(local, store.SetLog{
				SessionID:  sess.ID,
				ExerciseID: l.ExerciseID,
				SetNumber:  l.SetNumber,
				Weight:     l.Weight,
				Reps:       l.Reps,
				RPE:        l.RPE,
				IsWarmup:   l.IsWarmup,
				LoggedAt:   l.LoggedAt,
			})
		}
		if err := c.store.CreateSetLogs(ctx, local); err != nil {
			return res, r.abort(types.TableSetLogs, err)
		}
		res.SetLogs += len(local)
	}
	if err := r.rekey(ctx, moved); err != nil {
		return res, r.abort(types.TableSessions, err)
	}

	maxes, err := c.remote.ListEstimatedMaxes(ctx, userID)
	if err != nil {
		return res, r.abort(types.TableEstimatedMaxes, err)
	}
	for _, m := range maxes {
		if err := c.store.CreateEstimatedMax(ctx, &store.EstimatedMax{
			UserID:       userID,
			ExerciseID:   m.ExerciseID,
			Weight:       m.Weight,
			Reps:         m.Reps,
			Value:        m.Value,
			CalculatedAt: m.CalculatedAt,
		}); err != nil {
			return res, r.abort(types.TableEstimatedMaxes, err)
		}
		res.EstimatedMaxes++
	}

	if err := c.store.SetMigrated(ctx, true); err != nil {
		return res, r.abort("mark_migrated", err)
	}
	c.board.Update(func(s *state.SyncState) {
		s.IsMigrated = true
		s.LastError = ""
	})
	c.logger.Infof("restored account %s: %d sessions, %d sets", userID, res.Sessions, res.SetLogs)
	return res, nil
}

// rekey points each restored remote session at the local id this device
// gave it, since later upserts and deletes key on (user_id, local_id). Rows
// pass through a key no device uses first, so swapping two ids cannot trip
// the remote uniqueness on (user_id, local_id).
func (r *Recovery) rekey(ctx context.Context, rows []types.SessionRow) error {
	for _, row := range rows {
		parked := row
		parked.LocalID = "restore-" + strconv.FormatInt(row.ID, 10)
		if _, err := r.c.remote.UpsertSession(ctx, parked); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if _, err := r.c.remote.UpsertSession(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recovery) abort(step string, err error) error {
	rerr := &RestoreError{Step: step, Err: err}
	r.c.logger.Errorf("%v", rerr)
	r.c.board.Update(func(s *state.SyncState) { s.LastError = rerr.Error() })
	return rerr
}

func (r *Recovery) CheckProfileName(ctx context.Context, name string) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	return r.c.remote.CheckProfileNameAvailable(ctx, strings.TrimSpace(name))
}

// RegisterProfile makes the local account recoverable under name and pin.
func (r *Recovery) RegisterProfile(ctx context.Context, name, pin string) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	user, err := r.c.store.CurrentUser(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrNoAccount
	}
	if err != nil {
		return false, err
	}
	name = strings.TrimSpace(name)
	ok, err := r.c.remote.RegisterProfile(ctx, user.ID, name, pin)
	if err != nil || !ok {
		return ok, err
	}
	user.ProfileName = name
	return true, r.c.store.SaveUser(ctx, user)
}

func (r *Recovery) ChangePIN(ctx context.Context, currentPIN, newPIN string) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	user, err := r.c.store.CurrentUser(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrNoAccount
	}
	if err != nil {
		return false, err
	}
	return r.c.remote.ChangeRecoveryPIN(ctx, user.ID, currentPIN, newPIN)
}

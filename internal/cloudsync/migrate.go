package cloudsync

import (
	"context"
	"errors"

	"fitlog-go/internal/state"
	"fitlog-go/internal/store"
	"fitlog-go/pkg/types"
)

type MigrationResult struct {
	Success         bool           `json:"success"`
	AlreadyMigrated bool           `json:"already_migrated,omitempty"`
	Counts          map[string]int `json:"counts,omitempty"`
	Settled         int64          `json:"settled_outbox_items,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Migrator uploads a local-only dataset to a freshly configured remote once.
type Migrator struct {
	c *Coordinator
}

// Migrate runs the bootstrap upload. A remote user row with the local
// account's id short-circuits the whole operation. Any failed step aborts
// with a *MigrationError and leaves already uploaded rows in place.
func (m *Migrator) Migrate(ctx context.Context) (*MigrationResult, error) {
	c := m.c
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	if !c.gate.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if !c.gate.IsOnline() {
		return nil, ErrOffline
	}
	user, err := c.store.CurrentUser(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoAccount
	}
	if err != nil {
		return nil, err
	}
	migrated, err := c.store.IsMigrated(ctx)
	if err != nil {
		return nil, err
	}
	if migrated {
		return &MigrationResult{Success: true, AlreadyMigrated: true}, nil
	}

	existing, err := c.remote.GetUser(ctx, user.ID)
	if err != nil {
		return m.abort("check_user", err)
	}
	if existing != nil {
		if err := m.finish(ctx); err != nil {
			return nil, err
		}
		c.logger.Infof("remote already has user %s, migration skipped", user.ID)
		return &MigrationResult{Success: true, AlreadyMigrated: true}, nil
	}

	data, err := c.store.ReadDataset(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	uploaded := map[store.Table][]string{}

	counts := map[string]int{}
	if err := c.remote.UpsertUser(ctx, userRow(*user)); err != nil {
		return m.abort(types.TableUsers, err)
	}
	counts[types.TableUsers] = 1

	if len(data.Weights) > 0 {
		rows := make([]types.WeightRow, 0, len(data.Weights))
		for _, w := range data.Weights {
			rows = append(rows, weightRow(w, user.ID, localKey(w.ID)))
		}
		if err := c.remote.InsertWeightHistory(ctx, rows); err != nil {
			return m.abort(types.TableWeightHistory, err)
		}
		for _, row := range rows {
			uploaded[store.TableWeightHistory] = append(uploaded[store.TableWeightHistory], row.LocalID)
		}
	}
	counts[types.TableWeightHistory] = len(data.Weights)

	for _, s := range data.Sessions {
		out, err := c.remote.UpsertSession(ctx, sessionRow(s, user.ID, localKey(s.ID)))
		if err != nil {
			return m.abort(types.TableSessions, err)
		}
		if err := c.learnSession(ctx, localKey(s.ID), out); err != nil {
			return m.abort(types.TableSessions, err)
		}
		counts[types.TableSessions]++
		uploaded[store.TableSessions] = append(uploaded[store.TableSessions], localKey(s.ID))

		logs := data.SetLogs[s.ID]
		if len(logs) == 0 {
			continue
		}
		rows := make([]types.SetLogRow, 0, len(logs))
		for _, l := range logs {
			rows = append(rows, setLogRow(l, user.ID, localKey(l.ID), out.ID))
			uploaded[store.TableSetLogs] = append(uploaded[store.TableSetLogs], localKey(l.ID))
		}
		if err := c.remote.InsertSetLogs(ctx, rows); err != nil {
			return m.abort(types.TableSetLogs, err)
		}
		counts[types.TableSetLogs] += len(rows)
	}

	if len(data.Maxes) > 0 {
		rows := make([]types.EstimatedMaxRow, 0, len(data.Maxes))
		for _, em := range data.Maxes {
			rows = append(rows, estimatedMaxRow(em, user.ID, localKey(em.ID)))
		}
		if err := c.remote.InsertEstimatedMaxes(ctx, rows); err != nil {
			return m.abort(types.TableEstimatedMaxes, err)
		}
		for _, row := range rows {
			uploaded[store.TableEstimatedMaxes] = append(uploaded[store.TableEstimatedMaxes], row.LocalID)
		}
	}
	counts[types.TableEstimatedMaxes] = len(data.Maxes)

	if len(data.Feedback) > 0 {
		rows := make([]types.FeedbackRow, 0, len(data.Feedback))
		for _, f := range data.Feedback {
			var parent *int64
			if f.SessionID != nil {
				if r, ok := c.ids.Remote(LocalID(*f.SessionID)); ok {
					v := int64(r)
					parent = &v
				}
			}
			rows = append(rows, feedbackRow(f, user.ID, localKey(f.ID), parent))
		}
		if err := c.remote.InsertFeedback(ctx, rows); err != nil {
			return m.abort(types.TableFeedback, err)
		}
		for _, row := range rows {
			uploaded[store.TableFeedback] = append(uploaded[store.TableFeedback], row.LocalID)
		}
	}
	counts[types.TableFeedback] = len(data.Feedback)

	// outbox items up to the read describe data that was just uploaded
	now := c.now()
	settled, err := c.store.MarkOutboxSyncedThrough(ctx, data.OutboxMax, now)
	if err != nil {
		return nil, err
	}
	// a row written just before the read can have its insert item queued
	// just after it
	for table, keys := range uploaded {
		n, err := c.store.MarkInsertsSyncedAfter(ctx, data.OutboxMax, table, keys, now)
		if err != nil {
			return nil, err
		}
		settled += n
	}
	if err := m.finish(ctx); err != nil {
		return nil, err
	}
	c.logger.Infof("migration complete: %v", counts)
	return &MigrationResult{Success: true, Counts: counts, Settled: settled}, nil
}

func (m *Migrator) finish(ctx context.Context) error {
	c := m.c
	if err := c.store.SetMigrated(ctx, true); err != nil {
		return err
	}
	pending, err := c.store.CountPending(ctx, c.opts.MaxRetries)
	if err != nil {
		return err
	}
	c.board.Update(func(s *state.SyncState) {
		s.IsMigrated = true
		s.PendingCount = pending
	})
	return nil
}

func (m *Migrator) abort(step string, err error) (*MigrationResult, error) {
	merr := &MigrationError{Step: step, Err: err}
	m.c.logger.Errorf("%v", merr)
	m.c.board.Update(func(s *state.SyncState) { s.LastError = merr.Error() })
	return &MigrationResult{Success: false, Error: merr.Error()}, merr
}

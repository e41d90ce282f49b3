package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"fitlog-go/internal/store"
	"fitlog-go/pkg/types"
)

// deliver replays one outbox item with its table's rule:
//
//	users            upsert by UUID
//	sessions         upsert on (user_id, local_id), remote id learned
//	set_logs         parent resolved to its remote id, then plain insert
//	weight_history   plain insert
//	estimated_maxes  plain insert
//	ai_feedback      plain insert
//
// Plain inserts are not replay-safe: a retry after a lost response
// duplicates the remote row.
func (c *Coordinator) deliver(ctx context.Context, user *store.User, item store.OutboxItem) error {
	if item.Action == store.ActionDelete {
		if item.Table == store.TableUsers {
			return c.remote.DeleteUser(ctx, item.LocalID)
		}
		if err := c.remote.DeleteRows(ctx, string(item.Table), user.ID, item.LocalID); err != nil {
			return err
		}
		if item.Table == store.TableSessions {
			if local, err := ParseLocalID(item.LocalID); err == nil {
				c.ids.Forget(local)
			}
		}
		return nil
	}

	switch item.Table {
	case store.TableUsers:
		var u store.User
		if err := decodePayload(item, &u); err != nil {
			return err
		}
		return c.remote.UpsertUser(ctx, userRow(u))

	case store.TableSessions:
		var s store.Session
		if err := decodePayload(item, &s); err != nil {
			return err
		}
		if s.RemoteID == nil {
			if local, err := ParseLocalID(item.LocalID); err == nil {
				if r, ok := c.ids.Remote(local); ok {
					v := int64(r)
					s.RemoteID = &v
				}
			}
		}
		out, err := c.remote.UpsertSession(ctx, sessionRow(s, owner(s.UserID, user), item.LocalID))
		if err != nil {
			return err
		}
		return c.learnSession(ctx, item.LocalID, out)

	case store.TableSetLogs:
		var l store.SetLog
		if err := decodePayload(item, &l); err != nil {
			return err
		}
		parent, err := c.parents.RemoteSessionID(ctx, user.ID, LocalID(l.SessionID))
		if err != nil {
			return err
		}
		return c.remote.InsertSetLogs(ctx, []types.SetLogRow{setLogRow(l, user.ID, item.LocalID, int64(parent))})

	case store.TableWeightHistory:
		var w store.WeightEntry
		if err := decodePayload(item, &w); err != nil {
			return err
		}
		return c.remote.InsertWeightHistory(ctx, []types.WeightRow{weightRow(w, owner(w.UserID, user), item.LocalID)})

	case store.TableEstimatedMaxes:
		var m store.EstimatedMax
		if err := decodePayload(item, &m); err != nil {
			return err
		}
		return c.remote.InsertEstimatedMaxes(ctx, []types.EstimatedMaxRow{estimatedMaxRow(m, owner(m.UserID, user), item.LocalID)})

	case store.TableFeedback:
		var f store.Feedback
		if err := decodePayload(item, &f); err != nil {
			return err
		}
		var parent *int64
		if f.SessionID != nil {
			r, err := c.parents.RemoteSessionID(ctx, user.ID, LocalID(*f.SessionID))
			if err != nil {
				return err
			}
			v := int64(r)
			parent = &v
		}
		return c.remote.InsertFeedback(ctx, []types.FeedbackRow{feedbackRow(f, owner(f.UserID, user), item.LocalID, parent)})
	}
	return fmt.Errorf("unknown table %q", item.Table)
}

func (c *Coordinator) learnSession(ctx context.Context, localID string, row *types.SessionRow) error {
	if row == nil || row.ID == 0 {
		return errors.New("session upsert returned no id")
	}
	local, err := ParseLocalID(localID)
	if err != nil {
		return err
	}
	c.ids.Put(local, RemoteID(row.ID))
	if err := c.store.SetSessionRemoteID(ctx, int64(local), row.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func decodePayload(item store.OutboxItem, v any) error {
	if err := json.Unmarshal(item.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", item.Table, err)
	}
	return nil
}

func owner(recordUserID string, user *store.User) string {
	if recordUserID != "" {
		return recordUserID
	}
	return user.ID
}

func localKey(id int64) string { return strconv.FormatInt(id, 10) }

func userRow(u store.User) types.UserRow {
	return types.UserRow{ID: u.ID, Name: u.Name, ProfileName: u.ProfileName, CreatedAt: u.CreatedAt}
}

func sessionRow(s store.Session, userID, localID string) types.SessionRow {
	var remoteID int64
	if s.RemoteID != nil {
		remoteID = *s.RemoteID
	}
	return types.SessionRow{
		ID:          remoteID,
		UserID:      userID,
		LocalID:     localID,
		TemplateID:  s.TemplateID,
		Date:        s.Date,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		Notes:       s.Notes,
	}
}

func setLogRow(l store.SetLog, userID, localID string, remoteSession int64) types.SetLogRow {
	return types.SetLogRow{
		UserID:     userID,
		LocalID:    localID,
		SessionID:  remoteSession,
		ExerciseID: l.ExerciseID,
		SetNumber:  l.SetNumber,
		Weight:     l.Weight,
		Reps:       l.Reps,
		RPE:        l.RPE,
		IsWarmup:   l.IsWarmup,
		LoggedAt:   l.LoggedAt,
	}
}

func weightRow(w store.WeightEntry, userID, localID string) types.WeightRow {
	return types.WeightRow{UserID: userID, LocalID: localID, Weight: w.Weight, Unit: w.Unit, RecordedAt: w.RecordedAt}
}

func estimatedMaxRow(m store.EstimatedMax, userID, localID string) types.EstimatedMaxRow {
	return types.EstimatedMaxRow{
		UserID:       userID,
		LocalID:      localID,
		ExerciseID:   m.ExerciseID,
		Weight:       m.Weight,
		Reps:         m.Reps,
		Value:        m.Value,
		CalculatedAt: m.CalculatedAt,
	}
}

func feedbackRow(f store.Feedback, userID, localID string, remoteSession *int64) types.FeedbackRow {
	return types.FeedbackRow{
		UserID:    userID,
		LocalID:   localID,
		SessionID: remoteSession,
		Kind:      f.Kind,
		Content:   f.Content,
		CreatedAt: f.CreatedAt,
	}
}

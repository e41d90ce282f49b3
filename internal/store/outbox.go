package store

import (
	"context"
	"strconv"
	"time"

	"gorm.io/gorm"
)

func (s *Store) AppendOutbox(ctx context.Context, item *OutboxItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	return s.conn(ctx).Create(item).Error
}

// PendingOutbox returns every undelivered item below the retry bound, across
// all tables, in insertion order. created_at is wall-clock and can step
// backwards, so only the autoincrement id decides.
func (s *Store) PendingOutbox(ctx context.Context, maxRetries int) ([]OutboxItem, error) {
	var out []OutboxItem
	err := s.conn(ctx).
		Where("synced_at IS NULL AND retry_count < ?", maxRetries).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) CountPending(ctx context.Context, maxRetries int) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&OutboxItem{}).
		Where("synced_at IS NULL AND retry_count < ?", maxRetries).
		Count(&n).Error
	return n, err
}

func (s *Store) GetOutboxItem(ctx context.Context, id int64) (*OutboxItem, error) {
	var item OutboxItem
	if err := s.conn(ctx).First(&item, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (s *Store) MarkOutboxSynced(ctx context.Context, id int64, at time.Time) error {
	return s.conn(ctx).Model(&OutboxItem{}).Where("id = ?", id).Updates(map[string]any{
		"synced_at":       at,
		"last_error":      "",
		"next_attempt_at": nil,
	}).Error
}

// MarkOutboxFailed bumps the retry counter and records the failure.
func (s *Store) MarkOutboxFailed(ctx context.Context, id int64, msg string, nextAttempt *time.Time) error {
	return s.conn(ctx).Model(&OutboxItem{}).Where("id = ?", id).Updates(map[string]any{
		"retry_count":     gorm.Expr("retry_count + 1"),
		"last_error":      msg,
		"next_attempt_at": nextAttempt,
	}).Error
}

// CompactOutbox deletes terminal items beyond the keep most recent by
// synced_at and returns how many were removed.
func (s *Store) CompactOutbox(ctx context.Context, keep int) (int64, error) {
	res := s.conn(ctx).Exec(`
		DELETE FROM sync_queue
		WHERE synced_at IS NOT NULL
		AND id NOT IN (
			SELECT id FROM sync_queue
			WHERE synced_at IS NOT NULL
			ORDER BY synced_at DESC, id DESC
			LIMIT ?
		)`, keep)
	return res.RowsAffected, res.Error
}

func (s *Store) CountTerminal(ctx context.Context) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&OutboxItem{}).Where("synced_at IS NOT NULL").Count(&n).Error
	return n, err
}

// DeadLetters lists items that exhausted their retries without delivery.
func (s *Store) DeadLetters(ctx context.Context, maxRetries int) ([]OutboxItem, error) {
	var out []OutboxItem
	err := s.conn(ctx).
		Where("synced_at IS NULL AND retry_count >= ?", maxRetries).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) CountDeadLetters(ctx context.Context, maxRetries int) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&OutboxItem{}).
		Where("synced_at IS NULL AND retry_count >= ?", maxRetries).
		Count(&n).Error
	return n, err
}

// RequeueOutbox resets dead letters so the next drain picks them up again.
// With no ids every dead letter is requeued.
func (s *Store) RequeueOutbox(ctx context.Context, maxRetries int, ids ...int64) (int64, error) {
	q := s.conn(ctx).Model(&OutboxItem{}).Where("synced_at IS NULL AND retry_count >= ?", maxRetries)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Updates(map[string]any{
		"retry_count":     0,
		"last_error":      "",
		"next_attempt_at": nil,
	})
	return res.RowsAffected, res.Error
}

// MarkOutboxSyncedThrough settles every undelivered item with id <= maxID.
func (s *Store) MarkOutboxSyncedThrough(ctx context.Context, maxID int64, at time.Time) (int64, error) {
	res := s.conn(ctx).Model(&OutboxItem{}).
		Where("synced_at IS NULL AND id <= ?", maxID).
		Updates(map[string]any{"synced_at": at, "last_error": ""})
	return res.RowsAffected, res.Error
}

// MarkInsertsSyncedAfter settles pending insert items newer than afterID
// whose rows were already uploaded under the given local ids. Later updates
// and deletes of those rows stay queued.
func (s *Store) MarkInsertsSyncedAfter(ctx context.Context, afterID int64, table Table, localIDs []string, at time.Time) (int64, error) {
	var total int64
	for len(localIDs) > 0 {
		chunk := localIDs[:min(len(localIDs), 500)]
		localIDs = localIDs[len(chunk):]
		res := s.conn(ctx).Model(&OutboxItem{}).
			Where("synced_at IS NULL AND id > ? AND action = ? AND table_name = ? AND local_id IN ?", afterID, ActionInsert, table, chunk).
			Updates(map[string]any{"synced_at": at, "last_error": ""})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

const (
	metaMigrated   = "migrated"
	metaLastSyncAt = "last_sync_at"
)

func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var m Meta
	if err := s.conn(ctx).First(&m, "key = ?", key).Error; err != nil {
		return "", notFound(err)
	}
	return m.Value, nil
}

func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return s.conn(ctx).Save(&Meta{Key: key, Value: value}).Error
}

func (s *Store) IsMigrated(ctx context.Context) (bool, error) {
	v, err := s.GetMeta(ctx, metaMigrated)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ok, _ := strconv.ParseBool(v)
	return ok, nil
}

func (s *Store) SetMigrated(ctx context.Context, migrated bool) error {
	return s.SetMeta(ctx, metaMigrated, strconv.FormatBool(migrated))
}

// LastSyncAt returns nil when no drain has completed yet.
func (s *Store) LastSyncAt(ctx context.Context) (*time.Time, error) {
	v, err := s.GetMeta(ctx, metaLastSyncAt)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) SetLastSyncAt(ctx context.Context, at time.Time) error {
	return s.SetMeta(ctx, metaLastSyncAt, at.UTC().Format(time.RFC3339Nano))
}

package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fitlog-go/internal/logging"
	"fitlog-go/internal/store"
)

type ConfigChecker interface {
	IsConfigured() bool
}

// Notifier is told about every appended item. Notify must not block.
type Notifier interface {
	Notify()
}

type Queue struct {
	store    *store.Store
	gate     ConfigChecker
	notifier Notifier
	logger   *logging.Logger
	now      func() time.Time
}

func New(st *store.Store, gate ConfigChecker, logger *logging.Logger) *Queue {
	return &Queue{store: st, gate: gate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (q *Queue) SetNotifier(n Notifier) { q.notifier = n }

// SetClock replaces the time source used for created_at.
func (q *Queue) SetClock(now func() time.Time) { q.now = now }

// Enqueue snapshots payload and appends one outbox item. It returns (nil, nil)
// when no remote is configured.
func (q *Queue) Enqueue(ctx context.Context, table store.Table, action store.Action, localID string, payload any) (*store.OutboxItem, error) {
	if !q.gate.IsConfigured() {
		return nil, nil
	}
	if !table.Valid() {
		return nil, fmt.Errorf("outbox: unknown table %q", table)
	}
	if !action.Valid() {
		return nil, fmt.Errorf("outbox: unknown action %q", action)
	}
	localID = strings.TrimSpace(localID)
	if localID == "" {
		return nil, fmt.Errorf("outbox: empty local id for %s", table)
	}
	var raw []byte
	if payload == nil {
		if action != store.ActionDelete {
			return nil, fmt.Errorf("outbox: %s %s needs a payload", action, table)
		}
		raw = []byte("null")
	} else {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("outbox: snapshot %s/%s: %w", table, localID, err)
		}
		raw = b
	}

	item := &store.OutboxItem{
		Table:     table,
		Action:    action,
		LocalID:   localID,
		Payload:   raw,
		CreatedAt: q.now(),
	}
	if err := q.store.AppendOutbox(ctx, item); err != nil {
		return nil, err
	}
	q.logger.Debugf("outbox: queued %s %s/%s as #%d", action, table, localID, item.ID)
	if q.notifier != nil {
		q.notifier.Notify()
	}
	return item, nil
}

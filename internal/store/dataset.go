package store

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

// Dataset is one account's rows as read by a single transaction, together
// with the outbox high-water mark at that instant.
type Dataset struct {
	Sessions  []Session
	SetLogs   map[int64][]SetLog
	Weights   []WeightEntry
	Maxes     []EstimatedMax
	Feedback  []Feedback
	OutboxMax int64
}

func (s *Store) ReadDataset(ctx context.Context, userID string) (*Dataset, error) {
	d := &Dataset{SetLogs: map[int64][]SetLog{}}
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var top sql.NullInt64
		if err := tx.Model(&OutboxItem{}).Select("MAX(id)").Row().Scan(&top); err != nil {
			return err
		}
		d.OutboxMax = top.Int64

		if err := tx.Where("user_id = ?", userID).Order("id ASC").Find(&d.Sessions).Error; err != nil {
			return err
		}
		if len(d.Sessions) > 0 {
			ids := make([]int64, 0, len(d.Sessions))
			for _, sess := range d.Sessions {
				ids = append(ids, sess.ID)
			}
			var logs []SetLog
			if err := tx.Where("session_id IN ?", ids).Order("id ASC").Find(&logs).Error; err != nil {
				return err
			}
			for _, l := range logs {
				d.SetLogs[l.SessionID] = append(d.SetLogs[l.SessionID], l)
			}
		}
		if err := tx.Where("user_id = ?", userID).Order("id ASC").Find(&d.Weights).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Order("id ASC").Find(&d.Maxes).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Order("id ASC").Find(&d.Feedback).Error
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

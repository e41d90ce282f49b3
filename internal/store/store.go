// Package store is the local dataset: the account, workout records and the
// sync outbox, kept in a single SQLite file through GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("store: not found")

type Store struct {
	db   *gorm.DB
	path string
}

type Config struct {
	Path  string
	Debug bool
}

func Open(cfg Config) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	// single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	s := &Store{db: db, path: cfg.Path}
	if err := s.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&User{},
		&Session{},
		&SetLog{},
		&WeightEntry{},
		&EstimatedMax{},
		&Feedback{},
		&OutboxItem{},
		&Meta{},
	)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Path() string { return s.path }

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CurrentUser returns the local account, or ErrNotFound when none exists.
func (s *Store) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := s.conn(ctx).Order("created_at ASC").First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) HasAccount(ctx context.Context) (bool, error) {
	var n int64
	if err := s.conn(ctx).Model(&User{}).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return s.conn(ctx).Create(u).Error
}

func (s *Store) SaveUser(ctx context.Context, u *User) error {
	return s.conn(ctx).Save(u).Error
}

func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	return s.conn(ctx).Create(sess).Error
}

func (s *Store) SaveSession(ctx context.Context, sess *Session) error {
	return s.conn(ctx).Save(sess).Error
}

func (s *Store) GetSession(ctx context.Context, id int64) (*Session, error) {
	var sess Session
	if err := s.conn(ctx).First(&sess, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sess, nil
}

// DeleteSession removes the session and its set logs.
func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&SetLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Session{}, id).Error
	})
}

// ListSessions returns the user's sessions in creation order.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	var out []Session
	err := s.conn(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&out).Error
	return out, err
}

func (s *Store) SetSessionRemoteID(ctx context.Context, id, remoteID int64) error {
	res := s.conn(ctx).Model(&Session{}).Where("id = ?", id).Update("remote_id", remoteID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateSetLog(ctx context.Context, l *SetLog) error {
	return s.conn(ctx).Create(l).Error
}

func (s *Store) CreateSetLogs(ctx context.Context, logs []SetLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.conn(ctx).CreateInBatches(logs, 100).Error
}

func (s *Store) ListSetLogs(ctx context.Context, sessionID int64) ([]SetLog, error) {
	var out []SetLog
	err := s.conn(ctx).Where("session_id = ?", sessionID).Order("id ASC").Find(&out).Error
	return out, err
}

func (s *Store) CountSetLogs(ctx context.Context) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&SetLog{}).Count(&n).Error
	return n, err
}

func (s *Store) CreateWeight(ctx context.Context, w *WeightEntry) error {
	return s.conn(ctx).Create(w).Error
}

func (s *Store) ListWeights(ctx context.Context, userID string) ([]WeightEntry, error) {
	var out []WeightEntry
	err := s.conn(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&out).Error
	return out, err
}

func (s *Store) CreateEstimatedMax(ctx context.Context, m *EstimatedMax) error {
	return s.conn(ctx).Create(m).Error
}

func (s *Store) ListEstimatedMaxes(ctx context.Context, userID string) ([]EstimatedMax, error) {
	var out []EstimatedMax
	err := s.conn(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&out).Error
	return out, err
}

func (s *Store) CreateFeedback(ctx context.Context, f *Feedback) error {
	return s.conn(ctx).Create(f).Error
}

func (s *Store) ListFeedback(ctx context.Context, userID string) ([]Feedback, error) {
	var out []Feedback
	err := s.conn(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&out).Error
	return out, err
}

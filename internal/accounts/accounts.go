// Package accounts manages the single local account a device holds.
package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitlog-go/internal/store"
)

var (
	ErrExists      = errors.New("a local account already exists")
	ErrNoAccount   = errors.New("no local account")
	ErrInvalidName = errors.New("account name is required")
)

// Enqueuer buffers a change for the remote store.
type Enqueuer interface {
	Enqueue(ctx context.Context, table store.Table, action store.Action, localID string, payload any) (*store.OutboxItem, error)
}

type Service struct {
	store *store.Store
	queue Enqueuer
	now   func() time.Time
}

func NewService(st *store.Store, q Enqueuer) *Service {
	return &Service{store: st, queue: q, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Create makes the device's account. The generated UUID is also the remote
// primary key, which is what lets a later recovery find it.
func (s *Service) Create(ctx context.Context, name string) (*store.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	has, err := s.store.HasAccount(ctx)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, ErrExists
	}
	u := &store.User{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	if _, err := s.queue.Enqueue(ctx, store.TableUsers, store.ActionInsert, u.ID, u); err != nil {
		return u, err
	}
	return u, nil
}

func (s *Service) Current(ctx context.Context) (*store.User, error) {
	u, err := s.store.CurrentUser(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoAccount
	}
	return u, err
}

func (s *Service) Rename(ctx context.Context, name string) (*store.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	u, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	u.Name = name
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	_, err = s.queue.Enqueue(ctx, store.TableUsers, store.ActionUpdate, u.ID, u)
	return u, err
}

package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"fitlog-go/internal/store"
)

// LocalID and RemoteID keep the two session id spaces from being mixed up.
type LocalID int64

func (l LocalID) String() string { return strconv.FormatInt(int64(l), 10) }

type RemoteID int64

func ParseLocalID(s string) (LocalID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad local id %q: %w", s, err)
	}
	return LocalID(v), nil
}

// IDMap is a two-way session id correlation learned during sync and restore.
type IDMap struct {
	mu       sync.RWMutex
	toRemote map[LocalID]RemoteID
	toLocal  map[RemoteID]LocalID
}

func NewIDMap() *IDMap {
	return &IDMap{toRemote: make(map[LocalID]RemoteID), toLocal: make(map[RemoteID]LocalID)}
}

func (m *IDMap) Put(local LocalID, remote RemoteID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.toRemote[local]; ok {
		delete(m.toLocal, old)
	}
	m.toRemote[local] = remote
	m.toLocal[remote] = local
}

func (m *IDMap) Remote(local LocalID) (RemoteID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.toRemote[local]
	return r, ok
}

func (m *IDMap) Local(remote RemoteID) (LocalID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.toLocal[remote]
	return l, ok
}

func (m *IDMap) Forget(local LocalID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.toRemote[local]; ok {
		delete(m.toLocal, r)
		delete(m.toRemote, local)
	}
}

func (m *IDMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.toRemote)
}

// Correlator resolves a local parent session to its remote id.
type Correlator interface {
	RemoteSessionID(ctx context.Context, userID string, local LocalID) (RemoteID, error)
}

// sessionCorrelator checks the in-memory map, then the id persisted on the
// local session, then asks the remote by (user_id, local_id).
type sessionCorrelator struct {
	store  *store.Store
	remote Remote
	ids    *IDMap
}

func (c *sessionCorrelator) RemoteSessionID(ctx context.Context, userID string, local LocalID) (RemoteID, error) {
	if r, ok := c.ids.Remote(local); ok {
		return r, nil
	}
	sess, err := c.store.GetSession(ctx, int64(local))
	switch {
	case err == nil && sess.RemoteID != nil:
		r := RemoteID(*sess.RemoteID)
		c.ids.Put(local, r)
		return r, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return 0, err
	}

	row, err := c.remote.FindSession(ctx, userID, local.String())
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, fmt.Errorf("session %s: %w", local, ErrParentNotSynced)
	}
	r := RemoteID(row.ID)
	c.ids.Put(local, r)
	if err := c.store.SetSessionRemoteID(ctx, int64(local), row.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}
	return r, nil
}

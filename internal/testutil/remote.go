// Package testutil holds an in-memory remote store and store helpers for
// sync engine tests.
package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"fitlog-go/internal/store"
	"fitlog-go/pkg/types"
)

var ErrInjected = errors.New("injected remote failure")

// ErrDuplicateSession mirrors the server's (user_id, local_id) uniqueness.
var ErrDuplicateSession = errors.New("duplicate session (user_id, local_id)")

// Remote mimics the remote store contract: users upsert by id, sessions
// upsert on (user_id, local_id), every other table is a plain insert.
type Remote struct {
	mu sync.Mutex

	Users          map[string]types.UserRow
	Sessions       []types.SessionRow
	SetLogs        []types.SetLogRow
	Weights        []types.WeightRow
	EstimatedMaxes []types.EstimatedMaxRow
	Feedback       []types.FeedbackRow
	Profiles       map[string]profile

	nextID int64
	calls  map[string]int
	// failOps makes the named operation fail while its counter is positive;
	// a negative value fails forever.
	failOps map[string]int
	// Hook, when set, runs at the start of every operation.
	Hook func(op string)
}

type profile struct {
	userID string
	pin    string
}

func NewRemote() *Remote {
	return &Remote{
		Users:    make(map[string]types.UserRow),
		Profiles: make(map[string]profile),
		calls:    make(map[string]int),
		failOps:  make(map[string]int),
	}
}

func (r *Remote) FailOp(op string, times int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOps[op] = times
}

func (r *Remote) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *Remote) TotalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.calls {
		n += v
	}
	return n
}

// Snapshot copies the tables under the lock.
func (r *Remote) Snapshot() (sessions []types.SessionRow, setLogs []types.SetLogRow, weights []types.WeightRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.SessionRow(nil), r.Sessions...),
		append([]types.SetLogRow(nil), r.SetLogs...),
		append([]types.WeightRow(nil), r.Weights...)
}

// begin counts the call and returns with r.mu held unless it fails.
func (r *Remote) begin(op string) error {
	if r.Hook != nil {
		r.Hook(op)
	}
	r.mu.Lock()
	r.calls[op]++
	n, ok := r.failOps[op]
	if ok && n != 0 {
		if n > 0 {
			r.failOps[op] = n - 1
		}
		r.mu.Unlock()
		return ErrInjected
	}
	return nil
}

func (r *Remote) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *Remote) GetUser(ctx context.Context, id string) (*types.UserRow, error) {
	if err := r.begin("GetUser"); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *Remote) UpsertUser(ctx context.Context, row types.UserRow) error {
	if err := r.begin("UpsertUser"); err != nil {
		return err
	}
	defer r.mu.Unlock()
	r.Users[row.ID] = row
	return nil
}

func (r *Remote) DeleteUser(ctx context.Context, id string) error {
	if err := r.begin("DeleteUser"); err != nil {
		return err
	}
	defer r.mu.Unlock()
	delete(r.Users, id)
	return nil
}

func (r *Remote) UpsertSession(ctx context.Context, row types.SessionRow) (*types.SessionRow, error) {
	if err := r.begin("UpsertSession"); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	if row.ID > 0 {
		for i, s := range r.Sessions {
			if s.ID != row.ID || s.UserID != row.UserID {
				continue
			}
			for _, other := range r.Sessions {
				if other.ID != row.ID && other.UserID == row.UserID && other.LocalID == row.LocalID {
					return nil, ErrDuplicateSession
				}
			}
			r.Sessions[i] = row
			return &row, nil
		}
	}
	for i, s := range r.Sessions {
		if s.UserID == row.UserID && s.LocalID == row.LocalID {
			row.ID = s.ID
			r.Sessions[i] = row
			return &row, nil
		}
	}
	row.ID = r.id()
	r.Sessions = append(r.Sessions, row)
	return &row, nil
}

func (r *Remote) FindSession(ctx context.Context, userID, localID string) (*types.SessionRow, error) {
	if err := r.begin("FindSession"); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	for _, s := range r.Sessions {
		if s.UserID == userID && s.LocalID == localID {
			out := s
			return &out, nil
		}
	}
	return nil, nil
}

func (r *Remote) ListSessions(ctx context.Context, userID string) ([]types.SessionRow, error) {
	if err := r.begin("ListSessions"); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	var out []types.SessionRow
	for _, s := range r.Sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *Remote) InsertSetLogs(ctx context.Context, rows []types.SetLogRow) error {
	if err := r.begin("InsertSetLogs"); err != nil {
		return err
	}
	defer r.mu.Unlock()
	for _, row := range rows {
		row.ID = r.id()
		r.SetLogs = append(r.SetLogs, row)
	}
	return nil
}

func (r *Remote) ListSetLogs(ctx context.Context, sessionID int64) ([]types.SetLogRow, error) {
	if err := r.begin("ListSetLogs"); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	var out []types.SetLogRow
	for _, l := range r.SetLogs {
		if l.SessionID == sessionID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *Remote) InsertWeightHistory(ctx context.Context, rows []types.WeightRow) error {
	if err := r.begin("InsertWeightHistory"); err != nil {
		return err
	}
	defer r.mu.Unlock()
	for _, row := range rows {
		row.ID = r.id()
		r.Weights = append(r.Weights, row)
	}
	return nil
}

func (r *Remote) ListWeightHistory(ctx context.Context, userID string) ([]types.WeightRow, error) {
	if err := r.begin("ListWeightHistory"); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	var out []types.WeightRow
	for _, w := range r.Weights {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (r *Remote) InsertEstimatedMaxes(ctx context.Context, rows []types.EstimatedMaxRow) error {
	if err := r.begin("InsertEstimatedMaxes"); err != nil {
		return err
	}
	defer r.mu.Unlock()
	for _, row := range rows {
		row.ID = r.id()
		r.EstimatedMaxes = append(r.EstimatedMaxes, row)
	}
	return nil
}

func (r *Remote) ListEstimatedMaxes(ctx context.Context, userID string) ([]types.EstimatedMaxRow, error) {
	if err := r.begin("ListEstimatedMaxes"); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	var out []types.EstimatedMaxRow
	for _, m := range r.EstimatedMaxes {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *Remote) InsertFeedback(ctx context.Context, rows []types.FeedbackRow) error {
	if err := r.begin("InsertFeedback"); err != nil {
		return err
	}
	defer r.mu.Unlock()
	for _, row := range rows {
		row.ID = r.id()
		r.Feedback = append(r.Feedback, row)
	}
	return nil
}

func (r *Remote) DeleteRows(ctx context.Context, table, userID, localID string) error {
	if err := r.begin("DeleteRows"); err != nil {
		return err
	}
	defer r.mu.Unlock()
	switch table {
	case types.TableSessions:
		out := r.Sessions[:0]
		for _, s := range r.Sessions {
			if s.UserID != userID || s.LocalID != localID {
				out = append(out, s)
			}
		}
		r.Sessions = out
	case types.TableSetLogs:
		out := r.SetLogs[:0]
		for _, l := range r.SetLogs {
			if l.UserID != userID || l.LocalID != localID {
				out = append(out, l)
			}
		}
		r.SetLogs = out
	case types.TableWeightHistory:
		out := r.Weights[:0]
		for _, w := range r.Weights {
			if w.UserID != userID || w.LocalID != localID {
				out = append(out, w)
			}
		}
		r.Weights = out
	}
	return nil
}

func (r *Remote) CheckProfileNameAvailable(ctx context.Context, name string) (bool, error) {
	if err := r.begin("CheckProfileNameAvailable"); err != nil {
		return false, err
	}
	defer r.mu.Unlock()
	_, taken := r.Profiles[name]
	return !taken, nil
}

func (r *Remote) RegisterProfile(ctx context.Context, userID, name, pin string) (bool, error) {
	if err := r.begin("RegisterProfile"); err != nil {
		return false, err
	}
	defer r.mu.Unlock()
	if p, taken := r.Profiles[name]; taken && p.userID != userID {
		return false, nil
	}
	r.Profiles[name] = profile{userID: userID, pin: pin}
	if u, ok := r.Users[userID]; ok {
		u.ProfileName = name
		r.Users[userID] = u
	}
	return true, nil
}

func (r *Remote) VerifyRecovery(ctx context.Context, name, pin string) (*types.RecoverySnapshot, error) {
	if err := r.begin("VerifyRecovery"); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	p, ok := r.Profiles[name]
	if !ok || p.pin != pin {
		return nil, nil
	}
	u, ok := r.Users[p.userID]
	if !ok {
		return nil, nil
	}
	snap := &types.RecoverySnapshot{User: u}
	sessionIDs := map[int64]bool{}
	for _, s := range r.Sessions {
		if s.UserID == u.ID {
			snap.SessionCount++
			sessionIDs[s.ID] = true
		}
	}
	for _, l := range r.SetLogs {
		if sessionIDs[l.SessionID] {
			snap.TotalSets++
		}
	}
	return snap, nil
}

func (r *Remote) ChangeRecoveryPIN(ctx context.Context, userID, currentPIN, newPIN string) (bool, error) {
	if err := r.begin("ChangeRecoveryPIN"); err != nil {
		return false, err
	}
	defer r.mu.Unlock()
	for name, p := range r.Profiles {
		if p.userID == userID {
			if p.pin != currentPIN {
				return false, nil
			}
			r.Profiles[name] = profile{userID: userID, pin: newPIN}
			return true, nil
		}
	}
	return false, nil
}

// NewStore opens a throwaway local store.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "fitlog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// Gate is a settable connectivity gate.
type Gate struct {
	mu         sync.Mutex
	Configured bool
	Online     bool
}

func NewGate(configured, online bool) *Gate {
	return &Gate{Configured: configured, Online: online}
}

func (g *Gate) IsConfigured() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Configured
}

func (g *Gate) IsOnline() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Online
}

func (g *Gate) SetOnline(online bool) {
	g.mu.Lock()
	g.Online = online
	g.mu.Unlock()
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"fitlog-go/internal/remotestore/repos"
	"fitlog-go/pkg/types"
)

var ErrInvalid = errors.New("invalid request")

const (
	minPIN        = 4
	maxPIN        = 8
	maxProfileLen = 32
)

type Service struct {
	repo *repos.Repo
	cost int
}

func NewService(repo *repos.Repo) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// SetHashCost lowers the bcrypt cost in tests.
func (s *Service) SetHashCost(cost int) { s.cost = cost }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (s *Service) UpsertUser(ctx context.Context, u types.UserRow) (*types.UserRow, error) {
	if strings.TrimSpace(u.ID) == "" {
		return nil, invalid("id is required")
	}
	if err := s.repo.UpsertUser(ctx, u); err != nil {
		return nil, err
	}
	return s.repo.GetUser(ctx, u.ID)
}

func (s *Service) GetUser(ctx context.Context, id string) (*types.UserRow, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.repo.DeleteUser(ctx, id)
}

func (s *Service) UpsertSession(ctx context.Context, row types.SessionRow) (*types.SessionRow, error) {
	if row.UserID == "" || row.LocalID == "" {
		return nil, invalid("user_id and local_id are required")
	}
	return s.repo.UpsertSession(ctx, row)
}

func (s *Service) ListSessions(ctx context.Context, userID, localID string) ([]types.SessionRow, error) {
	if userID == "" {
		return nil, invalid("user_id filter is required")
	}
	return s.repo.ListSessions(ctx, userID, localID)
}

func (s *Service) InsertSetLogs(ctx context.Context, rows []types.SetLogRow) error {
	for i, r := range rows {
		if r.UserID == "" || r.SessionID == 0 {
			return invalid("row %d: user_id and session_id are required", i)
		}
	}
	return s.repo.InsertSetLogs(ctx, rows)
}

func (s *Service) ListSetLogs(ctx context.Context, sessionID int64) ([]types.SetLogRow, error) {
	if sessionID == 0 {
		return nil, invalid("session_id filter is required")
	}
	return s.repo.ListSetLogs(ctx, sessionID)
}

func (s *Service) InsertWeightHistory(ctx context.Context, rows []types.WeightRow) error {
	for i, r := range rows {
		if r.UserID == "" {
			return invalid("row %d: user_id is required", i)
		}
	}
	return s.repo.InsertWeightHistory(ctx, rows)
}

func (s *Service) ListWeightHistory(ctx context.Context, userID string) ([]types.WeightRow, error) {
	if userID == "" {
		return nil, invalid("user_id filter is required")
	}
	return s.repo.ListWeightHistory(ctx, userID)
}

func (s *Service) InsertEstimatedMaxes(ctx context.Context, rows []types.EstimatedMaxRow) error {
	for i, r := range rows {
		if r.UserID == "" {
			return invalid("row %d: user_id is required", i)
		}
	}
	return s.repo.InsertEstimatedMaxes(ctx, rows)
}

func (s *Service) ListEstimatedMaxes(ctx context.Context, userID string) ([]types.EstimatedMaxRow, error) {
	if userID == "" {
		return nil, invalid("user_id filter is required")
	}
	return s.repo.ListEstimatedMaxes(ctx, userID)
}

func (s *Service) InsertFeedback(ctx context.Context, rows []types.FeedbackRow) error {
	for i, r := range rows {
		if r.UserID == "" {
			return invalid("row %d: user_id is required", i)
		}
	}
	return s.repo.InsertFeedback(ctx, rows)
}

func (s *Service) ListFeedback(ctx context.Context, userID string) ([]types.FeedbackRow, error) {
	if userID == "" {
		return nil, invalid("user_id filter is required")
	}
	return s.repo.ListFeedback(ctx, userID)
}

func (s *Service) DeleteRows(ctx context.Context, table, userID, localID string) (int64, error) {
	if userID == "" || localID == "" {
		return 0, invalid("user_id and local_id filters are required")
	}
	n, err := s.repo.DeleteRows(ctx, table, userID, localID)
	if errors.Is(err, repos.ErrUnknownTable) {
		return 0, repos.ErrNotFound
	}
	return n, err
}

func normalizeProfile(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxProfileLen {
		return "", invalid("profile name must be 1-%d characters", maxProfileLen)
	}
	return name, nil
}

func validPIN(pin string) error {
	if len(pin) < minPIN || len(pin) > maxPIN {
		return invalid("pin must be %d-%d digits", minPIN, maxPIN)
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return invalid("pin must be %d-%d digits", minPIN, maxPIN)
		}
	}
	return nil
}

func (s *Service) CheckProfileNameAvailable(ctx context.Context, name string) (bool, error) {
	name, err := normalizeProfile(name)
	if err != nil {
		return false, err
	}
	_, err = s.repo.ProfileByName(ctx, name)
	if errors.Is(err, repos.ErrNotFound) {
		return true, nil
	}
	return false, err
}

// RegisterProfile attaches a recovery name and PIN to an existing user. It
// answers false when the name belongs to someone else.
func (s *Service) RegisterProfile(ctx context.Context, in types.RegisterProfileRequest) (bool, error) {
	name, err := normalizeProfile(in.ProfileName)
	if err != nil {
		return false, err
	}
	if err := validPIN(in.PIN); err != nil {
		return false, err
	}
	owner, err := s.repo.ProfileByName(ctx, name)
	switch {
	case err == nil && owner.UserID != in.UserID:
		return false, nil
	case err != nil && !errors.Is(err, repos.ErrNotFound):
		return false, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.PIN), s.cost)
	if err != nil {
		return false, err
	}
	if err := s.repo.SetProfile(ctx, in.UserID, name, string(hash)); err != nil {
		return false, err
	}
	return true, nil
}

// VerifyRecovery returns zero or one snapshot. A wrong PIN and an unknown
// name look the same to the caller.
func (s *Service) VerifyRecovery(ctx context.Context, in types.VerifyRecoveryRequest) ([]types.RecoverySnapshot, error) {
	none := []types.RecoverySnapshot{}
	name := strings.TrimSpace(in.ProfileName)
	if name == "" || in.PIN == "" {
		return none, nil
	}
	p, err := s.repo.ProfileByName(ctx, name)
	if errors.Is(err, repos.ErrNotFound) {
		return none, nil
	}
	if err != nil {
		return nil, err
	}
	if p.PINHash == "" || bcrypt.CompareHashAndPassword([]byte(p.PINHash), []byte(in.PIN)) != nil {
		return none, nil
	}
	user, err := s.repo.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	sessions, sets, last, err := s.repo.RecoveryStats(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return []types.RecoverySnapshot{{User: *user, SessionCount: sessions, TotalSets: sets, LastSessionAt: last}}, nil
}

func (s *Service) ChangeRecoveryPIN(ctx context.Context, in types.ChangeRecoveryPINRequest) (bool, error) {
	if err := validPIN(in.NewPIN); err != nil {
		return false, err
	}
	p, err := s.repo.ProfileByUser(ctx, in.UserID)
	if errors.Is(err, repos.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if p.PINHash == "" || bcrypt.CompareHashAndPassword([]byte(p.PINHash), []byte(in.CurrentPIN)) != nil {
		return false, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPIN), s.cost)
	if err != nil {
		return false, err
	}
	if err := s.repo.SetPINHash(ctx, in.UserID, string(hash)); err != nil {
		return false, err
	}
	return true, nil
}

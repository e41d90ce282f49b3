package cloudsync

import (
	"context"

	"fitlog-go/pkg/types"
)

// Remote is the remote store as the sync engine sees it. Lookups return a nil
// row and a nil error when nothing matches.
type Remote interface {
	GetUser(ctx context.Context, id string) (*types.UserRow, error)
	UpsertUser(ctx context.Context, row types.UserRow) error
	DeleteUser(ctx context.Context, id string) error

	// UpsertSession converges on (user_id, local_id) and returns the stored row.
	UpsertSession(ctx context.Context, row types.SessionRow) (*types.SessionRow, error)
	FindSession(ctx context.Context, userID, localID string) (*types.SessionRow, error)
	ListSessions(ctx context.Context, userID string) ([]types.SessionRow, error)

	InsertSetLogs(ctx context.Context, rows []types.SetLogRow) error
	ListSetLogs(ctx context.Context, sessionID int64) ([]types.SetLogRow, error)
	InsertWeightHistory(ctx context.Context, rows []types.WeightRow) error
	ListWeightHistory(ctx context.Context, userID string) ([]types.WeightRow, error)
	InsertEstimatedMaxes(ctx context.Context, rows []types.EstimatedMaxRow) error
	ListEstimatedMaxes(ctx context.Context, userID string) ([]types.EstimatedMaxRow, error)
	InsertFeedback(ctx context.Context, rows []types.FeedbackRow) error

	// DeleteRows removes rows of table created from the given local record.
	DeleteRows(ctx context.Context, table, userID, localID string) error

	CheckProfileNameAvailable(ctx context.Context, name string) (bool, error)
	RegisterProfile(ctx context.Context, userID, name, pin string) (bool, error)
	VerifyRecovery(ctx context.Context, name, pin string) (*types.RecoverySnapshot, error)
	ChangeRecoveryPIN(ctx context.Context, userID, currentPIN, newPIN string) (bool, error)
}

type Gate interface {
	IsConfigured() bool
	IsOnline() bool
}

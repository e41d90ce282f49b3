package types

import "time"

// Remote table names. Every row created from a local record carries the
// originating local id in LocalID.
const (
	TableUsers          = "users"
	TableSessions       = "sessions"
	TableSetLogs        = "set_logs"
	TableWeightHistory  = "weight_history"
	TableEstimatedMaxes = "estimated_maxes"
	TableFeedback       = "ai_feedback"
)

type UserRow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ProfileName string    `json:"profile_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionRow is unique on (UserID, LocalID).
type SessionRow struct {
	ID          int64      `json:"id,omitempty"`
	UserID      string     `json:"user_id"`
	LocalID     string     `json:"local_id"`
	TemplateID  string     `json:"template_id"`
	Date        string     `json:"date"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

type SetLogRow struct {
	ID         int64     `json:"id,omitempty"`
	UserID     string    `json:"user_id"`
	LocalID    string    `json:"local_id"`
	SessionID  int64     `json:"session_id"`
	ExerciseID string    `json:"exercise_id"`
	SetNumber  int       `json:"set_number"`
	Weight     float64   `json:"weight"`
	Reps       int       `json:"reps"`
	RPE        *float64  `json:"rpe,omitempty"`
	IsWarmup   bool      `json:"is_warmup"`
	LoggedAt   time.Time `json:"logged_at"`
}

type WeightRow struct {
	ID         int64     `json:"id,omitempty"`
	UserID     string    `json:"user_id"`
	LocalID    string    `json:"local_id"`
	Weight     float64   `json:"weight"`
	Unit       string    `json:"unit"`
	RecordedAt time.Time `json:"recorded_at"`
}

type EstimatedMaxRow struct {
	ID           int64     `json:"id,omitempty"`
	UserID       string    `json:"user_id"`
	LocalID      string    `json:"local_id"`
	ExerciseID   string    `json:"exercise_id"`
	Weight       float64   `json:"weight"`
	Reps         int       `json:"reps"`
	Value        float64   `json:"value"`
	CalculatedAt time.Time `json:"calculated_at"`
}

type FeedbackRow struct {
	ID        int64     `json:"id,omitempty"`
	UserID    string    `json:"user_id"`
	LocalID   string    `json:"local_id"`
	SessionID *int64    `json:"session_id,omitempty"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RecoverySnapshot is the single account match returned by verify_recovery.
type RecoverySnapshot struct {
	User          UserRow    `json:"user"`
	SessionCount  int        `json:"session_count"`
	TotalSets     int        `json:"total_sets"`
	LastSessionAt *time.Time `json:"last_session_at,omitempty"`
}

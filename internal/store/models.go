package store

import "time"

type Table string

const (
	TableUsers          Table = "users"
	TableSessions       Table = "sessions"
	TableSetLogs        Table = "set_logs"
	TableWeightHistory  Table = "weight_history"
	TableEstimatedMaxes Table = "estimated_maxes"
	TableFeedback       Table = "ai_feedback"
)

func (t Table) Valid() bool {
	switch t {
	case TableUsers, TableSessions, TableSetLogs, TableWeightHistory, TableEstimatedMaxes, TableFeedback:
		return true
	}
	return false
}

type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	return a == ActionInsert || a == ActionUpdate || a == ActionDelete
}

// User is the single local account. Its UUID is also the remote primary key.
type User struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Name        string    `json:"name"`
	ProfileName string    `json:"profile_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Session struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string     `gorm:"index;not null" json:"user_id"`
	TemplateID  string     `gorm:"index" json:"template_id"`
	Date        string     `gorm:"index" json:"date"`
	StartedAt   time.Time  `gorm:"index" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	// RemoteID is learned on first successful sync or set on restore.
	RemoteID *int64 `json:"remote_id,omitempty"`
}

type SetLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  int64     `gorm:"index;not null" json:"session_id"`
	ExerciseID string    `gorm:"index" json:"exercise_id"`
	SetNumber  int       `json:"set_number"`
	Weight     float64   `json:"weight"`
	Reps       int       `json:"reps"`
	RPE        *float64  `json:"rpe,omitempty"`
	IsWarmup   bool      `json:"is_warmup"`
	LoggedAt   time.Time `gorm:"index" json:"logged_at"`
}

type WeightEntry struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     string    `gorm:"index;not null" json:"user_id"`
	Weight     float64   `json:"weight"`
	Unit       string    `json:"unit"`
	RecordedAt time.Time `gorm:"index" json:"recorded_at"`
}

func (WeightEntry) TableName() string { return "weight_history" }

type EstimatedMax struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string    `gorm:"index;not null" json:"user_id"`
	ExerciseID   string    `gorm:"index" json:"exercise_id"`
	Weight       float64   `json:"weight"`
	Reps         int       `json:"reps"`
	Value        float64   `json:"value"`
	CalculatedAt time.Time `gorm:"index" json:"calculated_at"`
}

type Feedback struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	SessionID *int64    `json:"session_id,omitempty"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Feedback) TableName() string { return "ai_feedback" }

// OutboxItem is one buffered local mutation. Payload is the JSON snapshot of
// the record taken at enqueue time and is never rewritten.
type OutboxItem struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Table         Table      `gorm:"column:table_name;not null;index" json:"table"`
	Action        Action     `gorm:"not null" json:"action"`
	LocalID       string     `gorm:"not null" json:"local_id"`
	Payload       []byte     `json:"payload"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	SyncedAt      *time.Time `gorm:"index" json:"synced_at,omitempty"`
	RetryCount    int        `gorm:"not null;default:0" json:"retry_count"`
	LastError     string     `json:"last_error,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
}

func (OutboxItem) TableName() string { return "sync_queue" }

// Pending reports whether the item is still eligible for delivery.
func (o OutboxItem) Pending(maxRetries int) bool {
	return o.SyncedAt == nil && o.RetryCount < maxRetries
}

// Due reports whether the item's backoff window has elapsed.
func (o OutboxItem) Due(now time.Time) bool {
	return o.NextAttemptAt == nil || !o.NextAttemptAt.After(now)
}

type Meta struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (Meta) TableName() string { return "sync_meta" }

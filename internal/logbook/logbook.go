// Package logbook records workouts. Every write lands in the local store
// first and is then queued for the remote store; sync state never blocks a
// write.
package logbook

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"fitlog-go/internal/accounts"
	"fitlog-go/internal/store"
)

var (
	ErrNoAccount        = accounts.ErrNoAccount
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionCompleted = errors.New("session already completed")
	ErrInvalidInput     = errors.New("invalid input")
)

type Logbook struct {
	store *store.Store
	queue accounts.Enqueuer
	now   func() time.Time
}

func New(st *store.Store, q accounts.Enqueuer) *Logbook {
	return &Logbook{store: st, queue: q, now: func() time.Time { return time.Now().UTC() }}
}

func (l *Logbook) SetClock(now func() time.Time) { l.now = now }

func (l *Logbook) user(ctx context.Context) (*store.User, error) {
	u, err := l.store.CurrentUser(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoAccount
	}
	return u, err
}

func (l *Logbook) session(ctx context.Context, id int64) (*store.Session, error) {
	s, err := l.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	return s, err
}

func localID(id int64) string { return strconv.FormatInt(id, 10) }

func (l *Logbook) StartSession(ctx context.Context, templateID, notes string) (*store.Session, error) {
	u, err := l.user(ctx)
	if err != nil {
		return nil, err
	}
	now := l.now()
	s := &store.Session{
		UserID:     u.ID,
		TemplateID: strings.TrimSpace(templateID),
		Date:       now.Format("2006-01-02"),
		StartedAt:  now,
		Notes:      notes,
	}
	if err := l.store.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	_, err = l.queue.Enqueue(ctx, store.TableSessions, store.ActionInsert, localID(s.ID), s)
	return s, err
}

// CompleteSession stamps the end time. The remote row is upserted on
// (user_id, local_id), so the update converges with the original insert.
func (l *Logbook) CompleteSession(ctx context.Context, id int64, notes string) (*store.Session, error) {
	s, err := l.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.CompletedAt != nil {
		return s, ErrSessionCompleted
	}
	now := l.now()
	s.CompletedAt = &now
	if notes != "" {
		s.Notes = notes
	}
	if err := l.store.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	_, err = l.queue.Enqueue(ctx, store.TableSessions, store.ActionUpdate, localID(s.ID), s)
	return s, err
}

func (l *Logbook) DeleteSession(ctx context.Context, id int64) error {
	if _, err := l.session(ctx, id); err != nil {
		return err
	}
	if err := l.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	_, err := l.queue.Enqueue(ctx, store.TableSessions, store.ActionDelete, localID(id), nil)
	return err
}

type SetInput struct {
	SessionID  int64    `json:"session_id"`
	ExerciseID string   `json:"exercise_id"`
	SetNumber  int      `json:"set_number"`
	Weight     float64  `json:"weight"`
	Reps       int      `json:"reps"`
	RPE        *float64 `json:"rpe,omitempty"`
	IsWarmup   bool     `json:"is_warmup"`
}

func (in SetInput) validate() error {
	switch {
	case strings.TrimSpace(in.ExerciseID) == "":
		return fmt.Errorf("%w: exercise is required", ErrInvalidInput)
	case in.Reps < 0 || in.Weight < 0:
		return fmt.Errorf("%w: weight and reps must not be negative", ErrInvalidInput)
	case in.RPE != nil && (*in.RPE < 0 || *in.RPE > 10):
		return fmt.Errorf("%w: rpe must be within 0-10", ErrInvalidInput)
	}
	return nil
}

// LogSet records one set against an existing session. The set number
// defaults to the next one in the session.
func (l *Logbook) LogSet(ctx context.Context, in SetInput) (*store.SetLog, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := l.session(ctx, in.SessionID); err != nil {
		return nil, err
	}
	if in.SetNumber <= 0 {
		existing, err := l.store.ListSetLogs(ctx, in.SessionID)
		if err != nil {
			return nil, err
		}
		in.SetNumber = len(existing) + 1
	}
	set := &store.SetLog{
		SessionID:  in.SessionID,
		ExerciseID: strings.TrimSpace(in.ExerciseID),
		SetNumber:  in.SetNumber,
		Weight:     in.Weight,
		Reps:       in.Reps,
		RPE:        in.RPE,
		IsWarmup:   in.IsWarmup,
		LoggedAt:   l.now(),
	}
	if err := l.store.CreateSetLog(ctx, set); err != nil {
		return nil, err
	}
	_, err := l.queue.Enqueue(ctx, store.TableSetLogs, store.ActionInsert, localID(set.ID), set)
	return set, err
}

func (l *Logbook) RecordWeight(ctx context.Context, weight float64, unit string) (*store.WeightEntry, error) {
	if weight <= 0 {
		return nil, fmt.Errorf("%w: weight must be positive", ErrInvalidInput)
	}
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" {
		unit = "kg"
	}
	if unit != "kg" && unit != "lb" {
		return nil, fmt.Errorf("%w: unit must be kg or lb", ErrInvalidInput)
	}
	u, err := l.user(ctx)
	if err != nil {
		return nil, err
	}
	w := &store.WeightEntry{UserID: u.ID, Weight: weight, Unit: unit, RecordedAt: l.now()}
	if err := l.store.CreateWeight(ctx, w); err != nil {
		return nil, err
	}
	_, err = l.queue.Enqueue(ctx, store.TableWeightHistory, store.ActionInsert, localID(w.ID), w)
	return w, err
}

// EstimateOneRepMax uses the Epley formula, rounded to 0.1.
func EstimateOneRepMax(weight float64, reps int) float64 {
	if reps <= 1 {
		return weight
	}
	return math.Round(weight*(1+float64(reps)/30)*10) / 10
}

func (l *Logbook) RecordEstimatedMax(ctx context.Context, exerciseID string, weight float64, reps int) (*store.EstimatedMax, error) {
	if strings.TrimSpace(exerciseID) == "" || weight <= 0 || reps <= 0 {
		return nil, fmt.Errorf("%w: exercise, weight and reps are required", ErrInvalidInput)
	}
	u, err := l.user(ctx)
	if err != nil {
		return nil, err
	}
	m := &store.EstimatedMax{
		UserID:       u.ID,
		ExerciseID:   strings.TrimSpace(exerciseID),
		Weight:       weight,
		Reps:         reps,
		Value:        EstimateOneRepMax(weight, reps),
		CalculatedAt: l.now(),
	}
	if err := l.store.CreateEstimatedMax(ctx, m); err != nil {
		return nil, err
	}
	_, err = l.queue.Enqueue(ctx, store.TableEstimatedMaxes, store.ActionInsert, localID(m.ID), m)
	return m, err
}

// SaveFeedback stores coaching text, optionally tied to a session.
func (l *Logbook) SaveFeedback(ctx context.Context, sessionID *int64, kind, content string) (*store.Feedback, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: feedback content is required", ErrInvalidInput)
	}
	u, err := l.user(ctx)
	if err != nil {
		return nil, err
	}
	if sessionID != nil {
		if _, err := l.session(ctx, *sessionID); err != nil {
			return nil, err
		}
	}
	f := &store.Feedback{UserID: u.ID, SessionID: sessionID, Kind: strings.TrimSpace(kind), Content: content, CreatedAt: l.now()}
	if err := l.store.CreateFeedback(ctx, f); err != nil {
		return nil, err
	}
	_, err = l.queue.Enqueue(ctx, store.TableFeedback, store.ActionInsert, localID(f.ID), f)
	return f, err
}

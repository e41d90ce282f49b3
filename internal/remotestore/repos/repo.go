package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fitlog-go/internal/remotestore/migrations"
	"fitlog-go/pkg/types"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnknownTable = errors.New("unknown table")
)

// Open opens the server database and brings its schema up to date. SQLite
// allows one writer, so the pool is capped at a single connection; this also
// keeps a ":memory:" database shared across requests.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrations.Apply(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) DB() *sql.DB {
	return r.db
}

func (r *Repo) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Profile is the recovery identity attached to a user row.
type Profile struct {
	UserID  string
	Name    string
	PINHash string
}

func (r *Repo) UpsertUser(ctx context.Context, u types.UserRow) error {
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, u.ID, u.Name, created.UTC())
	return err
}

func (r *Repo) GetUser(ctx context.Context, id string) (*types.UserRow, error) {
	var u types.UserRow
	var profile sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT id, name, profile_name, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &profile, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.ProfileName = profile.String
	return &u, nil
}

// DeleteUser removes the user and every row it owns.
func (r *Repo) DeleteUser(ctx context.Context, id string) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{types.TableSetLogs, types.TableWeightHistory, types.TableEstimatedMaxes, types.TableFeedback, types.TableSessions} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ?`, id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

const sessionColumns = `id, user_id, local_id, template_id, date, started_at, completed_at, notes`

// UpsertSession inserts or updates on (user_id, local_id). A row that
// already carries an id is updated in place instead, local_id included, so
// a restored device can re-key the rows it inherited. An id that no longer
// exists falls back to the (user_id, local_id) upsert.
func (r *Repo) UpsertSession(ctx context.Context, s types.SessionRow) (*types.SessionRow, error) {
	var completed any
	if s.CompletedAt != nil {
		completed = s.CompletedAt.UTC()
	}
	var out *types.SessionRow
	err := r.WithTx(ctx, func(tx *sql.Tx) error {
		if s.ID > 0 {
			res, err := tx.ExecContext(ctx, `
				UPDATE sessions SET local_id = ?, template_id = ?, date = ?, started_at = ?, completed_at = ?, notes = ?
				WHERE id = ? AND user_id = ?
			`, s.LocalID, s.TemplateID, s.Date, s.StartedAt.UTC(), completed, s.Notes, s.ID, s.UserID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				row, err := scanSession(tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, s.ID))
				out = row
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (user_id, local_id, template_id, date, started_at, completed_at, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, local_id) DO UPDATE SET
				template_id = excluded.template_id,
				date = excluded.date,
				started_at = excluded.started_at,
				completed_at = excluded.completed_at,
				notes = excluded.notes
		`, s.UserID, s.LocalID, s.TemplateID, s.Date, s.StartedAt.UTC(), completed, s.Notes)
		if err != nil {
			return err
		}
		row, err := scanSession(tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? AND local_id = ?`, s.UserID, s.LocalID))
		out = row
		return err
	})
	return out, err
}

// ListSessions filters by user and, when localID is set, by local id.
func (r *Repo) ListSessions(ctx context.Context, userID, localID string) ([]types.SessionRow, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = ?`
	args := []any{userID}
	if localID != "" {
		q += ` AND local_id = ?`
		args = append(args, localID)
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY started_at ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []types.SessionRow{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *Repo) InsertSetLogs(ctx context.Context, logs []types.SetLogRow) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		for _, l := range logs {
			var rpe any
			if l.RPE != nil {
				rpe = *l.RPE
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO set_logs (user_id, local_id, session_id, exercise_id, set_number, weight, reps, rpe, is_warmup, logged_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, l.UserID, l.LocalID, l.SessionID, l.ExerciseID, l.SetNumber, l.Weight, l.Reps, rpe, l.IsWarmup, l.LoggedAt.UTC()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) ListSetLogs(ctx context.Context, sessionID int64) ([]types.SetLogRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, local_id, session_id, exercise_id, set_number, weight, reps, rpe, is_warmup, logged_at
		FROM set_logs WHERE session_id = ? ORDER BY logged_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []types.SetLogRow{}
	for rows.Next() {
		var l types.SetLogRow
		var rpe sql.NullFloat64
		if err := rows.Scan(&l.ID, &l.UserID, &l.LocalID, &l.SessionID, &l.ExerciseID, &l.SetNumber, &l.Weight, &l.Reps, &rpe, &l.IsWarmup, &l.LoggedAt); err != nil {
			return nil, err
		}
		if rpe.Valid {
			v := rpe.Float64
			l.RPE = &v
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) InsertWeightHistory(ctx context.Context, rows []types.WeightRow) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		for _, w := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO weight_history (user_id, local_id, weight, unit, recorded_at) VALUES (?, ?, ?, ?, ?)
			`, w.UserID, w.LocalID, w.Weight, w.Unit, w.RecordedAt.UTC()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) ListWeightHistory(ctx context.Context, userID string) ([]types.WeightRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, local_id, weight, unit, recorded_at
		FROM weight_history WHERE user_id = ? ORDER BY recorded_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []types.WeightRow{}
	for rows.Next() {
		var w types.WeightRow
		if err := rows.Scan(&w.ID, &w.UserID, &w.LocalID, &w.Weight, &w.Unit, &w.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repo) InsertEstimatedMaxes(ctx context.Context, rows []types.EstimatedMaxRow) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		for _, m := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO estimated_maxes (user_id, local_id, exercise_id, weight, reps, value, calculated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, m.UserID, m.LocalID, m.ExerciseID, m.Weight, m.Reps, m.Value, m.CalculatedAt.UTC()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) ListEstimatedMaxes(ctx context.Context, userID string) ([]types.EstimatedMaxRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, local_id, exercise_id, weight, reps, value, calculated_at
		FROM estimated_maxes WHERE user_id = ? ORDER BY calculated_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []types.EstimatedMaxRow{}
	for rows.Next() {
		var m types.EstimatedMaxRow
		if err := rows.Scan(&m.ID, &m.UserID, &m.LocalID, &m.ExerciseID, &m.Weight, &m.Reps, &m.Value, &m.CalculatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repo) InsertFeedback(ctx context.Context, rows []types.FeedbackRow) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		for _, f := range rows {
			var session any
			if f.SessionID != nil {
				session = *f.SessionID
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ai_feedback (user_id, local_id, session_id, kind, content, created_at) VALUES (?, ?, ?, ?, ?, ?)
			`, f.UserID, f.LocalID, session, f.Kind, f.Content, f.CreatedAt.UTC()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) ListFeedback(ctx context.Context, userID string) ([]types.FeedbackRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, local_id, session_id, kind, content, created_at
		FROM ai_feedback WHERE user_id = ? ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []types.FeedbackRow{}
	for rows.Next() {
		var f types.FeedbackRow
		var session sql.NullInt64
		if err := rows.Scan(&f.ID, &f.UserID, &f.LocalID, &session, &f.Kind, &f.Content, &f.CreatedAt); err != nil {
			return nil, err
		}
		if session.Valid {
			v := session.Int64
			f.SessionID = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

var deletable = map[string]bool{
	types.TableSessions:       true,
	types.TableSetLogs:        true,
	types.TableWeightHistory:  true,
	types.TableEstimatedMaxes: true,
	types.TableFeedback:       true,
}

// DeleteRows removes the rows produced by one local record. Deleting a
// session also drops its set logs.
func (r *Repo) DeleteRows(ctx context.Context, table, userID, localID string) (int64, error) {
	if !deletable[table] {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	var n int64
	err := r.WithTx(ctx, func(tx *sql.Tx) error {
		if table == types.TableSessions {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM set_logs WHERE session_id IN (SELECT id FROM sessions WHERE user_id = ? AND local_id = ?)
			`, userID, localID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ? AND local_id = ?`, userID, localID)
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

func (r *Repo) ProfileByName(ctx context.Context, name string) (*Profile, error) {
	var p Profile
	var hash sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT id, profile_name, pin_hash FROM users WHERE profile_name = ?`, strings.TrimSpace(name)).
		Scan(&p.UserID, &p.Name, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.PINHash = hash.String
	return &p, nil
}

func (r *Repo) ProfileByUser(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	var name, hash sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT id, profile_name, pin_hash FROM users WHERE id = ?`, userID).
		Scan(&p.UserID, &name, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Name = name.String
	p.PINHash = hash.String
	return &p, nil
}

func (r *Repo) SetProfile(ctx context.Context, userID, name, pinHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET profile_name = ?, pin_hash = ? WHERE id = ?`, name, pinHash, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SetPINHash(ctx context.Context, userID, pinHash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET pin_hash = ? WHERE id = ?`, pinHash, userID)
	return err
}

// RecoveryStats summarizes what a restore would bring back.
func (r *Repo) RecoveryStats(ctx context.Context, userID string) (sessions, sets int, last *time.Time, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE user_id = ?`, userID).Scan(&sessions)
	if err != nil {
		return
	}
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM set_logs WHERE session_id IN (SELECT id FROM sessions WHERE user_id = ?)
	`, userID).Scan(&sets)
	if err != nil {
		return
	}
	if sessions == 0 {
		return
	}
	var t time.Time
	err = r.db.QueryRowContext(ctx, `SELECT started_at FROM sessions WHERE user_id = ? ORDER BY started_at DESC, id DESC LIMIT 1`, userID).Scan(&t)
	if err == nil {
		last = &t
	}
	return
}

func scanSession(row interface{ Scan(dest ...any) error }) (*types.SessionRow, error) {
	var s types.SessionRow
	var completed sql.NullTime
	if err := row.Scan(&s.ID, &s.UserID, &s.LocalID, &s.TemplateID, &s.Date, &s.StartedAt, &completed, &s.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		s.CompletedAt = &t
	}
	return &s, nil
}

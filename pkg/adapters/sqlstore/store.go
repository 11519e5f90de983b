// Package sqlstore implements ports.SessionStore on database/sql for SQLite
// (modernc.org/sqlite) and PostgreSQL (jackc/pgx/v5/stdlib).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax and the database/sql driver.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Driver returns the registered database/sql driver name.
func (d Dialect) Driver() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// rebind rewrites '?' placeholders into $n for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS quiz_sessions (
		id TEXT PRIMARY KEY,
		flow_id TEXT NOT NULL,
		flow_version TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		current_step TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL DEFAULT '',
		started_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		completed_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS quiz_sessions_lookup ON quiz_sessions (flow_id, user_id, status)`,
	`CREATE TABLE IF NOT EXISTS quiz_answers (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		step_id TEXT NOT NULL,
		shortcode TEXT NOT NULL DEFAULT '',
		value TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS quiz_answers_session ON quiz_answers (session_id, created_at)`,
}

// Store is a SessionStore backed by a SQL database.
//
// Timestamps are stored as Unix nanoseconds and answer values as JSON text,
// so both dialects share one schema.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ ports.SessionStore = (*Store)(nil)

// Open connects with the dialect's driver and initializes the schema.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}
	s, err := New(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New initializes the required schema in db and returns a Store.
// The caller owns db.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(q), args...)
}

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// CreateSession inserts the record.
func (s *Store) CreateSession(ctx context.Context, rec *domain.SessionRecord) error {
	var completed sql.NullInt64
	if rec.CompletedAt != nil {
		completed = sql.NullInt64{Int64: nanos(*rec.CompletedAt), Valid: true}
	}
	_, err := s.exec(ctx, `
		INSERT INTO quiz_sessions (id, flow_id, flow_version, user_id, status, current_step, outcome, started_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.FlowID,
		rec.FlowVersion,
		rec.UserID,
		string(rec.Status),
		rec.CurrentStep,
		rec.Outcome,
		nanos(rec.StartedAt),
		nanos(rec.UpdatedAt),
		completed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

const sessionColumns = `id, flow_id, flow_version, user_id, status, current_step, outcome, started_at, updated_at, completed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.SessionRecord, error) {
	var (
		rec              domain.SessionRecord
		status           string
		started, updated int64
		completed        sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.FlowID, &rec.FlowVersion, &rec.UserID, &status,
		&rec.CurrentStep, &rec.Outcome, &started, &updated, &completed)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.SessionStatus(status)
	rec.StartedAt = fromNanos(started)
	rec.UpdatedAt = fromNanos(updated)
	if completed.Valid {
		t := fromNanos(completed.Int64)
		rec.CompletedAt = &t
	}
	return &rec, nil
}

// GetSession returns the record and its answers ordered by creation time.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.SessionRecord, []domain.AnswerRecord, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = ?`), id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT id, session_id, step_id, shortcode, value, created_at
		FROM quiz_answers WHERE session_id = ? ORDER BY created_at, id`), id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load answers: %w", err)
	}
	defer rows.Close()

	answers := []domain.AnswerRecord{}
	for rows.Next() {
		var (
			a       domain.AnswerRecord
			raw     sql.NullString
			created int64
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.StepID, &a.Shortcode, &raw, &created); err != nil {
			return nil, nil, err
		}
		if raw.Valid {
			if err := json.Unmarshal([]byte(raw.String), &a.Value); err != nil {
				return nil, nil, fmt.Errorf("failed to decode answer %s: %w", a.ID, err)
			}
		}
		a.CreatedAt = fromNanos(created)
		answers = append(answers, a)
	}
	return rec, answers, rows.Err()
}

// SaveAnswer inserts the answer and moves the current step in one transaction.
func (s *Store) SaveAnswer(ctx context.Context, answer domain.AnswerRecord) error {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(answer.Value)
	if err != nil {
		return fmt.Errorf("failed to encode answer: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.dialect.rebind(`
		UPDATE quiz_sessions SET current_step = ?, updated_at = ? WHERE id = ?`),
		answer.StepID, nanos(answer.CreatedAt), answer.SessionID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO quiz_answers (id, session_id, step_id, shortcode, value, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		answer.ID, answer.SessionID, answer.StepID, answer.Shortcode, string(value), nanos(answer.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert answer: %w", err)
	}
	return tx.Commit()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) updateSession(ctx context.Context, q string, args ...any) error {
	res, err := s.exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return expectRow(res)
}

// SetCurrentStep records the session position.
func (s *Store) SetCurrentStep(ctx context.Context, id, stepID string) error {
	return s.updateSession(ctx, `UPDATE quiz_sessions SET current_step = ?, updated_at = ? WHERE id = ?`,
		stepID, nanos(time.Now()), id)
}

// CompleteSession marks the session completed.
func (s *Store) CompleteSession(ctx context.Context, id, outcome string) error {
	now := nanos(time.Now())
	return s.updateSession(ctx, `
		UPDATE quiz_sessions
		SET status = ?, outcome = ?, current_step = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`,
		string(domain.SessionCompleted), outcome, outcome, now, now, id)
}

// AbandonSession marks the session abandoned.
func (s *Store) AbandonSession(ctx context.Context, id string) error {
	return s.updateSession(ctx, `UPDATE quiz_sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(domain.SessionAbandoned), nanos(time.Now()), id)
}

// FindIncompleteSession returns the newest in-progress session of userID on flowID.
func (s *Store) FindIncompleteSession(ctx context.Context, flowID, userID string) (*domain.SessionRecord, error) {
	list, err := s.ListSessions(ctx, ports.SessionFilter{FlowID: flowID, UserID: userID, Status: domain.SessionInProgress})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return &list[0], nil
}

// ListSessions returns matching sessions, most recently started first.
func (s *Store) ListSessions(ctx context.Context, filter ports.SessionFilter) ([]domain.SessionRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.FlowID != "" {
		where = append(where, "flow_id = ?")
		args = append(args, filter.FlowID)
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	q := `SELECT ` + sessionColumns + ` FROM quiz_sessions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY started_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// DeleteSession removes the session and its answers.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM quiz_answers WHERE session_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete answers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM quiz_sessions WHERE id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return tx.Commit()
}

// Package session provides the concrete SQL-based implementation of the
// session domain repository, including the transaction-scoped surface the
// event state machine runs against.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tourloop/tourloop-go/internal/domain/repositories"
	"github.com/tourloop/tourloop-go/internal/domain/session"
	"github.com/tourloop/tourloop-go/internal/infrastructure/observability/logging"
	"github.com/tourloop/tourloop-go/internal/infrastructure/persistence/database"
)

// querier is the common query surface of *sql.DB and *sql.Tx, letting the
// scan helpers serve both the repository and its transaction view.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLSessionRepository is the SQL-based implementation of the SessionRepository.
type SQLSessionRepository struct {
	db            *database.DB
	environmentID string
	logger        *logging.ChanneledLogger
}

// NewSQLSessionRepository creates a new instance of the repository.
func NewSQLSessionRepository(db *database.DB, environmentID string, logger *logging.ChanneledLogger) *SQLSessionRepository {
	return &SQLSessionRepository{db: db, environmentID: environmentID, logger: logger}
}

// Create saves a new session and, when supplied, its start event in one
// transaction.
func (r *SQLSessionRepository) Create(ctx context.Context, s *session.BizSession, startEvent *session.BizEvent) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := insertSession(ctx, tx, s); err != nil {
			return err
		}
		if startEvent != nil {
			return insertEvent(ctx, tx, startEvent)
		}
		return nil
	})
}

// GetByID retrieves a session by its unique identifier.
func (r *SQLSessionRepository) GetByID(ctx context.Context, id string) (*session.BizSession, error) {
	return getSession(ctx, r.db, id)
}

// LatestByUser returns the most recent session per content id for one user.
func (r *SQLSessionRepository) LatestByUser(ctx context.Context, bizUserID string) (map[string]*session.BizSession, error) {
	start := time.Now()
	const query = `
		SELECT id, content_id, version_id, biz_user_id, state, progress, created_at
		FROM biz_sessions
		WHERE biz_user_id = ?
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, bizUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Rows arrive oldest-first so the final write per content id wins.
	latest := make(map[string]*session.BizSession)
	for rows.Next() {
		s, err := scanSessionFromRows(rows)
		if err != nil {
			return nil, err
		}
		latest[s.ContentID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	database.CheckAndLogSlowQuery(r.logger, "LatestSessionsByUser", time.Since(start), r.environmentID)
	return latest, nil
}

// UpdateVersion repoints an existing session at another content version.
func (r *SQLSessionRepository) UpdateVersion(ctx context.Context, sessionID, versionID string) error {
	const query = `UPDATE biz_sessions SET version_id = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, versionID, sessionID)
	return err
}

// ListEvents returns a session's events, oldest first.
func (r *SQLSessionRepository) ListEvents(ctx context.Context, sessionID string) ([]*session.BizEvent, error) {
	return listEvents(ctx, r.db, sessionID)
}

// WithTx runs fn against a transaction-scoped view of this repository.
func (r *SQLSessionRepository) WithTx(ctx context.Context, fn func(tx repositories.SessionTx) error) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(&sqlSessionTx{tx: tx})
	})
}

// sqlSessionTx is the transaction-scoped surface. All reads and writes go
// through the same *sql.Tx so the ended check holds at commit time.
type sqlSessionTx struct {
	tx *sql.Tx
}

func (t *sqlSessionTx) GetSession(ctx context.Context, id string) (*session.BizSession, error) {
	return getSession(ctx, t.tx, id)
}

func (t *sqlSessionTx) ListEvents(ctx context.Context, sessionID string) ([]*session.BizEvent, error) {
	return listEvents(ctx, t.tx, sessionID)
}

func (t *sqlSessionTx) InsertEvent(ctx context.Context, ev *session.BizEvent) error {
	return insertEvent(ctx, t.tx, ev)
}

func (t *sqlSessionTx) UpdateSessionProgressState(ctx context.Context, sessionID string, progress *int, state int) error {
	if progress != nil {
		const query = `UPDATE biz_sessions SET progress = ?, state = ? WHERE id = ?`
		_, err := t.tx.ExecContext(ctx, query, *progress, state, sessionID)
		return err
	}
	const query = `UPDATE biz_sessions SET state = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, query, state, sessionID)
	return err
}

func (t *sqlSessionTx) InsertAnswer(ctx context.Context, ans *session.BizAnswer) error {
	const query = `
		INSERT INTO biz_answers (id, biz_event_id, content_id, version_id, question_id, number_answer, text_answer, list_answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var listAnswer any
	if len(ans.ListAnswer) > 0 {
		raw, err := json.Marshal(ans.ListAnswer)
		if err != nil {
			return err
		}
		listAnswer = string(raw)
	}

	createdAt := ans.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := t.tx.ExecContext(ctx, query,
		ans.ID, ans.BizEventID, ans.ContentID, ans.VersionID, ans.QuestionID,
		ans.NumberAnswer, ans.TextAnswer, listAnswer, createdAt.Format(time.RFC3339),
	)
	return err
}

func (t *sqlSessionTx) UpdateUserData(ctx context.Context, bizUserID string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	const query = `UPDATE biz_users SET data = ? WHERE id = ?`
	_, err = t.tx.ExecContext(ctx, query, string(raw), bizUserID)
	return err
}

func (t *sqlSessionTx) UpdateCompanyData(ctx context.Context, bizCompanyID string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	const query = `UPDATE biz_companies SET data = ? WHERE id = ?`
	_, err = t.tx.ExecContext(ctx, query, string(raw), bizCompanyID)
	return err
}

// ====== shared scan helpers ======

func getSession(ctx context.Context, q querier, id string) (*session.BizSession, error) {
	const query = `
		SELECT id, content_id, version_id, biz_user_id, state, progress, created_at
		FROM biz_sessions
		WHERE id = ?`

	s := &session.BizSession{}
	var createdAtStr string
	err := q.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.ContentID, &s.VersionID, &s.BizUserID, &s.State, &s.Progress, &createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	s.CreatedAt = parseTimestamp(createdAtStr)
	return s, nil
}

func insertSession(ctx context.Context, q querier, s *session.BizSession) error {
	const query = `
		INSERT INTO biz_sessions (id, content_id, version_id, biz_user_id, state, progress, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
		s.CreatedAt = createdAt
	}

	_, err := q.ExecContext(ctx, query,
		s.ID, s.ContentID, s.VersionID, s.BizUserID, s.State, s.Progress,
		createdAt.Format(time.RFC3339Nano),
	)
	return err
}

func insertEvent(ctx context.Context, q querier, ev *session.BizEvent) error {
	const query = `
		INSERT INTO biz_events (id, biz_user_id, event_id, biz_session_id, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	var data any
	if len(ev.Data) > 0 {
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			return err
		}
		data = string(raw)
	}

	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
		ev.CreatedAt = createdAt
	}

	_, err := q.ExecContext(ctx, query,
		ev.ID, ev.BizUserID, ev.EventID, ev.BizSessionID, data,
		createdAt.Format(time.RFC3339Nano),
	)
	return err
}

func listEvents(ctx context.Context, q querier, sessionID string) ([]*session.BizEvent, error) {
	const query = `
		SELECT id, biz_user_id, event_id, biz_session_id, data, created_at
		FROM biz_events
		WHERE biz_session_id = ?
		ORDER BY created_at ASC`

	rows, err := q.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*session.BizEvent
	for rows.Next() {
		ev := &session.BizEvent{}
		var data sql.NullString
		var createdAtStr string
		if err := rows.Scan(&ev.ID, &ev.BizUserID, &ev.EventID, &ev.BizSessionID, &data, &createdAtStr); err != nil {
			return nil, err
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &ev.Data); err != nil {
				return nil, err
			}
		}
		ev.CreatedAt = parseTimestamp(createdAtStr)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanSessionFromRows(rows *sql.Rows) (*session.BizSession, error) {
	s := &session.BizSession{}
	var createdAtStr string
	if err := rows.Scan(&s.ID, &s.ContentID, &s.VersionID, &s.BizUserID, &s.State, &s.Progress, &createdAtStr); err != nil {
		return nil, err
	}
	s.CreatedAt = parseTimestamp(createdAtStr)
	return s, nil
}

// parseTimestamp parses stored timestamps, tolerating the legacy space-
// separated format.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/GoCodeAlone/sahara/audit"
	"github.com/GoCodeAlone/sahara/risk"
)

// sqliteTime sorts lexically in chronological order for UTC values.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS screenings (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	type         TEXT NOT NULL,
	responses    TEXT NOT NULL DEFAULT '{}',
	score        INTEGER NOT NULL,
	severity     TEXT NOT NULL,
	degraded     INTEGER NOT NULL DEFAULT 0,
	completed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_screenings_session ON screenings (session_id, completed_at);

CREATE TABLE IF NOT EXISTS chat_messages (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	message       TEXT NOT NULL,
	response      TEXT NOT NULL,
	sentiment     TEXT NOT NULL DEFAULT '',
	risk_level    TEXT NOT NULL DEFAULT '',
	risk_detected INTEGER NOT NULL DEFAULT 0,
	escalated     INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_session ON chat_messages (session_id, created_at);

CREATE TABLE IF NOT EXISTS escalations (
	id                TEXT PRIMARY KEY,
	session_ref       TEXT NOT NULL,
	timestamp         TEXT NOT NULL,
	risk_level        TEXT NOT NULL,
	content_summary   TEXT NOT NULL,
	actions_taken     TEXT NOT NULL DEFAULT '[]',
	requires_followup INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_escalations_session ON escalations (session_ref, timestamp);
`

// SQLiteStore implements Store on a SQLite database. It is the default
// single-node backend.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens the database at dbPath, creating parent directories
// and tables as needed. ":memory:" opens a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateScreening implements ScreeningStore.
func (s *SQLiteStore) CreateScreening(ctx context.Context, sc *Screening) error {
	if err := prepareScreening(sc, s.now(), uuid.NewString); err != nil {
		return err
	}
	responses, err := json.Marshal(sc.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO screenings (id, session_id, type, responses, score, severity, degraded, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.SessionID, sc.Type, string(responses), sc.Score, sc.Severity, sc.Degraded,
		sc.CompletedAt.UTC().Format(sqliteTime),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert screening: %w", err)
	}
	return nil
}

// ListScreenings implements ScreeningStore.
func (s *SQLiteStore) ListScreenings(ctx context.Context, sessionID string) ([]*Screening, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, type, responses, score, severity, degraded, completed_at
		 FROM screenings WHERE session_id = ? ORDER BY completed_at DESC, rowid DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query screenings: %w", err)
	}
	defer rows.Close()

	var out []*Screening
	for rows.Next() {
		var sc Screening
		var responses, completed string
		if err := rows.Scan(&sc.ID, &sc.SessionID, &sc.Type, &responses, &sc.Score, &sc.Severity, &sc.Degraded, &completed); err != nil {
			return nil, fmt.Errorf("scan screening: %w", err)
		}
		if err := json.Unmarshal([]byte(responses), &sc.Responses); err != nil {
			return nil, fmt.Errorf("unmarshal responses: %w", err)
		}
		if sc.CompletedAt, err = parseSQLiteTime("completed_at", completed); err != nil {
			return nil, fmt.Errorf("scan screening %s: %w", sc.ID, err)
		}
		out = append(out, &sc)
	}
	return out, rows.Err()
}

// LatestScores implements ScreeningStore.
func (s *SQLiteStore) LatestScores(ctx context.Context, sessionID string, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, score, completed_at FROM screenings
		 WHERE session_id = ? AND completed_at >= ?
		 ORDER BY completed_at DESC, rowid DESC`,
		sessionID, since.UTC().Format(sqliteTime))
	if err != nil {
		return nil, fmt.Errorf("query latest scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]int)
	for rows.Next() {
		var typ, completed string
		var score int
		if err := rows.Scan(&typ, &score, &completed); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		if _, err := parseSQLiteTime("completed_at", completed); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		if _, seen := scores[typ]; !seen {
			scores[typ] = score
		}
	}
	return scores, rows.Err()
}

// Insights implements ScreeningStore.
func (s *SQLiteStore) Insights(ctx context.Context) (*Insights, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, severity, COUNT(*) FROM screenings GROUP BY type, severity ORDER BY type, severity`)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	defer rows.Close()

	out := &Insights{RiskDistribution: []InsightBucket{}}
	for rows.Next() {
		var b InsightBucket
		if err := rows.Scan(&b.ScreeningType, &b.RiskLevel, &b.Count); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		out.TotalScreenings += b.Count
		out.RiskDistribution = append(out.RiskDistribution, b)
	}
	return out, rows.Err()
}

// CreateMessage implements ChatStore.
func (s *SQLiteStore) CreateMessage(ctx context.Context, m *ChatMessage) error {
	if err := prepareMessage(m, s.now(), uuid.NewString); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, message, response, sentiment, risk_level, risk_detected, escalated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Message, m.Response, m.Sentiment, m.RiskLevel, m.RiskDetected, m.Escalated,
		m.CreatedAt.UTC().Format(sqliteTime),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ListMessages implements ChatStore.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, message, response, sentiment, risk_level, risk_detected, escalated, created_at
		 FROM chat_messages WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		sessionID, historyLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var out []*ChatMessage
	for rows.Next() {
		var m ChatMessage
		var created string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Message, &m.Response, &m.Sentiment, &m.RiskLevel,
			&m.RiskDetected, &m.Escalated, &created); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if m.CreatedAt, err = parseSQLiteTime("created_at", created); err != nil {
			return nil, fmt.Errorf("scan chat message %s: %w", m.ID, err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// SaveEscalation implements EscalationStore.
func (s *SQLiteStore) SaveEscalation(ctx context.Context, rec audit.Record) error {
	if rec.ID == "" || rec.SessionRef == "" {
		return ErrInvalid
	}
	actions, err := json.Marshal(rec.ActionsTaken)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO escalations (id, session_ref, timestamp, risk_level, content_summary, actions_taken, requires_followup)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionRef, rec.Timestamp.UTC().Format(sqliteTime), string(rec.RiskLevel),
		rec.ContentSummary, string(actions), rec.RequiresFollowup,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert escalation: %w", err)
	}
	return nil
}

// ListEscalations implements EscalationStore.
func (s *SQLiteStore) ListEscalations(ctx context.Context, sessionID string) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_ref, timestamp, risk_level, content_summary, actions_taken, requires_followup
		 FROM escalations WHERE session_ref = ? ORDER BY timestamp, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query escalations: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var rec audit.Record
		var ts, level, actions string
		if err := rows.Scan(&rec.ID, &rec.SessionRef, &ts, &level, &rec.ContentSummary, &actions, &rec.RequiresFollowup); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		if rec.Timestamp, err = parseSQLiteTime("timestamp", ts); err != nil {
			return nil, fmt.Errorf("scan escalation %s: %w", rec.ID, err)
		}
		rec.RiskLevel = risk.Level(level)
		if err := json.Unmarshal([]byte(actions), &rec.ActionsTaken); err != nil {
			return nil, fmt.Errorf("unmarshal actions: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func parseSQLiteTime(column, v string) (time.Time, error) {
	t, err := time.Parse(sqliteTime, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed %s %q: %w", column, v, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}

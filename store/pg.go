package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GoCodeAlone/sahara/audit"
	"github.com/GoCodeAlone/sahara/risk"
)

// PGConfig holds PostgreSQL connection configuration.
type PGConfig struct {
	URL      string `yaml:"url" json:"url"`
	MaxConns int32  `yaml:"max_conns" json:"max_conns"`
	MinConns int32  `yaml:"min_conns" json:"min_conns"`
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPGStore connects to PostgreSQL and applies pending migrations.
func NewPGStore(ctx context.Context, cfg PGConfig) (*PGStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse pg config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	if err := NewMigrator(pool).Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PGStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Pool returns the underlying pgxpool.Pool.
func (s *PGStore) Pool() *pgxpool.Pool { return s.pool }

// Close closes the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateScreening implements ScreeningStore.
func (s *PGStore) CreateScreening(ctx context.Context, sc *Screening) error {
	if err := prepareScreening(sc, s.now(), uuid.NewString); err != nil {
		return err
	}
	responses, err := json.Marshal(sc.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO screenings (id, session_id, type, responses, score, severity, degraded, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		sc.ID, sc.SessionID, sc.Type, responses, sc.Score, sc.Severity, sc.Degraded, sc.CompletedAt)
	if err != nil {
		return pgError("insert screening", err)
	}
	return nil
}

// ListScreenings implements ScreeningStore.
func (s *PGStore) ListScreenings(ctx context.Context, sessionID string) ([]*Screening, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, session_id, type, responses, score, severity, degraded, completed_at
		FROM screenings WHERE session_id = $1 ORDER BY completed_at DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query screenings: %w", err)
	}
	defer rows.Close()

	var out []*Screening
	for rows.Next() {
		var sc Screening
		var responses []byte
		if err := rows.Scan(&sc.ID, &sc.SessionID, &sc.Type, &responses, &sc.Score, &sc.Severity, &sc.Degraded, &sc.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan screening: %w", err)
		}
		if err := json.Unmarshal(responses, &sc.Responses); err != nil {
			return nil, fmt.Errorf("unmarshal responses: %w", err)
		}
		out = append(out, &sc)
	}
	return out, rows.Err()
}

// LatestScores implements ScreeningStore.
func (s *PGStore) LatestScores(ctx context.Context, sessionID string, since time.Time) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (type) type, score
		FROM screenings
		WHERE session_id = $1 AND completed_at >= $2
		ORDER BY type, completed_at DESC`, sessionID, since)
	if err != nil {
		return nil, fmt.Errorf("query latest scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]int)
	for rows.Next() {
		var typ string
		var score int
		if err := rows.Scan(&typ, &score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores[typ] = score
	}
	return scores, rows.Err()
}

// Insights implements ScreeningStore.
func (s *PGStore) Insights(ctx context.Context) (*Insights, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT type, severity, COUNT(*) FROM screenings
		GROUP BY type, severity ORDER BY type, severity`)
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
func (s *PGStore) CreateMessage(ctx context.Context, m *ChatMessage) error {
	if err := prepareMessage(m, s.now(), uuid.NewString); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, session_id, message, response, sentiment, risk_level, risk_detected, escalated, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		m.ID, m.SessionID, m.Message, m.Response, m.Sentiment, m.RiskLevel, m.RiskDetected, m.Escalated, m.CreatedAt)
	if err != nil {
		return pgError("insert chat message", err)
	}
	return nil
}

// ListMessages implements ChatStore.
func (s *PGStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, session_id, message, response, sentiment, risk_level, risk_detected, escalated, created_at
		FROM chat_messages WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`,
		sessionID, historyLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var out []*ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Message, &m.Response, &m.Sentiment, &m.RiskLevel,
			&m.RiskDetected, &m.Escalated, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// SaveEscalation implements EscalationStore.
func (s *PGStore) SaveEscalation(ctx context.Context, rec audit.Record) error {
	if rec.ID == "" || rec.SessionRef == "" {
		return ErrInvalid
	}
	actions, err := json.Marshal(rec.ActionsTaken)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO escalations (id, session_ref, timestamp, risk_level, content_summary, actions_taken, requires_followup)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, rec.SessionRef, rec.Timestamp, string(rec.RiskLevel), rec.ContentSummary, actions, rec.RequiresFollowup)
	if err != nil {
		return pgError("insert escalation", err)
	}
	return nil
}

// ListEscalations implements EscalationStore.
func (s *PGStore) ListEscalations(ctx context.Context, sessionID string) ([]audit.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, session_ref, timestamp, risk_level, content_summary, actions_taken, requires_followup
		FROM escalations WHERE session_ref = $1 ORDER BY timestamp`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query escalations: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var rec audit.Record
		var level string
		var actions []byte
		if err := rows.Scan(&rec.ID, &rec.SessionRef, &rec.Timestamp, &level, &rec.ContentSummary, &actions, &rec.RequiresFollowup); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		rec.RiskLevel = risk.Level(level)
		if err := json.Unmarshal(actions, &rec.ActionsTaken); err != nil {
			return nil, fmt.Errorf("unmarshal actions: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// pgError maps unique violations to ErrDuplicate and wraps everything else.
func pgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}

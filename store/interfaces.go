package store

import (
	"context"
	"time"

	"github.com/GoCodeAlone/sahara/audit"
)

// ScreeningStore persists questionnaire results.
type ScreeningStore interface {
	CreateScreening(ctx context.Context, s *Screening) error
	// ListScreenings returns a session's screenings, newest first.
	ListScreenings(ctx context.Context, sessionID string) ([]*Screening, error)
	// LatestScores returns, per questionnaire, the most recent score the
	// session completed at or after since.
	LatestScores(ctx context.Context, sessionID string, since time.Time) (map[string]int, error)
	Insights(ctx context.Context) (*Insights, error)
}

// ChatStore persists chat exchanges.
type ChatStore interface {
	CreateMessage(ctx context.Context, m *ChatMessage) error
	// ListMessages returns up to limit messages, newest first.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error)
}

// EscalationStore persists escalation audit records.
type EscalationStore interface {
	SaveEscalation(ctx context.Context, rec audit.Record) error
	// ListEscalations returns a session's records, oldest first.
	ListEscalations(ctx context.Context, sessionID string) ([]audit.Record, error)
}

// Store groups every persistence concern.
type Store interface {
	ScreeningStore
	ChatStore
	EscalationStore
	Close() error
}

// AuditSink adapts an EscalationStore to audit.Sink.
func AuditSink(s EscalationStore) audit.Sink {
	return escalationSink{s}
}

type escalationSink struct{ s EscalationStore }

func (e escalationSink) Publish(ctx context.Context, rec audit.Record) error {
	return e.s.SaveEscalation(ctx, rec)
}

func prepareScreening(s *Screening, now time.Time, newID func() string) error {
	if s.SessionID == "" || s.Type == "" {
		return ErrInvalid
	}
	if s.ID == "" {
		s.ID = newID()
	}
	if s.CompletedAt.IsZero() {
		s.CompletedAt = now
	}
	return nil
}

func prepareMessage(m *ChatMessage, now time.Time, newID func() string) error {
	if m.SessionID == "" {
		return ErrInvalid
	}
	if m.ID == "" {
		m.ID = newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	return nil
}

func historyLimit(limit int) int {
	if limit <= 0 || limit > DefaultHistoryLimit {
		return DefaultHistoryLimit
	}
	return limit
}

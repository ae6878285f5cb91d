package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/sahara/audit"
)

// MemoryStore keeps everything in process memory. It is used for tests and
// the development profile.
type MemoryStore struct {
	mu          sync.RWMutex
	screenings  []*Screening
	messages    []*ChatMessage
	escalations []audit.Record
	now         func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

// CreateScreening implements ScreeningStore.
func (m *MemoryStore) CreateScreening(_ context.Context, s *Screening) error {
	if err := prepareScreening(s, m.now(), uuid.NewString); err != nil {
		return err
	}
	cp := cloneScreening(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.screenings {
		if existing.ID == cp.ID {
			return ErrDuplicate
		}
	}
	m.screenings = append(m.screenings, cp)
	return nil
}

// ListScreenings implements ScreeningStore.
func (m *MemoryStore) ListScreenings(_ context.Context, sessionID string) ([]*Screening, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Screening
	for i := len(m.screenings) - 1; i >= 0; i-- {
		if s := m.screenings[i]; s.SessionID == sessionID {
			out = append(out, cloneScreening(s))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out, nil
}

// LatestScores implements ScreeningStore.
func (m *MemoryStore) LatestScores(ctx context.Context, sessionID string, since time.Time) (map[string]int, error) {
	list, err := m.ListScreenings(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	scores := make(map[string]int)
	for _, s := range list {
		if s.CompletedAt.Before(since) {
			continue
		}
		if _, seen := scores[s.Type]; !seen {
			scores[s.Type] = s.Score
		}
	}
	return scores, nil
}

// Insights implements ScreeningStore.
func (m *MemoryStore) Insights(_ context.Context) (*Insights, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type key struct{ t, l string }
	counts := make(map[key]int)
	for _, s := range m.screenings {
		counts[key{s.Type, s.Severity}]++
	}
	out := &Insights{TotalScreenings: len(m.screenings), RiskDistribution: []InsightBucket{}}
	for k, n := range counts {
		out.RiskDistribution = append(out.RiskDistribution, InsightBucket{ScreeningType: k.t, RiskLevel: k.l, Count: n})
	}
	sortBuckets(out.RiskDistribution)
	return out, nil
}

// CreateMessage implements ChatStore.
func (m *MemoryStore) CreateMessage(_ context.Context, msg *ChatMessage) error {
	if err := prepareMessage(msg, m.now(), uuid.NewString); err != nil {
		return err
	}
	cp := *msg
	m.mu.Lock()
	m.messages = append(m.messages, &cp)
	m.mu.Unlock()
	return nil
}

// ListMessages implements ChatStore.
func (m *MemoryStore) ListMessages(_ context.Context, sessionID string, limit int) ([]*ChatMessage, error) {
	limit = historyLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ChatMessage
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if msg := m.messages[i]; msg.SessionID == sessionID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

// SaveEscalation implements EscalationStore.
func (m *MemoryStore) SaveEscalation(_ context.Context, rec audit.Record) error {
	if rec.ID == "" || rec.SessionRef == "" {
		return ErrInvalid
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.escalations {
		if existing.ID == rec.ID {
			return ErrDuplicate
		}
	}
	rec.ActionsTaken = append([]string(nil), rec.ActionsTaken...)
	m.escalations = append(m.escalations, rec)
	return nil
}

// ListEscalations implements EscalationStore.
func (m *MemoryStore) ListEscalations(_ context.Context, sessionID string) ([]audit.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []audit.Record
	for _, rec := range m.escalations {
		if rec.SessionRef == sessionID {
			rec.ActionsTaken = append([]string(nil), rec.ActionsTaken...)
			out = append(out, rec)
		}
	}
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

func cloneScreening(s *Screening) *Screening {
	cp := *s
	cp.Responses = maps.Clone(s.Responses)
	return &cp
}

func sortBuckets(b []InsightBucket) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].ScreeningType != b[j].ScreeningType {
			return b[i].ScreeningType < b[j].ScreeningType
		}
		return b[i].RiskLevel < b[j].RiskLevel
	})
}

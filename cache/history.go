// Package cache holds the short-term per-session risk history consulted by
// the escalation policy.
package cache

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GoCodeAlone/sahara/escalation"
)

// HistoryStore records the risk level of each assessed message per session.
type HistoryStore interface {
	Append(ctx context.Context, sessionID string, e escalation.Entry) error
	// Recent returns entries at or after since, oldest first.
	Recent(ctx context.Context, sessionID string, since time.Time) ([]escalation.Entry, error)
}

// HistoryConfig configures a history store.
type HistoryConfig struct {
	// Retention is how long entries are kept. It should be at least the
	// escalation recency window.
	Retention time.Duration
	// MaxSessions bounds the in-memory store; the least recently active
	// session is evicted first.
	MaxSessions int
	// Now is the clock used for retention pruning. Defaults to time.Now.
	Now func() time.Time
}

// DefaultHistoryConfig returns sensible defaults.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Retention:   24 * time.Hour,
		MaxSessions: 10000,
	}
}

func (c HistoryConfig) withDefaults() HistoryConfig {
	def := DefaultHistoryConfig()
	if c.Retention <= 0 {
		c.Retention = def.Retention
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = def.MaxSessions
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// MemoryHistory is a thread-safe HistoryStore with retention pruning and
// LRU eviction of whole sessions.
type MemoryHistory struct {
	mu        sync.Mutex
	sessions  map[string]*list.Element
	eviction  *list.List // front = most recently active
	cfg       HistoryConfig
	now       func() time.Time
	evictions int64
}

type sessionHistory struct {
	id      string
	entries []escalation.Entry
}

// NewMemoryHistory creates an in-memory history store.
func NewMemoryHistory(cfg HistoryConfig) *MemoryHistory {
	cfg = cfg.withDefaults()
	return &MemoryHistory{
		sessions: make(map[string]*list.Element),
		eviction: list.New(),
		cfg:      cfg,
		now:      cfg.Now,
	}
}

// Append implements HistoryStore.
func (m *MemoryHistory) Append(_ context.Context, sessionID string, e escalation.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.sessions[sessionID]
	if !ok {
		for m.eviction.Len() >= m.cfg.MaxSessions {
			m.evictLocked()
		}
		elem = m.eviction.PushFront(&sessionHistory{id: sessionID})
		m.sessions[sessionID] = elem
	}
	m.eviction.MoveToFront(elem)

	h := elem.Value.(*sessionHistory)
	h.entries = append(h.entries, e)
	sort.SliceStable(h.entries, func(i, j int) bool { return h.entries[i].Timestamp.Before(h.entries[j].Timestamp) })
	h.entries = pruneBefore(h.entries, m.now().Add(-m.cfg.Retention))
	return nil
}

// Recent implements HistoryStore.
func (m *MemoryHistory) Recent(_ context.Context, sessionID string, since time.Time) ([]escalation.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	h := elem.Value.(*sessionHistory)
	kept := pruneBefore(h.entries, since)
	return append([]escalation.Entry(nil), kept...), nil
}

// Len returns the number of tracked sessions.
func (m *MemoryHistory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eviction.Len()
}

// Evictions returns how many sessions were dropped for capacity.
func (m *MemoryHistory) Evictions() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictions
}

// PurgeExpired drops sessions with no entries inside the retention period.
func (m *MemoryHistory) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.cfg.Retention)
	purged := 0
	var next *list.Element
	for e := m.eviction.Front(); e != nil; e = next {
		next = e.Next()
		h := e.Value.(*sessionHistory)
		h.entries = pruneBefore(h.entries, cutoff)
		if len(h.entries) == 0 {
			m.removeLocked(e)
			purged++
		}
	}
	return purged
}

func (m *MemoryHistory) evictLocked() {
	if back := m.eviction.Back(); back != nil {
		m.removeLocked(back)
		m.evictions++
	}
}

func (m *MemoryHistory) removeLocked(elem *list.Element) {
	delete(m.sessions, elem.Value.(*sessionHistory).id)
	m.eviction.Remove(elem)
}

// pruneBefore returns the suffix of sorted entries at or after cutoff.
func pruneBefore(entries []escalation.Entry, cutoff time.Time) []escalation.Entry {
	i := sort.Search(len(entries), func(i int) bool { return !entries[i].Timestamp.Before(cutoff) })
	return entries[i:]
}

package engine

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/GoCodeAlone/sahara/ai/classifier"
	"github.com/GoCodeAlone/sahara/ai/responder"
	"github.com/GoCodeAlone/sahara/ai/sentiment"
	"github.com/GoCodeAlone/sahara/audit"
	"github.com/GoCodeAlone/sahara/cache"
	"github.com/GoCodeAlone/sahara/escalation"
	"github.com/GoCodeAlone/sahara/metrics"
	"github.com/GoCodeAlone/sahara/observability/tracing"
	"github.com/GoCodeAlone/sahara/risk"
	"github.com/GoCodeAlone/sahara/screening"
	"github.com/GoCodeAlone/sahara/store"
)

// Builder provides a fluent API for constructing an Engine. Anything not
// set falls back to an in-memory default, so
//
//	eng, err := engine.NewBuilder().Build()
//
// yields a working engine for tests and development.
type Builder struct {
	logger  *slog.Logger
	store   store.Store
	history cache.HistoryStore
	sinks   []audit.Sink
	metrics *metrics.Collector
	tracer  *tracing.AssessmentTracer
	rng     *rand.Rand
	now     func() time.Time

	policy        escalation.Config
	excerptLength int
	redactPII     bool
	newID         func() string
}

// NewBuilder creates a Builder with default policy configuration.
func NewBuilder() *Builder {
	return &Builder{policy: escalation.DefaultConfig()}
}

// WithLogger sets the logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithStore sets the persistence backend. Defaults to a MemoryStore.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithHistory sets the session risk history. Defaults to a MemoryHistory
// retained for the policy window.
func (b *Builder) WithHistory(h cache.HistoryStore) *Builder {
	b.history = h
	return b
}

// WithSink adds an export sink. Records are always saved to the store
// first; added sinks receive them afterwards.
func (b *Builder) WithSink(s audit.Sink) *Builder {
	if s != nil {
		b.sinks = append(b.sinks, s)
	}
	return b
}

// WithMetrics sets the metrics collector. A nil collector records nothing.
func (b *Builder) WithMetrics(m *metrics.Collector) *Builder {
	b.metrics = m
	return b
}

// WithTracer sets the span source. Defaults to the global tracer provider.
func (b *Builder) WithTracer(t *tracing.AssessmentTracer) *Builder {
	b.tracer = t
	return b
}

// WithRand sets the random source used to pick replies.
func (b *Builder) WithRand(rng *rand.Rand) *Builder {
	b.rng = rng
	return b
}

// WithClock sets the clock used for timestamps and the policy window.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithPolicy sets the recency window and repeat threshold.
func (b *Builder) WithPolicy(window time.Duration, repeatThreshold int) *Builder {
	b.policy.Window = window
	b.policy.RepeatThreshold = repeatThreshold
	return b
}

// WithExcerptLength caps the content kept in audit records.
func (b *Builder) WithExcerptLength(n int) *Builder {
	b.excerptLength = n
	return b
}

// WithPIIRedaction masks emails, phone numbers and similar details in
// audit record summaries.
func (b *Builder) WithPIIRedaction(on bool) *Builder {
	b.redactPII = on
	return b
}

// WithIDGenerator sets the audit record id source.
func (b *Builder) WithIDGenerator(gen func() string) *Builder {
	b.newID = gen
	return b
}

// Build validates the questionnaire tables and assembles the Engine.
func (b *Builder) Build() (*Engine, error) {
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	scorer, err := screening.NewScorer(logger)
	if err != nil {
		return nil, err
	}

	policyCfg := b.policy
	policyCfg.Now = now
	policy := escalation.NewPolicy(policyCfg)

	recOpts := []audit.RecorderOption{audit.WithClock(now), audit.WithExcerptLength(b.excerptLength)}
	if b.newID != nil {
		recOpts = append(recOpts, audit.WithIDGenerator(b.newID))
	}
	if b.redactPII {
		recOpts = append(recOpts, audit.WithRedactor(audit.NewRedactor()))
	}

	st := b.store
	if st == nil {
		st = store.NewMemoryStore()
	}
	history := b.history
	if history == nil {
		history = cache.NewMemoryHistory(cache.HistoryConfig{Retention: policy.Window(), Now: now})
	}
	tracer := b.tracer
	if tracer == nil {
		tracer = tracing.NewAssessmentTracer(nil)
	}

	sinks := append(audit.Fanout{store.AuditSink(st)}, b.sinks...)

	return &Engine{
		scorer:     scorer,
		classifier: classifier.New(),
		aggregator: risk.NewAggregator(),
		policy:     policy,
		recorder:   audit.NewRecorder(recOpts...),
		responder:  responder.New(b.rng),
		sentiment:  sentiment.NewAnalyzer(),
		store:      st,
		history:    history,
		sink:       sinks,
		metrics:    b.metrics,
		tracer:     tracer,
		logger:     logger,
		now:        now,
	}, nil
}

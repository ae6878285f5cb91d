package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/sahara/ai/classifier"
	"github.com/GoCodeAlone/sahara/audit"
	"github.com/GoCodeAlone/sahara/escalation"
	"github.com/GoCodeAlone/sahara/metrics"
	"github.com/GoCodeAlone/sahara/risk"
	"github.com/GoCodeAlone/sahara/store"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, opts ...func(*Builder)) (*Engine, *metrics.Collector) {
	t.Helper()
	m := metrics.New(metrics.DefaultConfig())
	b := NewBuilder().
		WithClock(func() time.Time { return testNow }).
		WithRand(rand.New(rand.NewPCG(1, 2))).
		WithMetrics(m)
	for _, opt := range opts {
		opt(b)
	}
	eng, err := b.Build()
	require.NoError(t, err)
	return eng, m
}

func answers(n int, v any) map[string]any {
	out := make(map[string]any, n)
	for i := 1; i <= n; i++ {
		out[fmt.Sprintf("q%d", i)] = v
	}
	return out
}

func TestAssessMessage_HighRiskEscalates(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	out, err := eng.AssessMessage(ctx, "s1", "I want to end my life")
	require.NoError(t, err)

	assert.Equal(t, risk.LevelHigh, out.Decision.Level)
	assert.True(t, out.Decision.Escalate)
	assert.Equal(t, escalation.PriorityUrgent, out.Decision.Priority)
	require.NotNil(t, out.Record)
	assert.True(t, out.Record.RequiresFollowup)

	assert.True(t, out.Message.RiskDetected)
	assert.True(t, out.Message.Escalated)
	assert.Contains(t, out.Message.Response, "988")

	records, err := eng.Escalations(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, out.Record.ID, records[0].ID)

	msgs, err := eng.ChatHistory(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "high", msgs[0].RiskLevel)
}

func TestAssessMessage_RejectsInvalidInput(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.AssessMessage(ctx, "s1", "   ")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = eng.AssessMessage(ctx, "", "hello")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	msgs, err := eng.ChatHistory(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAssessMessage_RepeatedModerateEscalates(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := eng.AssessMessage(ctx, "s1", "I feel hopeless")
		require.NoError(t, err)
		assert.Equal(t, risk.LevelModerate, out.Decision.Level)
		assert.False(t, out.Decision.Escalate, "message %d should not escalate", i+1)
		assert.Equal(t, escalation.PriorityHigh, out.Decision.Priority)
		assert.NotNil(t, out.Record, "moderate risk requires follow-up")
	}

	out, err := eng.AssessMessage(ctx, "s1", "I feel hopeless")
	require.NoError(t, err)
	assert.True(t, out.Decision.Escalate)
	assert.Equal(t, escalation.PriorityUrgent, out.Decision.Priority)

	// Another session's history is independent.
	other, err := eng.AssessMessage(ctx, "s2", "I feel hopeless")
	require.NoError(t, err)
	assert.False(t, other.Decision.Escalate)
}

func TestAssessMessage_QuestionnaireBonus(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	sub, err := eng.SubmitScreening(ctx, "s1", "PHQ9", answers(9, "Nearly every day"))
	require.NoError(t, err)
	assert.Equal(t, 27, sub.Result.Total)
	assert.Equal(t, "severe", sub.Result.Severity)

	out, err := eng.AssessMessage(ctx, "s1", "I feel hopeless")
	require.NoError(t, err)
	assert.Equal(t, 5, out.Assessment.QuestionnaireBonus)
	assert.Equal(t, 11, out.Assessment.TotalScore)
	assert.Equal(t, risk.LevelHigh, out.Decision.Level)
	assert.True(t, out.Decision.Escalate)
}

func TestAssessMessage_SubstanceMentionKeepsTopic(t *testing.T) {
	eng, _ := newTestEngine(t)

	out, err := eng.AssessMessage(context.Background(), "s1", "my doctor changed my pills, feeling sad")
	require.NoError(t, err)

	assert.Equal(t, risk.LevelModerate, out.Decision.Level)
	assert.Equal(t, classifier.TopicDepression, out.Classification.Topic)
	assert.False(t, out.Message.RiskDetected)
	assert.NotContains(t, out.Message.Response, "988")
}

func TestAssessMessage_LowRiskHasNoRecord(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.SubmitScreening(ctx, "s1", "GAD7", answers(7, 3))
	require.NoError(t, err)

	out, err := eng.AssessMessage(ctx, "s1", "hello there")
	require.NoError(t, err)
	assert.Equal(t, risk.LevelLow, out.Decision.Level)
	assert.Nil(t, out.Record)
	assert.Empty(t, out.Decision.Resources)
	assert.False(t, out.Message.RiskDetected)

	records, err := eng.Escalations(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

type failingSink struct{ calls int }

func (f *failingSink) Publish(context.Context, audit.Record) error {
	f.calls++
	return errors.New("broker unavailable")
}

func TestAssessMessage_SinkFailureDoesNotBlockReply(t *testing.T) {
	sink := &failingSink{}
	eng, m := newTestEngine(t, func(b *Builder) { b.WithSink(sink) })

	out, err := eng.AssessMessage(context.Background(), "s1", "I want to die")
	require.NoError(t, err)
	assert.True(t, out.Decision.Escalate)
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SinkFailures.WithLabelValues("audit")))

	records, err := eng.Escalations(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, records, 1, "the store receives the record before export sinks")
}

func TestAssess_PureComposition(t *testing.T) {
	eng, m := newTestEngine(t)

	out, err := eng.Assess(context.Background(), AssessInput{
		SessionID: "s1",
		Text:      "I've been drinking too much",
		Scores:    map[string]int{"GHQ": 12, "BDI": 40},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, out.Assessment.LexicalScore)
	assert.Equal(t, 4, out.Assessment.QuestionnaireBonus)
	assert.Equal(t, risk.LevelHigh, out.Decision.Level)
	assert.Equal(t, []string{"BDI"}, out.Assessment.Ignored)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DegradedInputs.WithLabelValues("aggregator", "unknown_questionnaire")))

	// Nothing was persisted.
	records, err := eng.Escalations(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = eng.Assess(context.Background(), AssessInput{SessionID: "s1"})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestAssess_HistoryOutsideWindowIgnored(t *testing.T) {
	eng, _ := newTestEngine(t, func(b *Builder) { b.WithPolicy(time.Hour, 3) })

	old := testNow.Add(-2 * time.Hour)
	history := []escalation.Entry{
		{Level: risk.LevelHigh, Timestamp: old},
		{Level: risk.LevelHigh, Timestamp: old},
		{Level: risk.LevelModerate, Timestamp: testNow.Add(-time.Hour)},
	}
	out, err := eng.Assess(context.Background(), AssessInput{SessionID: "s1", Text: "no point", History: history})
	require.NoError(t, err)
	assert.Equal(t, risk.LevelModerate, out.Decision.Level)
	assert.False(t, out.Decision.Escalate)
}

func TestSubmitScreening(t *testing.T) {
	eng, m := newTestEngine(t)
	ctx := context.Background()

	responses := answers(12, "Much less than usual")
	responses["q1"] = "Sometimes"
	out, err := eng.SubmitScreening(ctx, "s1", "GHQ", responses)
	require.NoError(t, err)
	assert.Equal(t, 11, out.Result.Total)
	assert.Equal(t, "moderate", out.Result.Severity)
	assert.True(t, out.Screening.Degraded)
	assert.NotEmpty(t, out.Recommendation.Message)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DegradedInputs.WithLabelValues("screening", "unknown_option")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Screenings.WithLabelValues("GHQ", "moderate")))

	history, err := eng.ScreeningHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, testNow, history[0].CompletedAt)

	_, err = eng.SubmitScreening(ctx, "s1", "BDI", answers(3, 1))
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = eng.SubmitScreening(ctx, "s1", "PHQ9", map[string]any{})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	insights, err := eng.Insights(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, insights.TotalScreenings)
}

func TestTemplates(t *testing.T) {
	eng, _ := newTestEngine(t)
	var ids []string
	for _, d := range eng.Templates() {
		ids = append(ids, string(d.ID))
	}
	assert.Equal(t, "PHQ9,GAD7,GHQ", strings.Join(ids, ","))
}

func TestBuilder_UsesProvidedStore(t *testing.T) {
	st := store.NewMemoryStore()
	eng, _ := newTestEngine(t, func(b *Builder) { b.WithStore(st) })
	assert.Same(t, st, eng.Store())
}

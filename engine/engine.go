// Package engine composes screening, classification, aggregation,
// escalation, and audit recording into the operations the API serves.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
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

// ErrInvalidInput is returned for requests rejected before any scoring or
// escalation logic runs. It is the same value as screening.ErrInvalidInput.
var ErrInvalidInput = screening.ErrInvalidInput

// AssessInput is everything Assess needs. Scores are the session's latest
// questionnaire totals keyed by questionnaire id; History is the session's
// prior assessments.
type AssessInput struct {
	SessionID string
	Text      string
	Scores    map[string]int
	History   []escalation.Entry
}

// Outcome is the result of one pure assessment. Record is set when the
// decision escalates or the level requires follow-up.
type Outcome struct {
	Classification classifier.Classification `json:"classification"`
	Assessment     risk.Assessment           `json:"assessment"`
	Decision       escalation.Decision       `json:"decision"`
	Record         *audit.Record             `json:"record,omitempty"`
}

// MessageOutcome is the result of AssessMessage.
type MessageOutcome struct {
	Outcome
	Message *store.ChatMessage `json:"message"`
}

// ScreeningOutcome is the result of SubmitScreening.
type ScreeningOutcome struct {
	Screening      *store.Screening         `json:"screening"`
	Result         screening.Result         `json:"result"`
	Recommendation screening.Recommendation `json:"recommendation"`
}

// Engine is safe for concurrent use. Build one with a Builder.
type Engine struct {
	scorer     *screening.Scorer
	classifier *classifier.Classifier
	aggregator *risk.Aggregator
	policy     *escalation.Policy
	recorder   *audit.Recorder
	responder  *responder.Responder
	sentiment  *sentiment.Analyzer

	store   store.Store
	history cache.HistoryStore
	sink    audit.Sink
	metrics *metrics.Collector
	tracer  *tracing.AssessmentTracer
	logger  *slog.Logger
	now     func() time.Time
}

// Scorer returns the questionnaire scorer.
func (e *Engine) Scorer() *screening.Scorer { return e.scorer }

// Store returns the persistence backend.
func (e *Engine) Store() store.Store { return e.store }

// Policy returns the escalation policy.
func (e *Engine) Policy() *escalation.Policy { return e.policy }

// Assess classifies text, combines it with scores, and applies the policy to
// the result. It performs no I/O.
func (e *Engine) Assess(ctx context.Context, in AssessInput) (Outcome, error) {
	_, span := e.tracer.Start(ctx, "assess")
	defer span.End()

	if strings.TrimSpace(in.Text) == "" {
		err := fmt.Errorf("%w: message is empty", ErrInvalidInput)
		e.tracer.RecordError(span, err)
		return Outcome{}, err
	}

	out := e.assess(in)
	e.tracer.RecordOutcome(span, string(out.Decision.Level), out.Assessment.TotalScore,
		out.Decision.Escalate, string(out.Decision.Priority))
	return out, nil
}

func (e *Engine) assess(in AssessInput) Outcome {
	c := e.classifier.Classify(in.Text)
	a := e.aggregator.Aggregate(c.LexicalScore, in.Scores)
	for _, id := range a.Ignored {
		e.logger.Warn("degraded aggregator input", "questionnaire", id, "reason", "unknown_questionnaire")
		e.metrics.RecordDegraded("aggregator", "unknown_questionnaire")
	}
	d := e.policy.Decide(a.Level, in.History)

	out := Outcome{Classification: c, Assessment: a, Decision: d}
	if d.Escalate || audit.RequiresFollowup(d.Level) {
		rec := e.recorder.Record(in.SessionID, d.Level, in.Text, d.Actions)
		out.Record = &rec
	}

	e.metrics.RecordAssessment(string(a.Level), string(c.Topic))
	e.metrics.RecordEscalation(string(d.Priority), d.Escalate)
	return out
}

// AssessMessage runs one chat message through the full pipeline: it loads
// the session's recent screening scores and risk history, assesses the
// message, exports the audit record when there is one, appends the new
// level to history, and persists the exchange with a supportive reply.
func (e *Engine) AssessMessage(ctx context.Context, sessionID, text string) (*MessageOutcome, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session is required", ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}

	ctx, span := e.tracer.Start(ctx, "assess_message")
	defer span.End()

	now := e.now()
	since := now.Add(-e.policy.Window())

	scores, err := e.store.LatestScores(ctx, sessionID, since)
	if err != nil {
		e.tracer.RecordError(span, err)
		return nil, fmt.Errorf("load screening scores: %w", err)
	}
	history, err := e.history.Recent(ctx, sessionID, since)
	if err != nil {
		e.tracer.RecordError(span, err)
		return nil, fmt.Errorf("load risk history: %w", err)
	}

	out := e.assess(AssessInput{SessionID: sessionID, Text: text, Scores: scores, History: history})
	d := out.Decision

	if out.Record != nil {
		if err := e.sink.Publish(ctx, *out.Record); err != nil {
			// The user still gets the reply and resources; the record is
			// reported as lost rather than blocking the response.
			e.logger.Error("failed to publish escalation record",
				"record", out.Record.ID, "level", out.Record.RiskLevel, "error", err)
			e.metrics.RecordSinkFailure("audit")
		}
	}

	if err := e.history.Append(ctx, sessionID, escalation.Entry{Level: d.Level, Timestamp: now}); err != nil {
		e.logger.Error("failed to append risk history", "error", err)
	}

	msg := &store.ChatMessage{
		SessionID:    sessionID,
		Message:      text,
		Response:     e.responder.Reply(out.Classification.Topic),
		Sentiment:    e.sentiment.Analyze(text).Label,
		RiskLevel:    string(d.Level),
		RiskDetected: out.Classification.Topic == classifier.TopicCrisis,
		Escalated:    d.Escalate,
		CreatedAt:    now,
	}
	if err := e.store.CreateMessage(ctx, msg); err != nil {
		e.tracer.RecordError(span, err)
		return nil, fmt.Errorf("save chat message: %w", err)
	}

	if d.Escalate {
		e.logger.Warn("risk escalated",
			"level", d.Level, "priority", d.Priority, "reason", d.Reason)
	}
	e.tracer.RecordOutcome(span, string(d.Level), out.Assessment.TotalScore, d.Escalate, string(d.Priority))
	return &MessageOutcome{Outcome: out, Message: msg}, nil
}

// SubmitScreening scores a questionnaire, attaches its recommendation, and
// persists the result for the session.
func (e *Engine) SubmitScreening(ctx context.Context, sessionID, questionnaire string, responses map[string]any) (*ScreeningOutcome, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session is required", ErrInvalidInput)
	}

	ctx, span := e.tracer.Start(ctx, "submit_screening")
	defer span.End()

	res, err := e.scorer.Score(questionnaire, responses)
	if err != nil {
		e.tracer.RecordError(span, err)
		return nil, err
	}
	for _, d := range res.Degradations {
		e.metrics.RecordDegraded("screening", d.Reason)
	}
	e.metrics.RecordScreening(string(res.Questionnaire), res.Severity)

	s := &store.Screening{
		SessionID:   sessionID,
		Type:        string(res.Questionnaire),
		Responses:   responses,
		Score:       res.Total,
		Severity:    res.Severity,
		Degraded:    res.Degraded(),
		CompletedAt: e.now(),
	}
	if err := e.store.CreateScreening(ctx, s); err != nil {
		e.tracer.RecordError(span, err)
		return nil, fmt.Errorf("save screening: %w", err)
	}

	e.tracer.RecordOutcome(span, res.Severity, res.Total, false, "")
	return &ScreeningOutcome{
		Screening:      s,
		Result:         res,
		Recommendation: screening.RecommendationFor(res.Severity),
	}, nil
}

// Templates lists the supported questionnaires.
func (e *Engine) Templates() []screening.Definition { return e.scorer.Templates() }

// ScreeningHistory returns a session's screenings, newest first.
func (e *Engine) ScreeningHistory(ctx context.Context, sessionID string) ([]*store.Screening, error) {
	return e.store.ListScreenings(ctx, sessionID)
}

// ChatHistory returns up to limit of a session's messages, newest first.
func (e *Engine) ChatHistory(ctx context.Context, sessionID string, limit int) ([]*store.ChatMessage, error) {
	return e.store.ListMessages(ctx, sessionID, limit)
}

// Insights returns anonymized screening counts.
func (e *Engine) Insights(ctx context.Context) (*store.Insights, error) {
	return e.store.Insights(ctx)
}

// Escalations returns a session's audit records, oldest first.
func (e *Engine) Escalations(ctx context.Context, sessionID string) ([]audit.Record, error) {
	return e.store.ListEscalations(ctx, sessionID)
}

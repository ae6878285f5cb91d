package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/sahara/risk"
)

// DefaultExcerptLength is the number of runes of message content kept in a
// record's summary.
const DefaultExcerptLength = 100

// Record is an escalation audit entry. It is never mutated after creation.
type Record struct {
	ID               string     `json:"id"`
	SessionRef       string     `json:"session_ref"`
	Timestamp        time.Time  `json:"timestamp"`
	RiskLevel        risk.Level `json:"risk_level"`
	ContentSummary   string     `json:"content_summary"`
	ActionsTaken     []string   `json:"actions_taken"`
	RequiresFollowup bool       `json:"requires_followup"`
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock sets the time source used for record timestamps.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithIDGenerator sets the function that produces record ids.
func WithIDGenerator(gen func() string) RecorderOption {
	return func(r *Recorder) { r.newID = gen }
}

// WithExcerptLength caps ContentSummary at n runes.
func WithExcerptLength(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.excerpt = n
		}
	}
}

// WithRedactor masks PII in content before it is excerpted.
func WithRedactor(red *Redactor) RecorderOption {
	return func(r *Recorder) { r.redactor = red }
}

// Recorder builds escalation records. It performs no I/O; callers hand the
// result to a Sink.
type Recorder struct {
	now      func() time.Time
	newID    func() string
	excerpt  int
	redactor *Redactor
}

// NewRecorder creates a Recorder using uuid ids and the wall clock unless
// overridden.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		excerpt: DefaultExcerptLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record builds the audit entry for one assessed message.
func (r *Recorder) Record(sessionRef string, level risk.Level, content string, actions []string) Record {
	if r.redactor != nil {
		content = r.redactor.Mask(content)
	}
	return Record{
		ID:               r.newID(),
		SessionRef:       sessionRef,
		Timestamp:        r.now(),
		RiskLevel:        level,
		ContentSummary:   Excerpt(content, r.excerpt),
		ActionsTaken:     append([]string(nil), actions...),
		RequiresFollowup: RequiresFollowup(level),
	}
}

// RequiresFollowup reports whether a record at level must be reviewed.
func RequiresFollowup(level risk.Level) bool {
	return level == risk.LevelHigh || level == risk.LevelModerate
}

// Excerpt truncates s to n runes, appending "..." when anything was cut.
func Excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

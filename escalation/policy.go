package escalation

import (
	"fmt"
	"time"

	"github.com/GoCodeAlone/sahara/risk"
)

// Entry is one prior assessment in a session's risk history.
type Entry struct {
	Level     risk.Level `json:"level"`
	Timestamp time.Time  `json:"timestamp"`
}

// Decision is the outcome of applying the policy to one assessment.
type Decision struct {
	Level     risk.Level `json:"riskLevel"`
	Escalate  bool       `json:"escalate"`
	Priority  Priority   `json:"priority"`
	Actions   []string   `json:"actions"`
	Resources []Resource `json:"resources"`
	Reason    string     `json:"reason,omitempty"`
}

// PolicyViolationError is the panic value raised when Decide receives a risk
// level outside the closed set. It signals a programming error upstream.
type PolicyViolationError struct {
	Level risk.Level
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("escalation policy received unknown risk level %q", e.Level)
}

// Config holds configuration for the Policy.
type Config struct {
	// Window bounds how far back history entries count toward the
	// repeated-moderate pattern.
	Window time.Duration
	// RepeatThreshold is the number of moderate-or-higher entries inside
	// Window that escalates a moderate assessment.
	RepeatThreshold int
	// Now is the clock used to place the window. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns default policy configuration.
func DefaultConfig() Config {
	return Config{
		Window:          24 * time.Hour,
		RepeatThreshold: 3,
	}
}

// Policy maps a risk level plus short-term history to a Decision. It keeps
// no state between calls.
type Policy struct {
	window    time.Duration
	threshold int
	now       func() time.Time
}

// NewPolicy creates a Policy. Zero config fields take their defaults.
func NewPolicy(cfg Config) *Policy {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.RepeatThreshold <= 0 {
		cfg.RepeatThreshold = def.RepeatThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Policy{window: cfg.Window, threshold: cfg.RepeatThreshold, now: cfg.Now}
}

// Window returns the configured recency window.
func (p *Policy) Window() time.Duration { return p.window }

// Decide returns the escalation decision for level. history may be nil.
// It panics with *PolicyViolationError if level is not a known risk level.
func (p *Policy) Decide(level risk.Level, history []Entry) Decision {
	pl, ok := plans[level]
	if !ok {
		panic(&PolicyViolationError{Level: level})
	}

	d := Decision{
		Level:     level,
		Priority:  pl.priority,
		Actions:   append([]string(nil), pl.actions...),
		Resources: append([]Resource{}, pl.resources...),
	}

	switch level {
	case risk.LevelHigh:
		d.Escalate = true
		d.Reason = "high risk level"
	case risk.LevelModerate:
		recent := p.RecentElevated(history)
		if recent >= p.threshold {
			d.Escalate = true
			d.Priority = PriorityUrgent
			d.Reason = fmt.Sprintf("%d moderate-or-higher assessments within %s", recent, p.window)
		} else {
			d.Reason = fmt.Sprintf("moderate risk, %d of %d recent elevated assessments", recent, p.threshold)
		}
	case risk.LevelLow:
		d.Reason = "low risk level"
	case risk.LevelMinimal:
		d.Reason = "minimal risk level"
	}
	return d
}

// RecentElevated counts history entries at moderate or above whose
// timestamp falls inside the recency window.
func (p *Policy) RecentElevated(history []Entry) int {
	cutoff := p.now().Add(-p.window)
	n := 0
	for _, e := range history {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		if e.Level.AtLeast(risk.LevelModerate) {
			n++
		}
	}
	return n
}

package screening

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// Degradation reasons. Degraded input is scored under a documented default
// instead of failing, and is reported on the Result.
const (
	ReasonUnknownOption  = "unknown_option"
	ReasonItemOutOfRange = "item_out_of_range"
	ReasonScoreClamped   = "score_clamped"
)

// Degradation describes one response that was scored by a fallback policy.
type Degradation struct {
	Item   string `json:"item,omitempty"`
	Value  any    `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// Result is the outcome of scoring one questionnaire submission.
type Result struct {
	Questionnaire ID            `json:"questionnaire"`
	Total         int           `json:"score"`
	Severity      string        `json:"severity"`
	Degradations  []Degradation `json:"degradations,omitempty"`
}

// Degraded reports whether any fallback policy was applied.
func (r Result) Degraded() bool { return len(r.Degradations) > 0 }

// Scorer scores questionnaire responses against immutable definitions.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	defs   map[ID]Definition
	order  []ID
	logger *slog.Logger
}

// NewScorer creates a Scorer over the built-in PHQ-9, GAD-7 and GHQ tables.
func NewScorer(logger *slog.Logger) (*Scorer, error) {
	return NewScorerWithDefinitions(defaultDefinitions(), logger)
}

// NewScorerWithDefinitions creates a Scorer over defs. Every definition's
// bands are validated up front; a bad partition fails construction.
func NewScorerWithDefinitions(defs []Definition, logger *slog.Logger) (*Scorer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scorer{
		defs:   make(map[ID]Definition, len(defs)),
		logger: logger,
	}
	for _, d := range defs {
		if _, dup := s.defs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate questionnaire %q", d.ID)
		}
		if err := ValidatePartition(d.Bands, d.MaxScore); err != nil {
			return nil, fmt.Errorf("questionnaire %s: %w", d.ID, err)
		}
		s.defs[d.ID] = d.Clone()
		s.order = append(s.order, d.ID)
	}
	return s, nil
}

// ParseID validates a questionnaire identifier.
func (s *Scorer) ParseID(raw string) (ID, error) {
	id := ID(raw)
	if _, ok := s.defs[id]; !ok {
		return "", &UnknownQuestionnaireError{ID: raw}
	}
	return id, nil
}

// Definition returns a copy of the definition for id.
func (s *Scorer) Definition(id ID) (Definition, bool) {
	d, ok := s.defs[id]
	if !ok {
		return Definition{}, false
	}
	return d.Clone(), true
}

// Templates returns copies of all definitions in registration order.
func (s *Scorer) Templates() []Definition {
	out := make([]Definition, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.defs[id].Clone())
	}
	return out
}

// Score sums the point value of each response and resolves its severity band.
//
// Integer answers are summed as given. Textual answers are looked up in the
// questionnaire's option table; unrecognized options score 0. Totals outside
// the band partition resolve to the nearest end band.
func (s *Scorer) Score(questionnaire string, responses map[string]any) (Result, error) {
	id, err := s.ParseID(questionnaire)
	if err != nil {
		return Result{}, err
	}
	if len(responses) == 0 {
		return Result{}, fmt.Errorf("%w: no responses provided", ErrInvalidInput)
	}
	def := s.defs[id]
	maxItem := maxPoints(def.Points)

	keys := make([]string, 0, len(responses))
	for k := range responses {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := Result{Questionnaire: id}
	for _, item := range keys {
		value := responses[item]
		switch v := value.(type) {
		case string:
			pts, ok := def.Points[v]
			if !ok {
				res.Degradations = append(res.Degradations, Degradation{Item: item, Value: v, Reason: ReasonUnknownOption})
			}
			res.Total += pts
		default:
			pts, err := integerValue(value)
			if err != nil {
				return Result{}, fmt.Errorf("%w: item %q: %v", ErrInvalidInput, item, err)
			}
			if pts < 0 || pts > maxItem {
				res.Degradations = append(res.Degradations, Degradation{Item: item, Value: pts, Reason: ReasonItemOutOfRange})
			}
			res.Total += pts
		}
	}

	band, clamped := resolveBand(def.Bands, res.Total)
	if clamped {
		res.Degradations = append(res.Degradations, Degradation{Value: res.Total, Reason: ReasonScoreClamped})
	}
	res.Severity = band.Label

	for _, d := range res.Degradations {
		s.logger.Warn("degraded questionnaire input",
			"questionnaire", id, "item", d.Item, "value", d.Value, "reason", d.Reason)
	}
	return res, nil
}

func maxPoints(points map[string]int) int {
	m := 0
	for _, p := range points {
		if p > m {
			m = p
		}
	}
	return m
}

// integerValue accepts Go integers and integral numbers decoded from JSON.
func integerValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float32:
		return integralFloat(float64(n))
	case float64:
		return integralFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n.String())
		}
		return integralFloat(f)
	case nil:
		return 0, fmt.Errorf("missing answer")
	default:
		return 0, fmt.Errorf("unsupported answer type %T", v)
	}
}

func integralFloat(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("non-integer answer %v", f)
	}
	return int(f), nil
}

package risk

import (
	"sort"

	"github.com/GoCodeAlone/sahara/screening"
)

// Cut points on the combined score, evaluated highest first.
const (
	HighCut     = 10
	ModerateCut = 6
	LowCut      = 3
)

// questionnaireBonus adds Bonus when a questionnaire score reaches Threshold.
type questionnaireBonus struct {
	Threshold int
	Bonus     int
}

var bonuses = map[screening.ID]questionnaireBonus{
	screening.PHQ9: {Threshold: 15, Bonus: 5},
	screening.GAD7: {Threshold: 15, Bonus: 4},
	screening.GHQ:  {Threshold: 12, Bonus: 4},
}

// Assessment is the transient output of one aggregation.
type Assessment struct {
	LexicalScore       int   `json:"lexicalScore"`
	QuestionnaireBonus int   `json:"questionnaireBonus"`
	TotalScore         int   `json:"totalScore"`
	Level              Level `json:"level"`
	// Ignored lists questionnaire ids that carry no bonus rule.
	Ignored []string `json:"ignored,omitempty"`
}

// Aggregator combines a lexical score with recent questionnaire scores.
// It is stateless.
type Aggregator struct{}

// NewAggregator returns an Aggregator.
func NewAggregator() *Aggregator { return &Aggregator{} }

// Aggregate computes the combined score and maps it to a Level. scores may
// be nil.
func (a *Aggregator) Aggregate(lexicalScore int, scores map[string]int) Assessment {
	out := Assessment{LexicalScore: lexicalScore}

	for id, score := range scores {
		rule, ok := bonuses[screening.ID(id)]
		if !ok {
			out.Ignored = append(out.Ignored, id)
			continue
		}
		if score >= rule.Threshold {
			out.QuestionnaireBonus += rule.Bonus
		}
	}
	sort.Strings(out.Ignored)

	out.TotalScore = out.LexicalScore + out.QuestionnaireBonus
	out.Level = LevelForScore(out.TotalScore)
	return out
}

// LevelForScore maps a combined score to its risk level.
func LevelForScore(score int) Level {
	switch {
	case score >= HighCut:
		return LevelHigh
	case score >= ModerateCut:
		return LevelModerate
	case score >= LowCut:
		return LevelLow
	default:
		return LevelMinimal
	}
}

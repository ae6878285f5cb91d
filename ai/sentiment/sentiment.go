// Package sentiment tags chat messages with a coarse polarity using a
// word lexicon with negation and intensifier handling.
package sentiment

import (
	"math"
	"strings"
)

// Score is a polarity from -1 (negative) to 1 (positive).
type Score float64

// Label values stored with chat messages.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// Label returns the coarse polarity for the score.
func (s Score) Label() string {
	switch {
	case s <= -0.2:
		return LabelNegative
	case s >= 0.2:
		return LabelPositive
	default:
		return LabelNeutral
	}
}

// Analysis is the sentiment of one message.
type Analysis struct {
	Score    Score    `json:"score"`
	Label    string   `json:"label"`
	Keywords []string `json:"keywords,omitempty"`
}

// Analyzer scores text against fixed lexicons. It is safe for concurrent
// use.
type Analyzer struct {
	positive     map[string]float64
	negative     map[string]float64
	intensifiers map[string]float64
	negations    map[string]bool
}

// NewAnalyzer returns an Analyzer over the built-in lexicons.
func NewAnalyzer() *Analyzer {
	negations := make(map[string]bool)
	for _, w := range defaultNegations() {
		negations[w] = true
	}
	return &Analyzer{
		positive:     defaultPositiveWords(),
		negative:     defaultNegativeWords(),
		intensifiers: defaultIntensifiers(),
		negations:    negations,
	}
}

// Analyze scores text. Empty or unmatched text is neutral.
func (a *Analyzer) Analyze(text string) Analysis {
	words := strings.Fields(strings.ToLower(text))

	var total float64
	var matched int
	var keywords []string

	prev := ""
	for _, word := range words {
		cleaned := strings.Trim(word, ".,!?;:'\"()")

		weight := 1.0
		if mult, ok := a.intensifiers[prev]; ok {
			weight = mult
		}
		sign := 1.0
		if a.negations[prev] {
			sign = -1
		}

		if v, ok := a.positive[cleaned]; ok {
			total += sign * v * weight
			matched++
			keywords = append(keywords, cleaned)
		} else if v, ok := a.negative[cleaned]; ok {
			total -= sign * v * weight
			matched++
			keywords = append(keywords, cleaned)
		}
		prev = cleaned
	}

	var score Score
	if matched > 0 {
		score = Score(math.Max(-1, math.Min(1, total/float64(matched))))
	}
	score = Score(math.Round(float64(score)*100) / 100)

	return Analysis{
		Score:    score,
		Label:    score.Label(),
		Keywords: keywords,
	}
}

func defaultPositiveWords() map[string]float64 {
	return map[string]float64{
		"good": 0.6, "better": 0.7, "best": 0.8,
		"happy": 0.8, "glad": 0.6, "great": 0.7,
		"wonderful": 0.9, "amazing": 0.9, "love": 0.8,
		"hope": 0.6, "hopeful": 0.7, "grateful": 0.8,
		"thankful": 0.7, "thanks": 0.5, "helped": 0.6,
		"safe": 0.7, "calm": 0.6, "relaxed": 0.6,
		"peaceful": 0.7, "strong": 0.6, "confident": 0.6,
		"okay": 0.3, "fine": 0.3, "improving": 0.6,
		"progress": 0.5, "healing": 0.6, "support": 0.5,
	}
}

func defaultNegativeWords() map[string]float64 {
	return map[string]float64{
		"sad": 0.6, "depressed": 0.8, "hopeless": 0.9,
		"anxious": 0.6, "worried": 0.5, "nervous": 0.5,
		"scared": 0.7, "angry": 0.7, "hate": 0.8,
		"terrible": 0.8, "awful": 0.8, "worst": 0.9,
		"bad": 0.5, "hurt": 0.7, "miserable": 0.8,
		"lonely": 0.6, "alone": 0.5, "empty": 0.7,
		"numb": 0.6, "worthless": 0.9, "useless": 0.8,
		"failure": 0.8, "burden": 0.8, "ashamed": 0.7,
		"afraid": 0.7, "panic": 0.8, "overwhelmed": 0.7,
		"stressed": 0.6, "exhausted": 0.6, "crying": 0.5,
		"broken": 0.8, "trapped": 0.8, "suicide": 1.0,
		"die": 0.9, "kill": 1.0, "cutting": 0.9,
	}
}

func defaultIntensifiers() map[string]float64 {
	return map[string]float64{
		"very":      1.5,
		"really":    1.4,
		"extremely": 1.8,
		"so":        1.3,
		"totally":   1.4,
	}
}

func defaultNegations() []string {
	return []string{
		"not", "no", "never", "nothing", "cannot", "can't",
		"won't", "don't", "doesn't", "didn't", "isn't", "wasn't",
	}
}

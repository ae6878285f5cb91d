package classifier

import (
	"strings"
)

// Category names a class of concerning lexical content.
type Category string

const (
	CategorySuicideIdeation Category = "suicide_ideation"
	CategorySelfHarm        Category = "self_harm"
	CategorySubstanceAbuse  Category = "substance_abuse"
	CategoryCrisisLanguage  Category = "crisis_language"
)

// AllCategories returns all risk categories, highest weight first.
func AllCategories() []Category {
	return []Category{
		CategorySuicideIdeation,
		CategorySelfHarm,
		CategorySubstanceAbuse,
		CategoryCrisisLanguage,
	}
}

// Topic is the single-label summary of a message.
type Topic string

const (
	TopicCrisis     Topic = "crisis"
	TopicAnxiety    Topic = "anxiety"
	TopicDepression Topic = "depression"
	TopicGeneral    Topic = "general"
)

// Signal is a weighted set of trigger phrases for one category.
type Signal struct {
	Category Category
	Phrases  []string
	Weight   int
}

// Classification is the result of classifying one text.
type Classification struct {
	CategoryScores map[Category]int      `json:"categoryScores"`
	Matched        map[Category][]string `json:"matched,omitempty"`
	LexicalScore   int                   `json:"lexicalScore"`
	Crisis         bool                  `json:"crisis"`
	Topic          Topic                 `json:"topic"`
}

// Triggered returns the triggered categories in table order.
func (c Classification) Triggered() []Category {
	var out []Category
	for _, cat := range AllCategories() {
		if _, ok := c.CategoryScores[cat]; ok {
			out = append(out, cat)
		}
	}
	return out
}

// Classifier scores free text against fixed keyword tables. Matching is a
// case-insensitive substring search, not word-boundary tokenization.
// A Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	signals         []Signal
	crisisTerms     []string
	anxietyTerms    []string
	depressionTerms []string
}

// New creates a classifier over the built-in signal tables.
func New() *Classifier {
	return &Classifier{
		signals:         defaultSignals(),
		crisisTerms:     defaultCrisisTerms(),
		anxietyTerms:    []string{"anxious", "anxiety", "worry", "nervous", "panic"},
		depressionTerms: []string{"depressed", "depression", "sad", "hopeless", "empty"},
	}
}

// Signals returns a copy of the signal table.
func (c *Classifier) Signals() []Signal {
	out := make([]Signal, len(c.signals))
	for i, s := range c.signals {
		out[i] = Signal{Category: s.Category, Phrases: append([]string(nil), s.Phrases...), Weight: s.Weight}
	}
	return out
}

// Classify scores text. Each category adds its weight at most once no
// matter how many of its phrases appear.
func (c *Classifier) Classify(text string) Classification {
	lower := strings.ToLower(text)

	result := Classification{
		CategoryScores: make(map[Category]int),
		Matched:        make(map[Category][]string),
	}
	for _, sig := range c.signals {
		var hits []string
		for _, phrase := range sig.Phrases {
			if strings.Contains(lower, phrase) {
				hits = append(hits, phrase)
			}
		}
		if len(hits) == 0 {
			continue
		}
		result.CategoryScores[sig.Category] = sig.Weight
		result.Matched[sig.Category] = hits
		result.LexicalScore += sig.Weight
	}

	_, result.Crisis = result.CategoryScores[CategorySuicideIdeation]
	result.Topic = c.topic(lower)
	return result
}

// topic applies the fixed precedence crisis > anxiety > depression > general.
// The crisis terms are a separate table from the weighted signals: substance
// phrases and "can't go on" score risk but do not change the topic.
func (c *Classifier) topic(lower string) Topic {
	switch {
	case containsAny(lower, c.crisisTerms):
		return TopicCrisis
	case containsAny(lower, c.anxietyTerms):
		return TopicAnxiety
	case containsAny(lower, c.depressionTerms):
		return TopicDepression
	default:
		return TopicGeneral
	}
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func defaultCrisisTerms() []string {
	return []string{
		"suicide", "kill myself", "end my life", "want to die",
		"hurt myself", "self-harm", "cutting", "overdose",
		"hopeless", "no point", "better off dead",
	}
}

func defaultSignals() []Signal {
	return []Signal{
		{
			Category: CategorySuicideIdeation,
			Phrases:  []string{"suicide", "kill myself", "end my life", "want to die"},
			Weight:   10,
		},
		{
			Category: CategorySelfHarm,
			Phrases:  []string{"hurt myself", "cut myself", "self-harm", "cutting"},
			Weight:   8,
		},
		{
			Category: CategorySubstanceAbuse,
			Phrases:  []string{"overdose", "pills", "too many", "drinking too much"},
			Weight:   7,
		},
		{
			Category: CategoryCrisisLanguage,
			Phrases:  []string{"hopeless", "no point", "better off dead", "can't go on"},
			Weight:   6,
		},
	}
}

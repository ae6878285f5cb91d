package screening

import (
	"maps"
	"slices"
)

// ID identifies a standardized questionnaire.
type ID string

const (
	PHQ9 ID = "PHQ9"
	GAD7 ID = "GAD7"
	GHQ  ID = "GHQ"
)

// AllIDs returns every supported questionnaire in presentation order.
func AllIDs() []ID {
	return []ID{PHQ9, GAD7, GHQ}
}

// Band labels one contiguous slice [Low, High] of a questionnaire's score range.
type Band struct {
	Low   int    `json:"low"`
	High  int    `json:"high"`
	Label string `json:"label"`
}

// Contains reports whether score falls inside the band.
func (b Band) Contains(score int) bool {
	return score >= b.Low && score <= b.High
}

// Definition is the immutable description of a questionnaire.
type Definition struct {
	ID          ID             `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Items       []string       `json:"questions"`
	Options     []string       `json:"options"`
	Points      map[string]int `json:"-"`
	MaxScore    int            `json:"maxScore"`
	Bands       []Band         `json:"bands"`
}

// Clone returns a deep copy of d.
func (d Definition) Clone() Definition {
	d.Items = slices.Clone(d.Items)
	d.Options = slices.Clone(d.Options)
	d.Points = maps.Clone(d.Points)
	d.Bands = slices.Clone(d.Bands)
	return d
}

var frequencyOptions = []string{"Not at all", "Several days", "More than half the days", "Nearly every day"}

var frequencyPoints = map[string]int{
	"Not at all":              0,
	"Several days":            1,
	"More than half the days": 2,
	"Nearly every day":        3,
}

// GHQ uses the 0-0-1-1 scoring method.
var ghqOptions = []string{"Better than usual", "Same as usual", "Less than usual", "Much less than usual"}

var ghqPoints = map[string]int{
	"Better than usual":    0,
	"Same as usual":        0,
	"Less than usual":      1,
	"Much less than usual": 1,
}

func defaultDefinitions() []Definition {
	return []Definition{
		{
			ID:          PHQ9,
			Name:        "Patient Health Questionnaire-9",
			Description: "Measures depression severity",
			Items: []string{
				"Little interest or pleasure in doing things",
				"Feeling down, depressed, or hopeless",
				"Trouble falling or staying asleep, or sleeping too much",
				"Feeling tired or having little energy",
				"Poor appetite or overeating",
				"Feeling bad about yourself",
				"Trouble concentrating on things",
				"Moving or speaking slowly or being restless",
				"Thoughts that you would be better off dead",
			},
			Options:  frequencyOptions,
			Points:   frequencyPoints,
			MaxScore: 27,
			Bands: []Band{
				{Low: 0, High: 4, Label: "minimal"},
				{Low: 5, High: 9, Label: "mild"},
				{Low: 10, High: 14, Label: "moderate"},
				{Low: 15, High: 19, Label: "moderate_severe"},
				{Low: 20, High: 27, Label: "severe"},
			},
		},
		{
			ID:          GAD7,
			Name:        "Generalized Anxiety Disorder-7",
			Description: "Measures anxiety severity",
			Items: []string{
				"Feeling nervous, anxious or on edge",
				"Not being able to stop or control worrying",
				"Worrying too much about different things",
				"Trouble relaxing",
				"Being so restless that it is hard to sit still",
				"Becoming easily annoyed or irritable",
				"Feeling afraid as if something awful might happen",
			},
			Options:  frequencyOptions,
			Points:   frequencyPoints,
			MaxScore: 21,
			Bands: []Band{
				{Low: 0, High: 4, Label: "minimal"},
				{Low: 5, High: 9, Label: "mild"},
				{Low: 10, High: 14, Label: "moderate"},
				{Low: 15, High: 21, Label: "severe"},
			},
		},
		{
			ID:          GHQ,
			Name:        "General Health Questionnaire",
			Description: "General psychological distress screening",
			Items: []string{
				"Been able to concentrate on whatever you're doing",
				"Lost much sleep over worry",
				"Felt that you are playing a useful part in things",
				"Felt capable of making decisions about things",
				"Felt constantly under strain",
				"Felt you couldn't overcome your difficulties",
			},
			Options:  ghqOptions,
			Points:   ghqPoints,
			MaxScore: 24,
			Bands: []Band{
				{Low: 0, High: 5, Label: "low"},
				{Low: 6, High: 11, Label: "moderate"},
				{Low: 12, High: 24, Label: "high"},
			},
		},
	}
}

package risk

import (
	"reflect"
	"testing"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  Level
	}{
		{-3, LevelMinimal},
		{0, LevelMinimal},
		{2, LevelMinimal},
		{3, LevelLow},
		{5, LevelLow},
		{6, LevelModerate},
		{9, LevelModerate},
		{10, LevelHigh},
		{31, LevelHigh},
	}
	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	a := NewAggregator()

	tests := []struct {
		name      string
		lexical   int
		scores    map[string]int
		wantTotal int
		wantLevel Level
	}{
		{"no signal", 0, nil, 0, LevelMinimal},
		{"severe phq9 alone stays low", 0, map[string]int{"PHQ9": 20}, 5, LevelLow},
		{"phq9 below threshold", 0, map[string]int{"PHQ9": 14}, 0, LevelMinimal},
		{"gad7 at threshold", 0, map[string]int{"GAD7": 15}, 4, LevelLow},
		{"ghq at threshold", 0, map[string]int{"GHQ": 12}, 4, LevelLow},
		{"all questionnaires high", 0, map[string]int{"PHQ9": 27, "GAD7": 21, "GHQ": 24}, 13, LevelHigh},
		{"crisis language plus phq9", 6, map[string]int{"PHQ9": 15}, 11, LevelHigh},
		{"crisis language alone", 6, nil, 6, LevelModerate},
		{"suicidal ideation alone", 10, nil, 10, LevelHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Aggregate(tt.lexical, tt.scores)
			if got.TotalScore != tt.wantTotal {
				t.Errorf("total = %d, want %d", got.TotalScore, tt.wantTotal)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", got.Level, tt.wantLevel)
			}
		})
	}
}

func TestAggregate_UnknownQuestionnaireIgnored(t *testing.T) {
	a := NewAggregator()

	got := a.Aggregate(3, map[string]int{"BDI": 40, "PHQ9": 3})
	if got.TotalScore != 3 || got.Level != LevelLow {
		t.Errorf("got %d/%s, want 3/low", got.TotalScore, got.Level)
	}
	if !reflect.DeepEqual(got.Ignored, []string{"BDI"}) {
		t.Errorf("Ignored = %v, want [BDI]", got.Ignored)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	a := NewAggregator()
	scores := map[string]int{"PHQ9": 18, "GAD7": 16, "XYZ": 1, "ABC": 2}

	first := a.Aggregate(7, scores)
	second := a.Aggregate(7, scores)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestLevelOrdering(t *testing.T) {
	levels := AllLevels()
	for i := 1; i < len(levels); i++ {
		if !levels[i].AtLeast(levels[i-1]) || levels[i-1].AtLeast(levels[i]) {
			t.Errorf("%s should rank above %s", levels[i], levels[i-1])
		}
	}
	if Level("extreme").Valid() {
		t.Error("unknown level must not be valid")
	}
	if Level("extreme").AtLeast(LevelMinimal) {
		t.Error("unknown level must not compare as severe")
	}
	if _, err := ParseLevel("moderate"); err != nil {
		t.Errorf("ParseLevel(moderate): %v", err)
	}
	if _, err := ParseLevel("unknown"); err == nil {
		t.Error("expected error for unknown level")
	}
}

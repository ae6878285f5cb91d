package screening

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultDefinitionsCoverEveryScore(t *testing.T) {
	for _, d := range defaultDefinitions() {
		if err := ValidatePartition(d.Bands, d.MaxScore); err != nil {
			t.Fatalf("%s: %v", d.ID, err)
		}
		for score := 0; score <= d.MaxScore; score++ {
			matches := 0
			for _, b := range d.Bands {
				if b.Contains(score) {
					matches++
				}
			}
			if matches != 1 {
				t.Errorf("%s: score %d falls in %d bands", d.ID, score, matches)
			}
		}
	}
}

func TestValidatePartition_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		bands []Band
		max   int
		want  string
	}{
		{"empty", nil, 10, "no bands"},
		{"gap", []Band{{0, 4, "a"}, {6, 10, "b"}}, 10, "gap"},
		{"overlap", []Band{{0, 5, "a"}, {5, 10, "b"}}, 10, "overlaps"},
		{"late start", []Band{{1, 10, "a"}}, 10, "gap"},
		{"short end", []Band{{0, 4, "a"}, {5, 9, "b"}}, 10, "bands end at 9"},
		{"inverted", []Band{{0, 4, "a"}, {9, 5, "b"}}, 10, "inverted"},
		{"unlabeled", []Band{{0, 10, ""}}, 10, "no label"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePartition(tt.bands, tt.max)
			if !errors.Is(err, ErrInvalidPartition) {
				t.Fatalf("expected ErrInvalidPartition, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestNewScorerWithDefinitions_FailsFast(t *testing.T) {
	defs := defaultDefinitions()
	defs[1].Bands = []Band{{0, 4, "minimal"}, {6, 21, "severe"}}

	_, err := NewScorerWithDefinitions(defs, nil)
	if !errors.Is(err, ErrInvalidPartition) {
		t.Fatalf("expected ErrInvalidPartition, got %v", err)
	}
	if !strings.Contains(err.Error(), "GAD7") {
		t.Errorf("error should name the questionnaire: %v", err)
	}
}

func TestNewScorerWithDefinitions_Duplicate(t *testing.T) {
	defs := defaultDefinitions()
	defs = append(defs, defs[0])
	if _, err := NewScorerWithDefinitions(defs, nil); err == nil {
		t.Fatal("expected duplicate questionnaire error")
	}
}

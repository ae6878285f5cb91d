package risk

import "fmt"

// Level is the aggregated risk level. Levels are ordered; a higher rank is
// more severe.
type Level string

const (
	LevelMinimal  Level = "minimal"
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
)

// AllLevels returns every level from least to most severe.
func AllLevels() []Level {
	return []Level{LevelMinimal, LevelLow, LevelModerate, LevelHigh}
}

// Rank returns the level's position in the severity order, or -1 for an
// unknown level.
func (l Level) Rank() int {
	switch l {
	case LevelMinimal:
		return 0
	case LevelLow:
		return 1
	case LevelModerate:
		return 2
	case LevelHigh:
		return 3
	default:
		return -1
	}
}

// Valid reports whether l is one of the closed set of levels.
func (l Level) Valid() bool { return l.Rank() >= 0 }

// AtLeast reports whether l is as severe as other.
func (l Level) AtLeast(other Level) bool {
	return l.Valid() && l.Rank() >= other.Rank()
}

// ParseLevel validates a level name.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown risk level %q", s)
	}
	return l, nil
}

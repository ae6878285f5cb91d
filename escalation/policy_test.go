package escalation

import (
	"errors"
	"testing"
	"time"

	"github.com/GoCodeAlone/sahara/risk"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestPolicy() *Policy {
	return NewPolicy(Config{Now: func() time.Time { return fixedNow }})
}

func entries(level risk.Level, ages ...time.Duration) []Entry {
	out := make([]Entry, 0, len(ages))
	for _, age := range ages {
		out = append(out, Entry{Level: level, Timestamp: fixedNow.Add(-age)})
	}
	return out
}

func TestDecide_Levels(t *testing.T) {
	p := newTestPolicy()

	tests := []struct {
		level         risk.Level
		wantEscalate  bool
		wantPriority  Priority
		wantActions   int
		wantResources int
	}{
		{risk.LevelHigh, true, PriorityUrgent, 4, 2},
		{risk.LevelModerate, false, PriorityHigh, 4, 2},
		{risk.LevelLow, false, PriorityNormal, 3, 0},
		{risk.LevelMinimal, false, PriorityNormal, 1, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			d := p.Decide(tt.level, nil)
			if d.Escalate != tt.wantEscalate {
				t.Errorf("Escalate = %v, want %v", d.Escalate, tt.wantEscalate)
			}
			if d.Priority != tt.wantPriority {
				t.Errorf("Priority = %s, want %s", d.Priority, tt.wantPriority)
			}
			if len(d.Actions) != tt.wantActions {
				t.Errorf("len(Actions) = %d, want %d", len(d.Actions), tt.wantActions)
			}
			if len(d.Resources) != tt.wantResources {
				t.Errorf("len(Resources) = %d, want %d", len(d.Resources), tt.wantResources)
			}
			if d.Level != tt.level {
				t.Errorf("Level = %s, want %s", d.Level, tt.level)
			}
		})
	}
}

func TestDecide_HighBundle(t *testing.T) {
	d := newTestPolicy().Decide(risk.LevelHigh, nil)

	if d.Actions[0] != "Display crisis resources immediately" {
		t.Errorf("first action = %q", d.Actions[0])
	}
	if d.Resources[0].Phone != "988" || d.Resources[1].Phone != "911" {
		t.Errorf("resources = %+v", d.Resources)
	}
}

func TestDecide_MinimalAction(t *testing.T) {
	d := newTestPolicy().Decide(risk.LevelMinimal, nil)
	if len(d.Actions) != 1 || d.Actions[0] != "Continue normal support conversation" {
		t.Errorf("Actions = %v", d.Actions)
	}
}

func TestDecide_RepeatedModerate(t *testing.T) {
	p := newTestPolicy()

	tests := []struct {
		name         string
		history      []Entry
		wantEscalate bool
	}{
		{"none", nil, false},
		{"two recent", entries(risk.LevelModerate, time.Hour, 2*time.Hour), false},
		{"three recent", entries(risk.LevelModerate, time.Hour, 2*time.Hour, 3*time.Hour), true},
		{"high counts as elevated", append(
			entries(risk.LevelModerate, time.Hour, 2*time.Hour),
			entries(risk.LevelHigh, 5*time.Hour)...), true},
		{"low does not count", append(
			entries(risk.LevelModerate, time.Hour, 2*time.Hour),
			entries(risk.LevelLow, 30*time.Minute, 40*time.Minute)...), false},
		{"outside window", append(
			entries(risk.LevelModerate, time.Hour, 2*time.Hour),
			entries(risk.LevelModerate, 25*time.Hour)...), false},
		{"window edge inclusive", append(
			entries(risk.LevelModerate, time.Hour, 2*time.Hour),
			entries(risk.LevelModerate, 24*time.Hour)...), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(risk.LevelModerate, tt.history)
			if d.Escalate != tt.wantEscalate {
				t.Fatalf("Escalate = %v, want %v (reason %q)", d.Escalate, tt.wantEscalate, d.Reason)
			}
			wantPriority := PriorityHigh
			if tt.wantEscalate {
				wantPriority = PriorityUrgent
			}
			if d.Priority != wantPriority {
				t.Errorf("Priority = %s, want %s", d.Priority, wantPriority)
			}
			if len(d.Actions) != 4 || d.Actions[0] != "Provide crisis resources" {
				t.Errorf("Actions = %v", d.Actions)
			}
		})
	}
}

func TestDecide_HistoryDoesNotAffectOtherLevels(t *testing.T) {
	p := newTestPolicy()
	history := entries(risk.LevelHigh, time.Minute, 2*time.Minute, 3*time.Minute, 4*time.Minute)

	if d := p.Decide(risk.LevelLow, history); d.Escalate {
		t.Error("low must never escalate")
	}
	if d := p.Decide(risk.LevelMinimal, history); d.Escalate {
		t.Error("minimal must never escalate")
	}
}

func TestDecide_CustomWindow(t *testing.T) {
	p := NewPolicy(Config{
		Window:          time.Hour,
		RepeatThreshold: 2,
		Now:             func() time.Time { return fixedNow },
	})
	history := entries(risk.LevelModerate, 10*time.Minute, 2*time.Hour)
	if d := p.Decide(risk.LevelModerate, history); d.Escalate {
		t.Error("only one entry is inside a one hour window")
	}
	history = entries(risk.LevelModerate, 10*time.Minute, 20*time.Minute)
	if d := p.Decide(risk.LevelModerate, history); !d.Escalate {
		t.Error("two entries inside the window should escalate")
	}
}

func TestDecide_ReturnsCopies(t *testing.T) {
	p := newTestPolicy()

	d := p.Decide(risk.LevelHigh, nil)
	d.Actions[0] = "mutated"
	d.Resources[0].Phone = "000"

	again := p.Decide(risk.LevelHigh, nil)
	if again.Actions[0] != "Display crisis resources immediately" {
		t.Errorf("actions table was mutated: %q", again.Actions[0])
	}
	if again.Resources[0].Phone != "988" {
		t.Errorf("resources table was mutated: %q", again.Resources[0].Phone)
	}
}

func TestDecide_UnknownLevelPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("panic value %T is not an error", r)
		}
		var pv *PolicyViolationError
		if !errors.As(err, &pv) || pv.Level != "extreme" {
			t.Errorf("panic value = %v", r)
		}
	}()
	newTestPolicy().Decide(risk.Level("extreme"), nil)
}

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy(Config{})
	if p.Window() != 24*time.Hour {
		t.Errorf("Window = %s, want 24h", p.Window())
	}
	if p.threshold != 3 {
		t.Errorf("threshold = %d, want 3", p.threshold)
	}
}

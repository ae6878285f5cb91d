package responder

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/GoCodeAlone/sahara/ai/classifier"
)

func TestReply_CrisisFooter(t *testing.T) {
	r := New(rand.New(rand.NewPCG(1, 2)))

	reply := r.Reply(classifier.TopicCrisis)
	if !strings.HasSuffix(reply, CrisisFooter) {
		t.Errorf("crisis reply missing footer: %q", reply)
	}
	if strings.Contains(r.Reply(classifier.TopicAnxiety), "741741") {
		t.Error("non-crisis reply must not carry the footer")
	}
}

func TestReply_FromTemplates(t *testing.T) {
	r := New(rand.New(rand.NewPCG(3, 4)))

	for _, topic := range []classifier.Topic{classifier.TopicAnxiety, classifier.TopicDepression, classifier.TopicGeneral} {
		templates := r.Templates(topic)
		if len(templates) != 3 {
			t.Fatalf("%s: expected 3 templates, got %d", topic, len(templates))
		}
		for i := 0; i < 20; i++ {
			if got := r.Reply(topic); !slices.Contains(templates, got) {
				t.Errorf("%s: reply %q not in templates", topic, got)
			}
		}
	}
}

func TestReply_UnknownTopicFallsBackToGeneral(t *testing.T) {
	r := New(nil)
	if got := r.Reply(classifier.Topic("other")); !slices.Contains(r.Templates(classifier.TopicGeneral), got) {
		t.Errorf("reply %q not a general template", got)
	}
}

func TestReply_DeterministicWithSeed(t *testing.T) {
	a := New(rand.New(rand.NewPCG(7, 7)))
	b := New(rand.New(rand.NewPCG(7, 7)))
	for i := 0; i < 10; i++ {
		if a.Reply(classifier.TopicGeneral) != b.Reply(classifier.TopicGeneral) {
			t.Fatal("same seed should give the same sequence")
		}
	}
}

func TestReply_CoversAllTemplates(t *testing.T) {
	r := New(rand.New(rand.NewPCG(11, 13)))
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		seen[r.Reply(classifier.TopicDepression)] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected all 3 templates to be selected, saw %d", len(seen))
	}
}

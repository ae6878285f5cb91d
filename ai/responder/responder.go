// Package responder picks supportive replies for classified chat messages.
package responder

import (
	"math/rand/v2"
	"sync"

	"github.com/GoCodeAlone/sahara/ai/classifier"
)

// CrisisFooter is appended to every crisis reply.
const CrisisFooter = "\n\nImmediate help:\n" +
	"• National Suicide Prevention Lifeline: 988\n" +
	"• Crisis Text Line: Text HOME to 741741\n" +
	"• Emergency Services: 911"

// Responder selects one of several fixed templates per topic. Selection is
// uniform; the random source is guarded so a Responder can be shared.
type Responder struct {
	mu        sync.Mutex
	rng       *rand.Rand
	templates map[classifier.Topic][]string
}

// New returns a Responder. A nil rng uses a randomly seeded source.
func New(rng *rand.Rand) *Responder {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Responder{rng: rng, templates: defaultTemplates()}
}

// Templates returns a copy of the replies for topic.
func (r *Responder) Templates(topic classifier.Topic) []string {
	return append([]string(nil), r.templates[topic]...)
}

// Reply returns a supportive reply for topic. Unknown topics use the general
// templates. Crisis replies carry CrisisFooter.
func (r *Responder) Reply(topic classifier.Topic) string {
	options, ok := r.templates[topic]
	if !ok {
		options = r.templates[classifier.TopicGeneral]
	}

	r.mu.Lock()
	idx := r.rng.IntN(len(options))
	r.mu.Unlock()

	reply := options[idx]
	if topic == classifier.TopicCrisis {
		reply += CrisisFooter
	}
	return reply
}

func defaultTemplates() map[classifier.Topic][]string {
	return map[classifier.Topic][]string{
		classifier.TopicCrisis: {
			"I'm concerned about what you're going through. You're not alone, and there are people who want to help. Please consider reaching out to a crisis helpline or emergency services.",
			"Your life has value and meaning. If you're having thoughts of self-harm, please talk to someone immediately - a counselor, trusted friend, or crisis helpline.",
			"I hear that you're in pain right now. Crisis support is available 24/7. Would you like me to provide some emergency resources?",
		},
		classifier.TopicAnxiety: {
			"Anxiety can feel overwhelming, but you're taking a positive step by reaching out. Try some deep breathing exercises - inhale for 4 counts, hold for 4, exhale for 4.",
			"It's normal to feel anxious sometimes. Grounding techniques can help - try naming 5 things you can see, 4 you can touch, 3 you can hear, 2 you can smell, and 1 you can taste.",
			"Anxiety is your mind's way of trying to protect you, but sometimes it goes into overdrive. What specific situation is making you feel anxious right now?",
		},
		classifier.TopicDepression: {
			"Depression can make everything feel harder, but you're not alone in this. Small steps forward, even getting out of bed, are victories worth celebrating.",
			"Thank you for sharing how you're feeling. Depression is a real condition that many people experience, and it's treatable with the right support.",
			"When depression weighs heavy, sometimes just talking about it helps lighten the load. What's been the most challenging part of your day today?",
		},
		classifier.TopicGeneral: {
			"Thank you for sharing that with me. It takes courage to talk about how you're feeling. How can I best support you right now?",
			"I'm here to listen and provide support. Mental health is just as important as physical health, and seeking help is a sign of strength.",
			"Everyone goes through difficult times. What you're feeling is valid, and there are healthy ways to cope with these challenges.",
		},
	}
}

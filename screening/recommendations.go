package screening

// Recommendation is the user-facing guidance attached to a severity label.
type Recommendation struct {
	Message string   `json:"message"`
	Actions []string `json:"actions"`
}

var recommendations = map[string]Recommendation{
	"minimal": {
		Message: "Your responses suggest minimal symptoms. Continue monitoring your mental health.",
		Actions: []string{"Practice self-care", "Maintain healthy habits", "Stay connected with others"},
	},
	"low": {
		Message: "Your responses suggest low distress. Continue monitoring your mental health.",
		Actions: []string{"Practice self-care", "Maintain healthy habits", "Stay connected with others"},
	},
	"mild": {
		Message: "Your responses suggest mild symptoms. Consider speaking with a healthcare provider.",
		Actions: []string{"Monitor symptoms", "Practice stress management", "Consider counseling"},
	},
	"moderate": {
		Message: "Your responses suggest moderate symptoms. We recommend speaking with a mental health professional.",
		Actions: []string{"Schedule appointment with counselor", "Practice coping strategies", "Reach out to support network"},
	},
	"moderate_severe": {
		Message: "Your responses suggest moderately severe symptoms. Please consider professional help soon.",
		Actions: []string{"Contact mental health professional", "Consider medication evaluation", "Increase support system"},
	},
	"severe": {
		Message: "Your responses suggest severe symptoms. Please seek professional help immediately.",
		Actions: []string{"Contact healthcare provider today", "Consider crisis support if needed", "Don't wait - get help now"},
	},
	"high": {
		Message: "Your responses suggest high distress. Please consider professional support.",
		Actions: []string{"Contact mental health professional", "Practice stress reduction", "Seek social support"},
	},
}

// RecommendationFor returns guidance for a severity label, falling back to
// the minimal guidance for unknown labels. The returned actions are a copy.
func RecommendationFor(severity string) Recommendation {
	r, ok := recommendations[severity]
	if !ok {
		r = recommendations["minimal"]
	}
	return Recommendation{
		Message: r.Message,
		Actions: append([]string(nil), r.Actions...),
	}
}

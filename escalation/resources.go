package escalation

import "github.com/GoCodeAlone/sahara/risk"

// Resource is a crisis contact surfaced to the user.
type Resource struct {
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Text      string `json:"text,omitempty"`
	Available string `json:"available"`
}

var (
	suicidePrevention = Resource{
		Name:      "National Suicide Prevention Lifeline",
		Phone:     "988",
		Text:      "Text HOME to 741741",
		Available: "24/7",
	}
	crisisText = Resource{
		Name:      "Crisis Text Line",
		Text:      "Text HOME to 741741",
		Available: "24/7",
	}
	emergency = Resource{
		Name:      "Emergency Services",
		Phone:     "911",
		Available: "24/7",
	}
)

// CrisisResources returns every crisis contact.
func CrisisResources() []Resource {
	return []Resource{suicidePrevention, crisisText, emergency}
}

// Priority is the urgency tier of a decision.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// plan is the fixed presentation content for one risk level.
type plan struct {
	actions   []string
	resources []Resource
	priority  Priority
}

var plans = map[risk.Level]plan{
	risk.LevelHigh: {
		actions: []string{
			"Display crisis resources immediately",
			"Encourage immediate professional contact",
			"Provide suicide prevention hotline",
			"Log high-risk interaction for follow-up",
		},
		resources: []Resource{suicidePrevention, emergency},
		priority:  PriorityUrgent,
	},
	risk.LevelModerate: {
		actions: []string{
			"Provide crisis resources",
			"Suggest professional support",
			"Offer coping strategies",
			"Schedule follow-up check-in",
		},
		resources: []Resource{crisisText, suicidePrevention},
		priority:  PriorityHigh,
	},
	risk.LevelLow: {
		actions: []string{
			"Provide general mental health resources",
			"Suggest self-care strategies",
			"Offer screening tools",
		},
		priority: PriorityNormal,
	},
	risk.LevelMinimal: {
		actions:  []string{"Continue normal support conversation"},
		priority: PriorityNormal,
	},
}

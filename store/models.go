package store

import "time"

// Screening is a scored questionnaire submission.
type Screening struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"-"`
	Type        string         `json:"screening_type"`
	Responses   map[string]any `json:"responses,omitempty"`
	Score       int            `json:"score"`
	Severity    string         `json:"risk_level"`
	Degraded    bool           `json:"degraded,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

// ChatMessage is one user message and the reply it received.
type ChatMessage struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"-"`
	Message      string    `json:"message"`
	Response     string    `json:"response"`
	Sentiment    string    `json:"sentiment,omitempty"`
	RiskLevel    string    `json:"risk_level,omitempty"`
	RiskDetected bool      `json:"risk_detected"`
	Escalated    bool      `json:"escalated"`
	CreatedAt    time.Time `json:"created_at"`
}

// InsightBucket counts screenings with one type and severity.
type InsightBucket struct {
	ScreeningType string `json:"screening_type"`
	RiskLevel     string `json:"risk_level"`
	Count         int    `json:"count"`
}

// Insights is an anonymized aggregate over all screenings.
type Insights struct {
	TotalScreenings  int             `json:"total_screenings"`
	RiskDistribution []InsightBucket `json:"risk_distribution"`
}

// DefaultHistoryLimit bounds chat history queries.
const DefaultHistoryLimit = 50

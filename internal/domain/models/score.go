package models

// Suspicion levels derived from the composite score.
const (
	LevelLow    = "LOW"
	LevelMedium = "MEDIUM"
	LevelHigh   = "HIGH"
)

// ScoreFactor is one additive contribution to a suspicion score.
type ScoreFactor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail,omitempty"`
}

// SuspicionScore is the composite result of scoring one trade event.
type SuspicionScore struct {
	EventID string        `json:"event_id"`
	Value   float64       `json:"value"` // clamped to [0, 1]
	Factors []ScoreFactor `json:"factors"`
}

// Level buckets the score value: >= high is HIGH, >= medium is MEDIUM.
func (s *SuspicionScore) Level(medium, high float64) string {
	switch {
	case s.Value >= high:
		return LevelHigh
	case s.Value >= medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// HasFactor reports whether a factor with the given name contributed.
func (s *SuspicionScore) HasFactor(name string) bool {
	for _, f := range s.Factors {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Analyst recommendations.
const (
	RecommendAct     = "act"
	RecommendSkip    = "skip"
	RecommendMonitor = "monitor"
)

// AIOpinion is the verdict of the external analysis service on an
// escalated event.
type AIOpinion struct {
	Recommendation string  `json:"recommendation"` // act | skip | monitor
	Confidence     float64 `json:"confidence"`     // [0, 1]
	Rationale      string  `json:"rationale,omitempty"`
}

package models

import "strings"

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency is case-insensitive; anything unknown is low.
func ParseUrgency(s string) Urgency {
	switch Urgency(strings.ToLower(strings.TrimSpace(s))) {
	case UrgencyHigh:
		return UrgencyHigh
	case UrgencyMedium:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// Alertable reports whether the urgency warrants notifying a doctor.
func (u Urgency) Alertable() bool { return u == UrgencyMedium || u == UrgencyHigh }

type RiskEntry struct {
	Symptoms              []string `bson:"symptoms" json:"symptoms"`
	Disease               string   `bson:"disease" json:"disease"`
	Probability           int      `bson:"probability" json:"probability"`
	Urgency               Urgency  `bson:"urgency" json:"urgency"`
	PossibleCauses        string   `bson:"possible_causes" json:"possible_causes"`
	RecommendedSpecialist string   `bson:"recommended_specialist" json:"recommended_specialist"`
	Advice                string   `bson:"advice" json:"advice"`

	// set when the model output could not be parsed
	Error string `bson:"error,omitempty" json:"error,omitempty"`
}

type RiskAssessment struct {
	Entries []RiskEntry `bson:"entries" json:"entries"`
}

// Primary is the first candidate, which drives routing and alerting.
func (r RiskAssessment) Primary() (RiskEntry, bool) {
	if len(r.Entries) == 0 {
		return RiskEntry{}, false
	}
	return r.Entries[0], true
}

// Diagnosis is the single best-match result for registration symptoms.
type Diagnosis struct {
	Disease               string  `json:"disease"`
	Probability           int     `json:"probability"`
	PossibleCauses        string  `json:"possible_causes"`
	RecommendedSpecialist string  `json:"recommended_specialist"`
	Advice                string  `json:"advice"`
	DoctorID              *string `json:"doctor_id"`
	MatchedSpecialist     string  `json:"matched_specialist,omitempty"`
	Similarity            float64 `json:"similarity,omitempty"`
	Error                 string  `json:"error,omitempty"`
}

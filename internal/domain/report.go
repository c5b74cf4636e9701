package domain

import (
	"encoding/json"
	"time"
)

// Report is an AI-generated interpretation of a user's leadership profile.
type Report struct {
	ReportID       string          `json:"report_id"`
	UserID         string          `json:"user_id,omitempty"`
	LeadershipType string          `json:"leadership_type"`
	Interpretation string          `json:"interpretation"`
	AssessmentData json.RawMessage `json:"assessment_data,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Leadership types produced by the assessment.
const (
	ParticipativeCoaching = "참여코칭형"
	ParticipativePractice = "참여실무형"
	ParticipativeVision   = "참여비전형"
	ParticipativeIntimacy = "참여친밀형"
	IndividualCoaching    = "개별코칭형"
	IndividualVision      = "개별비전형"
	IndividualIntimacy    = "개별친밀형"
	Transitional          = "과도기형"
)

// LeadershipTypes lists every known leadership type in display order.
var LeadershipTypes = []string{
	ParticipativeCoaching,
	ParticipativePractice,
	ParticipativeVision,
	ParticipativeIntimacy,
	IndividualCoaching,
	IndividualVision,
	IndividualIntimacy,
	Transitional,
}

// IsKnownLeadershipType reports whether t is one of LeadershipTypes.
func IsKnownLeadershipType(t string) bool {
	for _, known := range LeadershipTypes {
		if known == t {
			return true
		}
	}
	return false
}

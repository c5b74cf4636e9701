// Package domain contains core domain types for the Link-Coach widget runtime.
package domain

import (
	"encoding/json"
	"strings"
)

// Session is the authenticated context the embedded app holds after the handshake.
type Session struct {
	Token          string          `json:"token"`
	UserID         string          `json:"userId"`
	LeadershipType string          `json:"leadershipType"`
	AssessmentData json.RawMessage `json:"assessmentData,omitempty"`
}

// MissingFields returns the names of required session fields that are empty.
func (s Session) MissingFields() []string {
	return MissingIdentityFields(s.Token, s.UserID, s.LeadershipType)
}

// Valid reports whether token, user id and leadership type are all present.
func (s Session) Valid() bool {
	return len(s.MissingFields()) == 0
}

// MissingIdentityFields returns the wire names of the empty required fields.
func MissingIdentityFields(token, userID, leadershipType string) []string {
	var missing []string
	if strings.TrimSpace(token) == "" {
		missing = append(missing, "token")
	}
	if strings.TrimSpace(userID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(leadershipType) == "" {
		missing = append(missing, "leadershipType")
	}
	return missing
}

// HasAssessmentData reports whether raw carries a non-null JSON value.
func HasAssessmentData(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}

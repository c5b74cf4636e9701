package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSessionMissingFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    Session
		want []string
	}{
		{name: "complete", s: Session{Token: "t", UserID: "u", LeadershipType: Transitional}},
		{name: "all empty", s: Session{}, want: []string{"token", "userId", "leadershipType"}},
		{name: "whitespace token", s: Session{Token: "  ", UserID: "u", LeadershipType: "x"}, want: []string{"token"}},
		{name: "no user", s: Session{Token: "t", LeadershipType: "x"}, want: []string{"userId"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tc.want, tc.s.MissingFields()); diff != "" {
				t.Errorf("MissingFields mismatch (-want +got):\n%s", diff)
			}
			if got := tc.s.Valid(); got != (len(tc.want) == 0) {
				t.Errorf("Valid() = %v", got)
			}
		})
	}
}

func TestHasAssessmentData(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"":            false,
		"null":        false,
		"  null  ":    false,
		"{}":          true,
		`{"score":3}`: true,
		"0":           true,
	}
	for raw, want := range cases {
		if got := HasAssessmentData(json.RawMessage(raw)); got != want {
			t.Errorf("HasAssessmentData(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestProjectHistory(t *testing.T) {
	t.Parallel()

	log := []ConversationMessage{
		{ID: 1, Role: RoleAssistant, Content: "hello"},
		{ID: 2, Role: RoleUser, Content: "Q1"},
		{ID: 3, Role: RoleAssistant, Content: "A1"},
	}
	want := []Turn{
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "Q1"},
		{Role: RoleAssistant, Content: "A1"},
	}
	if diff := cmp.Diff(want, ProjectHistory(log)); diff != "" {
		t.Errorf("ProjectHistory mismatch (-want +got):\n%s", diff)
	}

	empty := ProjectHistory(nil)
	if empty == nil || len(empty) != 0 {
		t.Errorf("ProjectHistory(nil) = %#v, want empty non-nil slice", empty)
	}
}

func TestIsKnownLeadershipType(t *testing.T) {
	t.Parallel()

	for _, lt := range LeadershipTypes {
		if !IsKnownLeadershipType(lt) {
			t.Errorf("IsKnownLeadershipType(%q) = false", lt)
		}
	}
	if IsKnownLeadershipType("visionary") {
		t.Error("unknown type reported as known")
	}
}

package coach

import (
	"encoding/json"
	"time"

	"github.com/ashureev/link-coach/internal/domain"
)

// HTTP paths served by the backend.
const (
	PathGenerate = "/api/v1/coaching/generate"
	PathChat     = "/api/v1/coaching/chat"
	PathReports  = "/api/v1/coaching/reports"
	PathDevToken = "/dev/token"
)

// GenerateRequest is the body of a report generation call.
type GenerateRequest struct {
	UserID         string          `json:"user_id"`
	LeadershipType string          `json:"leadership_type"`
	AssessmentData json.RawMessage `json:"assessment_data,omitempty"`
}

// ReportResponse is the wire form of a generated report.
type ReportResponse struct {
	ReportID       string    `json:"report_id"`
	Interpretation string    `json:"interpretation"`
	LeadershipType string    `json:"leadership_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewReportResponse converts a domain report to its wire form.
func NewReportResponse(r domain.Report) ReportResponse {
	return ReportResponse{
		ReportID:       r.ReportID,
		Interpretation: r.Interpretation,
		LeadershipType: r.LeadershipType,
		CreatedAt:      r.CreatedAt,
	}
}

// Report converts the wire form back to a domain report.
func (r ReportResponse) Report() domain.Report {
	return domain.Report{
		ReportID:       r.ReportID,
		Interpretation: r.Interpretation,
		LeadershipType: r.LeadershipType,
		CreatedAt:      r.CreatedAt,
	}
}

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	Question            string        `json:"question"`
	ConversationHistory []domain.Turn `json:"conversationHistory"`
	ReportID            string        `json:"report_id,omitempty"`
	LeadershipType      string        `json:"leadership_type,omitempty"`
}

// ChatResponse is the body returned by a chat call.
type ChatResponse struct {
	Answer string `json:"answer"`
}

// ExchangesResponse lists the chat exchanges recorded for a report.
type ExchangesResponse struct {
	Exchanges []*domain.Exchange `json:"exchanges"`
}

// DevTokenResponse is returned by the development token endpoint.
type DevTokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Usage  string `json:"usage"`
}

// ErrorResponse is the JSON error body shared by every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

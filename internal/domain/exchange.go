package domain

import "time"

// Exchange records one answered (or failed) chat question on the server.
type Exchange struct {
	ExchangeID string    `json:"exchange_id"`
	UserID     string    `json:"user_id"`
	ReportID   string    `json:"report_id,omitempty"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Failed     bool      `json:"failed"`
	CreatedAt  time.Time `json:"created_at"`
}

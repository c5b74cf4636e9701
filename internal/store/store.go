// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/link-coach/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for persisting reports and chat exchanges.
type Repository interface {
	// SaveReport creates or replaces a report.
	SaveReport(ctx context.Context, report *domain.Report) error

	// GetReport retrieves a report owned by userID. It returns ErrNotFound when
	// the report does not exist or belongs to another user.
	GetReport(ctx context.Context, userID, reportID string) (*domain.Report, error)

	// SaveExchange records one chat question and its answer.
	SaveExchange(ctx context.Context, exchange *domain.Exchange) error

	// ListExchanges returns the newest exchanges for a user, oldest first.
	// An empty reportID matches every report.
	ListExchanges(ctx context.Context, userID, reportID string, limit int) ([]*domain.Exchange, error)

	// DeleteReportsBefore removes reports and exchanges created before cutoff.
	DeleteReportsBefore(ctx context.Context, cutoff time.Time) (reports int64, exchanges int64, err error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// CredentialStore holds the single session token. Last write wins.
type CredentialStore interface {
	SetAuthToken(ctx context.Context, token string) error
	AuthToken(ctx context.Context) (string, error)
}

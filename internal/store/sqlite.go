package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/link-coach/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultExchangeLimit = 50

// SQLiteStore implements Repository and CredentialStore using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ Repository      = (*SQLiteStore)(nil)
	_ CredentialStore = (*SQLiteStore)(nil)
)

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL for concurrent readers; busy_timeout absorbs short write contention.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS reports (
		report_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		leadership_type TEXT NOT NULL,
		interpretation TEXT NOT NULL,
		assessment_data TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_user ON reports(user_id);
	CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);

	CREATE TABLE IF NOT EXISTS exchanges (
		exchange_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		report_id TEXT,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_user ON exchanges(user_id, created_at);

	CREATE TABLE IF NOT EXISTS credentials (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		token TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveReport creates or replaces a report.
func (s *SQLiteStore) SaveReport(ctx context.Context, r *domain.Report) error {
	query := `
	INSERT INTO reports (report_id, user_id, leadership_type, interpretation, assessment_data, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(report_id) DO UPDATE SET
		leadership_type = excluded.leadership_type,
		interpretation = excluded.interpretation,
		assessment_data = excluded.assessment_data`

	var assessment any
	if domain.HasAssessmentData(r.AssessmentData) {
		assessment = string(r.AssessmentData)
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	return withRetry(ctx, "save report", func() error {
		_, err := s.db.ExecContext(ctx, query,
			r.ReportID, r.UserID, r.LeadershipType, r.Interpretation, assessment, createdAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		return nil
	})
}

// GetReport retrieves a report owned by userID.
func (s *SQLiteStore) GetReport(ctx context.Context, userID, reportID string) (*domain.Report, error) {
	query := `
		SELECT report_id, user_id, leadership_type, interpretation, assessment_data, created_at
		FROM reports WHERE report_id = ? AND user_id = ?`

	var r domain.Report
	var assessment sql.NullString
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, reportID, userID).Scan(
		&r.ReportID, &r.UserID, &r.LeadershipType, &r.Interpretation, &assessment, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan report row: %w", err)
	}
	if assessment.Valid {
		r.AssessmentData = []byte(assessment.String)
	}
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &r, nil
}

// SaveExchange records one chat question and its answer. A missing ID or
// timestamp is filled in.
func (s *SQLiteStore) SaveExchange(ctx context.Context, e *domain.Exchange) error {
	if e.ExchangeID == "" {
		e.ExchangeID = "exchange_" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}

	query := `
	INSERT INTO exchanges (exchange_id, user_id, report_id, question, answer, failed, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	var reportID any
	if e.ReportID != "" {
		reportID = e.ReportID
	}
	return withRetry(ctx, "save exchange", func() error {
		_, err := s.db.ExecContext(ctx, query,
			e.ExchangeID, e.UserID, reportID, e.Question, e.Answer, e.Failed, e.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("save exchange: %w", err)
		}
		return nil
	})
}

// ListExchanges returns the newest exchanges for a user, oldest first.
func (s *SQLiteStore) ListExchanges(ctx context.Context, userID, reportID string, limit int) ([]*domain.Exchange, error) {
	if limit <= 0 {
		limit = defaultExchangeLimit
	}
	query := `
		SELECT exchange_id, user_id, report_id, question, answer, failed, created_at
		FROM exchanges WHERE user_id = ?`
	args := []any{userID}
	if reportID != "" {
		query += ` AND report_id = ?`
		args = append(args, reportID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close exchange rows", "error", closeErr)
		}
	}()

	var out []*domain.Exchange
	for rows.Next() {
		var e domain.Exchange
		var rid sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ExchangeID, &e.UserID, &rid, &e.Question, &e.Answer, &e.Failed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan exchange row: %w", err)
		}
		e.ReportID = rid.String
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// DeleteReportsBefore removes reports and exchanges created before cutoff.
func (s *SQLiteStore) DeleteReportsBefore(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	threshold := cutoff.Unix()

	var reports, exchanges int64
	err := withRetry(ctx, "delete expired records", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin cleanup: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		exRes, err := tx.ExecContext(ctx, `DELETE FROM exchanges WHERE created_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("delete expired exchanges: %w", err)
		}
		repRes, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE created_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("delete expired reports: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit cleanup: %w", err)
		}

		if exchanges, err = exRes.RowsAffected(); err != nil {
			return fmt.Errorf("exchange rows affected: %w", err)
		}
		if reports, err = repRes.RowsAffected(); err != nil {
			return fmt.Errorf("report rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return reports, exchanges, nil
}

// SetAuthToken replaces the stored session token.
func (s *SQLiteStore) SetAuthToken(ctx context.Context, token string) error {
	query := `
	INSERT INTO credentials (id, token, updated_at) VALUES (1, ?, ?)
	ON CONFLICT(id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`

	return withRetry(ctx, "set auth token", func() error {
		if _, err := s.db.ExecContext(ctx, query, token, s.now().Unix()); err != nil {
			return fmt.Errorf("set auth token: %w", err)
		}
		return nil
	})
}

// AuthToken returns the stored session token or ErrNotFound.
func (s *SQLiteStore) AuthToken(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM credentials WHERE id = 1`).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read auth token: %w", err)
	}
	return token, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

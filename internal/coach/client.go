package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/link-coach/internal/domain"
)

const defaultClientTimeout = 120 * time.Second

// TokenSource yields the bearer token for backend calls.
type TokenSource interface {
	AuthToken(ctx context.Context) (string, error)
}

// Client calls the coaching backend over HTTP on behalf of the widget.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger

	mu             sync.RWMutex
	reportID       string
	leadershipType string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultClientTimeout},
		tokens:  tokens,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UseReport attaches a report and profile to subsequent chat calls.
func (c *Client) UseReport(reportID, leadershipType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reportID = reportID
	c.leadershipType = leadershipType
}

// GenerateReport requests a new report from the backend.
func (c *Client) GenerateReport(ctx context.Context, userID, leadershipType string, assessmentData json.RawMessage) (domain.Report, error) {
	req := GenerateRequest{UserID: userID, LeadershipType: leadershipType}
	if domain.HasAssessmentData(assessmentData) {
		req.AssessmentData = assessmentData
	}
	var resp ReportResponse
	if err := c.post(ctx, PathGenerate, req, &resp); err != nil {
		return domain.Report{}, err
	}
	if strings.TrimSpace(resp.ReportID) == "" || strings.TrimSpace(resp.Interpretation) == "" {
		return domain.Report{}, NewGenerationError("invalid coaching response", nil)
	}
	report := resp.Report()
	report.UserID = userID
	return report, nil
}

// AskQuestion sends question with the prior conversation history.
func (c *Client) AskQuestion(ctx context.Context, question string, history []domain.Turn) (string, error) {
	c.mu.RLock()
	req := ChatRequest{
		Question:            question,
		ConversationHistory: history,
		ReportID:            c.reportID,
		LeadershipType:      c.leadershipType,
	}
	c.mu.RUnlock()
	if req.ConversationHistory == nil {
		req.ConversationHistory = []domain.Turn{}
	}

	var resp ChatResponse
	if err := c.post(ctx, PathChat, req, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Answer) == "" {
		return "", NewGenerationError("invalid coaching response", nil)
	}
	return resp.Answer, nil
}

// DevToken fetches a development token. It fails outside development mode.
func (c *Client) DevToken(ctx context.Context) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathDevToken, nil)
	if err != nil {
		return "", "", fmt.Errorf("build dev token request: %w", err)
	}
	var resp DevTokenResponse
	if err := c.do(req, &resp); err != nil {
		return "", "", err
	}
	if resp.Token == "" {
		return "", "", NewGenerationError("dev token response was empty", nil)
	}
	return resp.Token, resp.UserID, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.AuthToken(ctx)
		if err != nil {
			c.logger.Debug("No auth token available", "error", err)
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return NewGenerationError("coaching service unreachable", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("Failed to close response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return NewGenerationError("failed to read coaching response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e ErrorResponse
		msg := fmt.Sprintf("coaching service returned status %d", resp.StatusCode)
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return NewGenerationError(msg, fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewGenerationError("invalid coaching response", err)
	}
	return nil
}

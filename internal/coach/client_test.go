package coach

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/link-coach/internal/domain"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type staticToken string

func (s staticToken) AuthToken(context.Context) (string, error) { return string(s), nil }

func TestClientGenerateReport(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathGenerate || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.UserID != "u1" || req.LeadershipType != "과도기형" {
			t.Errorf("unexpected request body %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ReportResponse{
			ReportID:       "report_1",
			Interpretation: "본문",
			LeadershipType: req.LeadershipType,
			CreatedAt:      created,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok"), WithClientLogger(quietLogger))
	r, err := c.GenerateReport(context.Background(), "u1", "과도기형", nil)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if r.ReportID != "report_1" || r.Interpretation != "본문" || !r.CreatedAt.Equal(created) {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestClientAskQuestionSendsHistoryAndReport(t *testing.T) {
	t.Parallel()
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(ChatResponse{Answer: "네"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok"), WithClientLogger(quietLogger))
	c.UseReport("report_9", "참여비전형")
	history := []domain.Turn{{Role: domain.RoleAssistant, Content: "인사"}}
	answer, err := c.AskQuestion(context.Background(), "질문", history)
	if err != nil {
		t.Fatalf("AskQuestion: %v", err)
	}
	if answer != "네" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if got.Question != "질문" || got.ReportID != "report_9" || got.LeadershipType != "참여비전형" {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(got.ConversationHistory) != 1 || got.ConversationHistory[0].Role != domain.RoleAssistant {
		t.Fatalf("unexpected history %+v", got.ConversationHistory)
	}
}

func TestClientMapsServerErrors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"failed to generate report"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, WithClientLogger(quietLogger))
	_, err := c.GenerateReport(context.Background(), "u", "과도기형", nil)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Message != "failed to generate report" {
		t.Fatalf("unexpected message %q", genErr.Message)
	}
}

func TestClientRejectsIncompleteResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		call func(c *Client) error
	}{
		{
			name: "empty report",
			body: `{}`,
			call: func(c *Client) error {
				_, err := c.GenerateReport(context.Background(), "u", "과도기형", nil)
				return err
			},
		},
		{
			name: "report without interpretation",
			body: `{"report_id":"report_1","leadership_type":"과도기형"}`,
			call: func(c *Client) error {
				_, err := c.GenerateReport(context.Background(), "u", "과도기형", nil)
				return err
			},
		},
		{
			name: "empty answer",
			body: `{}`,
			call: func(c *Client) error {
				_, err := c.AskQuestion(context.Background(), "강점이 뭔가요?", nil)
				return err
			},
		},
		{
			name: "blank answer",
			body: `{"answer":"  "}`,
			call: func(c *Client) error {
				_, err := c.AskQuestion(context.Background(), "강점이 뭔가요?", nil)
				return err
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			err := tc.call(NewClient(srv.URL, nil, WithClientLogger(quietLogger)))
			var genErr *GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
			if genErr.Message != "invalid coaching response" {
				t.Fatalf("unexpected message %q", genErr.Message)
			}
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, nil, WithClientLogger(quietLogger))
	_, err := c.AskQuestion(context.Background(), "q", nil)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
}

func TestClientDevToken(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathDevToken {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(DevTokenResponse{Token: "jwt", UserID: "dev_user_123"})
	}))
	defer srv.Close()

	token, userID, err := NewClient(srv.URL, nil).DevToken(context.Background())
	if err != nil {
		t.Fatalf("DevToken: %v", err)
	}
	if token != "jwt" || userID != "dev_user_123" {
		t.Fatalf("unexpected token response %q %q", token, userID)
	}
}

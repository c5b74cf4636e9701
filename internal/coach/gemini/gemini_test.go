package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ashureev/link-coach/internal/coach"
	"github.com/ashureev/link-coach/internal/domain"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/genai"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGeneratorMapsRoles(t *testing.T) {
	t.Parallel()
	models := &fakeModels{resp: textResponse("좋은 ", "질문입니다.")}
	g := newGenerator(models, Config{Model: "gemini-test", Temperature: 0.7, MaxOutputTokens: 512}, quietLogger)

	history := []domain.Turn{
		{Role: domain.RoleAssistant, Content: "안녕하세요"},
		{Role: domain.RoleUser, Content: "질문 하나"},
	}
	got, err := g.GenerateText(context.Background(), "두 번째 질문", history)
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "좋은 질문입니다." {
		t.Fatalf("unexpected text %q", got)
	}
	if models.model != "gemini-test" {
		t.Fatalf("unexpected model %q", models.model)
	}

	type turn struct{ Role, Text string }
	var sent []turn
	for _, c := range models.contents {
		sent = append(sent, turn{Role: c.Role, Text: c.Parts[0].Text})
	}
	want := []turn{
		{Role: "model", Text: "안녕하세요"},
		{Role: "user", Text: "질문 하나"},
		{Role: "user", Text: "두 번째 질문"},
	}
	if diff := cmp.Diff(want, sent); diff != "" {
		t.Fatalf("contents mismatch (-want +got):\n%s", diff)
	}
	if models.config.Temperature == nil || *models.config.Temperature != 0.7 {
		t.Fatalf("temperature not applied: %v", models.config.Temperature)
	}
	if models.config.MaxOutputTokens != 512 {
		t.Fatalf("max tokens not applied: %v", models.config.MaxOutputTokens)
	}
}

func TestGeneratorWrapsErrors(t *testing.T) {
	t.Parallel()
	cause := errors.New("quota exceeded")
	g := newGenerator(&fakeModels{err: cause}, Config{Model: "m"}, quietLogger)

	_, err := g.GenerateText(context.Background(), "q", nil)
	var genErr *coach.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
}

func TestGeneratorRejectsEmptyText(t *testing.T) {
	t.Parallel()
	g := newGenerator(&fakeModels{resp: &genai.GenerateContentResponse{}}, Config{Model: "m"}, quietLogger)

	_, err := g.GenerateText(context.Background(), "q", nil)
	var genErr *coach.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError for empty response, got %v", err)
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := NewGenerator(context.Background(), Config{}, quietLogger); err == nil {
		t.Fatal("expected an error without an API key")
	}
}

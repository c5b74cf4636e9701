package coach

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/link-coach/internal/domain"
	"github.com/google/uuid"
)

// ErrInvalidInput is returned for requests missing required fields.
var ErrInvalidInput = errors.New("invalid input")

// TextGenerator is the text-generation provider boundary.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, history []domain.Turn) (string, error)
}

// ChatInput is one chat question with its context.
type ChatInput struct {
	Question       string
	History        []domain.Turn
	LeadershipType string
	ReportContext  string
}

// Service implements report generation and question answering.
type Service struct {
	gen    TextGenerator
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a coaching service on top of gen.
func NewService(gen TextGenerator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		gen:    gen,
		logger: logger,
		now:    time.Now,
	}
}

// GenerateReport produces a report for a user's leadership type.
func (s *Service) GenerateReport(ctx context.Context, userID, leadershipType string, assessmentData json.RawMessage) (domain.Report, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(leadershipType) == "" {
		return domain.Report{}, ErrInvalidInput
	}

	var data []byte
	if domain.HasAssessmentData(assessmentData) {
		data = assessmentData
	}

	start := s.now()
	text, err := s.gen.GenerateText(ctx, reportPrompt(leadershipType, data), nil)
	if err != nil {
		s.logger.Error("Report generation failed", "user_id", userID, "leadership_type", leadershipType, "error", err)
		return domain.Report{}, asGenerationError(err, "failed to generate report")
	}

	report := domain.Report{
		ReportID:       "report_" + uuid.NewString(),
		UserID:         userID,
		LeadershipType: leadershipType,
		Interpretation: text,
		AssessmentData: data,
		CreatedAt:      s.now().UTC(),
	}
	s.logger.Info("Report generated",
		"user_id", userID,
		"report_id", report.ReportID,
		"duration", s.now().Sub(start),
	)
	return report, nil
}

// AskQuestion answers question for the default leadership profile.
func (s *Service) AskQuestion(ctx context.Context, question string, history []domain.Turn) (string, error) {
	return s.Answer(ctx, ChatInput{Question: question, History: history})
}

// Answer runs one chat turn. The coaching persona is injected as a leading
// user turn with a model acknowledgement, ahead of the caller's history.
func (s *Service) Answer(ctx context.Context, in ChatInput) (string, error) {
	if strings.TrimSpace(in.Question) == "" {
		return "", ErrInvalidInput
	}
	lt := in.LeadershipType
	if lt == "" {
		lt = domain.IndividualVision
	}

	history := make([]domain.Turn, 0, len(in.History)+2)
	history = append(history,
		domain.Turn{Role: domain.RoleUser, Content: chatSystemPrompt(lt, in.ReportContext)},
		domain.Turn{Role: domain.RoleAssistant, Content: chatAcknowledgement(lt)},
	)
	history = append(history, in.History...)

	answer, err := s.gen.GenerateText(ctx, in.Question, history)
	if err != nil {
		s.logger.Warn("Chat generation failed", "history_len", len(in.History), "error", err)
		return "", asGenerationError(err, "failed to generate response")
	}
	return answer, nil
}

func asGenerationError(err error, message string) error {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}
	return NewGenerationError(message, err)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/link-coach/internal/coach"
	"github.com/ashureev/link-coach/internal/domain"
	"github.com/ashureev/link-coach/internal/identity"
	"github.com/ashureev/link-coach/internal/metrics"
	"github.com/ashureev/link-coach/internal/store"
	"github.com/go-chi/chi/v5"
)

// MaxQuestionLength is the longest accepted chat question, in characters.
const MaxQuestionLength = 500

// maxExchangeLimit caps the exchanges returned per request.
const maxExchangeLimit = 100

const devTokenUsage = "Add this token to Authorization header as 'Bearer <token>'"

// Coach generates reports and answers questions.
type Coach interface {
	GenerateReport(ctx context.Context, userID, leadershipType string, assessmentData json.RawMessage) (domain.Report, error)
	Answer(ctx context.Context, in coach.ChatInput) (string, error)
}

// CoachingHandler serves the coaching endpoints.
type CoachingHandler struct {
	coach   Coach
	repo    store.Repository
	limiter *RateLimiter
	metrics *metrics.Metrics
	issuer  *identity.Issuer
	isDev   bool
	logger  *slog.Logger
}

// CoachingDeps are the collaborators of a CoachingHandler.
type CoachingDeps struct {
	Coach   Coach
	Repo    store.Repository
	Limiter *RateLimiter
	Metrics *metrics.Metrics
	Issuer  *identity.Issuer
	IsDev   bool
	Logger  *slog.Logger
}

// NewCoachingHandler creates the coaching handler.
func NewCoachingHandler(deps CoachingDeps) *CoachingHandler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CoachingHandler{
		coach:   deps.Coach,
		repo:    deps.Repo,
		limiter: deps.Limiter,
		metrics: deps.Metrics,
		issuer:  deps.Issuer,
		isDev:   deps.IsDev,
		logger:  logger,
	}
}

// RegisterRoutes registers the coaching routes behind bearer authentication
// and the public development token route.
func (h *CoachingHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/coaching", func(r chi.Router) {
		r.Use(identity.Middleware(h.issuer, h.isDev))
		r.Post("/generate", h.Generate)
		r.Post("/chat", h.Chat)
		r.Get("/reports/{reportID}", h.GetReport)
		r.Get("/reports/{reportID}/exchanges", h.ListExchanges)
	})
	r.Get(coach.PathDevToken, h.DevToken)
}

// Generate handles POST /api/v1/coaching/generate. The report is owned by
// the token's user.
func (h *CoachingHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req coach.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.LeadershipType = strings.TrimSpace(req.LeadershipType)
	if req.UserID == "" || req.LeadershipType == "" {
		Error(w, http.StatusBadRequest, "user_id and leadership_type are required")
		return
	}
	if req.UserID != userID {
		h.logger.Debug("Report request user differs from token user", "token_user", userID, "body_user", req.UserID)
	}

	h.logger.Info("Report generation requested", "user_id", userID, "leadership_type", req.LeadershipType)
	start := time.Now()
	report, err := h.coach.GenerateReport(r.Context(), userID, req.LeadershipType, req.AssessmentData)
	h.metrics.ObserveGeneration("report", time.Since(start), err)
	if err != nil {
		if errors.Is(err, coach.ErrInvalidInput) {
			Error(w, http.StatusBadRequest, "user_id and leadership_type are required")
			return
		}
		Error(w, http.StatusBadGateway, coach.GenerationMessage(err))
		return
	}

	if err := h.repo.SaveReport(r.Context(), &report); err != nil {
		h.logger.Error("Failed to persist report", "report_id", report.ReportID, "error", err)
	}

	JSON(w, http.StatusOK, coach.NewReportResponse(report))
}

// Chat handles POST /api/v1/coaching/chat.
func (h *CoachingHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.limiter.Allow(userID) {
		h.metrics.RateLimited()
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req coach.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		Error(w, http.StatusBadRequest, "question is required")
		return
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		Error(w, http.StatusBadRequest, "question must be at most 500 characters")
		return
	}

	in := coach.ChatInput{
		Question:       question,
		History:        req.ConversationHistory,
		LeadershipType: req.LeadershipType,
	}
	if req.ReportID != "" {
		report, err := h.repo.GetReport(r.Context(), userID, req.ReportID)
		switch {
		case err == nil:
			in.ReportContext = report.Interpretation
			if in.LeadershipType == "" {
				in.LeadershipType = report.LeadershipType
			}
		case errors.Is(err, store.ErrNotFound):
			h.logger.Debug("Chat report not found, answering without it", "user_id", userID, "report_id", req.ReportID)
		default:
			h.logger.Warn("Failed to load chat report", "user_id", userID, "report_id", req.ReportID, "error", err)
		}
	}

	h.logger.Info("Chat question",
		"user_id", userID,
		"report_id", req.ReportID,
		"question_length", utf8.RuneCountInString(question),
		"history_len", len(req.ConversationHistory),
	)
	start := time.Now()
	answer, err := h.coach.Answer(r.Context(), in)
	h.metrics.ObserveGeneration("chat", time.Since(start), err)

	h.recordExchange(r.Context(), &domain.Exchange{
		UserID:   userID,
		ReportID: req.ReportID,
		Question: question,
		Answer:   answer,
		Failed:   err != nil,
	})

	if err != nil {
		Error(w, http.StatusBadGateway, coach.GenerationMessage(err))
		return
	}
	JSON(w, http.StatusOK, coach.ChatResponse{Answer: answer})
}

func (h *CoachingHandler) recordExchange(ctx context.Context, e *domain.Exchange) {
	if err := h.repo.SaveExchange(ctx, e); err != nil {
		h.logger.Warn("Failed to record chat exchange", "user_id", e.UserID, "error", err)
	}
}

// GetReport handles GET /api/v1/coaching/reports/{reportID}.
func (h *CoachingHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	report, err := h.repo.GetReport(r.Context(), userID, chi.URLParam(r, "reportID"))
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load report", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	JSON(w, http.StatusOK, report)
}

// ListExchanges handles GET /api/v1/coaching/reports/{reportID}/exchanges,
// returning the newest exchanges oldest first. ?limit= caps the count.
func (h *CoachingHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := maxExchangeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxExchangeLimit)
	}

	reportID := chi.URLParam(r, "reportID")
	if _, err := h.repo.GetReport(r.Context(), userID, reportID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "report not found")
			return
		}
		h.logger.Error("Failed to load report", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load report")
		return
	}

	exchanges, err := h.repo.ListExchanges(r.Context(), userID, reportID, limit)
	if err != nil {
		h.logger.Error("Failed to list exchanges", "user_id", userID, "report_id", reportID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list exchanges")
		return
	}
	if exchanges == nil {
		exchanges = []*domain.Exchange{}
	}
	JSON(w, http.StatusOK, coach.ExchangesResponse{Exchanges: exchanges})
}

// DevToken handles GET /dev/token. It is only served in development.
func (h *CoachingHandler) DevToken(w http.ResponseWriter, _ *http.Request) {
	if !h.isDev {
		Error(w, http.StatusForbidden, "This endpoint is only available in development mode")
		return
	}
	token, err := h.issuer.Mint(identity.DevUserID, identity.DevEmail, identity.RoleUser)
	if err != nil {
		h.logger.Error("Failed to mint development token", "error", err)
		Error(w, http.StatusInternalServerError, "failed to mint token")
		return
	}
	JSON(w, http.StatusOK, coach.DevTokenResponse{
		Token:  token,
		UserID: identity.DevUserID,
		Usage:  devTokenUsage,
	})
}

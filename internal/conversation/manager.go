// Package conversation keeps the widget's chat log and runs one question at a
// time against the coaching backend.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/link-coach/internal/domain"
)

// Greeting opens every conversation.
const Greeting = "안녕하세요, 지영 리더님. 저는 그라운더입니다. 당신의 리더십 분석 결과를 바탕으로 실질적인 인사이트를 제공하겠습니다. 궁금하신 점을 편하게 질문해 주세요."

// FallbackAnswer replaces the assistant reply when the backend call fails.
const FallbackAnswer = "일시적인 오류가 발생했습니다. 잠시 후 다시 시도해 주세요."

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrBusy          = errors.New("a question is already in flight")
	ErrClosed        = errors.New("conversation closed")
)

// Asker answers a question given the prior conversation.
type Asker interface {
	AskQuestion(ctx context.Context, question string, history []domain.Turn) (string, error)
}

// Manager owns the message log. It is safe for concurrent use.
type Manager struct {
	asker  Asker
	logger *slog.Logger

	mu       sync.Mutex
	messages []domain.ConversationMessage
	nextID   int64
	loading  bool
	closed   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager whose log starts with the greeting.
func NewManager(asker Asker, opts ...Option) *Manager {
	m := &Manager{
		asker:  asker,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.appendLocked(domain.RoleAssistant, Greeting)
	return m
}

// Ask runs one question to completion. It returns ErrEmptyQuestion or ErrBusy
// without touching the log when the question is rejected. Backend failures are
// absorbed: the fallback answer is appended and Ask returns nil.
func (m *Manager) Ask(ctx context.Context, question string) error {
	q := strings.TrimSpace(question)
	if q == "" {
		return ErrEmptyQuestion
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.loading {
		m.mu.Unlock()
		return ErrBusy
	}
	// History is the log as it stood before this question.
	history := domain.ProjectHistory(m.messages)
	m.appendLocked(domain.RoleUser, q)
	m.loading = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	answer, err := m.asker.AskQuestion(ctx, q, history)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		m.logger.Debug("Discarding answer for closed conversation")
		return nil
	}
	if err != nil {
		m.logger.Warn("Chat question failed", "error", err, "history_len", len(history))
		answer = FallbackAnswer
	}
	m.appendLocked(domain.RoleAssistant, answer)
	return nil
}

// Messages returns a copy of the log.
func (m *Manager) Messages() []domain.ConversationMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ConversationMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// History projects the current log into backend turns.
func (m *Manager) History() []domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.ProjectHistory(m.messages)
}

// Loading reports whether a question is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Close detaches the manager; answers resolving afterwards are dropped.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *Manager) appendLocked(role domain.Role, content string) {
	m.messages = append(m.messages, domain.ConversationMessage{
		ID:      m.nextID,
		Role:    role,
		Content: content,
	})
	m.nextID++
}

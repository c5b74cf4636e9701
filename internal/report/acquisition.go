// Package report fetches the session's leadership report exactly once.
package report

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ashureev/link-coach/internal/coach"
	"github.com/ashureev/link-coach/internal/domain"
)

// ErrorPrefix precedes the generation message in the user-facing error.
const ErrorPrefix = "리포트 생성에 실패했습니다: "

// Status is the acquisition state.
type Status int

const (
	StatusLoading Status = iota
	StatusError
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusReady:
		return "ready"
	default:
		return "loading"
	}
}

// State is a read-only snapshot for the presentation layer.
type State struct {
	Status Status
	Report *domain.Report
	Error  string
}

// Generator produces a report for a session.
type Generator interface {
	GenerateReport(ctx context.Context, userID, leadershipType string, assessmentData json.RawMessage) (domain.Report, error)
}

// Acquisition runs one report fetch per session.
type Acquisition struct {
	gen     Generator
	logger  *slog.Logger
	onReady func(domain.Report)

	mu      sync.Mutex
	state   State
	started bool
	closed  bool
	done    chan struct{}
}

// Option configures an Acquisition.
type Option func(*Acquisition)

// WithLogger sets the acquisition logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Acquisition) {
		if l != nil {
			a.logger = l
		}
	}
}

// OnReady registers a callback invoked once the report arrives.
func OnReady(fn func(domain.Report)) Option {
	return func(a *Acquisition) { a.onReady = fn }
}

// New creates an idle acquisition.
func New(gen Generator, opts ...Option) *Acquisition {
	a := &Acquisition{
		gen:    gen,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the fetch for sess. Only the first call does anything; it
// reports whether this call started the fetch. There is no retry.
func (a *Acquisition) Start(ctx context.Context, sess domain.Session) bool {
	a.mu.Lock()
	if a.started || a.closed {
		a.mu.Unlock()
		return false
	}
	a.started = true
	a.mu.Unlock()

	go a.run(ctx, sess)
	return true
}

func (a *Acquisition) run(ctx context.Context, sess domain.Session) {
	defer close(a.done)

	r, err := a.gen.GenerateReport(ctx, sess.UserID, sess.LeadershipType, sess.AssessmentData)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.logger.Debug("Discarding report for closed session", "user_id", sess.UserID)
		return
	}
	if err != nil {
		a.state = State{Status: StatusError, Error: ErrorPrefix + coach.GenerationMessage(err)}
		a.mu.Unlock()
		a.logger.Error("Report acquisition failed", "user_id", sess.UserID, "error", err)
		return
	}
	a.state = State{Status: StatusReady, Report: &r}
	onReady := a.onReady
	a.mu.Unlock()

	a.logger.Info("Report ready", "user_id", sess.UserID, "report_id", r.ReportID)
	if onReady != nil {
		onReady(r)
	}
}

// State returns the current snapshot.
func (a *Acquisition) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.state
	if s.Report != nil {
		r := *s.Report
		s.Report = &r
	}
	return s
}

// Started reports whether the fetch was triggered.
func (a *Acquisition) Started() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// Done is closed once a started fetch has resolved.
func (a *Acquisition) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the fetch resolves or ctx ends.
func (a *Acquisition) Wait(ctx context.Context) (State, error) {
	select {
	case <-a.done:
		return a.State(), nil
	case <-ctx.Done():
		return a.State(), ctx.Err()
	}
}

// Close detaches the acquisition; a late result is discarded.
func (a *Acquisition) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

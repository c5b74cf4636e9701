// Package widget implements the embedded side of the widget: the session
// handshake and the wiring that gates the report and chat behind it.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/link-coach/internal/channel"
	"github.com/ashureev/link-coach/internal/domain"
	"github.com/ashureev/link-coach/internal/protocol"
)

// State is the bootstrapper lifecycle state.
type State int

const (
	StateAwaitingInit State = iota
	StateReady
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateTornDown:
		return "TORN_DOWN"
	default:
		return "AWAITING_INIT"
	}
}

var (
	ErrNotReady       = errors.New("widget session not ready")
	ErrTornDown       = errors.New("widget torn down")
	ErrAlreadyStarted = errors.New("widget already started")
)

// Development session used when no host answers the handshake.
const (
	DevToken             = "dev-test-token-12345"
	DevUserID            = "dev_user_123"
	DevLeadershipType    = domain.IndividualVision
	DefaultFallbackDelay = 1500 * time.Millisecond
)

// DevAssessmentData is the demo profile attached to an issued development session.
var DevAssessmentData = json.RawMessage(`{"scores":{"extraversion":75,"thinking":80,"judging":70}}`)

const (
	storeTimeout    = 5 * time.Second
	devTokenTimeout = 5 * time.Second
)

// DevTokenSource issues development tokens.
type DevTokenSource interface {
	DevToken(ctx context.Context) (token, userID string, err error)
}

// Bootstrapper runs the embedded side of the handshake.
type Bootstrapper struct {
	ch           *channel.Channel
	parentOrigin string
	tokens       TokenStore
	logger       *slog.Logger

	fallbackEnabled bool
	fallbackDelay   time.Duration
	devTokens       DevTokenSource

	mu           sync.Mutex
	state        State
	started      bool
	establishing bool
	session  domain.Session
	timer    *time.Timer
	unlisten func()
	onReady  []func(domain.Session)
	onUpdate []func(domain.Session)
	ready    chan struct{}
	torn     chan struct{}
}

// Option configures a Bootstrapper.
type Option func(*Bootstrapper)

// WithLogger sets the bootstrapper logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bootstrapper) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithDevFallback self-initializes with the development session when no
// INIT_WIDGET arrives within delay. Never enable it in production.
func WithDevFallback(delay time.Duration) Option {
	return func(b *Bootstrapper) {
		b.fallbackEnabled = true
		if delay > 0 {
			b.fallbackDelay = delay
		}
	}
}

// WithDevTokenSource lets the fallback try a real development token first.
func WithDevTokenSource(src DevTokenSource) Option {
	return func(b *Bootstrapper) { b.devTokens = src }
}

// WithParentOrigin restricts outbound messages to origin instead of "*".
func WithParentOrigin(origin string) Option {
	return func(b *Bootstrapper) {
		if origin != "" {
			b.parentOrigin = origin
		}
	}
}

// New creates a bootstrapper accepting host messages from allowedOrigins.
func New(port channel.Port, allowedOrigins []string, tokens TokenStore, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		parentOrigin:  channel.AnyOrigin,
		tokens:        tokens,
		logger:        slog.Default(),
		fallbackDelay: DefaultFallbackDelay,
		ready:         make(chan struct{}),
		torn:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.tokens == nil {
		b.tokens = NewMemoryTokenStore()
	}
	b.ch = channel.New(port, allowedOrigins, channel.WithLogger(b.logger))
	return b
}

// OnReady registers fn to run once when the session is established. It runs
// immediately when the session is already READY.
func (b *Bootstrapper) OnReady(fn func(domain.Session)) {
	b.mu.Lock()
	if b.state == StateReady {
		sess := b.session
		b.mu.Unlock()
		fn(sess)
		return
	}
	b.onReady = append(b.onReady, fn)
	b.mu.Unlock()
}

// OnUpdate registers fn to run after each accepted UPDATE_USER.
func (b *Bootstrapper) OnUpdate(fn func(domain.Session)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onUpdate = append(b.onUpdate, fn)
}

// Start registers the listener and then announces WIDGET_READY, in that
// order, so the host's reply cannot arrive before anyone is listening.
func (b *Bootstrapper) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateTornDown {
		b.mu.Unlock()
		return ErrTornDown
	}
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.started = true
	b.unlisten = b.ch.Handle(b)
	if b.fallbackEnabled {
		b.timer = time.AfterFunc(b.fallbackDelay, b.fallback)
	}
	b.mu.Unlock()

	if err := b.ch.Send(ctx, protocol.WidgetReady{}, b.parentOrigin); err != nil {
		b.logger.Warn("Failed to announce widget ready", "error", err)
		return fmt.Errorf("announce ready: %w", err)
	}
	b.logger.Info("Widget ready, awaiting init", "dev_fallback", b.fallbackEnabled)
	return nil
}

// State returns the lifecycle state.
func (b *Bootstrapper) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Session returns the established session.
func (b *Bootstrapper) Session() (domain.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateReady:
		return b.session, nil
	case StateTornDown:
		return domain.Session{}, ErrTornDown
	default:
		return domain.Session{}, ErrNotReady
	}
}

// Ready is closed when the session becomes READY.
func (b *Bootstrapper) Ready() <-chan struct{} {
	return b.ready
}

// Wait blocks until READY, teardown, or ctx end.
func (b *Bootstrapper) Wait(ctx context.Context) (domain.Session, error) {
	select {
	case <-b.ready:
		return b.Session()
	case <-b.torn:
		return domain.Session{}, ErrTornDown
	case <-ctx.Done():
		return domain.Session{}, ctx.Err()
	}
}

// Resize asks the host to set the surface height.
func (b *Bootstrapper) Resize(ctx context.Context, height float64) error {
	return b.ch.Send(ctx, protocol.WidgetResize{Height: height}, b.parentOrigin)
}

// RequestClose asks the host to remove the surface.
func (b *Bootstrapper) RequestClose(ctx context.Context) error {
	return b.ch.Send(ctx, protocol.WidgetClose{}, b.parentOrigin)
}

// ReportError forwards payload to the host's error reporter.
func (b *Bootstrapper) ReportError(ctx context.Context, payload []byte) error {
	return b.ch.Send(ctx, protocol.WidgetError{Payload: payload}, b.parentOrigin)
}

// Teardown stops the fallback timer and the listener. It is terminal.
func (b *Bootstrapper) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateTornDown {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	if b.unlisten != nil {
		b.unlisten()
		b.unlisten = nil
	}
	b.state = StateTornDown
	close(b.torn)
	b.logger.Info("Widget torn down")
}

func (b *Bootstrapper) establish(sess domain.Session, source string) bool {
	b.mu.Lock()
	if b.state != StateAwaitingInit || b.establishing {
		b.mu.Unlock()
		b.logger.Debug("Ignoring session, already established", "source", source, "state", b.state)
		return false
	}
	b.establishing = true
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()

	// The token is written before READY becomes observable.
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	if err := b.tokens.SetAuthToken(ctx, sess.Token); err != nil {
		b.logger.Error("Failed to store auth token", "error", err)
	}
	cancel()

	b.mu.Lock()
	b.establishing = false
	if b.state != StateAwaitingInit {
		b.mu.Unlock()
		b.logger.Debug("Widget torn down while establishing session", "source", source)
		return false
	}
	b.session = sess
	b.state = StateReady
	close(b.ready)
	callbacks := b.onReady
	b.onReady = nil
	b.mu.Unlock()

	b.logger.Info("Widget session established",
		"source", source,
		"user_id", sess.UserID,
		"leadership_type", sess.LeadershipType,
	)
	for _, fn := range callbacks {
		fn(sess)
	}
	return true
}

func (b *Bootstrapper) fallback() {
	b.mu.Lock()
	if b.state != StateAwaitingInit {
		b.mu.Unlock()
		return
	}
	src := b.devTokens
	b.mu.Unlock()

	b.logger.Warn("No INIT_WIDGET received, using development session")
	sess := domain.Session{Token: DevToken, UserID: DevUserID, LeadershipType: DevLeadershipType}
	if src != nil {
		ctx, cancel := context.WithTimeout(context.Background(), devTokenTimeout)
		token, userID, err := src.DevToken(ctx)
		cancel()
		if err != nil {
			b.logger.Warn("Development token unavailable, using fixed token", "error", err)
		} else {
			sess.Token = token
			if userID != "" {
				sess.UserID = userID
			}
			sess.AssessmentData = append(json.RawMessage(nil), DevAssessmentData...)
		}
	}
	b.establish(sess, "dev-fallback")
}

// HandleInitWidget establishes the session from a complete payload.
func (b *Bootstrapper) HandleInitWidget(origin string, m protocol.InitWidget) {
	sess := m.Session()
	if !sess.Valid() {
		b.logger.Warn("Ignoring incomplete INIT_WIDGET", "origin", origin, "missing", sess.MissingFields())
		return
	}
	b.establish(sess, "host")
}

// HandleUpdateUser merges profile fields into a READY session. Identity is
// never changed and non-object payloads are ignored.
func (b *Bootstrapper) HandleUpdateUser(origin string, m protocol.UpdateUser) {
	u, ok := protocol.ParseUserUpdate(m.Payload)
	if !ok {
		b.logger.Debug("Ignoring UPDATE_USER with non-object payload", "origin", origin)
		return
	}

	b.mu.Lock()
	if b.state != StateReady {
		b.mu.Unlock()
		b.logger.Debug("Ignoring UPDATE_USER before session is ready", "origin", origin)
		return
	}
	if u.LeadershipType != "" {
		b.session.LeadershipType = u.LeadershipType
	}
	if u.AssessmentData != nil {
		if domain.HasAssessmentData(u.AssessmentData) {
			b.session.AssessmentData = u.AssessmentData
		} else {
			b.session.AssessmentData = nil
		}
	}
	sess := b.session
	callbacks := append([]func(domain.Session){}, b.onUpdate...)
	b.mu.Unlock()

	for _, fn := range callbacks {
		fn(sess)
	}
}

// HandleWidgetReady ignores widget-bound echoes.
func (b *Bootstrapper) HandleWidgetReady(string, protocol.WidgetReady) {}

// HandleWidgetResize ignores widget-bound echoes.
func (b *Bootstrapper) HandleWidgetResize(string, protocol.WidgetResize) {}

// HandleWidgetClose ignores widget-bound echoes.
func (b *Bootstrapper) HandleWidgetClose(string, protocol.WidgetClose) {}

// HandleWidgetError ignores widget-bound echoes.
func (b *Bootstrapper) HandleWidgetError(string, protocol.WidgetError) {}

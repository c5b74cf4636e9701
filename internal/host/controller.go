package host

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

var (
	// ErrAlreadyInitialized signals a repeated Initialize; the call changed nothing.
	ErrAlreadyInitialized = errors.New("link-coach: widget already initialized")
	// ErrNoSurface is returned by operations that need a mounted surface.
	ErrNoSurface = errors.New("link-coach: widget surface not found")
)

const sendTimeout = 5 * time.Second

// ErrorReporter receives WIDGET_ERROR payloads.
type ErrorReporter func(payload json.RawMessage)

// Controller is one widget instance embedded in a host page.
type Controller struct {
	port         channel.Port
	doc          Document
	logger       *slog.Logger
	reportError  ErrorReporter
	extraOrigins []string

	mu           sync.Mutex
	initialized  bool
	cfg          Config
	surface      *Surface
	ch           *channel.Channel
	widgetOrigin string
	unlisten     func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithErrorReporter sets the receiver for widget error notifications.
func WithErrorReporter(fn ErrorReporter) Option {
	return func(c *Controller) { c.reportError = fn }
}

// WithAllowedOrigins accepts inbound messages from additional origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(c *Controller) { c.extraOrigins = append(c.extraOrigins, origins...) }
}

// New creates an uninitialized controller bound to port and doc.
func New(port channel.Port, doc Document, opts ...Option) *Controller {
	c := &Controller{
		port:   port,
		doc:    doc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize validates cfg, creates the surface and starts listening for the
// widget. A second call while initialized returns ErrAlreadyInitialized and
// changes nothing.
func (c *Controller) Initialize(_ context.Context, cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		c.logger.Warn("Link-Coach widget already initialized")
		return ErrAlreadyInitialized
	}

	if missing := domain.MissingIdentityFields(cfg.Token, cfg.UserID, cfg.LeadershipType); len(missing) > 0 {
		err := &ConfigurationError{Missing: missing}
		c.logger.Error("Link-Coach configuration invalid", "missing", missing)
		return err
	}

	merged := cfg.withDefaults()
	widgetOrigin := channel.OriginOf(merged.WidgetURL)

	allowed := make([]string, 0, 1+len(channel.DefaultAllowedOrigins)+len(c.extraOrigins))
	allowed = append(allowed, widgetOrigin)
	allowed = append(allowed, channel.DefaultAllowedOrigins...)
	allowed = append(allowed, c.extraOrigins...)
	ch := channel.New(c.port, allowed, channel.WithLogger(c.logger))

	// Listen before the surface exists so the widget's first WIDGET_READY
	// cannot race the registration.
	unlisten := ch.Handle(c)

	surface := newSurface(merged, c.doc.ViewportWidth())
	if err := c.doc.Mount(merged.Container, surface); err != nil {
		unlisten()
		c.logger.Error("Failed to mount Link-Coach widget", "container", merged.Container, "error", err)
		return fmt.Errorf("mount widget surface: %w", err)
	}

	c.initialized = true
	c.cfg = merged
	c.surface = surface
	c.ch = ch
	c.widgetOrigin = widgetOrigin
	c.unlisten = unlisten

	c.logger.Info("Link-Coach widget initialized",
		"widget_url", merged.WidgetURL,
		"position", merged.Position,
		"user_id", merged.UserID,
	)
	return nil
}

// Initialized reports whether a surface is currently managed.
func (c *Controller) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Config returns the merged configuration in effect.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Surface returns a copy of the current surface.
func (c *Controller) Surface() (Surface, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.surface == nil {
		return Surface{}, false
	}
	return *c.surface, true
}

// Show makes the surface visible.
func (c *Controller) Show() { c.setVisible(func(bool) bool { return true }) }

// Hide hides the surface.
func (c *Controller) Hide() { c.setVisible(func(bool) bool { return false }) }

// Toggle flips visibility.
func (c *Controller) Toggle() { c.setVisible(func(v bool) bool { return !v }) }

func (c *Controller) setVisible(next func(bool) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.surface != nil {
		c.surface.Visible = next(c.surface.Visible)
	}
}

// UpdateUser sends data to the widget as UPDATE_USER. There is no
// acknowledgement; only local failures are returned.
func (c *Controller) UpdateUser(ctx context.Context, data any) error {
	c.mu.Lock()
	if c.surface == nil {
		c.mu.Unlock()
		c.logger.Error("Link-Coach widget surface not found")
		return ErrNoSurface
	}
	ch, target := c.ch, c.widgetOrigin
	c.mu.Unlock()

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode user update: %w", err)
	}
	return ch.Send(ctx, protocol.UpdateUser{Payload: payload}, target)
}

// Destroy removes the surface and returns the controller to uninitialized.
func (c *Controller) Destroy() {
	c.teardown("destroyed by host")
}

func (c *Controller) teardown(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return
	}
	if c.surface != nil {
		c.doc.Unmount(c.surface)
	}
	if c.unlisten != nil {
		c.unlisten()
	}
	c.initialized = false
	c.cfg = Config{}
	c.surface = nil
	c.ch = nil
	c.widgetOrigin = ""
	c.unlisten = nil
	c.logger.Info("Link-Coach widget removed", "reason", reason)
}

func (c *Controller) sendInit() {
	c.mu.Lock()
	if !c.initialized || c.surface == nil {
		c.mu.Unlock()
		c.logger.Error("Link-Coach widget surface not found")
		return
	}
	msg := protocol.InitWidget{
		Token:          c.cfg.Token,
		UserID:         c.cfg.UserID,
		LeadershipType: c.cfg.LeadershipType,
		AssessmentData: c.cfg.AssessmentData,
	}
	ch, target := c.ch, c.widgetOrigin
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := ch.Send(ctx, msg, target); err != nil {
		c.logger.Warn("Failed to send init to widget", "error", err)
	}
}

// HandleWidgetReady answers the handshake with the stored credentials.
func (c *Controller) HandleWidgetReady(_ string, _ protocol.WidgetReady) {
	c.sendInit()
}

// HandleWidgetResize applies positive heights to the surface.
func (c *Controller) HandleWidgetResize(_ string, m protocol.WidgetResize) {
	if m.Height <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.surface != nil {
		c.surface.Height = pixels(m.Height)
	}
}

// HandleWidgetClose tears the widget down.
func (c *Controller) HandleWidgetClose(_ string, _ protocol.WidgetClose) {
	c.teardown("closed by widget")
}

// HandleWidgetError forwards the payload to the host's reporter.
func (c *Controller) HandleWidgetError(origin string, m protocol.WidgetError) {
	c.logger.Error("Link-Coach widget error", "origin", origin, "payload", string(m.Payload))
	if c.reportError != nil {
		c.reportError(m.Payload)
	}
}

// HandleInitWidget ignores host-bound copies of a widget-bound message.
func (c *Controller) HandleInitWidget(origin string, _ protocol.InitWidget) {
	c.logger.Debug("Ignoring INIT_WIDGET received by host", "origin", origin)
}

// HandleUpdateUser ignores host-bound copies of a widget-bound message.
func (c *Controller) HandleUpdateUser(origin string, _ protocol.UpdateUser) {
	c.logger.Debug("Ignoring UPDATE_USER received by host", "origin", origin)
}

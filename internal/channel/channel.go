package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/link-coach/internal/protocol"
)

// Known deployment and development origins accepted in addition to the
// configured widget origin.
var DefaultAllowedOrigins = []string{
	"https://link-coach.netlify.app",
	"http://localhost:5173",
	"http://localhost:8888",
}

// Channel is a typed, origin-checked view over a Port.
type Channel struct {
	port    Port
	allowed map[string]struct{}
	logger  *slog.Logger
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a channel over port accepting messages from allowedOrigins.
func New(port Port, allowedOrigins []string, opts ...Option) *Channel {
	c := &Channel{
		port:    port,
		allowed: make(map[string]struct{}, len(allowedOrigins)),
		logger:  slog.Default(),
	}
	for _, o := range allowedOrigins {
		if o == "" {
			continue
		}
		c.allowed[OriginOf(o)] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Allows reports whether messages from origin pass the allow-list.
func (c *Channel) Allows(origin string) bool {
	_, ok := c.allowed[OriginOf(origin)]
	return ok
}

// Origin returns the local context's origin.
func (c *Channel) Origin() string {
	return c.port.Origin()
}

// Send encodes m and posts it to targetOrigin.
func (c *Channel) Send(ctx context.Context, m protocol.Message, targetOrigin string) error {
	env, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	if err := c.port.Post(ctx, env, targetOrigin); err != nil {
		return fmt.Errorf("post %s: %w", m.Type(), err)
	}
	return nil
}

// Receive invokes handler for every inbound message from an allowed origin.
// Messages from other origins and envelopes of unknown type are dropped
// without surfacing anything to the handler.
func (c *Channel) Receive(handler func(m protocol.Message, origin string)) (unregister func()) {
	return c.port.Listen(func(d Delivery) {
		if !c.Allows(d.Origin) {
			return
		}
		m, err := protocol.Decode(d.Envelope)
		if err != nil {
			if !errors.Is(err, protocol.ErrUnknownType) {
				c.logger.Debug("Dropping malformed message", "origin", d.Origin, "type", d.Envelope.Type, "error", err)
			}
			return
		}
		handler(m, d.Origin)
	})
}

// Handle is Receive with dispatch to a protocol.Handler.
func (c *Channel) Handle(h protocol.Handler) (unregister func()) {
	return c.Receive(func(m protocol.Message, origin string) {
		protocol.Dispatch(h, origin, m)
	})
}

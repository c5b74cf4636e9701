// Package channel provides the origin-checked message channel between a host
// page context and the embedded widget context, and the ports it runs on.
package channel

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/ashureev/link-coach/internal/protocol"
)

// AnyOrigin as a target delivers to whatever context is on the other side.
const AnyOrigin = "*"

// ErrClosed is returned when posting on a closed port.
var ErrClosed = errors.New("port closed")

// Delivery is an inbound envelope stamped with its sender's origin.
type Delivery struct {
	Origin   string
	Envelope protocol.Envelope
}

// Port is the platform post/receive primitive of one execution context.
// Listeners run on the port's single event loop, one delivery at a time, in
// the order the peer posted them.
type Port interface {
	// Origin returns the origin of the local context.
	Origin() string
	// Post delivers env to the peer if its origin matches targetOrigin.
	// A mismatch drops the envelope without error.
	Post(ctx context.Context, env protocol.Envelope, targetOrigin string) error
	// Listen registers fn and returns a function that unregisters it.
	Listen(fn func(Delivery)) (unlisten func())
	Close() error
}

// OriginOf returns scheme://host[:port] for a URL, or the input unchanged when
// it does not parse as an absolute URL.
func OriginOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(strings.TrimSpace(rawURL), "/")
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// TargetMatches reports whether a message addressed to target may be delivered
// to a context running at origin.
func TargetMatches(target, origin string) bool {
	return target == AnyOrigin || OriginOf(target) == OriginOf(origin)
}

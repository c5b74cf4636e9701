package channel

import (
	"context"
	"sync"

	"github.com/ashureev/link-coach/internal/protocol"
)

const pipeBufferSize = 64

// Endpoint is one side of an in-process Pipe. Each endpoint runs its own
// event loop goroutine that delivers inbound envelopes to its listeners.
type Endpoint struct {
	origin string
	peer   *Endpoint
	inbox  chan Delivery
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	listeners []listener
	nextID    uint64
}

type listener struct {
	id uint64
	fn func(Delivery)
}

// NewPipe connects two in-process contexts running at the given origins.
func NewPipe(originA, originB string) (*Endpoint, *Endpoint) {
	a := newEndpoint(originA)
	b := newEndpoint(originB)
	a.peer, b.peer = b, a
	go a.run()
	go b.run()
	return a, b
}

func newEndpoint(origin string) *Endpoint {
	return &Endpoint{
		origin: OriginOf(origin),
		inbox:  make(chan Delivery, pipeBufferSize),
		done:   make(chan struct{}),
	}
}

// Origin returns the endpoint's own origin.
func (e *Endpoint) Origin() string {
	return e.origin
}

// Post queues env on the peer's event loop.
func (e *Endpoint) Post(ctx context.Context, env protocol.Envelope, targetOrigin string) error {
	select {
	case <-e.done:
		return ErrClosed
	case <-e.peer.done:
		return ErrClosed
	default:
	}
	if !TargetMatches(targetOrigin, e.peer.origin) {
		return nil
	}

	d := Delivery{Origin: e.origin, Envelope: env}
	select {
	case e.peer.inbox <- d:
		return nil
	case <-e.peer.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Listen registers fn on this endpoint's event loop.
func (e *Endpoint) Listen(fn func(Delivery)) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listener{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// Close stops the endpoint's event loop. Pending deliveries are discarded.
func (e *Endpoint) Close() error {
	e.once.Do(func() { close(e.done) })
	return nil
}

func (e *Endpoint) run() {
	for {
		select {
		case d := <-e.inbox:
			for _, fn := range e.snapshot() {
				fn(d)
			}
		case <-e.done:
			return
		}
	}
}

func (e *Endpoint) snapshot() []func(Delivery) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fns := make([]func(Delivery), len(e.listeners))
	for i, l := range e.listeners {
		fns[i] = l.fn
	}
	return fns
}

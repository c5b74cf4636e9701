package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/ashureev/link-coach/internal/protocol"
	"github.com/coder/websocket"
)

// Side names which end of a relayed frame a connection represents.
type Side string

const (
	SideHost   Side = "host"
	SideWidget Side = "widget"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideHost || s == SideWidget
}

// Peer returns the opposite side.
func (s Side) Peer() Side {
	if s == SideHost {
		return SideWidget
	}
	return SideHost
}

// RelayFrame is the relay wire format. Origin is stamped by the relay on the
// way out and ignored on the way in.
type RelayFrame struct {
	Origin       string            `json:"origin,omitempty"`
	TargetOrigin string            `json:"targetOrigin"`
	Message      protocol.Envelope `json:"message"`
}

// WebSocketPort is a Port whose peer is reached through the server's frame relay.
type WebSocketPort struct {
	origin string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu        sync.Mutex
	listeners []listener
	nextID    uint64

	done chan struct{}
	once sync.Once
}

// DialRelay connects to relayURL as side of frameID. The Origin header carries
// origin so the relay can stamp deliveries the way a browser would.
func DialRelay(ctx context.Context, relayURL, frameID string, side Side, origin string, logger *slog.Logger) (*WebSocketPort, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("frame", frameID)
	q.Set("role", string(side))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{origin}},
	})
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	p := &WebSocketPort{
		origin: OriginOf(origin),
		conn:   conn,
		ctx:    loopCtx,
		cancel: cancel,
		logger: logger,
		done:   make(chan struct{}),
	}
	go p.readLoop()
	return p, nil
}

// Origin returns the local context's origin.
func (p *WebSocketPort) Origin() string {
	return p.origin
}

// Post sends env to the relay, which enforces targetOrigin against the peer.
func (p *WebSocketPort) Post(ctx context.Context, env protocol.Envelope, targetOrigin string) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	data, err := json.Marshal(RelayFrame{TargetOrigin: targetOrigin, Message: env})
	if err != nil {
		return fmt.Errorf("marshal relay frame: %w", err)
	}
	if err := p.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write relay frame: %w", err)
	}
	return nil
}

// Listen registers fn on the port's read loop.
func (p *WebSocketPort) Listen(fn func(Delivery)) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners = append(p.listeners, listener{id: id, fn: fn})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, l := range p.listeners {
			if l.id == id {
				p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

// Done is closed once the read loop has stopped.
func (p *WebSocketPort) Done() <-chan struct{} {
	return p.done
}

// Close shuts the connection down and waits for the read loop to stop. It
// must not be called from a listener.
func (p *WebSocketPort) Close() error {
	if err := p.conn.Close(websocket.StatusNormalClosure, "port closed"); err != nil {
		p.logger.Debug("Failed to close relay connection", "error", err, "origin", p.origin)
	}
	p.cancel()
	<-p.done
	return nil
}

func (p *WebSocketPort) readLoop() {
	defer p.once.Do(func() { close(p.done) })
	for {
		_, data, err := p.conn.Read(p.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || p.ctx.Err() != nil {
				p.logger.Debug("Relay connection closed", "origin", p.origin)
			} else {
				p.logger.Warn("Relay read error", "error", err, "origin", p.origin)
			}
			return
		}

		var f RelayFrame
		if err := json.Unmarshal(data, &f); err != nil {
			p.logger.Debug("Dropping undecodable relay frame", "error", err)
			continue
		}
		d := Delivery{Origin: OriginOf(f.Origin), Envelope: f.Message}
		for _, fn := range p.snapshot() {
			fn(d)
		}
	}
}

func (p *WebSocketPort) snapshot() []func(Delivery) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fns := make([]func(Delivery), len(p.listeners))
	for i, l := range p.listeners {
		fns[i] = l.fn
	}
	return fns
}

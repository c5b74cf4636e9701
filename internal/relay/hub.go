// Package relay forwards widget protocol envelopes between the host and
// widget sides of an embedded frame over WebSocket connections.
package relay

import (
	"log/slog"
	"sync"

	"github.com/ashureev/link-coach/internal/channel"
	"github.com/coder/websocket"
)

// peer is one connected side of a frame.
type peer struct {
	conn   *websocket.Conn
	origin string
}

// Hub tracks the active connection for each (frame, side).
type Hub struct {
	mu     sync.RWMutex
	frames map[string]map[channel.Side]*peer
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		frames: make(map[string]map[channel.Side]*peer),
	}
}

// lookup returns the active peer for a frame side.
func (h *Hub) lookup(frameID string, side channel.Side) *peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sides, ok := h.frames[frameID]; ok {
		return sides[side]
	}
	return nil
}

// register makes p the active connection for frameID/side. An older
// connection for the same slot is closed.
func (h *Hub) register(frameID string, side channel.Side, p *peer) {
	h.mu.Lock()
	if _, exists := h.frames[frameID]; !exists {
		h.frames[frameID] = make(map[channel.Side]*peer)
	}
	replaced := h.frames[frameID][side]
	h.frames[frameID][side] = p
	h.mu.Unlock()

	// Closing waits for the close handshake, so it happens outside the lock.
	if replaced != nil && replaced != p {
		_ = replaced.conn.Close(websocket.StatusNormalClosure, "connection replaced")
	}
	slog.Info("Relay connection registered", "frame", frameID, "side", side, "origin", p.origin)
}

// unregister removes p if it is still the active connection.
func (h *Hub) unregister(frameID string, side channel.Side, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sides, ok := h.frames[frameID]; ok {
		if current, exists := sides[side]; exists && current == p {
			delete(sides, side)
			if len(sides) == 0 {
				delete(h.frames, frameID)
			}
			slog.Info("Relay connection unregistered", "frame", frameID, "side", side)
		}
	}
}

// Connected reports whether frameID has an active connection on side.
func (h *Hub) Connected(frameID string, side channel.Side) bool {
	return h.lookup(frameID, side) != nil
}

// CloseFrame terminates both sides of a frame.
func (h *Hub) CloseFrame(frameID string) {
	h.mu.Lock()
	sides, ok := h.frames[frameID]
	delete(h.frames, frameID)
	h.mu.Unlock()
	if !ok {
		return
	}

	for side, p := range sides {
		_ = p.conn.Close(websocket.StatusNormalClosure, "frame closed")
		slog.Info("Relay connection closed", "frame", frameID, "side", side)
	}
}

// CloseAll terminates every connection, for server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	ids := make([]string, 0, len(h.frames))
	for id := range h.frames {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		h.CloseFrame(id)
	}
}

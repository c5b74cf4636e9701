package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/ashureev/link-coach/internal/channel"
	"github.com/ashureev/link-coach/internal/metrics"
	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	// Path is the relay endpoint.
	Path = "/ws/frame"

	readLimit    = 64 << 10
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

var frameIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Handler upgrades relay connections and forwards frames between sides.
type Handler struct {
	hub       *Hub
	allowed   []string
	isDev     bool
	metrics   *metrics.Metrics
	logger    *slog.Logger
	pingEvery time.Duration
}

// NewHandler creates a relay handler accepting connections from allowed
// origins. In development every origin is accepted.
func NewHandler(hub *Hub, allowed []string, isDev bool, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	normalized := make([]string, 0, len(allowed))
	for _, o := range allowed {
		normalized = append(normalized, channel.OriginOf(o))
	}
	return &Handler{
		hub:       hub,
		allowed:   normalized,
		isDev:     isDev,
		metrics:   m,
		logger:    logger,
		pingEvery: pingInterval,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	frameID := r.URL.Query().Get("frame")
	side := channel.Side(r.URL.Query().Get("role"))
	if !frameIDPattern.MatchString(frameID) || !side.Valid() {
		http.Error(w, "frame and role=host|widget are required", http.StatusBadRequest)
		return
	}

	origin := channel.OriginOf(r.Header.Get("Origin"))
	if !h.checkOrigin(origin) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept relay WebSocket", "error", err, "frame", frameID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "relay ended"); closeErr != nil {
			h.logger.Debug("Failed to close relay websocket", "error", closeErr, "frame", frameID)
		}
	}()
	ws.SetReadLimit(readLimit)

	p := &peer{conn: ws, origin: origin}
	h.hub.register(frameID, side, p)
	defer h.hub.unregister(frameID, side, p)
	h.metrics.RelayConnected(1)
	defer h.metrics.RelayConnected(-1)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return h.forwardLoop(ctx, ws, frameID, side, origin) })
	g.Go(func() error { return h.pingLoop(ctx, ws) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Debug("Relay connection ended", "frame", frameID, "side", side, "error", err)
	}
}

func (h *Handler) checkOrigin(origin string) bool {
	if h.isDev {
		return true
	}
	for _, o := range h.allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	h.logger.Warn("Relay origin rejected", "origin", origin)
	return false
}

// forwardLoop reads frames from one side and delivers them to the other.
// It returns when the connection closes.
func (h *Handler) forwardLoop(ctx context.Context, ws *websocket.Conn, frameID string, side channel.Side, origin string) error {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("Relay closed by client", "frame", frameID, "side", side)
				return context.Canceled
			}
			return err
		}

		var f channel.RelayFrame
		if err := json.Unmarshal(data, &f); err != nil || f.Message.Type == "" {
			h.metrics.RelayFrame("malformed")
			h.logger.Debug("Dropping malformed relay frame", "frame", frameID, "side", side)
			continue
		}
		h.forward(ctx, frameID, side, origin, f)
	}
}

func (h *Handler) forward(ctx context.Context, frameID string, from channel.Side, origin string, f channel.RelayFrame) {
	to := h.hub.lookup(frameID, from.Peer())
	if to == nil {
		h.metrics.RelayFrame("no_peer")
		h.logger.Debug("Dropping relay frame without peer", "frame", frameID, "from", from, "type", f.Message.Type)
		return
	}
	if !channel.TargetMatches(f.TargetOrigin, to.origin) {
		h.metrics.RelayFrame("target_mismatch")
		h.logger.Debug("Dropping relay frame for other origin", "frame", frameID, "target", f.TargetOrigin, "peer_origin", to.origin)
		return
	}

	// The relay stamps the sender's origin; whatever the client claimed is discarded.
	data, err := json.Marshal(channel.RelayFrame{Origin: origin, TargetOrigin: f.TargetOrigin, Message: f.Message})
	if err != nil {
		h.logger.Warn("Failed to encode relay frame", "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := to.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.metrics.RelayFrame("write_failed")
		h.logger.Debug("Relay write to peer failed", "frame", frameID, "to", from.Peer(), "error", err)
		return
	}
	h.metrics.RelayFrame("forwarded")
}

func (h *Handler) pingLoop(ctx context.Context, ws *websocket.Conn) error {
	ticker := time.NewTicker(h.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

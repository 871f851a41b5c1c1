package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/chatly-hq/chatly/internal/authz"
	"github.com/chatly-hq/chatly/internal/events"
	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Gateway upgrades websocket connections and bridges them onto the event
// hub. Authentication happens upstream; the authenticated user id arrives in
// the X-User-ID header set by the front proxy.
type Gateway struct {
	hub      *events.Hub
	authz    ChannelAuthorizer
	upgrader websocket.Upgrader
	metrics  ConnectionMetrics
	logger   *zap.Logger
}

// ChannelAuthorizer decides whether a connected user may receive a channel's
// events. Every subscribe frame is checked against it.
type ChannelAuthorizer interface {
	CanViewChannel(ctx context.Context, actor identity.Actor, channelID uuid.UUID) (authz.Decision, error)
}

// ConnectionMetrics counts websocket clients. Nil disables counting.
type ConnectionMetrics interface {
	ClientConnected()
	ClientDisconnected()
}

func New(hub *events.Hub, az ChannelAuthorizer, metrics ConnectionMetrics, logger *zap.Logger) *Gateway {
	return &Gateway{
		hub:     hub,
		authz:   az,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// wsSink serializes hub events onto one websocket connection. The hub's
// write pump is the only caller of Send, but pings from the read side share
// the connection, so writes are mutexed.
type wsSink struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSink) Send(event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(event)
}

func (s *wsSink) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// clientCommand is what a connected client may ask of the gateway:
// subscribing to or leaving a channel topic.
type clientCommand struct {
	Action    string    `json:"action"`
	ChannelID uuid.UUID `json:"channel_id"`
}

func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFrom(r.Context())
	if !ok || actor.UserID == uuid.Nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sink := &wsSink{conn: conn}
	client := g.hub.AddClient(r.Context(), actor.UserID, sink)
	if client == nil {
		conn.Close()
		return
	}
	if g.metrics != nil {
		g.metrics.ClientConnected()
	}

	go g.pingLoop(actor.UserID, sink, conn)
	g.readPump(r.Context(), actor, conn)
}

func (g *Gateway) pingLoop(userID uuid.UUID, sink *wsSink, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := sink.ping(); err != nil {
			conn.Close()
			return
		}
	}
}

func (g *Gateway) readPump(ctx context.Context, actor identity.Actor, conn *websocket.Conn) {
	userID := actor.UserID
	defer func() {
		g.hub.RemoveClient(userID)
		conn.Close()
		if g.metrics != nil {
			g.metrics.ClientDisconnected()
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("websocket read error",
					zap.String("user_id", userID.String()),
					zap.Error(err),
				)
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			g.logger.Debug("invalid client command",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			continue
		}

		switch cmd.Action {
		case "subscribe":
			// A topic subscription is a standing grant to receive the
			// channel's payloads, so it takes the same visibility check
			// as reading the channel.
			decision, err := g.authz.CanViewChannel(ctx, actor, cmd.ChannelID)
			if err != nil {
				g.logger.Warn("subscribe authorization failed",
					zap.String("user_id", userID.String()),
					zap.String("channel_id", cmd.ChannelID.String()),
					zap.Error(err),
				)
				continue
			}
			if !decision.Allowed {
				g.logger.Debug("subscribe denied",
					zap.String("user_id", userID.String()),
					zap.String("channel_id", cmd.ChannelID.String()),
					zap.String("reason", decision.Reason),
				)
				continue
			}
			g.hub.Subscribe(userID, cmd.ChannelID)
		case "unsubscribe":
			g.hub.Unsubscribe(userID, cmd.ChannelID)
		}
	}
}

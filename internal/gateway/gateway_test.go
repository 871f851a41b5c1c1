package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chatly-hq/chatly/internal/authz"
	"github.com/chatly-hq/chatly/internal/events"
	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAuthorizer struct {
	visible map[uuid.UUID]bool
}

func (s *stubAuthorizer) CanViewChannel(_ context.Context, _ identity.Actor, channelID uuid.UUID) (authz.Decision, error) {
	if s.visible[channelID] {
		return authz.Decision{Allowed: true}, nil
	}
	return authz.Decision{Reason: "you do not have access to this channel"}, nil
}

func dialGateway(t *testing.T, srv *httptest.Server, userID uuid.UUID) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"X-User-ID": []string{userID.String()}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func subscribeTo(t *testing.T, conn *websocket.Conn, channelID uuid.UUID) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{
		"action":     "subscribe",
		"channel_id": channelID.String(),
	}))
}

func TestSubscribeRequiresChannelVisibility(t *testing.T) {
	hub := events.NewHub(zap.NewNop())
	hidden, visible := uuid.New(), uuid.New()

	gw := New(hub, &stubAuthorizer{visible: map[uuid.UUID]bool{visible: true}}, nil, zap.NewNop())
	srv := httptest.NewServer(Identity(http.HandlerFunc(gw.ServeWS)))
	defer srv.Close()

	outsider := uuid.New()
	conn := dialGateway(t, srv, outsider)

	subscribeTo(t, conn, hidden)
	subscribeTo(t, conn, visible)

	// Commands are handled in order, so once the visible topic registers the
	// hidden subscribe has already been decided.
	require.Eventually(t, func() bool {
		return hub.TopicHasSubscribers(visible)
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, hub.TopicHasSubscribers(hidden))

	hub.Publish(events.MessageCreated, &events.MessagePayload{ChannelID: hidden}, events.ToChannel(hidden))
	hub.Publish(events.MessageCreated, &events.MessagePayload{ChannelID: visible}, events.ToChannel(visible))

	// Only the visible channel's event may reach the connection.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev struct {
		Name    string `json:"event"`
		Payload struct {
			ChannelID uuid.UUID `json:"channel_id"`
		} `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, events.MessageCreated, ev.Name)
	assert.Equal(t, visible, ev.Payload.ChannelID)
}

func TestServeWSRejectsMissingIdentity(t *testing.T) {
	hub := events.NewHub(zap.NewNop())
	gw := New(hub, &stubAuthorizer{}, nil, zap.NewNop())
	srv := httptest.NewServer(Identity(http.HandlerFunc(gw.ServeWS)))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

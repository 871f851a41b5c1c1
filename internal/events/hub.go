package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher is the realtime transport interface the domain services depend
// on. Delivery is best-effort: a failed publish never rolls back the write
// that triggered it.
type Publisher interface {
	Publish(name string, payload interface{}, target Target)
}

// Sink receives events for one connected client. The websocket gateway
// implements it; tests plug in channel-backed fakes.
type Sink interface {
	Send(event Event) error
}

// Hub fans events out to connected clients. Clients subscribe to channel
// topics; DM events are addressed to user identities directly and never go
// through a topic.
type Hub struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID]*Client
	topics   map[uuid.UUID]map[uuid.UUID]bool
	metrics  Metrics
	logger   *zap.Logger
	shutdown bool
}

// Metrics counts published and dropped events. Nil disables counting.
type Metrics interface {
	RecordEvent(name string)
	RecordDroppedEvent()
}

// SetMetrics attaches an event counter. Call before the first Publish.
func (h *Hub) SetMetrics(m Metrics) {
	h.metrics = m
}

type Client struct {
	UserID    uuid.UUID
	sink      Sink
	TopicSubs map[uuid.UUID]bool
	SendChan  chan Event
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		topics:  make(map[uuid.UUID]map[uuid.UUID]bool),
		logger:  logger,
	}
}

func (h *Hub) Logger() *zap.Logger {
	return h.logger
}

func (h *Hub) AddClient(ctx context.Context, userID uuid.UUID, sink Sink) *Client {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		h.logger.Warn("rejecting new client during shutdown", zap.String("user_id", userID.String()))
		return nil
	}

	if existing, ok := h.clients[userID]; ok {
		h.removeClientLocked(existing)
	}

	clientCtx, cancel := context.WithCancel(ctx)
	client := &Client{
		UserID:    userID,
		sink:      sink,
		TopicSubs: make(map[uuid.UUID]bool),
		SendChan:  make(chan Event, 500),
		ctx:       clientCtx,
		cancel:    cancel,
	}

	h.clients[userID] = client
	h.mu.Unlock()

	h.logger.Info("client connected", zap.String("user_id", userID.String()))

	go client.writePump(h.logger)

	return client
}

func (h *Hub) RemoveClient(userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[userID]
	if !ok {
		return
	}
	h.removeClientLocked(client)

	h.logger.Info("client disconnected", zap.String("user_id", userID.String()))
}

func (h *Hub) removeClientLocked(client *Client) {
	for channelID := range client.TopicSubs {
		if users, exists := h.topics[channelID]; exists {
			delete(users, client.UserID)
			if len(users) == 0 {
				delete(h.topics, channelID)
			}
		}
	}

	client.cancel()
	close(client.SendChan)
	delete(h.clients, client.UserID)
}

func (h *Hub) Subscribe(userID, channelID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[userID]
	if !ok {
		return false
	}

	select {
	case <-client.ctx.Done():
		return false
	default:
	}

	client.mu.Lock()
	client.TopicSubs[channelID] = true
	client.mu.Unlock()

	if _, exists := h.topics[channelID]; !exists {
		h.topics[channelID] = make(map[uuid.UUID]bool)
	}
	h.topics[channelID][userID] = true

	h.logger.Debug("client subscribed to channel topic",
		zap.String("user_id", userID.String()),
		zap.String("channel_id", channelID.String()),
	)

	return true
}

func (h *Hub) Unsubscribe(userID, channelID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[userID]
	if !ok {
		return
	}

	client.mu.Lock()
	delete(client.TopicSubs, channelID)
	client.mu.Unlock()

	if users, exists := h.topics[channelID]; exists {
		delete(users, userID)
		if len(users) == 0 {
			delete(h.topics, channelID)
		}
	}
}

// Publish delivers an event to its target audience. Events to clients whose
// buffers are full are dropped rather than blocking the caller.
func (h *Hub) Publish(name string, payload interface{}, target Target) {
	event := Event{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
	if h.metrics != nil {
		h.metrics.RecordEvent(name)
	}

	switch {
	case target.Broadcast:
		h.mu.RLock()
		receivers := make([]*Client, 0, len(h.clients))
		for _, client := range h.clients {
			receivers = append(receivers, client)
		}
		h.mu.RUnlock()
		for _, client := range receivers {
			h.send(client, event)
		}

	case target.UserID != uuid.Nil:
		h.mu.RLock()
		client, ok := h.clients[target.UserID]
		h.mu.RUnlock()
		if ok {
			h.send(client, event)
		}

	case target.ChannelID != uuid.Nil:
		h.mu.RLock()
		userIDs := make([]uuid.UUID, 0, len(h.topics[target.ChannelID]))
		for userID := range h.topics[target.ChannelID] {
			userIDs = append(userIDs, userID)
		}
		h.mu.RUnlock()

		for _, userID := range userIDs {
			h.mu.RLock()
			client, ok := h.clients[userID]
			h.mu.RUnlock()
			if ok {
				h.send(client, event)
			}
		}
	}
}

func (h *Hub) send(client *Client, event Event) {
	select {
	case <-client.ctx.Done():
	case client.SendChan <- event:
	default:
		if h.metrics != nil {
			h.metrics.RecordDroppedEvent()
		}
		h.logger.Warn("client channel full, dropping event",
			zap.String("user_id", client.UserID.String()),
			zap.String("event", event.Name),
		)
	}
}

// NotifyChannelJoin subscribes an already-connected user to a channel topic
// when their membership is created.
func (h *Hub) NotifyChannelJoin(userID, channelID uuid.UUID) {
	h.mu.RLock()
	_, exists := h.clients[userID]
	h.mu.RUnlock()

	if exists {
		h.Subscribe(userID, channelID)
	}
}

func (h *Hub) NotifyChannelLeave(userID, channelID uuid.UUID) {
	h.mu.RLock()
	_, exists := h.clients[userID]
	h.mu.RUnlock()

	if exists {
		h.Unsubscribe(userID, channelID)
	}
}

func (h *Hub) TopicHasSubscribers(channelID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs, ok := h.topics[channelID]
	return ok && len(subs) > 0
}

func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-c.SendChan:
			if !ok {
				return
			}

			if err := c.sink.Send(event); err != nil {
				logger.Debug("failed to send event",
					zap.String("user_id", c.UserID.String()),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			continue

		case <-c.ctx.Done():
			return
		}
	}
}

func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.shutdown = true

	clientsToClose := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clientsToClose = append(clientsToClose, client)
	}

	h.clients = make(map[uuid.UUID]*Client)
	h.topics = make(map[uuid.UUID]map[uuid.UUID]bool)
	h.mu.Unlock()

	for _, client := range clientsToClose {
		client.cancel()

		select {
		case <-client.SendChan:
		default:
		}

		close(client.SendChan)
	}

	h.logger.Info("event hub shut down", zap.Int("clients", len(clientsToClose)))
	return nil
}

package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chanSink struct {
	events chan Event
}

func newChanSink() *chanSink {
	return &chanSink{events: make(chan Event, 16)}
}

func (s *chanSink) Send(event Event) error {
	s.events <- event
	return nil
}

func (s *chanSink) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-s.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func (s *chanSink) expectNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-s.events:
		t.Fatalf("unexpected event %q", ev.Name)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubUserTargetedPublish(t *testing.T) {
	hub := NewHub(zap.NewNop())
	alice, bob := uuid.New(), uuid.New()

	aliceSink, bobSink := newChanSink(), newChanSink()
	require.NotNil(t, hub.AddClient(context.Background(), alice, aliceSink))
	require.NotNil(t, hub.AddClient(context.Background(), bob, bobSink))

	hub.Publish("message_created", map[string]string{"text": "hi"}, Target{UserID: alice})

	ev := aliceSink.next(t)
	assert.Equal(t, "message_created", ev.Name)
	assert.NotEmpty(t, ev.ID)
	bobSink.expectNone(t)
}

func TestHubTopicPublishReachesSubscribersOnly(t *testing.T) {
	hub := NewHub(zap.NewNop())
	channelID := uuid.New()
	alice, bob := uuid.New(), uuid.New()

	aliceSink, bobSink := newChanSink(), newChanSink()
	hub.AddClient(context.Background(), alice, aliceSink)
	hub.AddClient(context.Background(), bob, bobSink)

	require.True(t, hub.Subscribe(alice, channelID))

	hub.Publish("channel_updated", nil, Target{ChannelID: channelID})

	assert.Equal(t, "channel_updated", aliceSink.next(t).Name)
	bobSink.expectNone(t)

	hub.Unsubscribe(alice, channelID)
	assert.False(t, hub.TopicHasSubscribers(channelID))
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())

	sinks := make([]*chanSink, 3)
	for i := range sinks {
		sinks[i] = newChanSink()
		hub.AddClient(context.Background(), uuid.New(), sinks[i])
	}

	hub.Publish("maintenance", nil, Target{Broadcast: true})

	for _, s := range sinks {
		assert.Equal(t, "maintenance", s.next(t).Name)
	}
}

func TestHubSubscribeUnknownClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	assert.False(t, hub.Subscribe(uuid.New(), uuid.New()))
}

func TestHubReplacesDuplicateConnection(t *testing.T) {
	hub := NewHub(zap.NewNop())
	userID := uuid.New()

	first, second := newChanSink(), newChanSink()
	hub.AddClient(context.Background(), userID, first)
	hub.AddClient(context.Background(), userID, second)

	hub.Publish("ping", nil, Target{UserID: userID})

	assert.Equal(t, "ping", second.next(t).Name)
	first.expectNone(t)
}

func TestHubRejectsClientsAfterShutdown(t *testing.T) {
	hub := NewHub(zap.NewNop())
	require.NoError(t, hub.Shutdown(context.Background()))

	assert.Nil(t, hub.AddClient(context.Background(), uuid.New(), newChanSink()))
}

type countingMetrics struct {
	published int
	dropped   int
}

func (m *countingMetrics) RecordEvent(string) { m.published++ }
func (m *countingMetrics) RecordDroppedEvent() { m.dropped++ }

func TestHubRecordsPublishedEvents(t *testing.T) {
	hub := NewHub(zap.NewNop())
	metrics := &countingMetrics{}
	hub.SetMetrics(metrics)

	hub.Publish("message_created", nil, Target{Broadcast: true})
	hub.Publish("message_deleted", nil, Target{Broadcast: true})

	assert.Equal(t, 2, metrics.published)
}

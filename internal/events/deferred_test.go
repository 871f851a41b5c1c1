package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type recordingPublisher struct {
	published []string
}

func (p *recordingPublisher) Publish(name string, payload interface{}, target Target) {
	p.published = append(p.published, name)
}

func TestBufferFlushPublishesInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	buf := NewBuffer(pub)

	buf.Publish(MessageCreated, nil, ToUser(uuid.New()))
	buf.Publish(MessageUpdated, nil, ToChannel(uuid.New()))

	assert.Equal(t, 2, buf.Len())
	assert.Empty(t, pub.published, "nothing reaches the hub before Flush")

	buf.Flush()
	assert.Equal(t, []string{MessageCreated, MessageUpdated}, pub.published)
	assert.Zero(t, buf.Len())
}

func TestBufferDiscardDropsPending(t *testing.T) {
	pub := &recordingPublisher{}
	buf := NewBuffer(pub)

	buf.Publish(MessageCreated, nil, ToEveryone())
	buf.Discard()
	buf.Flush()

	assert.Empty(t, pub.published)
}

func TestBufferFlushIsIdempotent(t *testing.T) {
	pub := &recordingPublisher{}
	buf := NewBuffer(pub)

	buf.Publish(MessageDeleted, nil, ToEveryone())
	buf.Flush()
	buf.Flush()

	assert.Len(t, pub.published, 1)
}

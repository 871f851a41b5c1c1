package events

// Buffer queues events for deferred publication. A message send runs more
// database side effects after the insert, and a client that refetches state
// when an event arrives must find those writes in place. Services queue the
// fan-out on a Buffer and call Flush once the last write lands; everything
// without that ordering constraint goes straight to the hub.
type Buffer struct {
	pub     Publisher
	pending []queued
}

type queued struct {
	name    string
	payload interface{}
	target  Target
}

func NewBuffer(pub Publisher) *Buffer {
	return &Buffer{pub: pub}
}

func (b *Buffer) Publish(name string, payload interface{}, target Target) {
	b.pending = append(b.pending, queued{name: name, payload: payload, target: target})
}

// Flush publishes all queued events in order and clears the buffer.
func (b *Buffer) Flush() {
	for _, q := range b.pending {
		b.pub.Publish(q.name, q.payload, q.target)
	}
	b.pending = nil
}

// Discard drops queued events without publishing, for rolled-back
// transactions.
func (b *Buffer) Discard() {
	b.pending = nil
}

func (b *Buffer) Len() int {
	return len(b.pending)
}

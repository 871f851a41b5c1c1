package messages

import "time"

const continuationWindow = 2 * time.Minute

type BlockType string

const (
	BlockDate    BlockType = "date"
	BlockMessage BlockType = "message"
)

// Block is one renderable unit of a channel timeline: either a date header
// or a message.
type Block struct {
	Type    BlockType `json:"block_type"`
	Date    string    `json:"date,omitempty"`
	Message *Message  `json:"message,omitempty"`
}

// BuildTimeline annotates an ascending message list with continuation flags
// and inserts a date header whenever the calendar date changes. A message is
// a continuation of the previous one when both share an owner and arrived
// within two minutes, letting clients collapse the repeated header.
func BuildTimeline(msgs []*Message) []*Block {
	blocks := make([]*Block, 0, len(msgs))
	var prev *Message

	for _, m := range msgs {
		m.IsContinuation = prev != nil &&
			prev.OwnerID == m.OwnerID &&
			sameAuthorKind(prev, m) &&
			m.CreatedAt.Sub(prev.CreatedAt) < continuationWindow

		if prev == nil || !sameDate(prev.CreatedAt, m.CreatedAt) {
			blocks = append(blocks, &Block{
				Type: BlockDate,
				Date: m.CreatedAt.Format("2006-01-02"),
			})
		}

		blocks = append(blocks, &Block{Type: BlockMessage, Message: m})
		prev = m
	}
	return blocks
}

// A human message never continues a bot message even when the bot posts on
// the same owner's behalf.
func sameAuthorKind(a, b *Message) bool {
	return a.IsBotMessage == b.IsBotMessage
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

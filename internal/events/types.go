package events

import (
	"time"

	"github.com/google/uuid"
)

// Event names published by the messaging core.
const (
	MessageCreated     = "message_created"
	MessageEdited      = "message_edited"
	MessageDeleted     = "message_deleted"
	MessageReacted     = "message_reacted"
	MessageSaved       = "message_saved"
	UnreadCountUpdated = "chatly:unread_channel_count_updated"

	// MessageUpdated is the legacy invalidation event kept for older
	// consumers. It is emitted alongside every create/edit/delete.
	MessageUpdated = "message_updated"
)

// Target selects the audience of an event: exactly one of UserID,
// ChannelID, or Broadcast.
type Target struct {
	UserID    uuid.UUID
	ChannelID uuid.UUID
	Broadcast bool
}

func ToUser(userID uuid.UUID) Target {
	return Target{UserID: userID}
}

func ToChannel(channelID uuid.UUID) Target {
	return Target{ChannelID: channelID}
}

func ToEveryone() Target {
	return Target{Broadcast: true}
}

type Event struct {
	ID        string      `json:"event_id"`
	Name      string      `json:"event"`
	CreatedAt time.Time   `json:"created_at"`
	Payload   interface{} `json:"payload"`
}

// MessageDetails is the full field snapshot published with create/edit
// events; consumers render a message from it without a follow-up read.
type MessageDetails struct {
	ID                    int64       `json:"id"`
	ChannelID             uuid.UUID   `json:"channel_id"`
	OwnerID               uuid.UUID   `json:"owner"`
	Type                  string      `json:"message_type"`
	Text                  string      `json:"text"`
	Content               string      `json:"content"`
	File                  string      `json:"file,omitempty"`
	PollID                *uuid.UUID  `json:"poll_id,omitempty"`
	IsReply               bool        `json:"is_reply"`
	LinkedMessageID       *int64      `json:"linked_message,omitempty"`
	RepliedMessageDetails interface{} `json:"replied_message_details,omitempty"`
	Reactions             interface{} `json:"message_reactions,omitempty"`
	IsEdited              bool        `json:"is_edited"`
	IsBotMessage          bool        `json:"is_bot_message"`
	BotID                 *uuid.UUID  `json:"bot,omitempty"`
	HideLinkPreview       bool        `json:"hide_link_preview"`
	CreatedAt             time.Time   `json:"creation"`
	ModifiedAt            time.Time   `json:"modified"`
}

type MessagePayload struct {
	ChannelID uuid.UUID       `json:"channel_id"`
	SenderID  uuid.UUID       `json:"sender"`
	MessageID int64           `json:"message_id"`
	Details   *MessageDetails `json:"message_details,omitempty"`
}

type ReactionPayload struct {
	ChannelID uuid.UUID   `json:"channel_id"`
	SenderID  uuid.UUID   `json:"sender"`
	MessageID int64       `json:"message_id"`
	Reactions interface{} `json:"reactions"`
}

type SavedPayload struct {
	MessageID int64 `json:"message_id"`
	Saved     bool  `json:"saved"`
}

type UnreadCountPayload struct {
	ChannelID uuid.UUID `json:"channel_id"`
	PlaySound bool      `json:"play_sound"`
	SentBy    uuid.UUID `json:"sent_by"`
}

package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/chatly-hq/chatly/internal/channels"
	"github.com/chatly-hq/chatly/internal/membership"
	"github.com/chatly-hq/chatly/internal/messages"
	"github.com/chatly-hq/chatly/internal/users"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// tenorMarker identifies GIF messages pasted from the tenor picker, which
// get a friendlier notification line than their raw img tag.
const tenorMarker = "<img src=https://media.tenor.com"

// Dispatcher decides who gets a push notification for a new message and what
// it says. DM messages go straight to the peer; channel messages go to the
// channel's topic minus the sender. Every failure here is logged and
// dropped, never surfaced to the sender.
type Dispatcher struct {
	topics  *Topics
	push    *PushSender
	members *membership.Service
	users   *users.Service
	logger  *zap.Logger
}

func NewDispatcher(topics *Topics, push *PushSender, members *membership.Service, userSvc *users.Service, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		topics:  topics,
		push:    push,
		members: members,
		users:   userSvc,
		logger:  logger,
	}
}

// MessageCreated implements the notifier hook the message lifecycle calls
// after a send becomes visible.
func (d *Dispatcher) MessageCreated(ctx context.Context, msg *messages.Message, ch *channels.Channel) {
	if ch.IsDirectMessage() {
		if ch.IsSelfMessage {
			return
		}
		d.notifyDirectMessage(ctx, msg, ch)
		return
	}
	d.notifyChannelMessage(ctx, msg, ch)
}

func (d *Dispatcher) notifyDirectMessage(ctx context.Context, msg *messages.Message, ch *channels.Channel) {
	peer, err := d.members.GetPeerUserID(ctx, ch.ID, msg.OwnerID)
	if err != nil {
		d.logger.Warn("failed to resolve dm peer for notification",
			zap.String("channel_id", ch.ID.String()),
			zap.Error(err),
		)
		return
	}
	if peer == msg.OwnerID {
		return
	}

	title := d.senderName(ctx, msg)
	d.send(ctx, peer, title, msg, ch, "DM")
}

func (d *Dispatcher) notifyChannelMessage(ctx context.Context, msg *messages.Message, ch *channels.Channel) {
	recipients, err := d.topics.Members(ctx, ch.ID)
	if err != nil {
		d.logger.Warn("failed to load topic members for notification",
			zap.String("channel_id", ch.ID.String()),
			zap.Error(err),
		)
		return
	}

	title := fmt.Sprintf("%s in #%s", d.senderName(ctx, msg), ch.Name)
	for _, userID := range recipients {
		if userID == msg.OwnerID {
			continue
		}
		d.send(ctx, userID, title, msg, ch, "Channel")
	}
}

func (d *Dispatcher) send(ctx context.Context, userID uuid.UUID, title string, msg *messages.Message, ch *channels.Channel, channelKind string) {
	content := msg.Content
	if msg.Type != messages.TypeText {
		content = msg.File
	}

	payload, err := json.Marshal(map[string]interface{}{
		"title": title,
		"body":  NotificationBody(msg),
		"data": map[string]interface{}{
			"message_id":   strconv.FormatInt(msg.ID, 10),
			"channel_id":   ch.ID.String(),
			"message_type": string(msg.Type),
			"channel_type": channelKind,
			"content":      content,
			"from_user":    msg.OwnerID.String(),
			"type":         "New message",
			"creation":     msg.CreatedAt.UnixMilli(),
		},
	})
	if err != nil {
		d.logger.Error("failed to marshal notification payload", zap.Error(err))
		return
	}

	d.push.SendToUser(ctx, userID, payload)
}

// NotificationBody renders the one-line preview of a message for the push
// notification shade.
func NotificationBody(msg *messages.Message) string {
	switch msg.Type {
	case messages.TypeFile:
		parts := strings.Split(msg.File, "/")
		return fmt.Sprintf("📄 Sent a file - %s", parts[len(parts)-1])
	case messages.TypeImage:
		return "📷 Sent a photo"
	case messages.TypePoll:
		return "📊 Sent a poll"
	default:
		if strings.Contains(msg.Text, tenorMarker) {
			return "Sent a GIF"
		}
		return msg.Text
	}
}

func (d *Dispatcher) senderName(ctx context.Context, msg *messages.Message) string {
	id := msg.OwnerID
	if msg.IsBotMessage && msg.BotID != nil {
		id = *msg.BotID
	}
	return d.users.DisplayName(ctx, id)
}

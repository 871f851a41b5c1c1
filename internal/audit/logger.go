package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event records a moderation-grade action for the operational audit
// trail. Events go to the structured log stream so they can be shipped
// and indexed alongside application logs.
type Event struct {
	ID           uuid.UUID
	ActorID      uuid.UUID
	Action       string
	ResourceID   string
	ResourceType string
	Metadata     map[string]interface{}
	Timestamp    time.Time
}

type Logger struct {
	logger *zap.Logger
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.Named("audit")}
}

func (al *Logger) Log(_ context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	al.logger.Info("audit event",
		zap.String("event_id", event.ID.String()),
		zap.String("actor_id", event.ActorID.String()),
		zap.String("action", event.Action),
		zap.String("resource_id", event.ResourceID),
		zap.String("resource_type", event.ResourceType),
		zap.Any("metadata", event.Metadata),
		zap.Time("timestamp", event.Timestamp),
	)
}

func (al *Logger) LogMemberRemoved(ctx context.Context, actorID, targetUserID, channelID uuid.UUID) {
	al.Log(ctx, Event{
		ActorID:      actorID,
		Action:       "member.remove",
		ResourceID:   targetUserID.String(),
		ResourceType: "user",
		Metadata: map[string]interface{}{
			"channel_id": channelID.String(),
		},
	})
}

func (al *Logger) LogChannelArchived(ctx context.Context, actorID, channelID uuid.UUID) {
	al.Log(ctx, Event{
		ActorID:      actorID,
		Action:       "channel.archive",
		ResourceID:   channelID.String(),
		ResourceType: "channel",
	})
}

func (al *Logger) LogMessageDeleted(ctx context.Context, actorID uuid.UUID, messageID int64, channelID uuid.UUID, byOwner bool) {
	al.Log(ctx, Event{
		ActorID:      actorID,
		Action:       "message.delete",
		ResourceID:   strconv.FormatInt(messageID, 10),
		ResourceType: "message",
		Metadata: map[string]interface{}{
			"channel_id": channelID.String(),
			"by_owner":   byOwner,
		},
	})
}

func (al *Logger) LogBotCreated(ctx context.Context, actorID, botID uuid.UUID, name string) {
	al.Log(ctx, Event{
		ActorID:      actorID,
		Action:       "bot.create",
		ResourceID:   botID.String(),
		ResourceType: "bot",
		Metadata: map[string]interface{}{
			"name": name,
		},
	})
}

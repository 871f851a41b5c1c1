package reactions

import (
	"context"

	"github.com/chatly-hq/chatly/internal/authz"
	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/chatly-hq/chatly/internal/events"
	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Service struct {
	repo   *Repository
	pool   *pgxpool.Pool
	authz  *authz.Service
	pub    events.Publisher
	logger *zap.Logger
}

func NewService(repo *Repository, pool *pgxpool.Pool, az *authz.Service, pub events.Publisher, logger *zap.Logger) *Service {
	return &Service{repo: repo, pool: pool, authz: az, pub: pub, logger: logger}
}

// Toggle reacts or unreacts the acting user with the given emoji and fans the
// fresh aggregate out to the message's channel.
func (s *Service) Toggle(ctx context.Context, messageID int64, emoji string) (Aggregate, error) {
	actor, ok := identity.ActorFrom(ctx)
	if !ok {
		return nil, errors.PermissionDenied("no acting user")
	}
	if emoji == "" {
		return nil, errors.Validation("reaction is required")
	}

	channelID, err := s.messageChannel(ctx, messageID)
	if err != nil {
		return nil, err
	}

	decision, err := s.authz.CanReactToMessage(ctx, actor, channelID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, decision.Err()
	}

	agg, added, err := s.repo.Toggle(ctx, messageID, actor.UserID, emoji)
	if err != nil {
		return nil, err
	}

	s.pub.Publish(events.MessageReacted, &events.ReactionPayload{
		ChannelID: channelID,
		SenderID:  actor.UserID,
		MessageID: messageID,
		Reactions: agg,
	}, events.ToChannel(channelID))

	s.logger.Debug("reaction toggled",
		zap.Int64("message_id", messageID),
		zap.String("user_id", actor.UserID.String()),
		zap.Bool("added", added),
	)
	return agg, nil
}

func (s *Service) messageChannel(ctx context.Context, messageID int64) (uuid.UUID, error) {
	var channelID uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT channel_id FROM messages WHERE id = $1`, messageID,
	).Scan(&channelID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, errors.NotFound("message not found")
		}
		return uuid.Nil, errors.Internal("failed to resolve message channel", err)
	}
	return channelID, nil
}

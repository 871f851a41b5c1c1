package unread

import (
	"context"

	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/google/uuid"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	actorID := identity.UserID(ctx)
	if actorID == uuid.Nil {
		return nil, errors.PermissionDenied("no acting user")
	}
	return s.repo.CountForUser(ctx, actorID)
}

func (s *Service) ChannelCount(ctx context.Context, channelID uuid.UUID) (int, error) {
	actorID := identity.UserID(ctx)
	if actorID == uuid.Nil {
		return 0, errors.PermissionDenied("no acting user")
	}
	return s.repo.CountForChannel(ctx, channelID, actorID)
}

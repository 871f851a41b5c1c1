package channels

import (
	"context"

	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Memberships is the slice of the membership manager the channel service
// needs: materializing the creator/participants as members.
type Memberships interface {
	Add(ctx context.Context, channelID, userID uuid.UUID) error
}

type Service struct {
	repo    *Repository
	members Memberships
	logger  *zap.Logger
}

func NewService(repo *Repository, members Memberships, logger *zap.Logger) *Service {
	return &Service{repo: repo, members: members, logger: logger}
}

func (s *Service) Create(ctx context.Context, name string, channelType ChannelType) (*Channel, error) {
	actorID := identity.UserID(ctx)
	if actorID == uuid.Nil {
		return nil, errors.PermissionDenied("no acting user")
	}

	if name == "" {
		return nil, errors.Validation("channel name is required")
	}
	switch channelType {
	case TypeOpen, TypePublic, TypePrivate:
	default:
		return nil, errors.Validation("invalid channel type")
	}

	ch := &Channel{
		Name:    name,
		Type:    channelType,
		OwnerID: &actorID,
	}
	if err := s.repo.Create(ctx, ch); err != nil {
		return nil, err
	}

	// The creator is the first member and therefore admin.
	if err := s.members.Add(ctx, ch.ID, actorID); err != nil {
		return nil, err
	}

	return ch, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Channel, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	return s.repo.Archive(ctx, id)
}

func (s *Service) ListForUser(ctx context.Context, hideArchived bool) ([]*ChannelWithUnread, error) {
	actorID := identity.UserID(ctx)
	if actorID == uuid.Nil {
		return nil, errors.PermissionDenied("no acting user")
	}
	return s.repo.ListVisibleForUser(ctx, actorID, hideArchived)
}

// CreateDirectMessageChannel returns the DM channel between the actor and
// peerUserID, creating it (and both memberships) if it does not exist. A DM
// with oneself is a self-message channel with a single membership.
func (s *Service) CreateDirectMessageChannel(ctx context.Context, peerUserID uuid.UUID) (*Channel, error) {
	actorID := identity.UserID(ctx)
	if actorID == uuid.Nil {
		return nil, errors.PermissionDenied("no acting user")
	}

	return s.getOrCreateDM(ctx, actorID, peerUserID)
}

// GetOrCreateDM is the identity-explicit variant used by the bot actor.
func (s *Service) GetOrCreateDM(ctx context.Context, userID, peerUserID uuid.UUID) (*Channel, error) {
	return s.getOrCreateDM(ctx, userID, peerUserID)
}

func (s *Service) getOrCreateDM(ctx context.Context, userID, peerUserID uuid.UUID) (*Channel, error) {
	existing, err := s.repo.GetDirectMessageChannel(ctx, userID, peerUserID)
	if err == nil {
		return existing, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	ch := &Channel{
		Name:          DirectMessageName(userID, peerUserID),
		Type:          TypeDirectMessage,
		IsSelfMessage: userID == peerUserID,
		OwnerID:       &userID,
	}
	if err := s.repo.Create(ctx, ch); err != nil {
		return nil, err
	}

	if err := s.members.Add(ctx, ch.ID, userID); err != nil {
		return nil, err
	}
	if !ch.IsSelfMessage {
		if err := s.members.Add(ctx, ch.ID, peerUserID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("created direct message channel",
		zap.String("channel_id", ch.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("peer_user_id", peerUserID.String()),
	)

	return ch, nil
}

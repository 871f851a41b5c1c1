package membership

import (
	"context"
	"time"

	"github.com/chatly-hq/chatly/internal/audit"
	"github.com/chatly-hq/chatly/internal/channels"
	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/chatly-hq/chatly/internal/events"
	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TopicRegistry tracks which users receive channel-scoped events and
// notifications. Direct message channels never register topics; their
// recipient is always the peer member.
type TopicRegistry interface {
	Subscribe(ctx context.Context, channelID, userID uuid.UUID) error
	Unsubscribe(ctx context.Context, channelID, userID uuid.UUID) error
	Drop(ctx context.Context, channelID uuid.UUID) error
}

type Service struct {
	repo     *Repository
	channels *channels.Repository
	hub      *events.Hub
	topics   TopicRegistry
	audit    *audit.Logger
	logger   *zap.Logger
}

func NewService(repo *Repository, channelRepo *channels.Repository, hub *events.Hub, topics TopicRegistry, auditLog *audit.Logger, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		channels: channelRepo,
		hub:      hub,
		topics:   topics,
		audit:    auditLog,
		logger:   logger,
	}
}

// Add creates a membership with no permission checks. Channel creation and
// bot provisioning go through here; user-facing joins go through AddMember.
func (s *Service) Add(ctx context.Context, channelID, userID uuid.UUID) error {
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}

	m, err := s.repo.Add(ctx, channelID, userID)
	if err != nil {
		return err
	}

	s.registerMember(ctx, ch, userID)

	s.logger.Info("member added",
		zap.String("channel_id", channelID.String()),
		zap.String("user_id", userID.String()),
		zap.Bool("is_admin", m.IsAdmin),
	)
	return nil
}

// AddMember adds userID to the channel on behalf of the acting user. Users
// may join Open and Public channels themselves; adding someone else, or any
// addition to a Private channel, requires an admin membership.
func (s *Service) AddMember(ctx context.Context, channelID, userID uuid.UUID) error {
	actor, ok := identity.ActorFrom(ctx)
	if !ok {
		return errors.PermissionDenied("no acting user")
	}

	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if ch.IsDirectMessage() {
		return errors.Validation("cannot add members to a direct message channel")
	}
	if ch.IsArchived {
		return errors.Validation("channel is archived")
	}

	if !actor.IsAdministrator {
		selfJoin := actor.UserID == userID && ch.Type != channels.TypePrivate
		if !selfJoin {
			member, err := s.repo.Get(ctx, channelID, actor.UserID)
			if err != nil {
				if errors.IsNotFound(err) {
					return errors.PermissionDenied("only channel admins can add members")
				}
				return err
			}
			if !member.IsAdmin {
				return errors.PermissionDenied("only channel admins can add members")
			}
		}
	}

	m, err := s.repo.Add(ctx, channelID, userID)
	if err != nil {
		return err
	}

	s.registerMember(ctx, ch, userID)

	s.logger.Info("member added",
		zap.String("channel_id", channelID.String()),
		zap.String("user_id", userID.String()),
		zap.String("added_by", actor.UserID.String()),
		zap.Bool("is_admin", m.IsAdmin),
	)
	return nil
}

// RemoveMember removes userID from the channel. Allowed when the actor is a
// current member, the channel owner of a memberless channel, or a site
// administrator.
func (s *Service) RemoveMember(ctx context.Context, channelID, userID uuid.UUID) error {
	actor, ok := identity.ActorFrom(ctx)
	if !ok {
		return errors.PermissionDenied("no acting user")
	}

	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if ch.IsDirectMessage() {
		return errors.Validation("cannot remove members from a direct message channel")
	}

	if !actor.IsAdministrator {
		isMember, err := s.repo.IsMember(ctx, channelID, actor.UserID)
		if err != nil {
			return err
		}
		if !isMember {
			ownsEmpty := false
			if ch.OwnerID != nil && *ch.OwnerID == actor.UserID {
				members, err := s.repo.List(ctx, channelID)
				if err != nil {
					return err
				}
				ownsEmpty = len(members) == 0
			}
			if !ownsEmpty {
				return errors.PermissionDenied("not allowed to remove members from this channel")
			}
		}
	}

	archived, promoted, err := s.repo.Remove(ctx, channelID, userID)
	if err != nil {
		return err
	}

	s.hub.NotifyChannelLeave(userID, channelID)
	if s.topics != nil && !ch.IsDirectMessage() {
		if err := s.topics.Unsubscribe(ctx, channelID, userID); err != nil {
			s.logger.Warn("failed to unsubscribe member from channel topic",
				zap.String("channel_id", channelID.String()),
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
	}

	if s.audit != nil {
		s.audit.LogMemberRemoved(ctx, actor.UserID, userID, channelID)
	}

	if archived {
		s.channels.InvalidateCache(ctx, channelID)
		if s.topics != nil {
			if err := s.topics.Drop(ctx, channelID); err != nil {
				s.logger.Warn("failed to drop archived channel topic",
					zap.String("channel_id", channelID.String()),
					zap.Error(err),
				)
			}
		}
		if s.audit != nil {
			s.audit.LogChannelArchived(ctx, actor.UserID, channelID)
		}
		s.logger.Info("archived empty private channel",
			zap.String("channel_id", channelID.String()),
		)
	}
	if promoted != nil {
		s.logger.Info("promoted successor admin",
			zap.String("channel_id", channelID.String()),
			zap.String("user_id", promoted.String()),
		)
	}
	return nil
}

// SetNotificationPreference flips the member's allow-notifications flag and
// moves them in or out of the channel topic. DMs skip the topic entirely;
// they notify through direct delivery.
func (s *Service) SetNotificationPreference(ctx context.Context, channelID uuid.UUID, allow bool) error {
	actorID := identity.UserID(ctx)
	if actorID == uuid.Nil {
		return errors.PermissionDenied("no acting user")
	}

	if err := s.repo.SetAllowNotifications(ctx, channelID, actorID, allow); err != nil {
		return err
	}

	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if s.topics == nil || ch.IsDirectMessage() {
		return nil
	}

	if allow {
		err = s.topics.Subscribe(ctx, channelID, actorID)
	} else {
		err = s.topics.Unsubscribe(ctx, channelID, actorID)
	}
	if err != nil {
		s.logger.Warn("failed to update topic subscription",
			zap.String("channel_id", channelID.String()),
			zap.String("user_id", actorID.String()),
			zap.Bool("allow", allow),
			zap.Error(err),
		)
	}
	return nil
}

// TrackVisit marks the channel as read by stamping the member's last visit.
// Visiting an Open channel without a membership creates one, so open channels
// accumulate members as people wander in.
func (s *Service) TrackVisit(ctx context.Context, channelID uuid.UUID) error {
	actorID := identity.UserID(ctx)
	if actorID == uuid.Nil {
		return errors.PermissionDenied("no acting user")
	}

	isMember, err := s.repo.IsMember(ctx, channelID, actorID)
	if err != nil {
		return err
	}
	if !isMember {
		ch, err := s.channels.GetByID(ctx, channelID)
		if err != nil {
			return err
		}
		if ch.Type != channels.TypeOpen {
			return errors.PermissionDenied("not a member of this channel")
		}
		if _, err := s.repo.Add(ctx, channelID, actorID); err != nil && !errors.IsDuplicateMembership(err) {
			return err
		}
		s.registerMember(ctx, ch, actorID)
	}

	return s.repo.SetLastVisit(ctx, channelID, actorID, time.Now().UTC())
}

func (s *Service) ListMembers(ctx context.Context, channelID uuid.UUID) ([]*Member, error) {
	return s.repo.List(ctx, channelID)
}

func (s *Service) IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	return s.repo.IsMember(ctx, channelID, userID)
}

func (s *Service) GetMember(ctx context.Context, channelID, userID uuid.UUID) (*Member, error) {
	return s.repo.Get(ctx, channelID, userID)
}

func (s *Service) GetPeerUserID(ctx context.Context, channelID, userID uuid.UUID) (uuid.UUID, error) {
	return s.repo.GetPeerUserID(ctx, channelID, userID)
}

func (s *Service) registerMember(ctx context.Context, ch *channels.Channel, userID uuid.UUID) {
	s.hub.NotifyChannelJoin(userID, ch.ID)
	if s.topics != nil && !ch.IsDirectMessage() {
		if err := s.topics.Subscribe(ctx, ch.ID, userID); err != nil {
			s.logger.Warn("failed to subscribe member to channel topic",
				zap.String("channel_id", ch.ID.String()),
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
	}
}

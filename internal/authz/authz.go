package authz

import (
	"context"

	"github.com/chatly-hq/chatly/internal/channels"
	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/chatly-hq/chatly/internal/membership"
	"github.com/google/uuid"
)

// Decision is the result of an authorization check. Reason is set only when
// the action is denied and is safe to surface to the end user.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Err converts a denial into the error callers propagate. Allowed decisions
// return nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return errors.PermissionDenied(d.Reason)
}

type Service struct {
	channels *channels.Repository
	members  *membership.Repository
}

func NewService(channelRepo *channels.Repository, memberRepo *membership.Repository) *Service {
	return &Service{channels: channelRepo, members: memberRepo}
}

// CanViewChannel reports whether the actor may read the channel. Open and
// Public channels are visible to everyone; Private and DM channels require a
// membership row.
func (s *Service) CanViewChannel(ctx context.Context, actor identity.Actor, channelID uuid.UUID) (Decision, error) {
	if actor.IsAdministrator {
		return allow(), nil
	}

	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return deny("channel not found"), err
	}

	switch ch.Type {
	case channels.TypeOpen, channels.TypePublic:
		return allow(), nil
	}

	isMember, err := s.members.IsMember(ctx, channelID, actor.UserID)
	if err != nil {
		return deny("membership lookup failed"), err
	}
	if !isMember {
		return deny("you do not have access to this channel"), nil
	}
	return allow(), nil
}

// CanPostInChannel reports whether the actor may send messages. Bots bypass
// this check entirely; see the bot actor.
func (s *Service) CanPostInChannel(ctx context.Context, actor identity.Actor, channelID uuid.UUID) (Decision, error) {
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return deny("channel not found"), err
	}
	if ch.IsArchived {
		return deny("channel is archived"), nil
	}

	if actor.IsAdministrator || ch.Type == channels.TypeOpen {
		return allow(), nil
	}

	isMember, err := s.members.IsMember(ctx, channelID, actor.UserID)
	if err != nil {
		return deny("membership lookup failed"), err
	}
	if !isMember {
		return deny("you are not a member of this channel"), nil
	}
	return allow(), nil
}

// CanReactToMessage follows channel visibility: anyone who can see the
// message may react to it.
func (s *Service) CanReactToMessage(ctx context.Context, actor identity.Actor, channelID uuid.UUID) (Decision, error) {
	return s.CanViewChannel(ctx, actor, channelID)
}

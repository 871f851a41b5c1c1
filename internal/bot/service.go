package bot

import (
	"context"
	"encoding/json"
	"math"

	"github.com/chatly-hq/chatly/internal/audit"
	"github.com/chatly-hq/chatly/internal/channels"
	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/chatly-hq/chatly/internal/membership"
	"github.com/chatly-hq/chatly/internal/messages"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service lets bots act on channels and messages. Bot sends skip the normal
// posting permission checks; creating a bot is itself the trust decision.
// Reads stay restricted to the bot's own history.
type Service struct {
	repo     *Repository
	members  *membership.Service
	channels *channels.Service
	messages *messages.Service
	msgRepo  *messages.Repository
	audit    *audit.Logger
	logger   *zap.Logger
}

func NewService(
	repo *Repository,
	members *membership.Service,
	channelSvc *channels.Service,
	messageSvc *messages.Service,
	msgRepo *messages.Repository,
	auditLog *audit.Logger,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:     repo,
		members:  members,
		channels: channelSvc,
		messages: messageSvc,
		msgRepo:  msgRepo,
		audit:    auditLog,
		logger:   logger,
	}
}

func (s *Service) Create(ctx context.Context, name, handle, description string) (*Bot, error) {
	if name == "" || handle == "" {
		return nil, errors.Validation("bot name and handle are required")
	}
	b := &Bot{Name: name, Description: description}
	if err := s.repo.Create(ctx, b, handle); err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.LogBotCreated(ctx, identity.UserID(ctx), b.ID, b.Name)
	}
	s.logger.Info("bot created",
		zap.String("bot_id", b.ID.String()),
		zap.String("bot_name", b.Name),
	)
	return b, nil
}

func (s *Service) Get(ctx context.Context, botID uuid.UUID) (*Bot, error) {
	return s.repo.GetByID(ctx, botID)
}

// actAs builds the context the bot's operations run under.
func actAs(ctx context.Context, b *Bot) context.Context {
	return identity.WithActor(ctx, identity.Actor{UserID: b.UserID, IsBot: true})
}

func (s *Service) IsMember(ctx context.Context, botID, channelID uuid.UUID) (bool, error) {
	b, err := s.repo.GetByID(ctx, botID)
	if err != nil {
		return false, err
	}
	return s.members.IsMember(ctx, channelID, b.UserID)
}

// AddToChannel makes the bot a channel member. Adding a bot twice is a
// no-op, not an error.
func (s *Service) AddToChannel(ctx context.Context, botID, channelID uuid.UUID) error {
	b, err := s.repo.GetByID(ctx, botID)
	if err != nil {
		return err
	}
	err = s.members.Add(ctx, channelID, b.UserID)
	if err != nil && !errors.IsDuplicateMembership(err) {
		return err
	}
	return nil
}

func (s *Service) RemoveFromChannel(ctx context.Context, botID, channelID uuid.UUID) error {
	b, err := s.repo.GetByID(ctx, botID)
	if err != nil {
		return err
	}
	err = s.members.RemoveMember(actAs(ctx, b), channelID, b.UserID)
	if err != nil && !errors.IsNotFound(err) {
		return err
	}
	return nil
}

// SendMessage posts to the channel as the bot, bypassing posting permission
// checks.
func (s *Service) SendMessage(ctx context.Context, botID, channelID uuid.UUID, text string, structuredContent json.RawMessage) (*messages.Message, error) {
	b, err := s.repo.GetByID(ctx, botID)
	if err != nil {
		return nil, err
	}
	return s.messages.Send(actAs(ctx, b), messages.SendInput{
		ChannelID:         channelID,
		Type:              messages.TypeText,
		Text:              text,
		StructuredContent: structuredContent,
	})
}

// GetOrCreateDirectMessageChannel resolves the DM channel between the bot
// and the user, creating it if needed.
func (s *Service) GetOrCreateDirectMessageChannel(ctx context.Context, botID, userID uuid.UUID) (*channels.Channel, error) {
	b, err := s.repo.GetByID(ctx, botID)
	if err != nil {
		return nil, err
	}
	return s.channels.GetOrCreateDM(actAs(ctx, b), b.UserID, userID)
}

func (s *Service) SendDirectMessage(ctx context.Context, botID, userID uuid.UUID, text string) (*messages.Message, error) {
	ch, err := s.GetOrCreateDirectMessageChannel(ctx, botID, userID)
	if err != nil {
		return nil, err
	}
	return s.SendMessage(ctx, botID, ch.ID, text, nil)
}

// GetLastMessage returns the newest message the bot sent, optionally scoped
// to one channel.
func (s *Service) GetLastMessage(ctx context.Context, botID uuid.UUID, channelID *uuid.UUID) (*messages.Message, error) {
	b, err := s.repo.GetByID(ctx, botID)
	if err != nil {
		return nil, err
	}
	return s.msgRepo.GetLastByBot(ctx, b.UserID, channelID)
}

// GetPreviousMessages pages backwards through the bot's own history in a
// channel.
func (s *Service) GetPreviousMessages(ctx context.Context, botID, channelID uuid.UUID, beforeID int64, limit int) ([]*messages.Message, error) {
	b, err := s.repo.GetByID(ctx, botID)
	if err != nil {
		return nil, err
	}
	isMember, err := s.members.IsMember(ctx, channelID, b.UserID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, errors.PermissionDenied("bot is not a member of this channel")
	}
	if limit <= 0 {
		limit = 20
	}
	if beforeID <= 0 {
		// No cursor pages from the newest message.
		beforeID = math.MaxInt64
	}
	return s.msgRepo.ListBefore(ctx, channelID, beforeID, limit)
}

package messages

import (
	"context"
	"encoding/json"

	"github.com/chatly-hq/chatly/internal/audit"
	"github.com/chatly-hq/chatly/internal/authz"
	"github.com/chatly-hq/chatly/internal/channels"
	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/chatly-hq/chatly/internal/events"
	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/chatly-hq/chatly/internal/membership"
	"github.com/chatly-hq/chatly/internal/polls"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier fans push notifications out for a freshly created message. The
// implementation must swallow delivery failures; a lost notification never
// fails a send.
type Notifier interface {
	MessageCreated(ctx context.Context, msg *Message, ch *channels.Channel)
}

// NopNotifier is used when push delivery is disabled.
type NopNotifier struct{}

func (NopNotifier) MessageCreated(context.Context, *Message, *channels.Channel) {}

type Service struct {
	repo     *Repository
	channels *channels.Repository
	members  *membership.Service
	authz    *authz.Service
	polls    *polls.Repository
	pub      events.Publisher
	notifier Notifier
	audit    *audit.Logger
	limiter  RateLimiter
	logger   *zap.Logger
}

// RateLimiter throttles message sends per user. A nil limiter disables
// throttling.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

func (s *Service) SetRateLimiter(l RateLimiter) {
	s.limiter = l
}

func NewService(
	repo *Repository,
	channelRepo *channels.Repository,
	members *membership.Service,
	az *authz.Service,
	pollRepo *polls.Repository,
	pub events.Publisher,
	notifier Notifier,
	auditLog *audit.Logger,
	logger *zap.Logger,
) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		repo:     repo,
		channels: channelRepo,
		members:  members,
		authz:    az,
		polls:    pollRepo,
		pub:      pub,
		notifier: notifier,
		audit:    auditLog,
		logger:   logger,
	}
}

type SendInput struct {
	ChannelID         uuid.UUID
	Type              Type
	Text              string
	File              string
	PollID            *uuid.UUID
	IsReply           bool
	LinkedMessageID   *int64
	StructuredContent json.RawMessage
	HideLinkPreview   bool
}

// Send creates a message and runs its side effects: channel summary update,
// realtime fan-out, unread counters, push notifications, and a visit stamp
// for the sender. A text send whose projection comes out empty is a no-op
// and returns nil without touching anything.
func (s *Service) Send(ctx context.Context, input SendInput) (*Message, error) {
	actor, ok := identity.ActorFrom(ctx)
	if !ok {
		return nil, errors.PermissionDenied("no acting user")
	}

	ch, err := s.channels.GetByID(ctx, input.ChannelID)
	if err != nil {
		return nil, err
	}

	if !actor.IsBot {
		decision, err := s.authz.CanPostInChannel(ctx, actor, input.ChannelID)
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			return nil, decision.Err()
		}
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "send:"+actor.UserID.String())
		if err != nil {
			s.logger.Warn("rate limiter check failed", zap.Error(err))
		} else if !allowed {
			return nil, errors.RateLimited("too many messages, slow down")
		}
	}

	if input.Type == "" {
		input.Type = TypeText
	}

	content := ProjectContent(input.Text)
	if input.Type == TypeText && content == "" && input.File == "" {
		return nil, nil
	}
	if input.Type == TypePoll && input.PollID == nil {
		return nil, errors.Validation("poll id is mandatory for a poll message")
	}

	m := &Message{
		ChannelID:       input.ChannelID,
		OwnerID:         actor.UserID,
		Type:            input.Type,
		Text:            input.Text,
		Content:         content,
		File:            input.File,
		PollID:          input.PollID,
		IsBotMessage:    actor.IsBot,
		HideLinkPreview: input.HideLinkPreview,
		Mentions:        ExtractMentions(input.StructuredContent),
	}
	if actor.IsBot {
		botID := actor.UserID
		m.BotID = &botID
	}

	if input.IsReply {
		if input.LinkedMessageID == nil {
			return nil, errors.Validation("linked message is required for a reply")
		}
		snap, linkedChannel, err := s.repo.Snapshot(ctx, *input.LinkedMessageID)
		if err != nil {
			return nil, err
		}
		if linkedChannel != input.ChannelID {
			return nil, errors.Validation("linked message should be in the same channel")
		}
		m.IsReply = true
		m.LinkedMessageID = input.LinkedMessageID
		m.RepliedMessageDetails = snap
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	s.afterCreate(ctx, m, ch)
	return m, nil
}

// afterCreate runs every post-insert side effect. File and image messages
// without their upload yet hold back the created event and notifications
// until AttachFile releases them. The fan-out is queued on a buffer and
// flushed only after the sender's visit stamp lands, so a client refreshing
// its unread badges off these events never reads a pre-visit count.
func (s *Service) afterCreate(ctx context.Context, m *Message, ch *channels.Channel) {
	s.updateChannelSummary(ctx, m, ch)

	buf := events.NewBuffer(s.pub)
	s.publishUnreadCount(ctx, buf, ch, m.OwnerID)

	awaitingUpload := (m.Type == TypeFile || m.Type == TypeImage) && m.File == ""
	if !awaitingUpload {
		buf.Publish(events.MessageCreated, s.createdPayload(m), events.ToChannel(m.ChannelID))
	}
	s.publishLegacyUpdate(buf, m)

	if err := s.members.TrackVisit(ctx, m.ChannelID); err != nil {
		s.logger.Warn("failed to track sender visit",
			zap.String("channel_id", m.ChannelID.String()),
			zap.Error(err),
		)
	}

	buf.Flush()
	if !awaitingUpload {
		s.notifier.MessageCreated(ctx, m, ch)
	}
}

// Edit rewrites the message text. Unchanged text is a no-op; an edit that
// projects to empty content is rejected.
func (s *Service) Edit(ctx context.Context, messageID int64, newText string, structuredContent json.RawMessage) (*Message, error) {
	actor, ok := identity.ActorFrom(ctx)
	if !ok {
		return nil, errors.PermissionDenied("no acting user")
	}

	m, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.OwnerID != actor.UserID && !actor.IsAdministrator {
		return nil, errors.PermissionDenied("only the message owner can edit it")
	}
	if m.Text == newText {
		return m, nil
	}

	content := ProjectContent(newText)
	if content == "" {
		return nil, errors.Validation("message cannot be empty")
	}

	updated, err := s.repo.UpdateText(ctx, messageID, newText, content, ExtractMentions(structuredContent))
	if err != nil {
		return nil, err
	}

	s.pub.Publish(events.MessageEdited, s.createdPayload(updated), events.ToChannel(updated.ChannelID))
	s.publishLegacyUpdate(s.pub, updated)
	return updated, nil
}

// Delete removes the message. Reactions and bookmarks cascade; a poll
// message takes its poll down with it. The channel's last-message summary is
// left pointing at the deleted message until the next send overwrites it.
func (s *Service) Delete(ctx context.Context, messageID int64) error {
	actor, ok := identity.ActorFrom(ctx)
	if !ok {
		return errors.PermissionDenied("no acting user")
	}

	m, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m.OwnerID != actor.UserID && !actor.IsAdministrator {
		return errors.PermissionDenied("only the message owner can delete it")
	}

	ch, err := s.channels.GetByID(ctx, m.ChannelID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, messageID); err != nil {
		return err
	}

	if m.Type == TypePoll && m.PollID != nil {
		if err := s.polls.Delete(ctx, *m.PollID); err != nil {
			s.logger.Error("failed to delete poll of deleted message",
				zap.Int64("message_id", messageID),
				zap.String("poll_id", m.PollID.String()),
				zap.Error(err),
			)
		}
	}

	if s.audit != nil {
		s.audit.LogMessageDeleted(ctx, actor.UserID, messageID, m.ChannelID, m.OwnerID == actor.UserID)
	}

	s.pub.Publish(events.MessageDeleted, &events.MessagePayload{
		ChannelID: m.ChannelID,
		SenderID:  actor.UserID,
		MessageID: messageID,
	}, events.ToChannel(m.ChannelID))
	s.publishUnreadCount(ctx, s.pub, ch, m.OwnerID)
	s.publishLegacyUpdate(s.pub, m)
	return nil
}

// AttachFile completes a file or image message once its upload lands and
// releases the held-back created event and notifications.
func (s *Service) AttachFile(ctx context.Context, messageID int64, file string) (*Message, error) {
	actor, ok := identity.ActorFrom(ctx)
	if !ok {
		return nil, errors.PermissionDenied("no acting user")
	}
	if file == "" {
		return nil, errors.Validation("file is required")
	}

	m, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.OwnerID != actor.UserID {
		return nil, errors.PermissionDenied("only the message owner can attach a file")
	}
	if m.Type != TypeFile && m.Type != TypeImage {
		return nil, errors.Validation("message does not take a file attachment")
	}

	updated, err := s.repo.AttachFile(ctx, messageID, file)
	if err != nil {
		return nil, err
	}

	ch, err := s.channels.GetByID(ctx, updated.ChannelID)
	if err != nil {
		return nil, err
	}

	s.updateChannelSummary(ctx, updated, ch)
	s.pub.Publish(events.MessageCreated, s.createdPayload(updated), events.ToChannel(updated.ChannelID))
	s.notifier.MessageCreated(ctx, updated, ch)
	s.publishLegacyUpdate(s.pub, updated)
	return updated, nil
}

// ListTimeline returns the channel's messages as renderable blocks and
// stamps the caller's visit, which zeroes their unread count.
func (s *Service) ListTimeline(ctx context.Context, channelID uuid.UUID) ([]*Block, error) {
	actor, ok := identity.ActorFrom(ctx)
	if !ok {
		return nil, errors.PermissionDenied("no acting user")
	}

	decision, err := s.authz.CanViewChannel(ctx, actor, channelID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, decision.Err()
	}

	msgs, err := s.repo.List(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if err := s.members.TrackVisit(ctx, channelID); err != nil && !errors.IsPermissionDenied(err) {
		s.logger.Warn("failed to track visit",
			zap.String("channel_id", channelID.String()),
			zap.Error(err),
		)
	}
	return BuildTimeline(msgs), nil
}

func (s *Service) ListRecentFiles(ctx context.Context, channelID uuid.UUID, limit int) ([]*FileEntry, error) {
	actor, ok := identity.ActorFrom(ctx)
	if !ok {
		return nil, errors.PermissionDenied("no acting user")
	}

	decision, err := s.authz.CanViewChannel(ctx, actor, channelID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, decision.Err()
	}

	if limit <= 0 {
		limit = 10
	}
	return s.repo.ListRecentFiles(ctx, channelID, limit)
}

// ToggleSave bookmarks or un-bookmarks the message for the acting user and
// tells only that user's clients about it.
func (s *Service) ToggleSave(ctx context.Context, messageID int64) (bool, error) {
	actorID := identity.UserID(ctx)
	if actorID == uuid.Nil {
		return false, errors.PermissionDenied("no acting user")
	}

	if _, err := s.repo.GetByID(ctx, messageID); err != nil {
		return false, err
	}

	saved, err := s.repo.ToggleSave(ctx, messageID, actorID)
	if err != nil {
		return false, err
	}

	s.pub.Publish(events.MessageSaved, &events.SavedPayload{
		MessageID: messageID,
		Saved:     saved,
	}, events.ToUser(actorID))
	return saved, nil
}

func (s *Service) ListSaved(ctx context.Context) ([]*Message, error) {
	actorID := identity.UserID(ctx)
	if actorID == uuid.Nil {
		return nil, errors.PermissionDenied("no acting user")
	}
	return s.repo.ListSaved(ctx, actorID)
}

func (s *Service) Get(ctx context.Context, messageID int64) (*Message, error) {
	return s.repo.GetByID(ctx, messageID)
}

func (s *Service) updateChannelSummary(ctx context.Context, m *Message, ch *channels.Channel) {
	summaryContent := m.Content
	if m.Type != TypeText {
		summaryContent = m.File
	}
	err := s.channels.UpdateLastMessage(ctx, ch.ID, m.ID, m.CreatedAt, &channels.Summary{
		MessageID:    m.ID,
		Content:      summaryContent,
		Type:         string(m.Type),
		OwnerID:      m.OwnerID,
		IsBotMessage: m.IsBotMessage,
		BotID:        m.BotID,
	})
	if err != nil {
		s.logger.Error("failed to update channel last message",
			zap.String("channel_id", ch.ID.String()),
			zap.Int64("message_id", m.ID),
			zap.Error(err),
		)
	}
}

// publishUnreadCount tells clients to refresh their unread badges. On a DM
// the peer gets a sound cue and the sender a silent refresh; everywhere else
// it is a silent broadcast since open channels have no fixed audience.
func (s *Service) publishUnreadCount(ctx context.Context, pub events.Publisher, ch *channels.Channel, senderID uuid.UUID) {
	payload := func(playSound bool) *events.UnreadCountPayload {
		return &events.UnreadCountPayload{
			ChannelID: ch.ID,
			PlaySound: playSound,
			SentBy:    senderID,
		}
	}

	if ch.IsDirectMessage() {
		if !ch.IsSelfMessage {
			peer, err := s.members.GetPeerUserID(ctx, ch.ID, senderID)
			if err != nil {
				s.logger.Warn("failed to resolve dm peer for unread event",
					zap.String("channel_id", ch.ID.String()),
					zap.Error(err),
				)
			} else {
				pub.Publish(events.UnreadCountUpdated, payload(true), events.ToUser(peer))
			}
		}
		pub.Publish(events.UnreadCountUpdated, payload(false), events.ToUser(senderID))
		return
	}

	pub.Publish(events.UnreadCountUpdated, payload(false), events.ToEveryone())
}

// publishLegacyUpdate emits the coarse invalidation event older clients
// still listen for on every message mutation.
func (s *Service) publishLegacyUpdate(pub events.Publisher, m *Message) {
	pub.Publish(events.MessageUpdated, &events.MessagePayload{
		ChannelID: m.ChannelID,
		SenderID:  m.OwnerID,
		MessageID: m.ID,
	}, events.ToChannel(m.ChannelID))
}

func (s *Service) createdPayload(m *Message) *events.MessagePayload {
	return &events.MessagePayload{
		ChannelID: m.ChannelID,
		SenderID:  m.OwnerID,
		MessageID: m.ID,
		Details: &events.MessageDetails{
			ID:                    m.ID,
			ChannelID:             m.ChannelID,
			OwnerID:               m.OwnerID,
			Type:                  string(m.Type),
			Text:                  m.Text,
			Content:               m.Content,
			File:                  m.File,
			PollID:                m.PollID,
			IsReply:               m.IsReply,
			LinkedMessageID:       m.LinkedMessageID,
			RepliedMessageDetails: m.RepliedMessageDetails,
			Reactions:             m.Reactions,
			IsEdited:              m.IsEdited,
			IsBotMessage:          m.IsBotMessage,
			BotID:                 m.BotID,
			HideLinkPreview:       m.HideLinkPreview,
			CreatedAt:             m.CreatedAt,
			ModifiedAt:            m.ModifiedAt,
		},
	}
}

package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/chatly-hq/chatly/internal/infra/cache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChannelType string

const (
	TypeOpen          ChannelType = "Open"
	TypePublic        ChannelType = "Public"
	TypePrivate       ChannelType = "Private"
	TypeDirectMessage ChannelType = "DirectMessage"
)

// Summary is the denormalized last-message cache stored on the channel row.
// On deletion of the newest message it goes stale on purpose; see DESIGN.md.
type Summary struct {
	MessageID    int64      `json:"message_id"`
	Content      string     `json:"content"`
	Type         string     `json:"message_type"`
	OwnerID      uuid.UUID  `json:"owner"`
	IsBotMessage bool       `json:"is_bot_message"`
	BotID        *uuid.UUID `json:"bot,omitempty"`
}

type Channel struct {
	ID            uuid.UUID
	Name          string
	Type          ChannelType
	IsArchived    bool
	IsSelfMessage bool
	OwnerID       *uuid.UUID
	LastMessageID *int64
	LastMessageAt *time.Time
	Summary       *Summary
	CreatedAt     time.Time
}

func (c *Channel) IsDirectMessage() bool {
	return c.Type == TypeDirectMessage
}

// ChannelWithUnread decorates a channel row for listings: the DM peer (when
// applicable) and the caller's unread count.
type ChannelWithUnread struct {
	Channel
	PeerUserID  *uuid.UUID
	UnreadCount int
}

type Repository struct {
	pool  *pgxpool.Pool
	cache *cache.Cache
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func NewRepositoryWithCache(pool *pgxpool.Pool, c *cache.Cache) *Repository {
	return &Repository{pool: pool, cache: c}
}

const channelCacheTTL = 5 * time.Minute

func (r *Repository) channelCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("channel:%s", id.String())
}

const channelColumns = `
	id, name, channel_type, is_archived, is_self_message, owner_id,
	last_message_id, last_message_at, last_message_summary, created_at
`

func scanChannel(row pgx.Row) (*Channel, error) {
	ch := &Channel{}
	err := row.Scan(
		&ch.ID,
		&ch.Name,
		&ch.Type,
		&ch.IsArchived,
		&ch.IsSelfMessage,
		&ch.OwnerID,
		&ch.LastMessageID,
		&ch.LastMessageAt,
		&ch.Summary,
		&ch.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("channel not found")
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (r *Repository) Create(ctx context.Context, ch *Channel) error {
	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}

	query := `
		INSERT INTO channels (id, name, channel_type, is_self_message, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query,
		ch.ID,
		ch.Name,
		ch.Type,
		ch.IsSelfMessage,
		ch.OwnerID,
	).Scan(&ch.CreatedAt)
	if err != nil {
		return err
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, r.channelCacheKey(ch.ID), ch, channelCacheTTL)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Channel, error) {
	if r.cache == nil {
		return r.loadByID(ctx, id)
	}
	return cache.GetOrLoad(ctx, r.cache, r.channelCacheKey(id), channelCacheTTL,
		func(ctx context.Context) (*Channel, error) {
			return r.loadByID(ctx, id)
		})
}

func (r *Repository) loadByID(ctx context.Context, id uuid.UUID) (*Channel, error) {
	return scanChannel(r.pool.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = $1`, id))
}

func (r *Repository) Archive(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE channels SET is_archived = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("channel not found")
	}

	if r.cache != nil {
		_ = r.cache.Delete(ctx, r.channelCacheKey(id))
	}

	return nil
}

// InvalidateCache drops the cached channel after an out-of-band write, such
// as the archival a membership removal performs inside its own transaction.
func (r *Repository) InvalidateCache(ctx context.Context, id uuid.UUID) {
	if r.cache != nil {
		_ = r.cache.Delete(ctx, r.channelCacheKey(id))
	}
}

// UpdateLastMessage refreshes the denormalized last-message fields. The
// guard keeps the summary monotonic: concurrent creates resolve to the
// message with the larger (newer) id, not the write that lands last.
func (r *Repository) UpdateLastMessage(ctx context.Context, channelID uuid.UUID, messageID int64, at time.Time, summary *Summary) error {
	query := `
		UPDATE channels
		SET last_message_id = $2, last_message_at = $3, last_message_summary = $4
		WHERE id = $1 AND (last_message_id IS NULL OR last_message_id < $2)
	`

	_, err := r.pool.Exec(ctx, query, channelID, messageID, at, summary)
	if err != nil {
		return err
	}

	if r.cache != nil {
		_ = r.cache.Delete(ctx, r.channelCacheKey(channelID))
	}

	return nil
}

// GetDirectMessageChannel finds an existing DM channel between two users by
// its canonical pair name, checking both orders.
func (r *Repository) GetDirectMessageChannel(ctx context.Context, userA, userB uuid.UUID) (*Channel, error) {
	nameAB := DirectMessageName(userA, userB)
	nameBA := DirectMessageName(userB, userA)

	ch, err := scanChannel(r.pool.QueryRow(ctx,
		`SELECT `+channelColumns+`
		 FROM channels
		 WHERE channel_type = $1 AND name IN ($2, $3)`,
		TypeDirectMessage, nameAB, nameBA))
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// ListVisibleForUser returns all channels the user can see: every open and
// public channel plus private and DM channels they are a member of, newest
// activity first.
func (r *Repository) ListVisibleForUser(ctx context.Context, userID uuid.UUID, hideArchived bool) ([]*ChannelWithUnread, error) {
	query := `
		SELECT DISTINCT c.id, c.name, c.channel_type, c.is_archived, c.is_self_message,
		       c.owner_id, c.last_message_id, c.last_message_at, c.last_message_summary,
		       c.created_at, peer.user_id
		FROM channels c
		LEFT JOIN channel_members m ON c.id = m.channel_id AND m.user_id = $1
		LEFT JOIN channel_members peer
		       ON c.id = peer.channel_id AND peer.user_id != $1 AND c.channel_type = 'DirectMessage'
		WHERE (c.channel_type NOT IN ('Private', 'DirectMessage') OR m.user_id = $1)
	`
	if hideArchived {
		query += ` AND c.is_archived = FALSE`
	}
	query += ` ORDER BY c.last_message_at DESC NULLS LAST`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*ChannelWithUnread
	for rows.Next() {
		ch := &ChannelWithUnread{}
		if err := rows.Scan(
			&ch.ID,
			&ch.Name,
			&ch.Type,
			&ch.IsArchived,
			&ch.IsSelfMessage,
			&ch.OwnerID,
			&ch.LastMessageID,
			&ch.LastMessageAt,
			&ch.Summary,
			&ch.CreatedAt,
			&ch.PeerUserID,
		); err != nil {
			return nil, err
		}
		if ch.IsSelfMessage {
			self := userID
			ch.PeerUserID = &self
		}
		list = append(list, ch)
	}

	return list, rows.Err()
}

// DirectMessageName is the canonical display name of a DM channel.
func DirectMessageName(a, b uuid.UUID) string {
	return a.String() + " _ " + b.String()
}

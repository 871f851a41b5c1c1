package unread

import (
	"context"
	"time"

	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// epochFloor stands in for "never visited". Any real message creation
// timestamp compares later than it.
var epochFloor = time.Unix(0, 0).UTC()

// ChannelCount is the per-channel unread tally in a user's overview.
type ChannelCount struct {
	ChannelID       uuid.UUID `json:"channel_id"`
	IsDirectMessage bool      `json:"is_direct_message"`
	Count           int       `json:"unread_count"`
}

// Overview aggregates unread counts across the channels a user can see,
// split into regular channels and direct messages.
type Overview struct {
	TotalChannels int             `json:"total_unread_count_in_channels"`
	TotalDMs      int             `json:"total_unread_count_in_dms"`
	Channels      []*ChannelCount `json:"channels"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CountForUser computes unread counts for every non-archived channel visible
// to the user: channels they belong to plus all Open channels. Messages
// newer than the member's last visit count as unread; with no visit on
// record every message does.
func (r *Repository) CountForUser(ctx context.Context, userID uuid.UUID) (*Overview, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id,
			c.channel_type = 'DirectMessage' AS is_dm,
			COUNT(m.id) FILTER (WHERE m.created_at > COALESCE(cm.last_visit, $2)) AS unread
		FROM channels c
		LEFT JOIN channel_members cm ON cm.channel_id = c.id AND cm.user_id = $1
		LEFT JOIN messages m ON m.channel_id = c.id
		WHERE (c.channel_type = 'Open' OR cm.user_id = $1)
			AND c.is_archived = FALSE
		GROUP BY c.id
	`, userID, epochFloor)
	if err != nil {
		return nil, errors.Internal("failed to count unread messages", err)
	}
	defer rows.Close()

	overview := &Overview{}
	for rows.Next() {
		cc := &ChannelCount{}
		if err := rows.Scan(&cc.ChannelID, &cc.IsDirectMessage, &cc.Count); err != nil {
			return nil, errors.Internal("failed to scan unread count", err)
		}
		if cc.IsDirectMessage {
			overview.TotalDMs += cc.Count
		} else {
			overview.TotalChannels += cc.Count
		}
		overview.Channels = append(overview.Channels, cc)
	}
	return overview, rows.Err()
}

// CountForChannel computes the unread count of a single channel. A user with
// no membership row sees zero unless the channel is Open, where everything
// is unread until the implicit membership materializes on first visit.
func (r *Repository) CountForChannel(ctx context.Context, channelID, userID uuid.UUID) (int, error) {
	var lastVisit *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT last_visit FROM channel_members
		WHERE channel_id = $1 AND user_id = $2
	`, channelID, userID).Scan(&lastVisit)

	if err != nil {
		if err != pgx.ErrNoRows {
			return 0, errors.Internal("failed to resolve membership", err)
		}
		var channelType string
		err := r.pool.QueryRow(ctx,
			`SELECT channel_type FROM channels WHERE id = $1`, channelID,
		).Scan(&channelType)
		if err != nil {
			if err == pgx.ErrNoRows {
				return 0, errors.NotFound("channel not found")
			}
			return 0, errors.Internal("failed to resolve channel", err)
		}
		if channelType != "Open" {
			return 0, nil
		}
		floor := epochFloor
		lastVisit = &floor
	}

	if lastVisit == nil {
		floor := epochFloor
		lastVisit = &floor
	}

	var count int
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE channel_id = $1 AND created_at > $2
	`, channelID, *lastVisit).Scan(&count)
	if err != nil {
		return 0, errors.Internal("failed to count unread messages", err)
	}
	return count, nil
}

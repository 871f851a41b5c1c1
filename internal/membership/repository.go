package membership

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/chatly-hq/chatly/internal/infra/cache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Member struct {
	ChannelID          uuid.UUID
	UserID             uuid.UUID
	IsAdmin            bool
	AllowNotifications bool
	LastVisit          *time.Time
	CreatedAt          time.Time
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

const memberCacheTTL = 30 * time.Second

func (r *Repository) memberCacheKey(channelID, userID uuid.UUID) string {
	return fmt.Sprintf("member:%s:%s", channelID.String(), userID.String())
}

// Add inserts a membership row. The first member of a channel becomes admin.
// The channel row is locked for the duration so a join cannot interleave with
// a concurrent Remove and miss the admin seat it should inherit.
func (r *Repository) Add(ctx context.Context, channelID, userID uuid.UUID) (*Member, error) {
	var m *Member
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var channelType string
		err := tx.QueryRow(ctx,
			`SELECT channel_type FROM channels WHERE id = $1 FOR UPDATE`,
			channelID,
		).Scan(&channelType)
		if err != nil {
			if err == pgx.ErrNoRows {
				return errors.NotFound("channel not found")
			}
			return errors.Internal("failed to lock channel", err)
		}

		var count int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM channel_members WHERE channel_id = $1`,
			channelID,
		).Scan(&count)
		if err != nil {
			return errors.Internal("failed to count members", err)
		}

		m = &Member{
			ChannelID:          channelID,
			UserID:             userID,
			IsAdmin:            count == 0,
			AllowNotifications: true,
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO channel_members (channel_id, user_id, is_admin, allow_notifications)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`, channelID, userID, m.IsAdmin, m.AllowNotifications).Scan(&m.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return errors.DuplicateMembership("user is already a member of this channel")
			}
			return errors.Internal("failed to add member", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Repository) Get(ctx context.Context, channelID, userID uuid.UUID) (*Member, error) {
	if r.cache != nil {
		var m Member
		err := r.cache.Get(ctx, r.memberCacheKey(channelID, userID), &m)
		if err == nil {
			return &m, nil
		}
	}

	m, err := r.getFromDB(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, r.memberCacheKey(channelID, userID), m, memberCacheTTL)
	}
	return m, nil
}

func (r *Repository) getFromDB(ctx context.Context, channelID, userID uuid.UUID) (*Member, error) {
	m := &Member{}
	err := r.pool.QueryRow(ctx, `
		SELECT channel_id, user_id, is_admin, allow_notifications, last_visit, created_at
		FROM channel_members
		WHERE channel_id = $1 AND user_id = $2
	`, channelID, userID).Scan(
		&m.ChannelID, &m.UserID, &m.IsAdmin, &m.AllowNotifications, &m.LastVisit, &m.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("member not found")
		}
		return nil, errors.Internal("failed to get member", err)
	}
	return m, nil
}

func (r *Repository) IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	_, err := r.Get(ctx, channelID, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Repository) List(ctx context.Context, channelID uuid.UUID) ([]*Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT channel_id, user_id, is_admin, allow_notifications, last_visit, created_at
		FROM channel_members
		WHERE channel_id = $1
		ORDER BY created_at ASC
	`, channelID)
	if err != nil {
		return nil, errors.Internal("failed to list members", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		m := &Member{}
		err := rows.Scan(&m.ChannelID, &m.UserID, &m.IsAdmin, &m.AllowNotifications, &m.LastVisit, &m.CreatedAt)
		if err != nil {
			return nil, errors.Internal("failed to scan member", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *Repository) SetAllowNotifications(ctx context.Context, channelID, userID uuid.UUID, allow bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE channel_members SET allow_notifications = $3
		WHERE channel_id = $1 AND user_id = $2
	`, channelID, userID, allow)
	if err != nil {
		return errors.Internal("failed to update notification preference", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("member not found")
	}
	r.invalidate(ctx, channelID, userID)
	return nil
}

func (r *Repository) SetLastVisit(ctx context.Context, channelID, userID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE channel_members SET last_visit = $3
		WHERE channel_id = $1 AND user_id = $2
	`, channelID, userID, at)
	if err != nil {
		return errors.Internal("failed to update last visit", err)
	}
	r.invalidate(ctx, channelID, userID)
	return nil
}

// GetPeerUserID returns the other member of a direct message channel. For a
// self-message channel the peer is the user themselves.
func (r *Repository) GetPeerUserID(ctx context.Context, channelID, userID uuid.UUID) (uuid.UUID, error) {
	var peer uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT user_id FROM channel_members
		WHERE channel_id = $1 AND user_id != $2
		LIMIT 1
	`, channelID, userID).Scan(&peer)
	if err != nil {
		if err == pgx.ErrNoRows {
			return userID, nil
		}
		return uuid.Nil, errors.Internal("failed to get peer member", err)
	}
	return peer, nil
}

// Remove deletes a membership and repairs the channel afterwards: a Private
// channel left empty is archived, and a channel left without an admin promotes
// its earliest-joined member. The channel row is locked for the duration so
// concurrent removals serialize.
func (r *Repository) Remove(ctx context.Context, channelID, userID uuid.UUID) (archived bool, promoted *uuid.UUID, err error) {
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var channelType string
		err := tx.QueryRow(ctx,
			`SELECT channel_type FROM channels WHERE id = $1 FOR UPDATE`,
			channelID,
		).Scan(&channelType)
		if err != nil {
			if err == pgx.ErrNoRows {
				return errors.NotFound("channel not found")
			}
			return errors.Internal("failed to lock channel", err)
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM channel_members WHERE channel_id = $1 AND user_id = $2`,
			channelID, userID,
		)
		if err != nil {
			return errors.Internal("failed to remove member", err)
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFound("member not found")
		}

		var remaining int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM channel_members WHERE channel_id = $1`,
			channelID,
		).Scan(&remaining)
		if err != nil {
			return errors.Internal("failed to count remaining members", err)
		}

		if remaining == 0 {
			if channelType == "Private" {
				_, err = tx.Exec(ctx,
					`UPDATE channels SET is_archived = TRUE WHERE id = $1`,
					channelID,
				)
				if err != nil {
					return errors.Internal("failed to archive empty channel", err)
				}
				archived = true
			}
			return nil
		}

		var admins int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM channel_members WHERE channel_id = $1 AND is_admin = TRUE`,
			channelID,
		).Scan(&admins)
		if err != nil {
			return errors.Internal("failed to count admins", err)
		}
		if admins > 0 {
			return nil
		}

		var successor uuid.UUID
		err = tx.QueryRow(ctx, `
			UPDATE channel_members SET is_admin = TRUE
			WHERE channel_id = $1 AND user_id = (
				SELECT user_id FROM channel_members
				WHERE channel_id = $1
				ORDER BY created_at ASC
				LIMIT 1
			)
			RETURNING user_id
		`, channelID).Scan(&successor)
		if err != nil {
			return errors.Internal("failed to promote successor admin", err)
		}
		promoted = &successor
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	r.invalidate(ctx, channelID, userID)
	if promoted != nil {
		r.invalidate(ctx, channelID, *promoted)
	}
	return archived, promoted, nil
}

func (r *Repository) invalidate(ctx context.Context, channelID, userID uuid.UUID) {
	if r.cache != nil {
		_ = r.cache.Delete(ctx, r.memberCacheKey(channelID, userID))
	}
}

// 23505 is the postgres unique_violation code.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == "23505"
}

package bot

import (
	"context"
	"time"

	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Bot pairs a bot record with the user identity it acts through. Every bot
// has a backing user row of type Bot, so membership and message tables never
// special-case bots.
type Bot struct {
	ID          uuid.UUID
	Name        string
	Description string
	UserID      uuid.UUID
	CreatedAt   time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create provisions the bot and its backing user in one transaction.
func (r *Repository) Create(ctx context.Context, b *Bot, handle string) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.UserID == uuid.Nil {
		b.UserID = uuid.New()
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, handle, display_name, user_type)
			VALUES ($1, $2, $3, 'Bot')
		`, b.UserID, handle, b.Name)
		if err != nil {
			return errors.Internal("failed to create bot user", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO bots (id, bot_name, description, user_id)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`, b.ID, b.Name, b.Description, b.UserID).Scan(&b.CreatedAt)
		if err != nil {
			return errors.Internal("failed to create bot", err)
		}
		return nil
	})
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Bot, error) {
	b := &Bot{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, bot_name, description, user_id, created_at
		FROM bots WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Description, &b.UserID, &b.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("bot not found")
		}
		return nil, errors.Internal("failed to get bot", err)
	}
	return b, nil
}

func (r *Repository) GetByName(ctx context.Context, name string) (*Bot, error) {
	b := &Bot{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, bot_name, description, user_id, created_at
		FROM bots WHERE bot_name = $1
	`, name).Scan(&b.ID, &b.Name, &b.Description, &b.UserID, &b.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("bot not found")
		}
		return nil, errors.Internal("failed to get bot", err)
	}
	return b, nil
}

package users

import (
	"context"
	"time"

	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserType string

const (
	TypeHuman UserType = "Human"
	TypeBot   UserType = "Bot"
)

type User struct {
	ID          uuid.UUID
	Handle      string
	DisplayName string
	Type        UserType
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Type == "" {
		user.Type = TypeHuman
	}

	query := `
		INSERT INTO users (id, handle, display_name, user_type, enabled)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING created_at, updated_at
	`

	return r.pool.QueryRow(ctx, query,
		user.ID,
		user.Handle,
		user.DisplayName,
		user.Type,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, handle, display_name, user_type, enabled, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &User{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Handle,
		&user.DisplayName,
		&user.Type,
		&user.Enabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *Repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET display_name = $2, user_type = $3, enabled = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, user.ID, user.DisplayName, user.Type, user.Enabled)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("user not found")
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("user not found")
	}
	return nil
}

func (r *Repository) ListEnabled(ctx context.Context) ([]*User, error) {
	query := `
		SELECT id, handle, display_name, user_type, enabled, created_at, updated_at
		FROM users
		WHERE enabled = TRUE
		ORDER BY display_name ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*User
	for rows.Next() {
		user := &User{}
		if err := rows.Scan(
			&user.ID,
			&user.Handle,
			&user.DisplayName,
			&user.Type,
			&user.Enabled,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, user)
	}

	return list, rows.Err()
}

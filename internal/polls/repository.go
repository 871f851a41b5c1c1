package polls

import (
	"context"
	"time"

	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Poll struct {
	ID            uuid.UUID
	Question      string
	IsMultiChoice bool
	IsAnonymous   bool
	IsDisabled    bool
	TotalVotes    int
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	Options       []*Option
}

type Option struct {
	ID     uuid.UUID
	PollID uuid.UUID
	Text   string
	Votes  int
	Index  int
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, poll *Poll) error {
	if poll.ID == uuid.Nil {
		poll.ID = uuid.New()
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO polls (id, question, is_multi_choice, is_anonymous, created_by)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`, poll.ID, poll.Question, poll.IsMultiChoice, poll.IsAnonymous, poll.CreatedBy).Scan(&poll.CreatedAt)
		if err != nil {
			return errors.Internal("failed to create poll", err)
		}

		for i, opt := range poll.Options {
			if opt.ID == uuid.Nil {
				opt.ID = uuid.New()
			}
			opt.PollID = poll.ID
			opt.Index = i
			_, err := tx.Exec(ctx, `
				INSERT INTO poll_options (id, poll_id, option_text, idx)
				VALUES ($1, $2, $3, $4)
			`, opt.ID, poll.ID, opt.Text, i)
			if err != nil {
				return errors.Internal("failed to create poll option", err)
			}
		}
		return nil
	})
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Poll, error) {
	poll := &Poll{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, question, is_multi_choice, is_anonymous, is_disabled, total_votes, created_by, created_at
		FROM polls WHERE id = $1
	`, id).Scan(
		&poll.ID, &poll.Question, &poll.IsMultiChoice, &poll.IsAnonymous,
		&poll.IsDisabled, &poll.TotalVotes, &poll.CreatedBy, &poll.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("poll not found")
		}
		return nil, errors.Internal("failed to get poll", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, poll_id, option_text, votes, idx
		FROM poll_options WHERE poll_id = $1
		ORDER BY idx ASC
	`, id)
	if err != nil {
		return nil, errors.Internal("failed to list poll options", err)
	}
	defer rows.Close()

	for rows.Next() {
		opt := &Option{}
		if err := rows.Scan(&opt.ID, &opt.PollID, &opt.Text, &opt.Votes, &opt.Index); err != nil {
			return nil, errors.Internal("failed to scan poll option", err)
		}
		poll.Options = append(poll.Options, opt)
	}
	return poll, rows.Err()
}

// Vote records the user's choice. Single-choice polls replace any prior vote;
// multi-choice polls toggle the chosen option. Option tallies and the
// distinct-voter total are recomputed in the same transaction.
func (r *Repository) Vote(ctx context.Context, pollID, optionID, userID uuid.UUID, multiChoice bool) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if multiChoice {
			tag, err := tx.Exec(ctx, `
				DELETE FROM poll_votes
				WHERE poll_id = $1 AND option_id = $2 AND user_id = $3
			`, pollID, optionID, userID)
			if err != nil {
				return errors.Internal("failed to toggle vote", err)
			}
			if tag.RowsAffected() > 0 {
				return r.recomputeTx(ctx, tx, pollID)
			}
		} else {
			_, err := tx.Exec(ctx, `
				DELETE FROM poll_votes WHERE poll_id = $1 AND user_id = $2
			`, pollID, userID)
			if err != nil {
				return errors.Internal("failed to clear previous vote", err)
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO poll_votes (poll_id, option_id, user_id)
			VALUES ($1, $2, $3)
		`, pollID, optionID, userID)
		if err != nil {
			return errors.Internal("failed to record vote", err)
		}
		return r.recomputeTx(ctx, tx, pollID)
	})
}

func (r *Repository) RetractVote(ctx context.Context, pollID, userID uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM poll_votes WHERE poll_id = $1 AND user_id = $2`,
			pollID, userID,
		)
		if err != nil {
			return errors.Internal("failed to retract vote", err)
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFound("no vote to retract")
		}
		return r.recomputeTx(ctx, tx, pollID)
	})
}

// recomputeTx refreshes per-option tallies and the poll's total, counting
// each user once regardless of how many options they picked.
func (r *Repository) recomputeTx(ctx context.Context, tx pgx.Tx, pollID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE poll_options o SET votes = (
			SELECT COUNT(*) FROM poll_votes v
			WHERE v.poll_id = $1 AND v.option_id = o.id
		)
		WHERE o.poll_id = $1
	`, pollID)
	if err != nil {
		return errors.Internal("failed to recompute option tallies", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE polls SET total_votes = (
			SELECT COUNT(DISTINCT user_id) FROM poll_votes WHERE poll_id = $1
		)
		WHERE id = $1
	`, pollID)
	if err != nil {
		return errors.Internal("failed to recompute total votes", err)
	}
	return nil
}

func (r *Repository) VotesForUser(ctx context.Context, pollID, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT option_id FROM poll_votes
		WHERE poll_id = $1 AND user_id = $2
	`, pollID, userID)
	if err != nil {
		return nil, errors.Internal("failed to list user votes", err)
	}
	defer rows.Close()

	var options []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Internal("failed to scan vote", err)
		}
		options = append(options, id)
	}
	return options, rows.Err()
}

func (r *Repository) SetDisabled(ctx context.Context, pollID uuid.UUID, disabled bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE polls SET is_disabled = $2 WHERE id = $1`,
		pollID, disabled,
	)
	if err != nil {
		return errors.Internal("failed to update poll", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("poll not found")
	}
	return nil
}

// Delete removes the poll; options and votes go with it via cascade.
func (r *Repository) Delete(ctx context.Context, pollID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM polls WHERE id = $1`, pollID)
	if err != nil {
		return errors.Internal("failed to delete poll", err)
	}
	return nil
}

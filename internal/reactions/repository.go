package reactions

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Aggregate is the denormalized per-emoji reaction summary persisted on the
// message row, keyed by the raw emoji.
type Aggregate map[string]*Entry

type Entry struct {
	Count int         `json:"count"`
	Users []uuid.UUID `json:"users"`
	Emoji string      `json:"reaction"`
}

type row struct {
	UserID uuid.UUID
	Emoji  string
}

// EscapeEmoji normalizes an emoji into its identity form. Visually identical
// emoji can arrive as different byte sequences from different clients, so the
// stored key is the ASCII escape of the symbol with the escape markers
// stripped. "👍" and its decomposed variants collapse to the same key.
func EscapeEmoji(emoji string) string {
	quoted := strconv.QuoteToASCII(emoji)
	quoted = strings.Trim(quoted, `"`)
	quoted = strings.ReplaceAll(quoted, `\u`, "")
	quoted = strings.ReplaceAll(quoted, `\U`, "")
	return quoted
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Toggle flips the (message, user, emoji) reaction inside one transaction and
// returns the recomputed aggregate. The message row is locked before any
// reaction row changes so concurrent toggles serialize and the last aggregate
// written always covers every committed reaction.
func (r *Repository) Toggle(ctx context.Context, messageID int64, userID uuid.UUID, emoji string) (Aggregate, bool, error) {
	escaped := EscapeEmoji(emoji)

	var agg Aggregate
	var added bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var lockedID int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM messages WHERE id = $1 FOR UPDATE`,
			messageID,
		).Scan(&lockedID)
		if err != nil {
			if err == pgx.ErrNoRows {
				return errors.NotFound("message not found")
			}
			return errors.Internal("failed to lock message", err)
		}

		tag, err := tx.Exec(ctx, `
			DELETE FROM message_reactions
			WHERE message_id = $1 AND user_id = $2 AND emoji_escaped = $3
		`, messageID, userID, escaped)
		if err != nil {
			return errors.Internal("failed to remove reaction", err)
		}

		if tag.RowsAffected() == 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO message_reactions (message_id, user_id, emoji, emoji_escaped)
				VALUES ($1, $2, $3, $4)
			`, messageID, userID, emoji, escaped)
			if err != nil {
				return errors.Internal("failed to add reaction", err)
			}
			added = true
		}

		rows, err := r.listTx(ctx, tx, messageID)
		if err != nil {
			return err
		}
		agg = aggregate(rows)

		data, err := json.Marshal(agg)
		if err != nil {
			return errors.Internal("failed to marshal reaction aggregate", err)
		}

		// Reactions never count as an edit, so modified_at stays put.
		_, err = tx.Exec(ctx,
			`UPDATE messages SET reactions = $2 WHERE id = $1`,
			messageID, data,
		)
		if err != nil {
			return errors.Internal("failed to persist reaction aggregate", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return agg, added, nil
}

func (r *Repository) listTx(ctx context.Context, tx pgx.Tx, messageID int64) ([]row, error) {
	rows, err := tx.Query(ctx, `
		SELECT user_id, emoji FROM message_reactions
		WHERE message_id = $1
		ORDER BY emoji_escaped, created_at
	`, messageID)
	if err != nil {
		return nil, errors.Internal("failed to list reactions", err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var rr row
		if err := rows.Scan(&rr.UserID, &rr.Emoji); err != nil {
			return nil, errors.Internal("failed to scan reaction", err)
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

func aggregate(rows []row) Aggregate {
	agg := make(Aggregate)
	for _, rr := range rows {
		entry, ok := agg[rr.Emoji]
		if !ok {
			entry = &Entry{Emoji: rr.Emoji}
			agg[rr.Emoji] = entry
		}
		entry.Count++
		entry.Users = append(entry.Users, rr.UserID)
	}
	return agg
}

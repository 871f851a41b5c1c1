package messages

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/chatly-hq/chatly/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Type string

const (
	TypeText  Type = "Text"
	TypeImage Type = "Image"
	TypeFile  Type = "File"
	TypePoll  Type = "Poll"
)

// ReplySnapshot freezes the key fields of a replied-to message at send time.
// Later edits or deletion of the original do not touch it.
type ReplySnapshot struct {
	Text      string    `json:"text"`
	Content   string    `json:"content"`
	File      string    `json:"file"`
	Type      Type      `json:"message_type"`
	OwnerID   uuid.UUID `json:"owner"`
	CreatedAt string    `json:"creation"`
}

// snapshotTimeLayout matches what clients already parse out of the snapshot.
const snapshotTimeLayout = "2006-01-02 15:04:05"

type Message struct {
	ID                    int64
	ChannelID             uuid.UUID
	OwnerID               uuid.UUID
	BotID                 *uuid.UUID
	Type                  Type
	Text                  string
	Content               string
	File                  string
	IsReply               bool
	LinkedMessageID       *int64
	RepliedMessageDetails *ReplySnapshot
	Reactions             json.RawMessage
	Mentions              []uuid.UUID
	PollID                *uuid.UUID
	IsEdited              bool
	IsBotMessage          bool
	HideLinkPreview       bool
	IsContinuation        bool
	CreatedAt             time.Time
	ModifiedAt            time.Time
}

// FileEntry is the trimmed listing row for "files shared in channel" views.
type FileEntry struct {
	MessageID int64
	File      string
	OwnerID   uuid.UUID
	Type      Type
	CreatedAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
	ids  *infra.SnowflakeGenerator
}

func NewRepository(pool *pgxpool.Pool, ids *infra.SnowflakeGenerator) *Repository {
	return &Repository{pool: pool, ids: ids}
}

const messageColumns = `id, channel_id, owner_id, bot_id, message_type, text, content, file,
	is_reply, linked_message_id, replied_message_details, reactions, mentions, poll_id,
	is_edited, is_bot_message, hide_link_preview, created_at, modified_at`

func scanMessage(row pgx.Row) (*Message, error) {
	m := &Message{}
	err := row.Scan(
		&m.ID, &m.ChannelID, &m.OwnerID, &m.BotID, &m.Type, &m.Text, &m.Content, &m.File,
		&m.IsReply, &m.LinkedMessageID, &m.RepliedMessageDetails, &m.Reactions, &m.Mentions, &m.PollID,
		&m.IsEdited, &m.IsBotMessage, &m.HideLinkPreview, &m.CreatedAt, &m.ModifiedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("message not found")
		}
		return nil, errors.Internal("failed to scan message", err)
	}
	return m, nil
}

func (r *Repository) Create(ctx context.Context, m *Message) error {
	if m.ID == 0 {
		m.ID = r.ids.Generate()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages (
			id, channel_id, owner_id, bot_id, message_type, text, content, file,
			is_reply, linked_message_id, replied_message_details, mentions, poll_id,
			is_bot_message, hide_link_preview
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, modified_at
	`,
		m.ID, m.ChannelID, m.OwnerID, m.BotID, m.Type, m.Text, m.Content, m.File,
		m.IsReply, m.LinkedMessageID, m.RepliedMessageDetails, m.Mentions, m.PollID,
		m.IsBotMessage, m.HideLinkPreview,
	).Scan(&m.CreatedAt, &m.ModifiedAt)
	if err != nil {
		return errors.Internal("failed to create message", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Message, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	return scanMessage(row)
}

// Snapshot reads the fields frozen into a reply snapshot plus the channel the
// linked message lives in, so the caller can enforce the same-channel rule.
func (r *Repository) Snapshot(ctx context.Context, id int64) (*ReplySnapshot, uuid.UUID, error) {
	var (
		snap      ReplySnapshot
		channelID uuid.UUID
		createdAt time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT text, content, file, message_type, owner_id, created_at, channel_id
		FROM messages WHERE id = $1
	`, id).Scan(&snap.Text, &snap.Content, &snap.File, &snap.Type, &snap.OwnerID, &createdAt, &channelID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, uuid.Nil, errors.NotFound("linked message not found")
		}
		return nil, uuid.Nil, errors.Internal("failed to snapshot linked message", err)
	}
	snap.CreatedAt = createdAt.UTC().Format(snapshotTimeLayout)
	return &snap, channelID, nil
}

func (r *Repository) UpdateText(ctx context.Context, id int64, text, content string, mentions []uuid.UUID) (*Message, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE messages
		SET text = $2, content = $3, mentions = $4, is_edited = TRUE, modified_at = NOW()
		WHERE id = $1
		RETURNING `+messageColumns, id, text, content, mentions)
	return scanMessage(row)
}

// AttachFile fills in the uploaded file reference on a File or Image message
// once the upload completes.
func (r *Repository) AttachFile(ctx context.Context, id int64, file string) (*Message, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE messages SET file = $2, modified_at = NOW()
		WHERE id = $1
		RETURNING `+messageColumns, id, file)
	return scanMessage(row)
}

// Delete removes the message row. Reactions and saved bookmarks cascade at
// the schema level; poll cleanup is the caller's job since the poll row is
// referenced by, not owned by, the messages table.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return errors.Internal("failed to delete message", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("message not found")
	}
	return nil
}

// List returns the channel's messages in ascending creation order, the order
// thread views render in.
func (r *Repository) List(ctx context.Context, channelID uuid.UUID) ([]*Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE channel_id = $1 ORDER BY created_at ASC`,
		channelID)
	if err != nil {
		return nil, errors.Internal("failed to list messages", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListBefore pages backwards through a channel's history for bot context
// queries, newest first.
func (r *Repository) ListBefore(ctx context.Context, channelID uuid.UUID, beforeID int64, limit int) ([]*Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE channel_id = $1 AND id < $2
		ORDER BY id DESC
		LIMIT $3
	`, channelID, beforeID, limit)
	if err != nil {
		return nil, errors.Internal("failed to list messages", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// GetLastByBot returns the newest message authored by the bot user,
// optionally limited to one channel.
func (r *Repository) GetLastByBot(ctx context.Context, botUserID uuid.UUID, channelID *uuid.UUID) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE bot_id = $1`
	args := []interface{}{botUserID}
	if channelID != nil {
		query += ` AND channel_id = $2`
		args = append(args, *channelID)
	}
	query += ` ORDER BY id DESC LIMIT 1`
	return scanMessage(r.pool.QueryRow(ctx, query, args...))
}

func (r *Repository) GetLastMessage(ctx context.Context, channelID uuid.UUID) (*Message, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE channel_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, channelID)
	return scanMessage(row)
}

func collectMessages(rows pgx.Rows) ([]*Message, error) {
	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListRecentFiles returns the latest file and image messages of a channel,
// newest first.
func (r *Repository) ListRecentFiles(ctx context.Context, channelID uuid.UUID, limit int) ([]*FileEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, file, owner_id, message_type, created_at
		FROM messages
		WHERE channel_id = $1 AND message_type IN ('Image', 'File')
		ORDER BY created_at DESC
		LIMIT $2
	`, channelID, limit)
	if err != nil {
		return nil, errors.Internal("failed to list recent files", err)
	}
	defer rows.Close()

	var files []*FileEntry
	for rows.Next() {
		f := &FileEntry{}
		if err := rows.Scan(&f.MessageID, &f.File, &f.OwnerID, &f.Type, &f.CreatedAt); err != nil {
			return nil, errors.Internal("failed to scan file entry", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ToggleSave bookmarks the message for the user, or removes the bookmark if
// one exists. Returns whether the message ended up saved.
func (r *Repository) ToggleSave(ctx context.Context, messageID int64, userID uuid.UUID) (bool, error) {
	var saved bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM saved_messages WHERE message_id = $1 AND user_id = $2`,
			messageID, userID)
		if err != nil {
			return errors.Internal("failed to unsave message", err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO saved_messages (message_id, user_id) VALUES ($1, $2)`,
			messageID, userID)
		if err != nil {
			return errors.Internal("failed to save message", err)
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return saved, nil
}

// ListSaved returns the user's bookmarked messages, restricted to channels
// they can still see, oldest first.
func (r *Repository) ListSaved(ctx context.Context, userID uuid.UUID) ([]*Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT m.id, m.channel_id, m.owner_id, m.bot_id, m.message_type, m.text,
			m.content, m.file, m.is_reply, m.linked_message_id, m.replied_message_details,
			m.reactions, m.mentions, m.poll_id, m.is_edited, m.is_bot_message,
			m.hide_link_preview, m.created_at, m.modified_at
		FROM messages m
		JOIN saved_messages s ON s.message_id = m.id AND s.user_id = $1
		JOIN channels c ON c.id = m.channel_id
		LEFT JOIN channel_members cm ON cm.channel_id = c.id AND cm.user_id = $1
		WHERE c.channel_type IN ('Open', 'Public') OR cm.user_id IS NOT NULL
		ORDER BY m.created_at ASC
	`, userID)
	if err != nil {
		return nil, errors.Internal("failed to list saved messages", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

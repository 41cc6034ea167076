package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"chatapp/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageColumns = `id, chat_id, sender_id, content, message_type, is_edited, is_deleted, created_at, updated_at`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.MessageType == "" {
		m.MessageType = domain.MessageTypeText
	}
	m.IsEdited, m.IsDeleted = false, false
	m.CreatedAt = now()
	m.UpdatedAt = m.CreatedAt
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, FALSE, FALSE, $6, $7)
	`, m.ID, m.ChatID, m.SenderID, m.Content, m.MessageType, m.CreatedAt, m.UpdatedAt)
	return errors.Wrap(err, "insert message")
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	return scanMessage(r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

// ListForChat pages through non-deleted messages newest first; callers reverse for display.
func (r *MessageRepo) ListForChat(ctx context.Context, chatID string, limit, offset int) ([]*domain.Message, error) {
	if !validID(chatID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE chat_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, chatID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, errors.Wrap(rows.Err(), "list messages")
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id, content string) (*domain.Message, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	return scanMessage(r.db.QueryRowContext(ctx, `
		UPDATE messages SET content = $1, is_edited = TRUE, updated_at = $2
		WHERE id = $3
		RETURNING `+messageColumns,
		content, now(), id))
}

// SoftDelete flags the message deleted; the row and its content are kept.
func (r *MessageRepo) SoftDelete(ctx context.Context, id string) (*domain.Message, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	return scanMessage(r.db.QueryRowContext(ctx, `
		UPDATE messages SET is_deleted = TRUE, updated_at = $1
		WHERE id = $2
		RETURNING `+messageColumns,
		now(), id))
}

// UnreadCount counts live messages from others that the user has no receipt for.
func (r *MessageRepo) UnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	if !validID(chatID) || !validID(userID) {
		return 0, nil
	}
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages m
		LEFT JOIN message_reads mr ON mr.message_id = m.id AND mr.user_id = $2
		WHERE m.chat_id = $1
		  AND m.sender_id <> $2
		  AND m.is_deleted = FALSE
		  AND mr.message_id IS NULL
	`, chatID, userID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count unread")
	}
	return n, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func scanMessage(row scanner) (*domain.Message, error) {
	m := &domain.Message{}
	err := row.Scan(
		&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.MessageType,
		&m.IsEdited, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan message")
	}
	return m, nil
}

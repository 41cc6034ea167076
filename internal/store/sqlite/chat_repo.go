package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"chatapp/internal/domain"
)

type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

var _ domain.ChatRepository = (*ChatRepo)(nil)

const chatColumns = `c.id, c.name, c.type, c.created_by, c.created_at, c.updated_at`

func (r *ChatRepo) Create(ctx context.Context, c *domain.Chat, participantIDs []string) error {
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	ts := toMillis(c.CreatedAt)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chats (id, name, type, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, string(c.Type), c.CreatedBy, ts, ts); err != nil {
		return errors.Wrap(err, "insert chat")
	}

	for _, uid := range participantIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_participants (chat_id, user_id, joined_at)
			SELECT ?, id, ? FROM users WHERE id = ?
			ON CONFLICT DO NOTHING
		`, c.ID, ts, uid); err != nil {
			return errors.Wrapf(err, "insert participant %s", uid)
		}
	}

	return errors.Wrap(tx.Commit(), "commit chat")
}

func (r *ChatRepo) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	return scanChat(r.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats c WHERE c.id = ?`, id))
}

// ListForUser returns the user's chats, most recently active first.
func (r *ChatRepo) ListForUser(ctx context.Context, userID string) ([]*domain.ChatMembership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+chatColumns+`, cp.last_read_at
		FROM chats c
		JOIN chat_participants cp ON cp.chat_id = c.id
		WHERE cp.user_id = ?
		ORDER BY c.updated_at DESC, c.rowid DESC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list chats")
	}
	defer rows.Close()

	var res []*domain.ChatMembership
	for rows.Next() {
		m := &domain.ChatMembership{}
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Type, &m.CreatedBy, millis{&m.CreatedAt}, millis{&m.UpdatedAt},
			nullMillis{&m.LastReadAt},
		); err != nil {
			return nil, errors.Wrap(err, "scan chat")
		}
		res = append(res, m)
	}
	return res, errors.Wrap(rows.Err(), "list chats")
}

func (r *ChatRepo) ListIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT chat_id FROM chat_participants WHERE user_id = ?`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list chat ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan chat id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "list chat ids")
}

func (r *ChatRepo) UpdateName(ctx context.Context, id, name string) (*domain.Chat, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET name = ?, updated_at = ? WHERE id = ?`,
		name, toMillis(now()), id)
	if err != nil {
		return nil, errors.Wrap(err, "update chat")
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Touch bumps updated_at so the chat sorts first in chat lists.
func (r *ChatRepo) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE chats SET updated_at = ? WHERE id = ?`, toMillis(now()), id)
	return errors.Wrap(err, "touch chat")
}

// Delete removes the chat; participants, messages and receipts cascade.
func (r *ChatRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete chat")
	}
	return requireAffected(res)
}

func scanChat(row scanner) (*domain.Chat, error) {
	c := &domain.Chat{}
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.CreatedBy, millis{&c.CreatedAt}, millis{&c.UpdatedAt})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan chat")
	}
	return c, nil
}

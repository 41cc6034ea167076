package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"chatapp/internal/domain"
)

type ParticipantRepo struct {
	db *sql.DB
}

func NewParticipantRepo(db *sql.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

var _ domain.ParticipantRepository = (*ParticipantRepo)(nil)

// Add is a no-op when the user already participates.
func (r *ParticipantRepo) Add(ctx context.Context, chatID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_participants (chat_id, user_id, joined_at)
		VALUES (?, ?, ?)
		ON CONFLICT (chat_id, user_id) DO NOTHING
	`, chatID, userID, toMillis(now()))
	return errors.Wrap(err, "insert participant")
}

func (r *ParticipantRepo) Remove(ctx context.Context, chatID, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chat_participants WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return errors.Wrap(err, "delete participant")
}

func (r *ParticipantRepo) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id = ? AND user_id = ?)
	`, chatID, userID).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check participant")
	}
	return exists, nil
}

func (r *ParticipantRepo) List(ctx context.Context, chatID string) ([]*domain.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT cp.chat_id, u.id, u.username, u.email, u.avatar_url, u.status, cp.joined_at, cp.last_read_at
		FROM chat_participants cp
		JOIN users u ON u.id = cp.user_id
		WHERE cp.chat_id = ?
		ORDER BY cp.joined_at ASC, u.username ASC
	`, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "list participants")
	}
	defer rows.Close()

	var res []*domain.Participant
	for rows.Next() {
		p := &domain.Participant{}
		if err := rows.Scan(
			&p.ChatID, &p.UserID, &p.Username, &p.Email, &p.AvatarURL, &p.Status,
			millis{&p.JoinedAt}, nullMillis{&p.LastReadAt},
		); err != nil {
			return nil, errors.Wrap(err, "scan participant")
		}
		res = append(res, p)
	}
	return res, errors.Wrap(rows.Err(), "list participants")
}

func (r *ParticipantRepo) MarkRead(ctx context.Context, chatID, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE chat_participants SET last_read_at = ? WHERE chat_id = ? AND user_id = ?
	`, toMillis(at), chatID, userID)
	return errors.Wrap(err, "mark read")
}

package postgres

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
	if !validID(chatID) || !validID(userID) {
		return domain.ErrNotFound
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_participants (chat_id, user_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, chatID, userID, now())
	return errors.Wrap(err, "insert participant")
}

func (r *ParticipantRepo) Remove(ctx context.Context, chatID, userID string) error {
	if !validID(chatID) || !validID(userID) {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM chat_participants WHERE chat_id = $1 AND user_id = $2
	`, chatID, userID)
	return errors.Wrap(err, "delete participant")
}

func (r *ParticipantRepo) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	if !validID(chatID) || !validID(userID) {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM chat_participants
			WHERE chat_id = $1 AND user_id = $2
		)
	`, chatID, userID).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check participant")
	}
	return exists, nil
}

func (r *ParticipantRepo) List(ctx context.Context, chatID string) ([]*domain.Participant, error) {
	if !validID(chatID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT cp.chat_id, u.id, u.username, u.email, u.avatar_url, u.status, cp.joined_at, cp.last_read_at
		FROM chat_participants cp
		JOIN users u ON u.id = cp.user_id
		WHERE cp.chat_id = $1
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
			&p.ChatID, &p.UserID, &p.Username, &p.Email, &p.AvatarURL, &p.Status, &p.JoinedAt, &p.LastReadAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan participant")
		}
		res = append(res, p)
	}
	return res, errors.Wrap(rows.Err(), "list participants")
}

func (r *ParticipantRepo) MarkRead(ctx context.Context, chatID, userID string, at time.Time) error {
	if !validID(chatID) || !validID(userID) {
		return domain.ErrNotFound
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE chat_participants SET last_read_at = $1 WHERE chat_id = $2 AND user_id = $3
	`, at.UTC(), chatID, userID)
	return errors.Wrap(err, "mark read")
}

package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"chatapp/internal/domain"
)

type ReadReceiptRepo struct {
	db *sql.DB
}

func NewReadReceiptRepo(db *sql.DB) *ReadReceiptRepo {
	return &ReadReceiptRepo{db: db}
}

var _ domain.ReadReceiptRepository = (*ReadReceiptRepo)(nil)

func (r *ReadReceiptRepo) Insert(ctx context.Context, messageID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO message_reads (message_id, user_id, read_at)
		VALUES (?, ?, ?)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, messageID, userID, toMillis(now()))
	if err != nil {
		return false, errors.Wrap(err, "insert read receipt")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func (r *ReadReceiptRepo) ListForMessage(ctx context.Context, messageID string) ([]*domain.ReadReceipt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, user_id, read_at FROM message_reads
		WHERE message_id = ?
		ORDER BY read_at ASC
	`, messageID)
	if err != nil {
		return nil, errors.Wrap(err, "list read receipts")
	}
	defer rows.Close()

	var res []*domain.ReadReceipt
	for rows.Next() {
		rr := &domain.ReadReceipt{}
		if err := rows.Scan(&rr.MessageID, &rr.UserID, millis{&rr.ReadAt}); err != nil {
			return nil, errors.Wrap(err, "scan read receipt")
		}
		res = append(res, rr)
	}
	return res, errors.Wrap(rows.Err(), "list read receipts")
}

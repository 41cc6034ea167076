package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"chatapp/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

const userColumns = `id, username, email, password_hash, avatar_url, status, created_at`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	if u.Status == "" {
		u.Status = domain.StatusOffline
	}
	u.CreatedAt = now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, avatar_url, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.AvatarURL, string(u.Status), toMillis(u.CreatedAt))
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return errors.Wrap(err, "insert user")
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *UserRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE email = ? OR username = ?)
	`, email, username).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check user exists")
	}
	return exists, nil
}

// Search matches username or email case-insensitively (LIKE folds ASCII case in SQLite).
func (r *UserRepo) Search(ctx context.Context, term, excludeID string, limit int) ([]*domain.User, error) {
	pattern := "%" + term + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE (username LIKE ? OR email LIKE ?) AND id <> ?
		ORDER BY username ASC
		LIMIT ?
	`, pattern, pattern, excludeID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "search users")
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, errors.Wrap(rows.Err(), "search users")
}

func (r *UserRepo) SetStatus(ctx context.Context, id string, status domain.Status) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return errors.Wrap(err, "set user status")
	}
	return requireAffected(res)
}

func (r *UserRepo) ResetStatuses(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE status <> ?`,
		string(domain.StatusOffline), string(domain.StatusOffline))
	return errors.Wrap(err, "reset user statuses")
}

func (r *UserRepo) scanUser(row scanner) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.AvatarURL, &u.Status, millis{&u.CreatedAt})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan user")
	}
	return u, nil
}

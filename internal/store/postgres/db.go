package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"chatapp/internal/domain"
)

// Options tunes the connection pool.
type Options struct {
	MaxOpen int
	MaxIdle int
}

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(ctx context.Context, dsn string, opts Options) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if opts.MaxOpen > 0 {
		db.SetMaxOpenConns(opts.MaxOpen)
	}
	if opts.MaxIdle > 0 {
		db.SetMaxIdleConns(opts.MaxIdle)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return db, nil
}

// NewStore wires every repository over db.
func NewStore(db *sql.DB) *domain.Store {
	return &domain.Store{
		Users:        NewUserRepo(db),
		Chats:        NewChatRepo(db),
		Participants: NewParticipantRepo(db),
		Messages:     NewMessageRepo(db),
		Receipts:     NewReadReceiptRepo(db),
	}
}

// Migrate runs idempotent DDL migrations for the chat schema on PostgreSQL.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            UUID         PRIMARY KEY,
			username      VARCHAR(50)  UNIQUE NOT NULL,
			email         VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			avatar_url    TEXT,
			status        VARCHAR(20)  NOT NULL DEFAULT 'offline',
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS chats (
			id         UUID         PRIMARY KEY,
			name       VARCHAR(100),
			type       VARCHAR(20)  NOT NULL CHECK (type IN ('direct', 'group')),
			created_by UUID         NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS chat_participants (
			chat_id      UUID        NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			user_id      UUID        NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			joined_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_read_at TIMESTAMPTZ,
			PRIMARY KEY (chat_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id           UUID        PRIMARY KEY,
			chat_id      UUID        NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			sender_id    UUID        NOT NULL REFERENCES users(id),
			content      TEXT        NOT NULL,
			message_type VARCHAR(20) NOT NULL DEFAULT 'text',
			is_edited    BOOLEAN     NOT NULL DEFAULT FALSE,
			is_deleted   BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS message_reads (
			message_id UUID        NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			user_id    UUID        NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			read_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (message_id, user_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_chat_participants_user ON chat_participants(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_updated_at ON chats(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages(chat_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id)`,
		`CREATE INDEX IF NOT EXISTS idx_message_reads_user ON message_reads(user_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migrate\nSQL: %s", stmt)
		}
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

// now returns the timestamp written by repositories; TIMESTAMPTZ keeps microseconds.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// validID reports whether id can be bound to a UUID column. Malformed ids can never
// match a row, so lookups short-circuit instead of surfacing a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func newID() string {
	return uuid.NewString()
}

type scanner interface {
	Scan(dest ...any) error
}

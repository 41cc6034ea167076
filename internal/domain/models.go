package domain

import "time"

// Status is a user's presence as persisted in the users table.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// ChatType distinguishes one-to-one chats from named groups.
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

// MessageType is the kind of a message payload. Only text is produced today.
type MessageType string

const MessageTypeText MessageType = "text"

// User represents an application user.
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	AvatarURL    *string   `db:"avatar_url" json:"avatar_url"`
	Status       Status    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Chat represents a conversation, direct or group.
type Chat struct {
	ID        string    `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name"`
	Type      ChatType  `db:"type" json:"type"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ChatMembership is a chat as seen by one of its participants.
type ChatMembership struct {
	Chat
	LastReadAt *time.Time `db:"last_read_at" json:"last_read_at"`
}

// Participant is the persisted (chat, user) membership joined with the user's public fields.
type Participant struct {
	ChatID     string     `db:"chat_id" json:"-"`
	UserID     string     `db:"user_id" json:"id"`
	Username   string     `db:"username" json:"username"`
	Email      string     `db:"email" json:"email"`
	AvatarURL  *string    `db:"avatar_url" json:"avatar_url"`
	Status     Status     `db:"status" json:"status"`
	JoinedAt   time.Time  `db:"joined_at" json:"joined_at"`
	LastReadAt *time.Time `db:"last_read_at" json:"last_read_at"`
}

// Message represents a single chat message. Rows are never physically removed.
type Message struct {
	ID          string      `db:"id" json:"id"`
	ChatID      string      `db:"chat_id" json:"chat_id"`
	SenderID    string      `db:"sender_id" json:"sender_id"`
	Content     string      `db:"content" json:"content"`
	MessageType MessageType `db:"message_type" json:"message_type"`
	IsEdited    bool        `db:"is_edited" json:"is_edited"`
	IsDeleted   bool        `db:"is_deleted" json:"is_deleted"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// ReadReceipt records that a user has read a message. Created once, never updated.
type ReadReceipt struct {
	MessageID string    `db:"message_id" json:"message_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

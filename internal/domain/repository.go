package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	Search(ctx context.Context, term, excludeID string, limit int) ([]*User, error)
	SetStatus(ctx context.Context, id string, status Status) error
	ResetStatuses(ctx context.Context) error
}

// ChatRepository defines persistence operations for chats.
type ChatRepository interface {
	// Create inserts the chat and its initial participants atomically. Participant ids
	// without a matching user are skipped.
	Create(ctx context.Context, c *Chat, participantIDs []string) error
	GetByID(ctx context.Context, id string) (*Chat, error)
	ListForUser(ctx context.Context, userID string) ([]*ChatMembership, error)
	ListIDsForUser(ctx context.Context, userID string) ([]string, error)
	UpdateName(ctx context.Context, id, name string) (*Chat, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// ParticipantRepository defines operations around chat participants.
type ParticipantRepository interface {
	Add(ctx context.Context, chatID, userID string) error
	Remove(ctx context.Context, chatID, userID string) error
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	List(ctx context.Context, chatID string) ([]*Participant, error)
	MarkRead(ctx context.Context, chatID, userID string, at time.Time) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	ListForChat(ctx context.Context, chatID string, limit, offset int) ([]*Message, error)
	UpdateContent(ctx context.Context, id, content string) (*Message, error)
	SoftDelete(ctx context.Context, id string) (*Message, error)
	UnreadCount(ctx context.Context, chatID, userID string) (int, error)
}

// ReadReceiptRepository persists read receipts with insert-if-absent semantics.
type ReadReceiptRepository interface {
	// Insert reports whether a new receipt row was created.
	Insert(ctx context.Context, messageID, userID string) (bool, error)
	ListForMessage(ctx context.Context, messageID string) ([]*ReadReceipt, error)
}

// Store groups the repositories of one backing database.
type Store struct {
	Users        UserRepository
	Chats        ChatRepository
	Participants ParticipantRepository
	Messages     MessageRepository
	Receipts     ReadReceiptRepository
}

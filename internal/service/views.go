package service

import (
	"time"

	"github.com/jinzhu/copier"

	"chatapp/internal/domain"
)

// PublicUser is a user without credentials.
type PublicUser struct {
	ID        string        `json:"id"`
	Username  string        `json:"username"`
	Email     string        `json:"email"`
	AvatarURL *string       `json:"avatar_url"`
	Status    domain.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Sender is the profile attached to delivered messages.
type Sender struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatar_url"`
}

// MessageView is a message together with its sender's profile.
type MessageView struct {
	domain.Message
	Sender Sender `json:"sender"`
}

// ChatView is a chat with its participants, as seen by one of them.
type ChatView struct {
	domain.Chat
	Participants []*domain.Participant `json:"participants"`
	LastReadAt   *time.Time            `json:"last_read_at,omitempty"`
	UnreadCount  int                   `json:"unread_count"`
}

func ToPublicUser(u *domain.User) *PublicUser {
	if u == nil {
		return nil
	}
	pu := &PublicUser{}
	_ = copier.Copy(pu, u)
	return pu
}

func ToSender(u *domain.User) Sender {
	var s Sender
	if u != nil {
		_ = copier.Copy(&s, u)
	}
	return s
}

func newMessageView(m *domain.Message, sender *domain.User) *MessageView {
	return &MessageView{Message: *m, Sender: ToSender(sender)}
}

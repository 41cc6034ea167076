package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chatapp/internal/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type MessageService struct {
	store *domain.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewMessageService(store *domain.Store, log *zap.Logger) *MessageService {
	return &MessageService{
		store: store,
		log:   log.Named("messages"),
		now:   time.Now,
	}
}

type SendInput struct {
	ChatID      string             `json:"chatId"`
	Content     string             `json:"content"`
	MessageType domain.MessageType `json:"messageType"`
}

// ReadResult describes a processed read receipt. Inserted is false when the user had
// already read the message.
type ReadResult struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	UserID    string `json:"userId"`
	Inserted  bool   `json:"-"`
}

// Send persists a message and hands the delivery payload to deliver before bumping the
// chat's activity time. Checks run in order: non-blank content, then participation.
func (s *MessageService) Send(ctx context.Context, senderID string, in SendInput, deliver func(*MessageView)) (*MessageView, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, invalid("message content is required")
	}
	if in.ChatID == "" {
		return nil, invalid("chatId is required")
	}
	if in.MessageType == "" {
		in.MessageType = domain.MessageTypeText
	}
	if err := ensureParticipant(ctx, s.store.Participants, in.ChatID, senderID); err != nil {
		return nil, err
	}

	// Resolve the sender first so a failed lookup leaves no undelivered row behind.
	sender, err := s.store.Users.GetByID(ctx, senderID)
	if err != nil {
		return nil, domain.WrapStore("get sender", err)
	}

	msg := &domain.Message{
		ChatID:      in.ChatID,
		SenderID:    senderID,
		Content:     in.Content,
		MessageType: in.MessageType,
	}
	if err := s.store.Messages.Create(ctx, msg); err != nil {
		return nil, domain.WrapStore("create message", err)
	}
	view := newMessageView(msg, sender)

	if deliver != nil {
		deliver(view)
	}

	if err := s.store.Chats.Touch(ctx, in.ChatID); err != nil {
		s.log.Warn("touch chat failed", zap.String("chat_id", in.ChatID), zap.Error(err))
	}
	return view, nil
}

// History returns a page of non-deleted messages, oldest first.
func (s *MessageService) History(ctx context.Context, userID, chatID string, limit, offset int) ([]*MessageView, error) {
	if err := ensureParticipant(ctx, s.store.Participants, chatID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	msgs, err := s.store.Messages.ListForChat(ctx, chatID, limit, offset)
	if err != nil {
		return nil, domain.WrapStore("list messages", err)
	}

	senders := make(map[string]*domain.User)
	res := make([]*MessageView, len(msgs))
	for i, m := range msgs {
		u, ok := senders[m.SenderID]
		if !ok {
			u, err = s.store.Users.GetByID(ctx, m.SenderID)
			if err != nil {
				return nil, domain.WrapStore("get sender", err)
			}
			senders[m.SenderID] = u
		}
		// newest-first from the store; flip for display
		res[len(msgs)-1-i] = newMessageView(m, u)
	}
	return res, nil
}

// Edit replaces the content of a message. Only its sender may edit it.
func (s *MessageService) Edit(ctx context.Context, userID, messageID, content string) (*MessageView, error) {
	if strings.TrimSpace(content) == "" {
		return nil, invalid("message content is required")
	}
	if _, err := s.ownMessage(ctx, userID, messageID, "edit"); err != nil {
		return nil, err
	}
	msg, err := s.store.Messages.UpdateContent(ctx, messageID, content)
	if err != nil {
		return nil, domain.WrapStore("update message", err)
	}
	sender, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.WrapStore("get sender", err)
	}
	return newMessageView(msg, sender), nil
}

// Delete soft-deletes a message. Only its sender may delete it.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	if _, err := s.ownMessage(ctx, userID, messageID, "delete"); err != nil {
		return nil, err
	}
	msg, err := s.store.Messages.SoftDelete(ctx, messageID)
	if err != nil {
		return nil, domain.WrapStore("delete message", err)
	}
	return msg, nil
}

// MarkRead records a read receipt and advances the reader's last-read time. chatID is
// optional; when given it must match the message's chat.
func (s *MessageService) MarkRead(ctx context.Context, userID, messageID, chatID string) (*ReadResult, error) {
	if messageID == "" {
		return nil, invalid("messageId is required")
	}
	msg, err := s.store.Messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, domain.WrapStore("get message", err)
	}
	if chatID != "" && chatID != msg.ChatID {
		return nil, invalid("message does not belong to this chat")
	}
	if err := ensureParticipant(ctx, s.store.Participants, msg.ChatID, userID); err != nil {
		return nil, err
	}

	inserted, err := s.store.Receipts.Insert(ctx, messageID, userID)
	if err != nil {
		return nil, domain.WrapStore("insert read receipt", err)
	}
	if err := s.store.Participants.MarkRead(ctx, msg.ChatID, userID, s.now()); err != nil {
		return nil, domain.WrapStore("update last read", err)
	}
	return &ReadResult{MessageID: messageID, ChatID: msg.ChatID, UserID: userID, Inserted: inserted}, nil
}

func (s *MessageService) ownMessage(ctx context.Context, userID, messageID, action string) (*domain.Message, error) {
	msg, err := s.store.Messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, domain.WrapStore("get message", err)
	}
	if msg.SenderID != userID {
		return nil, fmt.Errorf("%w: you can only %s your own messages", domain.ErrForbidden, action)
	}
	return msg, nil
}

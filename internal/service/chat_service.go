package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatapp/internal/domain"
)

type ChatService struct {
	store *domain.Store
}

func NewChatService(store *domain.Store) *ChatService {
	return &ChatService{store: store}
}

type CreateChatInput struct {
	Name           *string         `json:"name"`
	Type           domain.ChatType `json:"type" validate:"required,oneof=direct group"`
	ParticipantIDs []string        `json:"participantIds" validate:"required,min=1"`
}

type UpdateChatInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// Create makes a chat with the creator as participant. Unknown participant ids are skipped.
func (s *ChatService) Create(ctx context.Context, creatorID string, in CreateChatInput) (*ChatView, error) {
	if in.Type == "" {
		in.Type = domain.ChatTypeDirect
	}
	if err := Validate(in); err != nil {
		return nil, err
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
		if trimmed == "" {
			in.Name = nil
		}
	}
	if in.Type == domain.ChatTypeGroup && in.Name == nil {
		return nil, invalid("group chats must have a name")
	}

	ids := make([]string, 0, len(in.ParticipantIDs)+1)
	seen := map[string]struct{}{creatorID: {}}
	ids = append(ids, creatorID)
	for _, id := range in.ParticipantIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	chat := &domain.Chat{Name: in.Name, Type: in.Type, CreatedBy: creatorID}
	if err := s.store.Chats.Create(ctx, chat, ids); err != nil {
		return nil, domain.WrapStore("create chat", err)
	}
	return s.view(ctx, chat, creatorID, nil)
}

// List returns the user's chats, most recently active first, with unread counts.
func (s *ChatService) List(ctx context.Context, userID string) ([]*ChatView, error) {
	memberships, err := s.store.Chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, domain.WrapStore("list chats", err)
	}
	res := make([]*ChatView, 0, len(memberships))
	for _, m := range memberships {
		chat := m.Chat
		v, err := s.view(ctx, &chat, userID, m.LastReadAt)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}

func (s *ChatService) Get(ctx context.Context, chatID, userID string) (*ChatView, error) {
	if err := s.EnsureParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	chat, err := s.store.Chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, domain.WrapStore("get chat", err)
	}
	return s.view(ctx, chat, userID, nil)
}

// Update renames a chat. Only the creator may do so.
func (s *ChatService) Update(ctx context.Context, chatID, userID string, in UpdateChatInput) (*domain.Chat, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := Validate(in); err != nil {
		return nil, err
	}
	if _, err := s.creatorOnly(ctx, chatID, userID, "update"); err != nil {
		return nil, err
	}
	chat, err := s.store.Chats.UpdateName(ctx, chatID, in.Name)
	if err != nil {
		return nil, domain.WrapStore("update chat", err)
	}
	return chat, nil
}

// Delete removes a chat and everything in it. Only the creator may do so.
func (s *ChatService) Delete(ctx context.Context, chatID, userID string) error {
	if _, err := s.creatorOnly(ctx, chatID, userID, "delete"); err != nil {
		return err
	}
	return domain.WrapStore("delete chat", s.store.Chats.Delete(ctx, chatID))
}

// AddParticipant lets any participant add another existing user.
func (s *ChatService) AddParticipant(ctx context.Context, chatID, actorID, userID string) error {
	if userID == "" {
		return invalid("userId is required")
	}
	if _, err := s.store.Chats.GetByID(ctx, chatID); err != nil {
		return domain.WrapStore("get chat", err)
	}
	if err := s.EnsureParticipant(ctx, chatID, actorID); err != nil {
		return err
	}
	if _, err := s.store.Users.GetByID(ctx, userID); err != nil {
		return domain.WrapStore("get user", err)
	}
	return domain.WrapStore("add participant", s.store.Participants.Add(ctx, chatID, userID))
}

// RemoveParticipant lets the creator remove anyone, and anyone remove themselves.
func (s *ChatService) RemoveParticipant(ctx context.Context, chatID, actorID, userID string) error {
	chat, err := s.store.Chats.GetByID(ctx, chatID)
	if err != nil {
		return domain.WrapStore("get chat", err)
	}
	if chat.CreatedBy != actorID && userID != actorID {
		return fmt.Errorf("%w: only the chat creator can remove other participants", domain.ErrForbidden)
	}
	return domain.WrapStore("remove participant", s.store.Participants.Remove(ctx, chatID, userID))
}

// ChatIDsForUser lists every chat the user currently participates in.
func (s *ChatService) ChatIDsForUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.store.Chats.ListIDsForUser(ctx, userID)
	return ids, domain.WrapStore("list chat ids", err)
}

// EnsureParticipant returns ErrNotParticipant unless userID is a persisted participant of chatID.
func (s *ChatService) EnsureParticipant(ctx context.Context, chatID, userID string) error {
	return ensureParticipant(ctx, s.store.Participants, chatID, userID)
}

// ensureParticipant is the membership gate shared by chat and message operations.
func ensureParticipant(ctx context.Context, parts domain.ParticipantRepository, chatID, userID string) error {
	ok, err := parts.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return domain.WrapStore("check participant", err)
	}
	if !ok {
		return domain.ErrNotParticipant
	}
	return nil
}

func (s *ChatService) creatorOnly(ctx context.Context, chatID, userID, action string) (*domain.Chat, error) {
	chat, err := s.store.Chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, domain.WrapStore("get chat", err)
	}
	if chat.CreatedBy != userID {
		return nil, fmt.Errorf("%w: only the chat creator can %s the chat", domain.ErrForbidden, action)
	}
	return chat, nil
}

func (s *ChatService) view(ctx context.Context, chat *domain.Chat, userID string, lastRead *time.Time) (*ChatView, error) {
	parts, err := s.store.Participants.List(ctx, chat.ID)
	if err != nil {
		return nil, domain.WrapStore("list participants", err)
	}
	if parts == nil {
		parts = []*domain.Participant{}
	}
	unread, err := s.store.Messages.UnreadCount(ctx, chat.ID, userID)
	if err != nil {
		return nil, domain.WrapStore("count unread", err)
	}
	if lastRead == nil {
		for _, p := range parts {
			if p.UserID == userID {
				lastRead = p.LastReadAt
			}
		}
	}
	return &ChatView{Chat: *chat, Participants: parts, LastReadAt: lastRead, UnreadCount: unread}, nil
}

package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatapp/internal/domain"
	"chatapp/internal/service"
	"chatapp/internal/store/sqlite"
)

type fixture struct {
	store    *domain.Store
	chats    *service.ChatService
	messages *service.MessageService
	users    *service.UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := sqlite.NewStore(db)
	return &fixture{
		store:    store,
		chats:    service.NewChatService(store),
		messages: service.NewMessageService(store, zap.NewNop()),
		users:    service.NewUserService(store.Users),
	}
}

func (f *fixture) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, f.store.Users.Create(context.Background(), u))
	return u
}

func (f *fixture) direct(t *testing.T, creator *domain.User, others ...*domain.User) *service.ChatView {
	t.Helper()
	ids := make([]string, 0, len(others))
	for _, o := range others {
		ids = append(ids, o.ID)
	}
	c, err := f.chats.Create(context.Background(), creator.ID, service.CreateChatInput{
		Type:           domain.ChatTypeDirect,
		ParticipantIDs: ids,
	})
	require.NoError(t, err)
	return c
}

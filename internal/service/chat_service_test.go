package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatapp/internal/domain"
	"chatapp/internal/service"
)

func TestChatService_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	t.Run("GroupRequiresName", func(t *testing.T) {
		blank := "   "
		_, err := f.chats.Create(ctx, alice.ID, service.CreateChatInput{
			Name: &blank, Type: domain.ChatTypeGroup, ParticipantIDs: []string{bob.ID},
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("NeedsParticipants", func(t *testing.T) {
		_, err := f.chats.Create(ctx, alice.ID, service.CreateChatInput{Type: domain.ChatTypeDirect})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("CreatorAlwaysParticipant", func(t *testing.T) {
		name := "team"
		c, err := f.chats.Create(ctx, alice.ID, service.CreateChatInput{
			Name: &name, Type: domain.ChatTypeGroup, ParticipantIDs: []string{bob.ID, "nobody"},
		})
		require.NoError(t, err)
		assert.Equal(t, alice.ID, c.CreatedBy)
		require.Len(t, c.Participants, 2)

		ids := []string{c.Participants[0].UserID, c.Participants[1].UserID}
		assert.ElementsMatch(t, []string{alice.ID, bob.ID}, ids)
	})
}

func TestChatService_Access(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	c := f.direct(t, alice, bob)

	t.Run("GetRequiresParticipant", func(t *testing.T) {
		_, err := f.chats.Get(ctx, c.ID, carol.ID)
		assert.ErrorIs(t, err, domain.ErrNotParticipant)

		v, err := f.chats.Get(ctx, c.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, v.ID)
	})

	t.Run("UpdateCreatorOnly", func(t *testing.T) {
		_, err := f.chats.Update(ctx, c.ID, bob.ID, service.UpdateChatInput{Name: "x"})
		assert.ErrorIs(t, err, domain.ErrForbidden)

		updated, err := f.chats.Update(ctx, c.ID, alice.ID, service.UpdateChatInput{Name: "renamed"})
		require.NoError(t, err)
		assert.Equal(t, "renamed", *updated.Name)

		_, err = f.chats.Update(ctx, "missing", alice.ID, service.UpdateChatInput{Name: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("AddAndRemoveParticipants", func(t *testing.T) {
		assert.ErrorIs(t, f.chats.AddParticipant(ctx, c.ID, carol.ID, carol.ID), domain.ErrNotParticipant)
		assert.ErrorIs(t, f.chats.AddParticipant(ctx, c.ID, bob.ID, "ghost"), domain.ErrNotFound)

		require.NoError(t, f.chats.AddParticipant(ctx, c.ID, bob.ID, carol.ID))
		require.NoError(t, f.chats.EnsureParticipant(ctx, c.ID, carol.ID))

		assert.ErrorIs(t, f.chats.RemoveParticipant(ctx, c.ID, bob.ID, carol.ID), domain.ErrForbidden)
		require.NoError(t, f.chats.RemoveParticipant(ctx, c.ID, carol.ID, carol.ID))
		assert.ErrorIs(t, f.chats.EnsureParticipant(ctx, c.ID, carol.ID), domain.ErrNotParticipant)
	})

	t.Run("DeleteCreatorOnly", func(t *testing.T) {
		assert.ErrorIs(t, f.chats.Delete(ctx, c.ID, bob.ID), domain.ErrForbidden)
		require.NoError(t, f.chats.Delete(ctx, c.ID, alice.ID))
		assert.ErrorIs(t, f.chats.Delete(ctx, c.ID, alice.ID), domain.ErrNotFound)
	})
}

func TestChatService_ListWithUnread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	first := f.direct(t, alice, bob)
	second := f.direct(t, alice, bob)
	time.Sleep(2 * time.Millisecond)

	sent, err := f.messages.Send(ctx, alice.ID, service.SendInput{ChatID: first.ID, Content: "ping"}, nil)
	require.NoError(t, err)

	list, err := f.chats.List(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID, "chat with the newest message sorts first")
	assert.Equal(t, 1, list[0].UnreadCount)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Nil(t, list[0].LastReadAt)

	_, err = f.messages.MarkRead(ctx, bob.ID, sent.ID, "")
	require.NoError(t, err)

	list, err = f.chats.List(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, list[0].UnreadCount)
	assert.NotNil(t, list[0].LastReadAt)
}

func TestUserService_Search(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice")
	f.user(t, "alina")
	f.user(t, "bob")

	res, err := f.users.Search(ctx, alice.ID, "ali")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "alina", res[0].Username)

	_, err = f.users.Search(ctx, alice.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

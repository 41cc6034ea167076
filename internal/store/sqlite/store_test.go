package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatapp/internal/domain"
)

func newTestStore(t *testing.T) *domain.Store {
	t.Helper()
	db, err := OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func createUser(t *testing.T, s *domain.Store, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.com", PasswordHash: "hash"}
	require.NoError(t, s.Users.Create(context.Background(), u))
	return u
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	assert.NotEmpty(t, alice.ID)
	assert.Equal(t, domain.StatusOffline, alice.Status)

	t.Run("GetByID", func(t *testing.T) {
		got, err := s.Users.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, alice.CreatedAt, got.CreatedAt)
		assert.Nil(t, got.AvatarURL)

		_, err = s.Users.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("DuplicateIsConflict", func(t *testing.T) {
		err := s.Users.Create(ctx, &domain.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"})
		assert.ErrorIs(t, err, domain.ErrConflict)

		exists, err := s.Users.ExistsByEmailOrUsername(ctx, "bob@example.com", "nobody")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("SearchExcludesCaller", func(t *testing.T) {
		res, err := s.Users.Search(ctx, "EXAMPLE", alice.ID, 20)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, bob.ID, res[0].ID)
	})

	t.Run("Status", func(t *testing.T) {
		require.NoError(t, s.Users.SetStatus(ctx, bob.ID, domain.StatusOnline))
		got, err := s.Users.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusOnline, got.Status)

		require.NoError(t, s.Users.ResetStatuses(ctx))
		got, err = s.Users.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusOffline, got.Status)

		assert.ErrorIs(t, s.Users.SetStatus(ctx, "missing", domain.StatusOnline), domain.ErrNotFound)
	})
}

func TestChatRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	carol := createUser(t, s, "carol")

	name := "team"
	group := &domain.Chat{Name: &name, Type: domain.ChatTypeGroup, CreatedBy: alice.ID}
	require.NoError(t, s.Chats.Create(ctx, group, []string{alice.ID, bob.ID, "ghost", bob.ID}))

	parts, err := s.Participants.List(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	direct := &domain.Chat{Type: domain.ChatTypeDirect, CreatedBy: alice.ID}
	require.NoError(t, s.Chats.Create(ctx, direct, []string{alice.ID, carol.ID}))

	t.Run("ListOrderedByActivity", func(t *testing.T) {
		time.Sleep(2 * time.Millisecond)
		require.NoError(t, s.Chats.Touch(ctx, group.ID))

		list, err := s.Chats.ListForUser(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, group.ID, list[0].ID)
		assert.Equal(t, direct.ID, list[1].ID)
		assert.Nil(t, list[1].Name)

		ids, err := s.Chats.ListIDsForUser(ctx, carol.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{direct.ID}, ids)
	})

	t.Run("Participants", func(t *testing.T) {
		ok, err := s.Participants.IsParticipant(ctx, group.ID, carol.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Participants.Add(ctx, group.ID, carol.ID))
		require.NoError(t, s.Participants.Add(ctx, group.ID, carol.ID))
		ok, err = s.Participants.IsParticipant(ctx, group.ID, carol.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		at := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, s.Participants.MarkRead(ctx, group.ID, carol.ID, at))
		parts, err := s.Participants.List(ctx, group.ID)
		require.NoError(t, err)
		require.Len(t, parts, 3)
		for _, p := range parts {
			if p.UserID == carol.ID {
				require.NotNil(t, p.LastReadAt)
				assert.True(t, at.Equal(*p.LastReadAt))
			}
		}

		require.NoError(t, s.Participants.Remove(ctx, group.ID, carol.ID))
		ok, err = s.Participants.IsParticipant(ctx, group.ID, carol.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("UpdateName", func(t *testing.T) {
		updated, err := s.Chats.UpdateName(ctx, group.ID, "renamed")
		require.NoError(t, err)
		require.NotNil(t, updated.Name)
		assert.Equal(t, "renamed", *updated.Name)

		_, err = s.Chats.UpdateName(ctx, "missing", "x")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		m := &domain.Message{ChatID: direct.ID, SenderID: alice.ID, Content: "bye"}
		require.NoError(t, s.Messages.Create(ctx, m))
		_, err := s.Receipts.Insert(ctx, m.ID, carol.ID)
		require.NoError(t, err)

		require.NoError(t, s.Chats.Delete(ctx, direct.ID))
		_, err = s.Chats.GetByID(ctx, direct.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = s.Messages.GetByID(ctx, m.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		ok, err := s.Participants.IsParticipant(ctx, direct.ID, carol.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.ErrorIs(t, s.Chats.Delete(ctx, direct.ID), domain.ErrNotFound)
	})
}

func TestMessageRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	chat := &domain.Chat{Type: domain.ChatTypeDirect, CreatedBy: alice.ID}
	require.NoError(t, s.Chats.Create(ctx, chat, []string{alice.ID, bob.ID}))

	var msgs []*domain.Message
	for _, content := range []string{"one", "two", "three"} {
		m := &domain.Message{ChatID: chat.ID, SenderID: alice.ID, Content: content}
		require.NoError(t, s.Messages.Create(ctx, m))
		msgs = append(msgs, m)
	}
	assert.Equal(t, domain.MessageTypeText, msgs[0].MessageType)

	t.Run("ListNewestFirst", func(t *testing.T) {
		list, err := s.Messages.ListForChat(ctx, chat.ID, 2, 0)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "three", list[0].Content)
		assert.Equal(t, "two", list[1].Content)

		list, err = s.Messages.ListForChat(ctx, chat.ID, 2, 2)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "one", list[0].Content)
	})

	t.Run("Edit", func(t *testing.T) {
		m, err := s.Messages.UpdateContent(ctx, msgs[0].ID, "one!")
		require.NoError(t, err)
		assert.Equal(t, "one!", m.Content)
		assert.True(t, m.IsEdited)
		assert.False(t, m.IsDeleted)

		_, err = s.Messages.UpdateContent(ctx, "missing", "x")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("UnreadAndReceipts", func(t *testing.T) {
		n, err := s.Messages.UnreadCount(ctx, chat.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = s.Messages.UnreadCount(ctx, chat.ID, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		inserted, err := s.Receipts.Insert(ctx, msgs[2].ID, bob.ID)
		require.NoError(t, err)
		assert.True(t, inserted)
		inserted, err = s.Receipts.Insert(ctx, msgs[2].ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, inserted)

		receipts, err := s.Receipts.ListForMessage(ctx, msgs[2].ID)
		require.NoError(t, err)
		assert.Len(t, receipts, 1)

		n, err = s.Messages.UnreadCount(ctx, chat.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("SoftDelete", func(t *testing.T) {
		m, err := s.Messages.SoftDelete(ctx, msgs[1].ID)
		require.NoError(t, err)
		assert.True(t, m.IsDeleted)
		assert.Equal(t, "two", m.Content)

		list, err := s.Messages.ListForChat(ctx, chat.ID, 50, 0)
		require.NoError(t, err)
		require.Len(t, list, 2)
		for _, l := range list {
			assert.NotEqual(t, msgs[1].ID, l.ID)
		}

		stored, err := s.Messages.GetByID(ctx, msgs[1].ID)
		require.NoError(t, err)
		assert.True(t, stored.IsDeleted)
	})
}

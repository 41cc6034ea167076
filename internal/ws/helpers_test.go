package ws

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatapp/internal/domain"
	"chatapp/internal/security"
	"chatapp/internal/service"
	"chatapp/internal/store/sqlite"
)

type env struct {
	gw       *Gateway
	store    *domain.Store
	tokens   *security.TokenService
	chats    *service.ChatService
	messages *service.MessageService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := sqlite.OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := sqlite.NewStore(db)
	tokens := security.NewTokenService("test-secret", time.Hour, "chatapp")
	e := &env{
		store:    store,
		tokens:   tokens,
		chats:    service.NewChatService(store),
		messages: service.NewMessageService(store, zap.NewNop()),
	}
	e.gw = NewGateway(Deps{
		Auth:     service.NewAuthService(store.Users, tokens, security.NewPasswordHasher(4)),
		Chats:    e.chats,
		Messages: e.messages,
		Users:    service.NewUserService(store.Users),
	}, Options{AllowedOrigins: []string{"http://localhost:3000"}, SendBuffer: 64}, zap.NewNop())
	return e
}

func (e *env) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.com", PasswordHash: "x", Status: domain.StatusOffline}
	require.NoError(t, e.store.Users.Create(context.Background(), u))
	return u
}

func (e *env) chat(t *testing.T, creator *domain.User, others ...*domain.User) string {
	t.Helper()
	ids := make([]string, 0, len(others))
	for _, o := range others {
		ids = append(ids, o.ID)
	}
	c, err := e.chats.Create(context.Background(), creator.ID, service.CreateChatInput{
		Type:           domain.ChatTypeDirect,
		ParticipantIDs: ids,
	})
	require.NoError(t, err)
	return c.ID
}

// connect attaches a new client for u the way the transport does after authentication.
func (e *env) connect(t *testing.T, u *domain.User) *Client {
	t.Helper()
	c := newClient(u.ID, u.Username, 64)
	e.gw.attach(c)
	t.Cleanup(func() { e.gw.detach(c) })
	return c
}

func (e *env) status(t *testing.T, u *domain.User) domain.Status {
	t.Helper()
	got, err := e.store.Users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	return got.Status
}

func send(gw *Gateway, c *Client, event string, data any) {
	raw, _ := json.Marshal(data)
	gw.Dispatch(c, Frame{Event: event, Data: raw})
}

// drain returns every frame already queued for c. All fan-out is synchronous, so after
// a Dispatch returns its effects are fully queued.
func drain(t *testing.T, c *Client) []Frame {
	t.Helper()
	var frames []Frame
	for {
		select {
		case raw, ok := <-c.Outbound():
			if !ok {
				return frames
			}
			f, err := decodeFrame(raw)
			require.NoError(t, err)
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func eventsOf(frames []Frame) []string {
	res := make([]string, 0, len(frames))
	for _, f := range frames {
		res = append(res, f.Event)
	}
	return res
}

func only(t *testing.T, c *Client, event string) Frame {
	t.Helper()
	frames := drain(t, c)
	require.Len(t, frames, 1, "frames: %v", eventsOf(frames))
	require.Equal(t, event, frames[0].Event)
	return frames[0]
}

func decodeData[T any](t *testing.T, f Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

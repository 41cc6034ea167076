package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:3000"

func serve(t *testing.T, e *env) string {
	t.Helper()
	e.gw.opts.AuthTimeout = 2 * time.Second
	srv := httptest.NewServer(e.gw.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.gw.Close(ctx)
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	if header == nil {
		header = http.Header{}
	}
	if header.Get("Origin") == "" {
		header.Set("Origin", testOrigin)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := decodeFrame(raw)
	require.NoError(t, err)
	return f
}

func writeFrame(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Frame{Event: event, Data: raw}))
}

func TestHandler_HeaderAuth(t *testing.T) {
	e := newEnv(t)
	alice, bob := e.user(t, "alice"), e.user(t, "bob")
	chatID := e.chat(t, alice, bob)
	url := serve(t, e)

	token, err := e.tokens.CreateForUser(alice.ID)
	require.NoError(t, err)
	conn, _, err := dial(t, url, http.Header{"Authorization": {"Bearer " + token}})
	require.NoError(t, err)

	f := readFrame(t, conn)
	assert.Equal(t, EventUserStatus, f.Event)
	assert.Equal(t, alice.ID, decodeData[statusEvent](t, f).UserID)

	writeFrame(t, conn, EventMessageSend, map[string]string{"chatId": chatID, "content": "over the wire"})
	f = readFrame(t, conn)
	require.Equal(t, EventMessageNew, f.Event)
	assert.Contains(t, string(f.Data), "over the wire")
}

func TestHandler_Rejections(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "alice")
	url := serve(t, e)
	token, err := e.tokens.CreateForUser(alice.ID)
	require.NoError(t, err)

	t.Run("BadToken", func(t *testing.T) {
		_, resp, err := dial(t, url+"?token=garbage", nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		ghost, err := e.tokens.CreateForUser("00000000-0000-0000-0000-000000000000")
		require.NoError(t, err)
		_, resp, err := dial(t, url+"?token="+ghost, nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("ForeignOrigin", func(t *testing.T) {
		_, resp, err := dial(t, url+"?token="+token, http.Header{"Origin": {"http://evil.example"}})
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestHandler_RefusesAfterClose(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "alice")
	url := serve(t, e)
	token, err := e.tokens.CreateForUser(alice.ID)
	require.NoError(t, err)

	conn, _, err := dial(t, url+"?token="+token, nil)
	require.NoError(t, err)
	assert.Equal(t, EventUserStatus, readFrame(t, conn).Event)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.gw.Close(ctx))
	assert.Zero(t, e.gw.Registry().Len())

	_, resp, err := dial(t, url+"?token="+token, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandler_FirstFrameAuth(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "alice")
	url := serve(t, e)

	t.Run("Accepted", func(t *testing.T) {
		token, err := e.tokens.CreateForUser(alice.ID)
		require.NoError(t, err)
		conn, _, err := dial(t, url, nil)
		require.NoError(t, err)

		writeFrame(t, conn, EventAuth, authPayload{Token: token})
		f := readFrame(t, conn)
		require.Equal(t, EventAuthOK, f.Event)
		assert.Equal(t, alice.ID, decodeData[authOKEvent](t, f).UserID)
		assert.Equal(t, EventUserStatus, readFrame(t, conn).Event)
	})

	t.Run("OtherEventFirst", func(t *testing.T) {
		conn, _, err := dial(t, url, nil)
		require.NoError(t, err)

		writeFrame(t, conn, EventChatJoin, chatRef{ChatID: "anything"})
		f := readFrame(t, conn)
		require.Equal(t, EventError, f.Event)
		ev := decodeData[errorEvent](t, f)
		assert.Equal(t, "AUTH_ERROR", ev.Code)

		_, _, err = conn.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		conn, _, err := dial(t, url, nil)
		require.NoError(t, err)

		writeFrame(t, conn, EventAuth, authPayload{Token: "garbage"})
		f := readFrame(t, conn)
		require.Equal(t, EventError, f.Event)
		assert.Equal(t, "AUTH_ERROR", decodeData[errorEvent](t, f).Code)
	})
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		query  string
		want   string
	}{
		{"AuthorizationHeader", http.Header{"Authorization": {"Bearer abc"}}, "", "abc"},
		{"LowercaseScheme", http.Header{"Authorization": {"bearer abc"}}, "", "abc"},
		{"Subprotocol", http.Header{"Sec-Websocket-Protocol": {"bearer, abc"}}, "", "abc"},
		{"Query", nil, "token=abc", "abc"},
		{"HeaderWins", http.Header{"Authorization": {"Bearer one"}}, "token=two", "one"},
		{"None", nil, "", ""},
		{"NonBearerHeader", http.Header{"Authorization": {"Basic xyz"}}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws?"+tt.query, nil)
			for k, v := range tt.header {
				r.Header[k] = v
			}
			assert.Equal(t, tt.want, extractToken(r))
		})
	}
}

func TestMakeCheckOrigin(t *testing.T) {
	check := makeCheckOrigin([]string{" HTTP://Localhost:3000 "})
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, check(req("http://localhost:3000")))
	assert.True(t, check(req("http://localhost:3000/app")))
	assert.False(t, check(req("http://localhost:4000")))
	assert.False(t, check(req("")))

	assert.True(t, makeCheckOrigin([]string{"*"})(req("http://anything")))
	assert.False(t, makeCheckOrigin(nil)(req("http://localhost:3000")))
}

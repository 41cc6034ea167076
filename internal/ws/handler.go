package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatapp/internal/domain"
)

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if _, wildcard := allowed["*"]; wildcard {
		return func(*http.Request) bool { return true }
	}
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// extractToken looks for a bearer credential in the Authorization header, the
// "bearer, <token>" subprotocol pair, then the token query parameter.
func extractToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token
		}
	}

	if protocolHeader := r.Header.Get("Sec-WebSocket-Protocol"); protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1]
		}
	}

	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Handler returns the HTTP handler for the websocket endpoint.
//
// A credential supplied with the handshake is verified before the upgrade and a bad
// one is answered with 401. Without one the socket is upgraded unauthenticated and the
// first frame must be {"event":"auth","data":{"token":...}} within the auth timeout;
// anything else gets an error event and the socket is closed. Nothing else is read
// from a socket until it is authenticated.
func (g *Gateway) Handler() http.HandlerFunc {
	checkOrigin := makeCheckOrigin(g.opts.AllowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin:  checkOrigin,
		Subprotocols: []string{"bearer"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		if !g.trackConn() {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		defer g.conns.Done()

		var user *domain.User
		if token := extractToken(r); token != "" {
			u, err := g.auth.Authenticate(r.Context(), token)
			if err != nil {
				status := http.StatusUnauthorized
				if !errors.Is(err, domain.ErrUnauthorized) {
					status = http.StatusInternalServerError
				}
				g.log.Info("handshake rejected", zap.String("remote", r.RemoteAddr), zap.Error(err))
				http.Error(w, "unauthorized", status)
				return
			}
			user = u
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			g.log.Debug("upgrade failed", zap.Error(err))
			return
		}

		if g.opts.MaxMessageSize > 0 {
			conn.SetReadLimit(g.opts.MaxMessageSize)
		}

		frameAuth := user == nil
		if frameAuth {
			if user, err = g.authenticateFirstFrame(conn); err != nil {
				g.rejectSocket(conn, err)
				return
			}
		}

		c := newClient(user.ID, user.Username, g.opts.SendBuffer)
		if frameAuth {
			g.emit(c, EventAuthOK, authOKEvent{UserID: user.ID})
		}

		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			g.writePump(conn, c)
		}()

		g.attach(c)
		g.readPump(conn, c)
		g.detach(c)
		<-writeDone
	}
}

// authenticateFirstFrame reads exactly one frame and requires it to be a valid auth event.
func (g *Gateway) authenticateFirstFrame(conn *websocket.Conn) (*domain.User, error) {
	timeout := g.opts.AuthTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: authentication timed out", domain.ErrUnauthorized)
	}
	f, err := decodeFrame(raw)
	if err != nil || f.Event != EventAuth {
		return nil, fmt.Errorf("%w: authenticate first", domain.ErrUnauthorized)
	}
	var p authPayload
	if err := decodePayload(f.Data, &p); err != nil || p.Token == "" {
		return nil, fmt.Errorf("%w: no token provided", domain.ErrUnauthorized)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.auth.Authenticate(ctx, p.Token)
}

// rejectSocket reports a failed authentication and closes the socket.
func (g *Gateway) rejectSocket(conn *websocket.Conn, err error) {
	g.log.Info("socket authentication rejected", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
	deadline := time.Now().Add(g.writeWait())
	if frame, encErr := encode(EventError, toErrorEvent(EventAuth, err)); encErr == nil {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"), deadline)
	_ = conn.Close()
}

// readPump handles inbound frames one at a time until the socket fails or the client
// is closed. Pongs extend the read deadline.
func (g *Gateway) readPump(conn *websocket.Conn, c *Client) {
	pongWait := g.opts.PongWait
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Debug("read failed", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		if c.Closed() {
			return
		}
		f, err := decodeFrame(raw)
		if err != nil {
			g.emitError(c, "", err)
			continue
		}
		g.Dispatch(c, f)
	}
}

// writePump drains the client's queue onto the socket and pings on every period.
// It owns closing the socket.
func (g *Gateway) writePump(conn *websocket.Conn, c *Client) {
	pingPeriod := g.opts.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(g.writeWait()))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(g.writeWait()))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (g *Gateway) writeWait() time.Duration {
	if g.opts.WriteWait > 0 {
		return g.opts.WriteWait
	}
	return 10 * time.Second
}

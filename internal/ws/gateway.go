package ws

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"chatapp/internal/domain"
	"chatapp/internal/service"
)

// Authenticator resolves a bearer token to an existing user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// ChatAccess answers persisted participation questions.
type ChatAccess interface {
	EnsureParticipant(ctx context.Context, chatID, userID string) error
	ChatIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// Messages is the message use-case layer the gateway drives.
type Messages interface {
	Send(ctx context.Context, senderID string, in service.SendInput, deliver func(*service.MessageView)) (*service.MessageView, error)
	Edit(ctx context.Context, userID, messageID, content string) (*service.MessageView, error)
	Delete(ctx context.Context, userID, messageID string) (*domain.Message, error)
	MarkRead(ctx context.Context, userID, messageID, chatID string) (*service.ReadResult, error)
}

// StatusWriter persists user presence.
type StatusWriter interface {
	SetStatus(ctx context.Context, id string, status domain.Status) error
}

type Deps struct {
	Auth     Authenticator
	Chats    ChatAccess
	Messages Messages
	Users    StatusWriter
}

type Options struct {
	AllowedOrigins []string
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	AuthTimeout    time.Duration
}

type handlerFunc func(ctx context.Context, c *Client, data json.RawMessage) error

// Gateway owns the live connection state: the registry, the room index and the
// per-user presence locks. Events from one connection are handled in arrival order;
// different connections are handled concurrently.
type Gateway struct {
	registry *Registry
	rooms    *Rooms
	locks    *userLocks

	auth     Authenticator
	chats    ChatAccess
	messages Messages
	users    StatusWriter

	opts     Options
	log      *zap.Logger
	handlers map[string]handlerFunc

	// conns tracks running transport loops for graceful shutdown. closing is set by
	// Close under connMu so no Add can race the Wait.
	connMu  sync.Mutex
	closing bool
	conns   sync.WaitGroup
}

func NewGateway(deps Deps, opts Options, log *zap.Logger) *Gateway {
	g := &Gateway{
		registry: NewRegistry(),
		rooms:    NewRooms(),
		locks:    newUserLocks(),
		auth:     deps.Auth,
		chats:    deps.Chats,
		messages: deps.Messages,
		users:    deps.Users,
		opts:     opts,
		log:      log.Named("ws"),
	}
	g.handlers = map[string]handlerFunc{
		EventChatJoin:      g.handleJoin,
		EventChatLeave:     g.handleLeave,
		EventMessageSend:   g.handleSend,
		EventMessageUpdate: g.handleUpdate,
		EventMessageDelete: g.handleDelete,
		EventMessageRead:   g.handleRead,
		EventTypingStart:   g.typingHandler(EventTypingStart),
		EventTypingStop:    g.typingHandler(EventTypingStop),
	}
	return g
}

func (g *Gateway) Registry() *Registry { return g.registry }
func (g *Gateway) Rooms() *Rooms       { return g.rooms }

// attach registers an authenticated client, subscribes it to every chat its user
// participates in and announces the user online if this is their first connection.
func (g *Gateway) attach(c *Client) {
	unlock := g.locks.lock(c.userID)
	defer unlock()

	first := g.registry.Register(c)
	if err := g.autoJoinAll(c); err != nil {
		g.log.Warn("auto-join failed", zap.String("user_id", c.userID), zap.String("conn_id", c.id), zap.Error(err))
		g.emitError(c, "", err)
	}
	if first {
		g.announce(c.userID, domain.StatusOnline)
	}
	g.log.Info("client connected",
		zap.String("user_id", c.userID), zap.String("conn_id", c.id), zap.Bool("first", first))
}

// detach tears a client down before any further event of it can run: it is closed,
// removed from the registry and from every room, and its user is announced offline if
// this was their last connection.
func (g *Gateway) detach(c *Client) {
	c.Close()

	unlock := g.locks.lock(c.userID)
	defer unlock()

	last := g.registry.Unregister(c)
	g.rooms.LeaveAll(c)
	if last {
		g.announce(c.userID, domain.StatusOffline)
	}
	g.log.Info("client disconnected",
		zap.String("user_id", c.userID), zap.String("conn_id", c.id), zap.Bool("last", last))
}

// autoJoinAll silently subscribes c to all chats its user currently participates in.
func (g *Gateway) autoJoinAll(c *Client) error {
	ids, err := g.chats.ChatIDsForUser(c.ctx, c.userID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		g.rooms.Join(c, id)
	}
	return nil
}

// Dispatch runs the handler for one inbound frame. Every failure, including a panic,
// becomes exactly one error event to c; the connection and its rooms stay intact.
func (g *Gateway) Dispatch(c *Client, f Frame) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("handler panic",
				zap.String("event", f.Event), zap.String("conn_id", c.id),
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			g.emitError(c, f.Event, fmt.Errorf("panic: %v", r))
		}
	}()

	h, ok := g.handlers[f.Event]
	if !ok {
		g.emitError(c, f.Event, fmt.Errorf("%w: unknown event %q", domain.ErrValidation, f.Event))
		return
	}
	if err := h(c.ctx, c, f.Data); err != nil {
		g.log.Warn("event failed",
			zap.String("event", f.Event), zap.String("user_id", c.userID),
			zap.String("conn_id", c.id), zap.Error(err))
		g.emitError(c, f.Event, err)
	}
}

// ── client → server handlers ─────────────────────────────────────────────────

func (g *Gateway) handleJoin(ctx context.Context, c *Client, data json.RawMessage) error {
	var p chatRef
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	if err := g.chats.EnsureParticipant(ctx, p.ChatID, c.userID); err != nil {
		return err
	}
	g.rooms.Join(c, p.ChatID)
	g.emit(c, EventChatJoined, chatEvent{ChatID: p.ChatID})
	return nil
}

func (g *Gateway) handleLeave(_ context.Context, c *Client, data json.RawMessage) error {
	var p chatRef
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	g.rooms.Leave(c, p.ChatID)
	g.emit(c, EventChatLeft, chatEvent{ChatID: p.ChatID})
	return nil
}

func (g *Gateway) handleSend(ctx context.Context, c *Client, data json.RawMessage) error {
	var in service.SendInput
	if len(data) > 0 {
		if err := json.Unmarshal(data, &in); err != nil {
			return fmt.Errorf("%w: malformed payload", domain.ErrValidation)
		}
	}
	_, err := g.messages.Send(ctx, c.userID, in, g.PublishMessage)
	return err
}

func (g *Gateway) handleUpdate(ctx context.Context, c *Client, data json.RawMessage) error {
	var p updatePayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	v, err := g.messages.Edit(ctx, c.userID, p.MessageID, p.Content)
	if err != nil {
		return err
	}
	g.PublishEdit(v)
	return nil
}

func (g *Gateway) handleDelete(ctx context.Context, c *Client, data json.RawMessage) error {
	var p deletePayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	m, err := g.messages.Delete(ctx, c.userID, p.MessageID)
	if err != nil {
		return err
	}
	g.PublishDelete(m)
	return nil
}

// handleRead relays a receipt to the rest of the room only when it is new.
func (g *Gateway) handleRead(ctx context.Context, c *Client, data json.RawMessage) error {
	var p readPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	res, err := g.messages.MarkRead(ctx, c.userID, p.MessageID, p.ChatID)
	if err != nil {
		return err
	}
	if res.Inserted {
		g.broadcastRoom(res.ChatID, EventMessageRead,
			readEvent{MessageID: res.MessageID, UserID: res.UserID, ChatID: res.ChatID}, c.id)
	}
	return nil
}

// typingHandler relays typing state to the other subscribers of a room the connection
// is itself subscribed to. Typing is fire-and-forget, so nothing is ever reported back.
func (g *Gateway) typingHandler(event string) handlerFunc {
	return func(_ context.Context, c *Client, data json.RawMessage) error {
		var p chatRef
		if err := decodePayload(data, &p); err != nil {
			return nil
		}
		if !g.rooms.IsSubscribed(c, p.ChatID) {
			return nil
		}
		g.broadcastRoom(p.ChatID, event, typingEvent{ChatID: p.ChatID, UserID: c.userID, Username: c.username}, c.id)
		return nil
	}
}

// ── fan-out used by REST handlers as well ────────────────────────────────────

// PublishMessage delivers a persisted message to every subscriber of its room.
func (g *Gateway) PublishMessage(v *service.MessageView) {
	g.broadcastRoom(v.ChatID, EventMessageNew, v, "")
}

func (g *Gateway) PublishEdit(v *service.MessageView) {
	g.broadcastRoom(v.ChatID, EventMessageUpdated, v, "")
}

func (g *Gateway) PublishDelete(m *domain.Message) {
	g.broadcastRoom(m.ChatID, EventMessageDeleted, deletedEvent{MessageID: m.ID, ChatID: m.ChatID}, "")
}

// PublishRead relays a receipt recorded outside of a connection.
func (g *Gateway) PublishRead(res *service.ReadResult) {
	if !res.Inserted {
		return
	}
	g.broadcastRoom(res.ChatID, EventMessageRead,
		readEvent{MessageID: res.MessageID, UserID: res.UserID, ChatID: res.ChatID}, "")
}

// SubscribeUsers joins the live connections of users who just became participants.
func (g *Gateway) SubscribeUsers(chatID string, userIDs ...string) {
	for _, uid := range userIDs {
		for _, c := range g.registry.SocketsFor(uid) {
			g.rooms.Join(c, chatID)
		}
	}
}

// UnsubscribeUser removes a former participant's live connections from the room.
func (g *Gateway) UnsubscribeUser(chatID, userID string) {
	for _, c := range g.registry.SocketsFor(userID) {
		if g.rooms.Leave(c, chatID) {
			g.emit(c, EventChatLeft, chatEvent{ChatID: chatID})
		}
	}
}

// DropRoom forgets a deleted chat's subscribers and tells them.
func (g *Gateway) DropRoom(chatID string) {
	frame, err := encode(EventChatLeft, chatEvent{ChatID: chatID})
	if err != nil {
		g.log.Error("encode failed", zap.Error(err))
		return
	}
	for _, c := range g.rooms.Drop(chatID) {
		g.enqueue(c, frame)
	}
}

// Close disconnects every client and waits for their transport loops to finish or
// for ctx to expire.
func (g *Gateway) Close(ctx context.Context) error {
	g.connMu.Lock()
	g.closing = true
	g.connMu.Unlock()

	for _, c := range g.registry.All() {
		c.Close()
	}
	done := make(chan struct{})
	go func() {
		g.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trackConn registers a transport loop with the shutdown wait group. It reports false
// once Close has started.
func (g *Gateway) trackConn() bool {
	g.connMu.Lock()
	defer g.connMu.Unlock()
	if g.closing {
		return false
	}
	g.conns.Add(1)
	return true
}

// ── outbound helpers ─────────────────────────────────────────────────────────

func (g *Gateway) emit(c *Client, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		g.log.Error("encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	g.enqueue(c, frame)
}

func (g *Gateway) emitError(c *Client, event string, err error) {
	g.emit(c, EventError, toErrorEvent(event, err))
}

// broadcastRoom sends one encoded frame to every subscriber of chatID except the
// connection with id except.
func (g *Gateway) broadcastRoom(chatID, event string, data any, except string) {
	frame, err := encode(event, data)
	if err != nil {
		g.log.Error("encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	for _, c := range g.rooms.Subscribers(chatID) {
		if c.id == except {
			continue
		}
		g.enqueue(c, frame)
	}
}

func (g *Gateway) broadcastAll(event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		g.log.Error("encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	for _, c := range g.registry.All() {
		g.enqueue(c, frame)
	}
}

func (g *Gateway) enqueue(c *Client, frame []byte) {
	if !c.Enqueue(frame) {
		g.log.Debug("dropped frame for closed client", zap.String("conn_id", c.id), zap.String("user_id", c.userID))
	}
}

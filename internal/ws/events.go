package ws

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"chatapp/internal/domain"
	"chatapp/internal/service"
)

// Event names, shared by both directions where the name is the same.
const (
	EventAuth   = "auth"
	EventAuthOK = "auth:ok"

	EventChatJoin   = "chat:join"
	EventChatJoined = "chat:joined"
	EventChatLeave  = "chat:leave"
	EventChatLeft   = "chat:left"

	EventMessageSend    = "message:send"
	EventMessageNew     = "message:new"
	EventMessageUpdate  = "message:update"
	EventMessageUpdated = "message:updated"
	EventMessageDelete  = "message:delete"
	EventMessageDeleted = "message:deleted"
	EventMessageRead    = "message:read"

	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"

	EventUserStatus = "user:status"
	EventError      = "error"
)

// Frame is the envelope of every websocket message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// client → server payloads

type authPayload struct {
	Token string `json:"token"`
}

type chatRef struct {
	ChatID string `json:"chatId" validate:"required"`
}

type updatePayload struct {
	MessageID string `json:"messageId" validate:"required"`
	Content   string `json:"content"`
}

type deletePayload struct {
	MessageID string `json:"messageId" validate:"required"`
}

type readPayload struct {
	MessageID string `json:"messageId" validate:"required"`
	ChatID    string `json:"chatId"`
}

// server → client payloads

type authOKEvent struct {
	UserID string `json:"userId"`
}

type statusEvent struct {
	UserID string        `json:"userId"`
	Status domain.Status `json:"status"`
}

type chatEvent struct {
	ChatID string `json:"chatId"`
}

type typingEvent struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type readEvent struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	ChatID    string `json:"chatId"`
}

type deletedEvent struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type errorEvent struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Event   string `json:"event,omitempty"`
}

func encode(event string, data any) ([]byte, error) {
	b, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}

func decodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("%w: malformed frame", domain.ErrValidation)
	}
	if f.Event == "" {
		return f, fmt.Errorf("%w: event is required", domain.ErrValidation)
	}
	return f, nil
}

// decodePayload unmarshals and validates the data of a frame.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: malformed payload", domain.ErrValidation)
	}
	return service.Validate(v)
}

// toErrorEvent maps a handler error onto the single error event sent to the originator.
// Store failures are reported without their driver detail.
func toErrorEvent(event string, err error) errorEvent {
	ev := errorEvent{Message: err.Error(), Event: event}
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		ev.Code = "AUTH_ERROR"
	case errors.Is(err, domain.ErrValidation):
		ev.Code = "VALIDATION_ERROR"
	case errors.Is(err, domain.ErrNotParticipant):
		ev.Code = "NOT_PARTICIPANT"
	case errors.Is(err, domain.ErrForbidden):
		ev.Code = "FORBIDDEN"
	case errors.Is(err, domain.ErrNotFound):
		ev.Code = "NOT_FOUND"
	case errors.Is(err, domain.ErrStore):
		ev.Code = "STORE_ERROR"
		ev.Message = "storage failure, please retry"
	default:
		ev.Code = "INTERNAL_ERROR"
		ev.Message = "internal error"
	}
	return ev
}

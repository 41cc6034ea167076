package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatapp/internal/service"
)

type messageUpdateRequest struct {
	Content string `json:"content"`
}

func (h *handlers) listMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	msgs, err := h.messages.History(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "chatID"), limit, offset)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}

// createMessage sends a message exactly as the socket path does, including delivery to
// the chat's live subscribers.
func (h *handlers) createMessage(w http.ResponseWriter, r *http.Request) {
	var req service.SendInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	req.ChatID = chi.URLParam(r, "chatID")

	msg, err := h.messages.Send(r.Context(), CurrentUser(r).ID, req, h.notify.PublishMessage)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Message sent successfully", "data": msg})
}

func (h *handlers) updateMessage(w http.ResponseWriter, r *http.Request) {
	var req messageUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	msg, err := h.messages.Edit(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "messageID"), req.Content)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.notify.PublishEdit(msg)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Message updated successfully", "data": msg})
}

func (h *handlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.messages.Delete(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.notify.PublishDelete(msg)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Message deleted successfully"})
}

func (h *handlers) markRead(w http.ResponseWriter, r *http.Request) {
	res, err := h.messages.MarkRead(r.Context(), CurrentUser(r).ID, chi.URLParam(r, "messageID"), "")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.notify.PublishRead(res)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Message marked as read"})
}

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatapp/internal/service"
)

type addParticipantRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (h *handlers) createChat(w http.ResponseWriter, r *http.Request) {
	var req service.CreateChatInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	currentUser := CurrentUser(r)

	chat, err := h.chats.Create(r.Context(), currentUser.ID, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	ids := make([]string, 0, len(chat.Participants))
	for _, p := range chat.Participants {
		ids = append(ids, p.UserID)
	}
	h.notify.SubscribeUsers(chat.ID, ids...)

	writeJSON(w, http.StatusCreated, map[string]any{"message": "Chat created successfully", "data": chat})
}

func (h *handlers) listChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.List(r.Context(), CurrentUser(r).ID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": chats, "count": len(chats)})
}

func (h *handlers) getChat(w http.ResponseWriter, r *http.Request) {
	chat, err := h.chats.Get(r.Context(), chi.URLParam(r, "chatID"), CurrentUser(r).ID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chat": chat})
}

func (h *handlers) updateChat(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateChatInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	chat, err := h.chats.Update(r.Context(), chi.URLParam(r, "chatID"), CurrentUser(r).ID, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Chat updated successfully", "data": chat})
}

// deleteChat removes the chat with its participants and messages, then tells any
// connection still subscribed to it.
func (h *handlers) deleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if err := h.chats.Delete(r.Context(), chatID, CurrentUser(r).ID); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.notify.DropRoom(chatID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Chat deleted successfully"})
}

func (h *handlers) addParticipant(w http.ResponseWriter, r *http.Request) {
	var req addParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := service.Validate(req); err != nil {
		writeError(w, h.log, err)
		return
	}
	chatID := chi.URLParam(r, "chatID")
	if err := h.chats.AddParticipant(r.Context(), chatID, CurrentUser(r).ID, req.UserID); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.notify.SubscribeUsers(chatID, req.UserID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Participant added successfully"})
}

func (h *handlers) removeParticipant(w http.ResponseWriter, r *http.Request) {
	chatID, userID := chi.URLParam(r, "chatID"), chi.URLParam(r, "userID")
	if err := h.chats.RemoveParticipant(r.Context(), chatID, CurrentUser(r).ID, userID); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.notify.UnsubscribeUser(chatID, userID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Participant removed successfully"})
}

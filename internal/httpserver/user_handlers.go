package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *handlers) searchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Search(r.Context(), CurrentUser(r).ID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

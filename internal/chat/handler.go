package chat

import (
	"encoding/json"
	"net/http"
	"strconv"

	myMiddleware "foodline/internal/middleware"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Handler serves the REST history read path. The live push path lives in
// internal/realtime; both return the same canonical Message shape.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// GetChatHistory handles GET /api/messages?peer_id=&limit=&offset=.
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	ident, ok := myMiddleware.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	peerID, err := strconv.Atoi(r.URL.Query().Get("peer_id"))
	if err != nil || peerID <= 0 {
		http.Error(w, "Missing or invalid peer_id", http.StatusBadRequest)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxHistoryLimit)
		}
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}

	msgs, err := h.store.GetMessages(r.Context(), ident.ID, peerID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to load messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []*Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

// Handler serves read-only session views for sales staff.
type Handler struct {
	store  Store
	logger *logging.Logger
}

func NewHandler(store Store, logger *logging.Logger) *Handler {
	if store == nil {
		panic("session: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// TranscriptResponse is a session plus its history split into turns.
type TranscriptResponse struct {
	Session *Session `json:"session"`
	Turns   []Turn   `json:"turns"`
}

// GetTranscript handles GET /admin/conversations/{conversationID}/session.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "conversationID"))
	if id == "" {
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return
	}
	sess, err := h.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load session", "error", err, "conversation_id", id)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	turns := sess.Turns()
	if turns == nil {
		turns = []Turn{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(TranscriptResponse{Session: sess, Turns: turns})
}

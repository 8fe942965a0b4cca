package handoff

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

// Handler exposes the gate to sales staff so they can take a conversation
// over, or give it back, without typing commands in the chat.
type Handler struct {
	gate   *Gate
	logger *logging.Logger
	now    func() time.Time
}

func NewHandler(gate *Gate, logger *logging.Logger) *Handler {
	if gate == nil {
		panic("handoff: gate cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{gate: gate, logger: logger, now: time.Now}
}

// StatusResponse is the automation state of one conversation.
type StatusResponse struct {
	ConversationID string     `json:"conversation_id"`
	Active         bool       `json:"active"`
	Muted          bool       `json:"muted"`
	Silenced       bool       `json:"silenced"`
	SilencedUntil  *time.Time `json:"silenced_until,omitempty"`
}

// GetStatus handles GET /admin/conversations/{conversationID}/handoff.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationParam(w, r)
	if !ok {
		return
	}
	h.writeStatus(w, id)
}

// MuteConversation handles POST /admin/conversations/{conversationID}/handoff/mute.
func (h *Handler) MuteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationParam(w, r)
	if !ok {
		return
	}
	h.gate.Mute(id)
	h.logger.Info("conversation muted by staff", "conversation_id", id)
	h.writeStatus(w, id)
}

// UnmuteConversation handles POST /admin/conversations/{conversationID}/handoff/unmute.
func (h *Handler) UnmuteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationParam(w, r)
	if !ok {
		return
	}
	h.gate.Unmute(id)
	h.logger.Info("conversation handed back to bot", "conversation_id", id)
	h.writeStatus(w, id)
}

func (h *Handler) writeStatus(w http.ResponseWriter, id string) {
	st := h.gate.Status(id, h.now())
	resp := StatusResponse{
		ConversationID: id,
		Active:         st.Active(),
		Muted:          st.Muted,
		Silenced:       st.Silenced,
	}
	if st.Silenced {
		until := st.Until.UTC()
		resp.SilencedUntil = &until
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func conversationParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "conversationID"))
	if id == "" {
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

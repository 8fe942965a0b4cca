package messaging

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dealer-ai-platform/internal/events"
	"github.com/wolfman30/dealer-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

var twilioTracer = otel.Tracer("dealer.internal.messaging.twilio")

// MediaPlaceholder stands in for the text of a message that only carried
// audio or images. Transcription happens upstream of the engine.
const MediaPlaceholder = "[audio/imagen pendiente de transcripción]"

const (
	emptyTwiML     = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
	publishTimeout = 3 * time.Second
	maxJSONBody    = 64 << 10
)

type turnPublisher interface {
	EnqueueInbound(ctx context.Context, evt events.MessageReceivedV1) error
	EnqueueEcho(ctx context.Context, evt events.EchoObservedV1) error
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithMessagingMetrics records webhook counters and latency.
func WithMessagingMetrics(m *metrics.MessagingMetrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithWebhookToken requires the JSON webhook to carry the token in the
// X-Webhook-Token header.
func WithWebhookToken(token string) HandlerOption {
	return func(h *Handler) {
		h.webhookToken = strings.TrimSpace(token)
	}
}

// Handler accepts inbound chat webhooks, acknowledges them right away and
// hands each message to the turn queue.
type Handler struct {
	webhookSecret string
	webhookToken  string
	publisher     turnPublisher
	metrics       *metrics.MessagingMetrics
	logger        *logging.Logger
	now           func() time.Time
}

// NewHandler creates a new messaging handler. An empty webhookSecret skips
// Twilio signature validation, which is only sensible in development.
func NewHandler(webhookSecret string, publisher turnPublisher, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if publisher == nil {
		panic("messaging: publisher cannot be nil")
	}
	h := &Handler{
		webhookSecret: webhookSecret,
		publisher:     publisher,
		logger:        logger.WithComponent("messaging"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TwilioWhatsAppWebhook handles POST /webhooks/twilio/whatsapp.
func (h *Handler) TwilioWhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	const eventType = "twilio.whatsapp"
	start := h.now()
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.whatsapp_webhook")
	defer span.End()
	defer func() { h.metrics.ObserveWebhookLatency(eventType, time.Since(start).Seconds()) }()

	if h.webhookSecret != "" {
		if !ValidateTwilioSignature(r, h.webhookSecret, buildAbsoluteURL(r)) {
			h.logger.Warn("invalid twilio signature")
			h.metrics.ObserveInbound(eventType, "unauthorized")
			span.RecordError(errors.New("invalid twilio signature"))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		h.metrics.ObserveInbound(eventType, "bad_request")
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	from := NormalizeE164(webhook.From)
	conversationID := ConversationID(webhook.From)
	span.SetAttributes(
		attribute.String("dealer.twilio.message_sid", webhook.MessageSid),
		attribute.String("dealer.conversation_id", conversationID),
	)
	if webhook.MessageSid == "" || conversationID == "" {
		err := errors.New("missing required twilio fields")
		h.logger.Error("invalid twilio payload", "error", err)
		h.metrics.ObserveInbound(eventType, "bad_request")
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	body := webhook.Body
	if body == "" {
		if !webhook.HasMedia() {
			// Status callbacks and empty pings: nothing to answer.
			h.metrics.ObserveInbound(eventType, "ignored")
			writeTwiML(w)
			return
		}
		body = MediaPlaceholder
	}

	evt := events.MessageReceivedV1{
		MessageID:      webhook.MessageSid,
		ConversationID: conversationID,
		FromE164:       from,
		ToE164:         NormalizeE164(webhook.To),
		Body:           body,
		MediaURLs:      webhook.MediaURLs,
		Provider:       events.ProviderTwilio,
		ReceivedAt:     start.UTC(),
	}
	if err := h.enqueueInbound(ctx, evt); err != nil {
		h.logger.Error("failed to enqueue inbound turn", "error", err, "message_sid", webhook.MessageSid, "conversation_id", conversationID)
		h.metrics.ObserveInbound(eventType, "error")
		span.RecordError(err)
		http.Error(w, "Failed to schedule reply", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveInbound(eventType, "accepted")
	h.logger.Info("twilio webhook accepted", "message_sid", webhook.MessageSid, "conversation_id", conversationID, "media", len(webhook.MediaURLs))
	writeTwiML(w)
}

// MessagePayload is the transport-neutral inbound webhook body. FromMe marks
// a message sent from the business number, by the bot or a human agent; for
// those, To is the customer.
type MessagePayload struct {
	MessageID string    `json:"message_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	FromMe    bool      `json:"from_me"`
	MediaURLs []string  `json:"media_urls,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (p MessagePayload) customer() string {
	if p.FromMe {
		return p.To
	}
	return p.From
}

// MessagesWebhook handles POST /webhooks/messages. Echoes of our own number
// feed the handoff detector; everything else is a customer turn.
func (h *Handler) MessagesWebhook(w http.ResponseWriter, r *http.Request) {
	const eventType = "generic"
	start := h.now()
	ctx, span := twilioTracer.Start(r.Context(), "messaging.generic_webhook")
	defer span.End()
	defer func() { h.metrics.ObserveWebhookLatency(eventType, time.Since(start).Seconds()) }()

	if h.webhookToken != "" {
		got := r.Header.Get("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookToken)) != 1 {
			h.metrics.ObserveInbound(eventType, "unauthorized")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
	}

	var payload MessagePayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&payload); err != nil {
		h.metrics.ObserveInbound(eventType, "bad_request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	conversationID := ConversationID(payload.customer())
	text := strings.TrimSpace(payload.Text)
	if text == "" && len(payload.MediaURLs) > 0 && !payload.FromMe {
		text = MediaPlaceholder
	}
	if payload.MessageID == "" || conversationID == "" || text == "" {
		h.metrics.ObserveInbound(eventType, "bad_request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message_id, phone and text are required"})
		return
	}
	sentAt := payload.Timestamp
	if sentAt.IsZero() {
		sentAt = start
	}
	span.SetAttributes(
		attribute.String("dealer.conversation_id", conversationID),
		attribute.Bool("dealer.from_me", payload.FromMe),
	)

	var err error
	if payload.FromMe {
		err = h.enqueueEcho(ctx, events.EchoObservedV1{
			MessageID:      payload.MessageID,
			ConversationID: conversationID,
			Body:           text,
			Provider:       events.ProviderGeneric,
			SentAt:         sentAt.UTC(),
		})
	} else {
		err = h.enqueueInbound(ctx, events.MessageReceivedV1{
			MessageID:      payload.MessageID,
			ConversationID: conversationID,
			FromE164:       NormalizeE164(payload.From),
			ToE164:         NormalizeE164(payload.To),
			Body:           text,
			MediaURLs:      payload.MediaURLs,
			Provider:       events.ProviderGeneric,
			ReceivedAt:     sentAt.UTC(),
		})
	}
	if err != nil {
		h.logger.Error("failed to enqueue webhook message", "error", err, "message_id", payload.MessageID, "from_me", payload.FromMe)
		h.metrics.ObserveInbound(eventType, "error")
		span.RecordError(err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to schedule"})
		return
	}

	h.metrics.ObserveInbound(eventType, "accepted")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "conversation_id": conversationID})
}

// HealthCheck returns a simple health check response.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) enqueueInbound(ctx context.Context, evt events.MessageReceivedV1) error {
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return h.publisher.EnqueueInbound(publishCtx, evt)
}

func (h *Handler) enqueueEcho(ctx context.Context, evt events.EchoObservedV1) error {
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return h.publisher.EnqueueEcho(publishCtx, evt)
}

func writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}

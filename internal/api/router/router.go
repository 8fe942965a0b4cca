package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/dealer-ai-platform/internal/handoff"
	httpmiddleware "github.com/wolfman30/dealer-ai-platform/internal/http/middleware"
	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/internal/messaging"
	"github.com/wolfman30/dealer-ai-platform/internal/session"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	MessagingHandler *messaging.Handler
	LeadsHandler     *leads.Handler
	HandoffHandler   *handoff.Handler
	SessionHandler   *session.Handler
	MetricsHandler   http.Handler
	AdminAuthSecret  string

	// WebhookRatePerSec caps inbound webhook requests per client IP. Zero disables it.
	WebhookRatePerSec float64
	WebhookBurst      int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.MessagingHandler == nil {
		panic("router: messaging handler required")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.MessagingHandler.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/webhooks", func(hooks chi.Router) {
		if cfg.WebhookRatePerSec > 0 {
			hooks.Use(httpmiddleware.RateLimit(cfg.WebhookRatePerSec, cfg.WebhookBurst))
		}
		hooks.Post("/twilio/whatsapp", cfg.MessagingHandler.TwilioWhatsAppWebhook)
		hooks.Post("/messages", cfg.MessagingHandler.MessagesWebhook)
	})

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(middleware.Compress(5))
			if cfg.LeadsHandler != nil {
				admin.Get("/leads/{phone}", cfg.LeadsHandler.ListByPhone)
			}
			admin.Route("/conversations/{conversationID}", func(conv chi.Router) {
				if cfg.SessionHandler != nil {
					conv.Get("/session", cfg.SessionHandler.GetTranscript)
				}
				if cfg.HandoffHandler != nil {
					conv.Get("/handoff", cfg.HandoffHandler.GetStatus)
					conv.Post("/handoff/mute", cfg.HandoffHandler.MuteConversation)
					conv.Post("/handoff/unmute", cfg.HandoffHandler.UnmuteConversation)
				}
			})
		})
	}

	return r
}

package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/dealer-ai-platform/internal/config"
	"github.com/wolfman30/dealer-ai-platform/internal/conversation"
	"github.com/wolfman30/dealer-ai-platform/internal/messaging"
	"github.com/wolfman30/dealer-ai-platform/internal/notify"
	"github.com/wolfman30/dealer-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

// BuildOutboundMessenger creates the WhatsApp reply messenger. Without Twilio
// credentials replies are only logged; the returned reason says why.
func BuildOutboundMessenger(cfg *appconfig.Config, messagingMetrics *metrics.MessagingMetrics, logger *logging.Logger) (conversation.ReplyMessenger, string, string) {
	if cfg == nil {
		return nil, "", "missing config"
	}
	messengerCfg := messaging.ProviderSelectionConfig{
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioFromNumber: cfg.TwilioFromNumber,
	}
	return messaging.BuildReplyMessenger(messengerCfg, logger, messaging.WithSenderMetrics(messagingMetrics))
}

// BuildLeadNotifier returns the sales-desk notifier, or nil when neither a
// desk email nor a desk WhatsApp number is configured. ses may be nil.
func BuildLeadNotifier(cfg *appconfig.Config, ses *sesv2.Client, messenger conversation.ReplyMessenger, logger *logging.Logger) *notify.Service {
	if cfg == nil {
		return nil
	}
	deskEmail := strings.TrimSpace(cfg.SalesDeskEmail)
	deskPhone := strings.TrimSpace(cfg.SalesDeskPhone)
	if deskEmail == "" && deskPhone == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	selection := notify.EmailSelectionConfig{
		Provider:          cfg.EmailProvider,
		SendGridAPIKey:    cfg.SendGridAPIKey,
		SendGridFromEmail: cfg.SendGridFromEmail,
		SendGridFromName:  cfg.SendGridFromName,
		SESFromEmail:      cfg.SESFromEmail,
	}
	var email notify.EmailSender
	if ses != nil {
		email = notify.BuildEmailSender(selection, ses, logger)
	} else {
		email = notify.BuildEmailSender(selection, nil, logger)
	}

	opts := []notify.ServiceOption{notify.WithLocation(cfg.Location())}
	if deskPhone != "" && messenger != nil {
		opts = append(opts, notify.WithDeskWhatsApp(messenger, deskPhone))
	}
	return notify.NewService(email, deskEmail, logger, opts...)
}

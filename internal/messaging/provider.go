package messaging

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/dealer-ai-platform/internal/conversation"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

const (
	// ProviderTwilio delivers through the Twilio WhatsApp API.
	ProviderTwilio = "twilio"
	// ProviderLog only logs replies. Used locally and by the simulator.
	ProviderLog = "log"
)

// ProviderSelectionConfig captures the credentials required to build the outbound messenger.
type ProviderSelectionConfig struct {
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// BuildReplyMessenger returns the Twilio sender when credentials exist and a
// logging messenger otherwise, along with the provider name and, for the
// fallback, the reason Twilio was skipped.
func BuildReplyMessenger(cfg ProviderSelectionConfig, logger *logging.Logger, opts ...SenderOption) (conversation.ReplyMessenger, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	var missing []string
	if strings.TrimSpace(cfg.TwilioAccountSID) == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID missing")
	}
	if strings.TrimSpace(cfg.TwilioAuthToken) == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN missing")
	}
	if strings.TrimSpace(cfg.TwilioFromNumber) == "" {
		missing = append(missing, "TWILIO_FROM_NUMBER missing")
	}
	if len(missing) == 0 {
		return NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger, opts...), ProviderTwilio, ""
	}
	return NewLogMessenger(logger), ProviderLog, strings.Join(missing, ", ")
}

// LogMessenger writes replies to the log instead of a transport and hands
// back synthetic message ids so echo matching still works.
type LogMessenger struct {
	logger *logging.Logger
}

func NewLogMessenger(logger *logging.Logger) *LogMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMessenger{logger: logger.WithComponent("log_messenger")}
}

var _ conversation.ReplyMessenger = (*LogMessenger)(nil)

func (m *LogMessenger) SendReply(ctx context.Context, reply conversation.OutboundReply) ([]string, error) {
	n := max(1, len(reply.MediaURLs))
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, "local-"+uuid.NewString())
	}
	m.logger.Info("reply (not delivered)",
		"conversation_id", reply.ConversationID,
		"to", reply.To,
		"body", reply.Body,
		"media", reply.MediaURLs,
	)
	return ids, nil
}

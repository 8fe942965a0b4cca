package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dealer-ai-platform/internal/conversation"
	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

// Email provider names accepted by BuildEmailSender.
const (
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
)

const leadAlertCategory = "lead_alert"

// EmailSelectionConfig picks and configures the email backend.
type EmailSelectionConfig struct {
	Provider          string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
}

// BuildEmailSender returns the configured sender, or a stub that only logs
// when the chosen provider lacks credentials.
func BuildEmailSender(cfg EmailSelectionConfig, ses sesAPI, logger *logging.Logger) EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case EmailProviderSES:
		if ses != nil && cfg.SESFromEmail != "" {
			return NewSESSender(ses, SESConfig{FromEmail: cfg.SESFromEmail, FromName: cfg.SendGridFromName}, logger)
		}
		logger.Warn("notify: SES selected but not configured; emails will only be logged")
	default:
		if sg := NewSendGridSender(SendGridConfig{APIKey: cfg.SendGridAPIKey, FromEmail: cfg.SendGridFromEmail, FromName: cfg.SendGridFromName}, logger); sg != nil {
			return sg
		}
	}
	return NewStubEmailSender(logger)
}

// Service alerts the sales desk when a customer books a visit.
type Service struct {
	email      EmailSender
	recipients []string
	desk       conversation.ReplyMessenger
	deskPhone  string
	location   *time.Location
	logger     *logging.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithDeskWhatsApp also pings a sales-desk WhatsApp number.
func WithDeskWhatsApp(messenger conversation.ReplyMessenger, phone string) ServiceOption {
	return func(s *Service) {
		s.desk = messenger
		s.deskPhone = strings.TrimSpace(phone)
	}
}

// WithLocation renders timestamps in the dealership's zone.
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewService creates a notification service. recipients is a comma separated
// list or a single address.
func NewService(email EmailSender, recipients string, logger *logging.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		email:      email,
		recipients: splitRecipients(recipients),
		location:   time.UTC,
		logger:     logger.WithComponent("notify"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyLead sends the appointment alert over every configured channel. One
// channel failing does not stop the others; the errors are joined.
func (s *Service) NotifyLead(ctx context.Context, lead leads.Lead) error {
	subject, body := formatLeadAlert(lead, s.location)

	var errs []error
	if s.email != nil {
		for _, to := range s.recipients {
			if err := s.email.Send(ctx, EmailMessage{To: to, ToName: "Ventas", Subject: subject, Body: body, Category: leadAlertCategory}); err != nil {
				s.logger.Error("notify: lead email failed", "error", err, "to", to, "conversation_id", lead.ConversationID)
				errs = append(errs, fmt.Errorf("email %s: %w", to, err))
			}
		}
	}
	if s.desk != nil && s.deskPhone != "" {
		_, err := s.desk.SendReply(ctx, conversation.OutboundReply{
			ConversationID: "desk",
			To:             s.deskPhone,
			Body:           subject + "\n" + body,
		})
		if err != nil {
			s.logger.Error("notify: desk whatsapp failed", "error", err, "conversation_id", lead.ConversationID)
			errs = append(errs, fmt.Errorf("desk whatsapp: %w", err))
		}
	}
	if len(errs) == 0 {
		s.logger.Info("lead alert sent", "conversation_id", lead.ConversationID, "stage", lead.Stage)
	}
	return errors.Join(errs...)
}

func formatLeadAlert(lead leads.Lead, loc *time.Location) (string, string) {
	c := lead.Candidate
	name := c.Name
	if name == "" {
		name = "Cliente"
	}
	subject := fmt.Sprintf("Cita agendada: %s | %s", name, c.Interest)

	var b strings.Builder
	fmt.Fprintf(&b, "Cliente: %s\n", name)
	fmt.Fprintf(&b, "Teléfono: %s\n", lead.Phone)
	fmt.Fprintf(&b, "Interés: %s\n", c.Interest)
	fmt.Fprintf(&b, "Cita: %s\n", c.Appointment)
	if c.AppointmentDate != "" {
		when := c.AppointmentDate
		if c.AppointmentTime != "" {
			when += " " + c.AppointmentTime
		}
		fmt.Fprintf(&b, "Fecha: %s\n", when)
	}
	fmt.Fprintf(&b, "Pago: %s\n", c.Payment.Label())
	if lead.CRMItemID != "" {
		fmt.Fprintf(&b, "CRM: %s\n", lead.CRMItemID)
	}
	if !lead.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Registrado: %s\n", lead.CreatedAt.In(loc).Format("2006-01-02 15:04"))
	}
	return subject, strings.TrimRight(b.String(), "\n")
}

func splitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var _ conversation.LeadNotifier = (*Service)(nil)

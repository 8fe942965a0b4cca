package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dealer-ai-platform/internal/conversation"
	"github.com/wolfman30/dealer-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/dealer-ai-platform/internal/retry"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

var twilioSendTracer = otel.Tracer("dealer.internal.messaging.twilio_send")

const defaultTwilioAPIBase = "https://api.twilio.com"

// TwilioSender posts WhatsApp messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	apiBase    string
	httpClient *http.Client
	policy     retry.Policy
	metrics    *metrics.MessagingMetrics
	logger     *logging.Logger
}

// SenderOption customizes a TwilioSender.
type SenderOption func(*TwilioSender)

// WithAPIBase points the sender at another Twilio-compatible host.
func WithAPIBase(base string) SenderOption {
	return func(s *TwilioSender) {
		s.apiBase = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *TwilioSender) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithSendRetryPolicy overrides the per-message retry policy.
func WithSendRetryPolicy(p retry.Policy) SenderOption {
	return func(s *TwilioSender) {
		s.policy = p
	}
}

// WithSenderMetrics records outbound counters.
func WithSenderMetrics(m *metrics.MessagingMetrics) SenderOption {
	return func(s *TwilioSender) {
		s.metrics = m
	}
}

// NewTwilioSender builds a sender with sane defaults. defaultFrom is the
// business WhatsApp number, with or without the "whatsapp:" prefix.
func NewTwilioSender(accountSID, authToken, defaultFrom string, logger *logging.Logger, opts ...SenderOption) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	s := &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       defaultFrom,
		apiBase:    defaultTwilioAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		policy:     retry.LinearPolicy(3, 250*time.Millisecond),
		logger:     logger.WithComponent("twilio_sender"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ conversation.ReplyMessenger = (*TwilioSender)(nil)

// SendReply sends the body with the first media URL attached, then one
// message per remaining URL so WhatsApp keeps them in order. It returns the
// Twilio SIDs of every message that went out, even when a later one fails.
func (s *TwilioSender) SendReply(ctx context.Context, msg conversation.OutboundReply) ([]string, error) {
	if s.accountSID == "" || s.authToken == "" {
		return nil, errors.New("messaging: twilio credentials missing")
	}
	to := WhatsAppAddress(msg.To)
	if to == "" {
		return nil, errors.New("messaging: to required")
	}
	from := WhatsAppAddress(msg.From)
	if from == "" {
		from = WhatsAppAddress(s.from)
	}
	if from == "" {
		return nil, errors.New("messaging: from required")
	}
	body := strings.TrimSpace(msg.Body)
	if body == "" && len(msg.MediaURLs) == 0 {
		return nil, errors.New("messaging: body or media required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("dealer.conversation_id", msg.ConversationID),
		attribute.Int("dealer.media_count", len(msg.MediaURLs)),
	)

	parts := splitOutbound(body, msg.MediaURLs)
	sids := make([]string, 0, len(parts))
	for i, part := range parts {
		sid, err := s.sendOne(ctx, to, from, part)
		if err != nil {
			s.metrics.ObserveOutbound("error", part.mediaURL != "")
			span.RecordError(err)
			return sids, fmt.Errorf("messaging: send part %d/%d: %w", i+1, len(parts), err)
		}
		s.metrics.ObserveOutbound("sent", part.mediaURL != "")
		sids = append(sids, sid)
	}
	s.logger.Info("twilio whatsapp sent", "conversation_id", msg.ConversationID, "messages", len(sids))
	return sids, nil
}

type outboundPart struct {
	body     string
	mediaURL string
}

func splitOutbound(body string, media []string) []outboundPart {
	first := outboundPart{body: body}
	rest := media
	if len(media) > 0 {
		first.mediaURL = media[0]
		rest = media[1:]
	}
	parts := []outboundPart{first}
	for _, u := range rest {
		parts = append(parts, outboundPart{mediaURL: u})
	}
	return parts
}

func (s *TwilioSender) sendOne(ctx context.Context, to, from string, part outboundPart) (string, error) {
	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", from)
	if part.body != "" {
		payload.Set("Body", part.body)
	}
	if part.mediaURL != "" {
		payload.Set("MediaUrl", part.mediaURL)
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.apiBase, s.accountSID)

	policy := s.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.logger.Warn("twilio send failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}
	return retry.Do(ctx, policy, isRetriableSend, func(ctx context.Context, attempt int) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			return "", err
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", &twilioStatusError{status: resp.StatusCode, detail: formatTwilioError(resp.StatusCode, raw)}
		}
		var parsed struct {
			SID    string `json:"sid"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil || parsed.SID == "" {
			return "", fmt.Errorf("twilio response without sid: %s", strings.TrimSpace(string(raw)))
		}
		return parsed.SID, nil
	})
}

type twilioStatusError struct {
	status int
	detail string
}

func (e *twilioStatusError) Error() string {
	return "twilio send failed: " + e.detail
}

// isRetriableSend retries transport errors, 429 and 5xx. Other 4xx responses
// will not get better on a second try.
func isRetriableSend(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *twilioStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status == http.StatusTooManyRequests || statusErr.status >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}

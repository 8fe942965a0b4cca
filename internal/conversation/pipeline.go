package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/dealer-ai-platform/internal/catalog"
	"github.com/wolfman30/dealer-ai-platform/internal/extraction"
	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/internal/llm"
	"github.com/wolfman30/dealer-ai-platform/internal/session"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

// LeadSource says how a lead was produced.
type LeadSource string

const (
	LeadSourceNone     LeadSource = ""
	LeadSourceModel    LeadSource = "model"
	LeadSourceFailsafe LeadSource = "failsafe"
)

// PipelineConfig tunes prompt rendering and media paging.
type PipelineConfig struct {
	AdvisorName   string
	Location      *time.Location
	Temperature   float32
	MaxTokens     int32
	PhotoPageSize int
	FinancingInfo string
}

// TurnInput is one customer message with the state it is answered against.
// Session is mutated in place (photo cursor, document type).
type TurnInput struct {
	Session *session.Session
	Catalog catalog.Snapshot
	Text    string
	Now     time.Time
	// FactsChanged is true when extraction learned something this turn.
	FactsChanged bool
}

// TurnOutput is the reply and everything decided alongside it.
type TurnOutput struct {
	Reply          string
	Media          Media
	Lead           *leads.Candidate
	LeadSource     LeadSource
	DocumentIssued bool
	Fallback       bool
	// FallbackCause is set when Fallback is true.
	FallbackCause error
	Provider      string
	Blocked       bool
	Dropped       []string
}

// Pipeline drafts a reply with the LLM and guards it before delivery.
type Pipeline struct {
	client llm.Client
	cfg    PipelineConfig
	logger *logging.Logger
	tracer trace.Tracer
}

// NewPipeline wires the pipeline to an LLM client, usually a FailoverClient.
func NewPipeline(client llm.Client, cfg PipelineConfig, logger *logging.Logger) *Pipeline {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PhotoPageSize <= 0 {
		cfg.PhotoPageSize = DefaultPhotoPageSize
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	return &Pipeline{
		client: client,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("dealer.internal.conversation"),
	}
}

// Respond produces the reply for one turn. LLM failures never surface as an
// error: they degrade to ApologyReply with no lead and no media. The error
// return is reserved for invalid input.
func (p *Pipeline) Respond(ctx context.Context, in TurnInput) (TurnOutput, error) {
	if in.Session == nil {
		return TurnOutput{}, errors.New("conversation: session required")
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	sess := in.Session
	log := p.logger.WithConversation(sess.ID)

	ctx, span := p.tracer.Start(ctx, "conversation.respond")
	defer span.End()
	span.SetAttributes(attribute.Int("turn", sess.TurnCount))

	text := strings.TrimSpace(in.Text)
	guard := ScanForPromptInjection(text)
	if guard.Blocked {
		log.Warn("inbound message blocked by prompt guard", "reasons", guard.Reasons, "score", guard.Score)
		span.SetAttributes(attribute.Bool("blocked", true))
		return TurnOutput{Reply: blockedReply, Blocked: true}, nil
	}
	text = guard.Sanitized

	req := llm.Request{
		System: []string{
			buildSystemPrompt(p.cfg.AdvisorName, in.Now, p.cfg.Location, sess.UserName, sess.TurnCount),
			buildContextBlock(contextInput{
				Session:       sess,
				Catalog:       in.Catalog,
				UserText:      text,
				FinancingInfo: p.cfg.FinancingInfo,
			}),
		},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: text}},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
	resp, err := p.client.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm call failed")
		log.Error("llm call failed, sending apology", "error", err)
		return TurnOutput{Reply: ApologyReply, Fallback: true, FallbackCause: err}, nil
	}
	span.SetAttributes(attribute.String("provider", resp.Provider))

	out := TurnOutput{Provider: resp.Provider}
	proposed, found, visible := extractLeadBlock(resp.Text)
	visible = stripSpeakerLabel(visible)

	learnedInterest := false
	if sess.LastInterest == "" {
		if interest, ok := extraction.Interest(text, visible, in.Catalog.Items); ok {
			sess.LastInterest, learnedInterest = interest, true
		}
	}

	if p.needsName(sess, text) {
		if mentionsPrice(visible) || !extraction.AskedForName(visible) {
			visible = nameRequestReply
		}
		out.Reply = toWhatsAppMarkup(visible)
		return out, nil
	}

	out.Media = selectMedia(sess, in.Catalog, text, visible, p.cfg.PhotoPageSize)
	out.DocumentIssued = out.Media.Kind == MediaDocument
	visible = rewriteContradictions(visible, out.Media)
	visible = toWhatsAppMarkup(visible)
	if !out.Media.HasAttachments() {
		visible, out.Dropped = dropHallucinatedModels(visible, in.Catalog)
		if len(out.Dropped) > 0 {
			log.Warn("dropped sentences naming models outside the catalog", "models", out.Dropped)
		}
	}

	if res := ScanOutputForLeaks(visible); res.Leaked {
		log.Warn("reply failed output guard", "reasons", res.Reasons)
		visible = res.Sanitized
		if visible == "" {
			visible = ApologyReply
			out.Media = Media{}
			out.DocumentIssued = false
		}
	}

	if strings.TrimSpace(visible) == "" {
		visible = followUpReply
		if out.Media.HasAttachments() {
			visible = attachmentCaption
		}
	}
	out.Reply = visible

	if found {
		merged := mergeSessionFacts(proposed, sess)
		if err := leads.Validate(merged); err == nil {
			out.Lead, out.LeadSource = &merged, LeadSourceModel
		} else {
			log.Debug("lead block rejected", "reason", err)
		}
	}
	if out.Lead == nil && !extraction.IsDisinterest(text) &&
		(in.FactsChanged || learnedInterest || leadBehind(sess) || p.confirmsAppointment(sess, text)) {
		if c := sessionCandidate(sess); leads.IsValid(c) {
			out.Lead, out.LeadSource = &c, LeadSourceFailsafe
		}
	}
	if out.Lead != nil {
		span.SetAttributes(attribute.String("lead_source", string(out.LeadSource)))
	}
	return out, nil
}

// needsName reports the first-turn gate: nobody gets a price before giving
// a name.
func (p *Pipeline) needsName(sess *session.Session, text string) bool {
	return sess.UserName == "" && sess.TurnCount <= earlyTurns && extraction.IsPriceQuestion(text)
}

// leadBehind reports that no appointment lead reached the CRM this cycle,
// e.g. because the turn that completed the facts fell back to the apology.
func leadBehind(sess *session.Session) bool {
	return leads.Rank(sess.LeadStage) < leads.Rank(leads.StageAppointmentScheduled)
}

func (p *Pipeline) confirmsAppointment(sess *session.Session, text string) bool {
	return sess.LastAppointment != "" && extraction.IsShortConfirmation(text)
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dealer-ai-platform/internal/catalog"
	"github.com/wolfman30/dealer-ai-platform/internal/crm"
	"github.com/wolfman30/dealer-ai-platform/internal/events"
	"github.com/wolfman30/dealer-ai-platform/internal/extraction"
	"github.com/wolfman30/dealer-ai-platform/internal/handoff"
	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/dealer-ai-platform/internal/session"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

const (
	defaultTurnDeadline = 90 * time.Second
	defaultHistoryChars = 4000
	persistTimeout      = 5 * time.Second
	sendTimeout         = 15 * time.Second

	muteAck   = "Entendido. Un asesor de la agencia te atenderá personalmente en breve."
	unmuteAck = "¡Listo! Sigo a tus órdenes. ¿En qué te ayudo?"
)

// InboundMessage is one customer message handed to the engine.
type InboundMessage struct {
	MessageID      string
	ConversationID string
	From           string
	To             string
	Text           string
	Provider       string
	ReceivedAt     time.Time
}

// EchoMessage is an outbound message observed on the business number.
type EchoMessage struct {
	MessageID      string
	ConversationID string
	Text           string
	SentAt         time.Time
}

// TurnOutcome labels how a turn ended.
type TurnOutcome string

const (
	OutcomeReplied   TurnOutcome = "replied"
	OutcomeFallback  TurnOutcome = "fallback"
	OutcomeDuplicate TurnOutcome = "duplicate"
	OutcomeSilenced  TurnOutcome = "silenced"
	OutcomeCommand   TurnOutcome = "command"
	OutcomeFailed    TurnOutcome = "failed"
)

// TurnResult is what HandleInbound did.
type TurnResult struct {
	Outcome   TurnOutcome
	Reply     string
	MediaURLs []string
	Stage     leads.Stage
	Lead      *leads.Lead
}

type processedEventStore interface {
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// LeadNotifier tells the sales desk about a lead with a scheduled visit.
type LeadNotifier interface {
	NotifyLead(ctx context.Context, lead leads.Lead) error
}

// Engine runs one conversation turn per inbound event. Callers must not run
// two turns for the same conversation concurrently; the Dispatcher enforces it.
type Engine struct {
	gate      *handoff.Gate
	sessions  session.Store
	inventory catalog.Inventory
	pipeline  *Pipeline
	messenger ReplyMessenger
	logger    *logging.Logger

	cfg engineConfig
}

type engineConfig struct {
	turnDeadline time.Duration
	historyChars int
	location     *time.Location
	now          func() time.Time
	processed    processedEventStore
	upserter     *crm.Upserter
	leadsRepo    leads.Repository
	notifier     LeadNotifier
	metrics      *metrics.EngineMetrics
}

// EngineOption customizes engine behavior.
type EngineOption func(*engineConfig)

// WithTurnDeadline bounds a whole turn; past it the customer gets the apology.
func WithTurnDeadline(d time.Duration) EngineOption {
	return func(cfg *engineConfig) {
		if d > 0 {
			cfg.turnDeadline = d
		}
	}
}

// WithHistoryBudget sets the transcript character budget.
func WithHistoryBudget(chars int) EngineOption {
	return func(cfg *engineConfig) {
		if chars > 0 {
			cfg.historyChars = chars
		}
	}
}

// WithLocation sets the timezone appointments are resolved in.
func WithLocation(loc *time.Location) EngineOption {
	return func(cfg *engineConfig) {
		if loc != nil {
			cfg.location = loc
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(cfg *engineConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithProcessedEventsStore adds durable inbound dedup across restarts.
func WithProcessedEventsStore(store processedEventStore) EngineOption {
	return func(cfg *engineConfig) {
		cfg.processed = store
	}
}

// WithUpserter promotes valid leads to the CRM board.
func WithUpserter(u *crm.Upserter) EngineOption {
	return func(cfg *engineConfig) {
		cfg.upserter = u
	}
}

// WithLeadsRepository records every emitted lead in the local ledger.
func WithLeadsRepository(repo leads.Repository) EngineOption {
	return func(cfg *engineConfig) {
		cfg.leadsRepo = repo
	}
}

// WithLeadNotifier alerts the sales desk when a visit gets scheduled.
func WithLeadNotifier(n LeadNotifier) EngineOption {
	return func(cfg *engineConfig) {
		cfg.notifier = n
	}
}

// WithEngineMetrics records turn metrics.
func WithEngineMetrics(m *metrics.EngineMetrics) EngineOption {
	return func(cfg *engineConfig) {
		cfg.metrics = m
	}
}

// NewEngine wires the turn engine.
func NewEngine(gate *handoff.Gate, sessions session.Store, inventory catalog.Inventory, pipeline *Pipeline, messenger ReplyMessenger, logger *logging.Logger, opts ...EngineOption) *Engine {
	if gate == nil {
		panic("conversation: handoff gate cannot be nil")
	}
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if inventory == nil {
		panic("conversation: inventory cannot be nil")
	}
	if pipeline == nil {
		panic("conversation: pipeline cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := engineConfig{
		turnDeadline: defaultTurnDeadline,
		historyChars: defaultHistoryChars,
		location:     time.UTC,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine{
		gate:      gate,
		sessions:  sessions,
		inventory: inventory,
		pipeline:  pipeline,
		messenger: messenger,
		logger:    logger,
		cfg:       cfg,
	}
}

// HandleInbound processes one customer message end to end: dedup, handoff
// checks, extraction, reply, lead promotion and session persistence. The
// session is persisted even when the turn fails.
func (e *Engine) HandleInbound(ctx context.Context, msg InboundMessage) (TurnResult, error) {
	start := e.cfg.now()
	if strings.TrimSpace(msg.ConversationID) == "" {
		return TurnResult{Outcome: OutcomeFailed}, errors.New("conversation: conversation id required")
	}
	log := e.logger.WithConversation(msg.ConversationID)

	if e.gate.SeenInbound(msg.MessageID) {
		e.cfg.metrics.ObserveDedupDiscard("memory")
		log.Info("duplicate inbound discarded", "message_id", msg.MessageID)
		return TurnResult{Outcome: OutcomeDuplicate}, nil
	}
	if e.cfg.processed != nil && msg.MessageID != "" {
		fresh, err := e.cfg.processed.MarkProcessed(ctx, providerOrDefault(msg.Provider), msg.MessageID)
		switch {
		case err != nil:
			log.Warn("processed events check failed, continuing", "error", err, "message_id", msg.MessageID)
		case !fresh:
			e.cfg.metrics.ObserveDedupDiscard("durable")
			log.Info("duplicate inbound discarded", "message_id", msg.MessageID, "source", "durable")
			return TurnResult{Outcome: OutcomeDuplicate}, nil
		}
	}

	now := start.In(e.cfg.location)
	sess, err := session.LoadOrNew(ctx, e.sessions, msg.ConversationID, now)
	if err != nil {
		log.Error("failed to load session", "error", err)
		e.deliver(ctx, msg, ApologyReply, nil, log)
		e.observeTurn(OutcomeFailed, start)
		return TurnResult{Outcome: OutcomeFailed, Reply: ApologyReply}, fmt.Errorf("conversation: load session: %w", err)
	}
	if leads.IsTerminal(sess.FunnelStage) {
		log.Info("new sales cycle after closed stage", "stage", sess.FunnelStage, "cycle", sess.Cycle+1)
		sess.StartCycle()
	}
	sess.BeginTurn(now)
	defer e.persist(ctx, sess, log)

	if res, handled := e.handleCommand(ctx, msg, sess, log); handled {
		e.observeTurn(res.Outcome, start)
		return res, nil
	}

	if status := e.gate.Status(msg.ConversationID, now); !status.Active() {
		sess.State = session.StateSilenced
		sess.AppendTurn(msg.Text, "", e.cfg.historyChars)
		log.Info("conversation silenced, no reply", "muted", status.Muted, "until", status.Until)
		e.observeTurn(OutcomeSilenced, start)
		return TurnResult{Outcome: OutcomeSilenced, Stage: sess.FunnelStage}, nil
	}
	if sess.State == session.StateSilenced {
		sess.State = session.StateActive
	}

	turnCtx, cancel := context.WithTimeout(ctx, e.cfg.turnDeadline)
	defer cancel()

	if err := e.inventory.EnsureLoaded(turnCtx); err != nil {
		log.Warn("inventory refresh failed, using last snapshot", "error", err)
	}
	snap := e.inventory.Snapshot()

	changed := applyExtraction(sess, msg.Text, snap, now)
	out, err := e.pipeline.Respond(turnCtx, TurnInput{
		Session:      sess,
		Catalog:      snap,
		Text:         msg.Text,
		Now:          now,
		FactsChanged: changed,
	})
	if err != nil {
		log.Error("pipeline failed", "error", err)
		out = TurnOutput{Reply: ApologyReply, Fallback: true, FallbackCause: err}
	}
	if out.Lead != nil {
		adoptLeadFacts(sess, *out.Lead, snap)
	}

	prior := sess.FunnelStage
	disinterest := extraction.IsDisinterest(msg.Text)
	sess.FunnelStage = leads.Derive(prior, leads.Signals{
		HasInterest:         sess.LastInterest != "",
		DocumentIssued:      out.DocumentIssued,
		AppointmentResolved: sess.LastAppointment != "",
		Disinterest:         disinterest,
	})
	if sess.FunnelStage != prior {
		log.Info("funnel stage changed", "from", prior, "to", sess.FunnelStage)
	}

	e.deliver(ctx, msg, out.Reply, out.Media.URLs, log)
	sess.AppendTurn(msg.Text, out.Reply, e.cfg.historyChars)

	result := TurnResult{
		Outcome:   OutcomeReplied,
		Reply:     out.Reply,
		MediaURLs: out.Media.URLs,
		Stage:     sess.FunnelStage,
	}
	if out.Fallback {
		result.Outcome = OutcomeFallback
	}

	switch {
	case out.Lead != nil:
		result.Lead = e.promote(ctx, msg, sess, *out.Lead, log)
	case disinterest:
		e.closeOpenItem(ctx, msg, sess, log)
	}

	e.observeTurn(result.Outcome, start)
	return result, nil
}

// HandleEcho classifies an outbound message seen on the business number. A
// human-authored one silences the engine for the conversation.
func (e *Engine) HandleEcho(ctx context.Context, echo EchoMessage) (handoff.Origin, error) {
	if strings.TrimSpace(echo.ConversationID) == "" {
		return handoff.OriginBot, errors.New("conversation: conversation id required")
	}
	at := echo.SentAt
	if at.IsZero() {
		at = e.cfg.now()
	}
	origin := e.gate.ObserveEcho(echo.ConversationID, echo.MessageID, echo.Text, at)
	if origin != handoff.OriginHuman {
		return origin, nil
	}

	log := e.logger.WithConversation(echo.ConversationID)
	e.cfg.metrics.ObserveSilence("human_echo")
	log.Info("human agent took over, engine silenced", "message_id", echo.MessageID)

	sess, err := e.sessions.Get(ctx, echo.ConversationID)
	if errors.Is(err, session.ErrNotFound) {
		return origin, nil
	}
	if err != nil {
		return origin, fmt.Errorf("conversation: load session for echo: %w", err)
	}
	sess.State = session.StateSilenced
	sess.UpdatedAt = at
	if err := e.sessions.Upsert(ctx, sess); err != nil {
		return origin, fmt.Errorf("conversation: persist silenced session: %w", err)
	}
	return origin, nil
}

func (e *Engine) handleCommand(ctx context.Context, msg InboundMessage, sess *session.Session, log *logging.Logger) (TurnResult, bool) {
	var reply string
	switch handoff.ParseCommand(msg.Text) {
	case handoff.CommandMute:
		e.gate.Mute(msg.ConversationID)
		sess.State = session.StateSilenced
		e.cfg.metrics.ObserveSilence("customer_command")
		log.Info("customer asked for a human, engine muted")
		reply = muteAck
	case handoff.CommandUnmute:
		e.gate.Unmute(msg.ConversationID)
		sess.State = session.StateActive
		log.Info("customer re-enabled the engine")
		reply = unmuteAck
	default:
		return TurnResult{}, false
	}
	e.deliver(ctx, msg, reply, nil, log)
	sess.AppendTurn(msg.Text, reply, e.cfg.historyChars)
	return TurnResult{Outcome: OutcomeCommand, Reply: reply, Stage: sess.FunnelStage}, true
}

// promote records a valid lead in the CRM and the ledger. It returns nil
// when the lead was already issued for this message.
func (e *Engine) promote(ctx context.Context, msg InboundMessage, sess *session.Session, c leads.Candidate, log *logging.Logger) *leads.Lead {
	prior := sess.LeadStage
	lead := &leads.Lead{
		ConversationID: msg.ConversationID,
		MessageID:      msg.MessageID,
		Phone:          crm.SanitizePhone(phoneOf(msg)),
		Candidate:      c,
		Stage:          sess.FunnelStage,
		Cycle:          sess.Cycle,
		CreatedAt:      e.cfg.now(),
	}

	crmFailed := false
	if e.cfg.upserter != nil {
		res, err := e.cfg.upserter.Upsert(ctx, crm.UpsertRequest{
			Phone:          lead.Phone,
			ConversationID: msg.ConversationID,
			MessageID:      msg.MessageID,
			Candidate:      c,
			Stage:          sess.FunnelStage,
		})
		switch {
		case err != nil:
			e.cfg.metrics.ObserveCRMWrite("error")
			log.Error("crm upsert failed", "error", err, "message_id", msg.MessageID)
			crmFailed = true
		case res.Duplicate:
			e.cfg.metrics.ObserveDedupDiscard("lead")
			sess.LeadStage = lead.Stage
			return nil
		default:
			sess.LeadStage = lead.Stage
			lead.CRMItemID = res.ItemID
			if res.Created {
				e.cfg.metrics.ObserveCRMWrite("created")
			} else {
				e.cfg.metrics.ObserveCRMWrite("updated")
			}
		}
	} else {
		if !e.gate.ClaimLead(msg.ConversationID, msg.MessageID) {
			e.cfg.metrics.ObserveDedupDiscard("lead")
			return nil
		}
		sess.LeadStage = lead.Stage
	}

	e.cfg.metrics.ObserveLead(string(lead.Stage))
	log.Info("lead emitted", "stage", lead.Stage, "interest", c.Interest, "crm_item_id", lead.CRMItemID)

	if e.cfg.leadsRepo != nil {
		if err := e.cfg.leadsRepo.Record(ctx, lead); err != nil {
			log.Error("failed to record lead", "error", err)
		}
	}
	// a failed write is retried by the next turn, which notifies then
	if e.cfg.notifier != nil && !crmFailed && lead.Stage == leads.StageAppointmentScheduled && prior != leads.StageAppointmentScheduled {
		if err := e.cfg.notifier.NotifyLead(ctx, *lead); err != nil {
			log.Warn("lead notification failed", "error", err)
		}
	}
	return lead
}

// closeOpenItem moves an existing CRM item to "Sin Interes". Customers that
// opt out before becoming a lead get no item.
func (e *Engine) closeOpenItem(ctx context.Context, msg InboundMessage, sess *session.Session, log *logging.Logger) {
	if e.cfg.upserter == nil {
		return
	}
	res, err := e.cfg.upserter.Upsert(ctx, crm.UpsertRequest{
		Phone:          phoneOf(msg),
		ConversationID: msg.ConversationID,
		MessageID:      msg.MessageID,
		Candidate:      sessionCandidate(sess),
		Stage:          leads.StageNoInterest,
		OnlyExisting:   true,
	})
	switch {
	case err != nil:
		e.cfg.metrics.ObserveCRMWrite("error")
		log.Error("crm opt-out update failed", "error", err)
	case res.Duplicate, res.Skipped:
	default:
		e.cfg.metrics.ObserveCRMWrite("updated")
		log.Info("crm item closed as no interest", "item_id", res.ItemID)
	}
}

func (e *Engine) deliver(ctx context.Context, msg InboundMessage, body string, media []string, log *logging.Logger) {
	at := e.cfg.now()
	// Registered before sending: the echo can arrive before SendReply returns.
	e.gate.RecordBotSend(msg.ConversationID, "", body, at)
	if e.messenger == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	ids, err := e.messenger.SendReply(sendCtx, OutboundReply{
		ConversationID: msg.ConversationID,
		To:             msg.From,
		From:           msg.To,
		Body:           body,
		MediaURLs:      media,
	})
	if err != nil {
		log.Error("failed to send reply", "error", err)
		return
	}
	for _, id := range ids {
		e.gate.RecordBotSend(msg.ConversationID, id, "", at)
	}
}

func (e *Engine) persist(ctx context.Context, sess *session.Session, log *logging.Logger) {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := e.sessions.Upsert(persistCtx, sess); err != nil {
		log.Error("failed to persist session", "error", err, "turn", sess.TurnCount)
	}
}

func (e *Engine) observeTurn(outcome TurnOutcome, start time.Time) {
	e.cfg.metrics.ObserveTurn(string(outcome), e.cfg.now().Sub(start).Seconds())
}

func phoneOf(msg InboundMessage) string {
	if p := crm.SanitizePhone(msg.From); p != "" {
		return p
	}
	return msg.ConversationID
}

func providerOrDefault(p string) string {
	if p == "" {
		return events.ProviderGeneric
	}
	return p
}

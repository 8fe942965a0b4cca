package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

const unnamedLead = "Lead sin nombre"

// LeadClaimer suppresses a second upsert for the same inbound message.
type LeadClaimer interface {
	ClaimLead(conversationID, messageID string) bool
}

// UpsertRequest is one lead to promote to the board.
type UpsertRequest struct {
	Phone          string
	ConversationID string
	MessageID      string
	Candidate      leads.Candidate
	// Stage is the derived funnel stage. Empty means First Contact for a new
	// record and no stage write for an existing one.
	Stage leads.Stage
	Note  string
	// OnlyExisting updates an open item but never creates one. Used for
	// opt-outs from customers that never became a lead.
	OnlyExisting bool
}

// UpsertResult reports what the upsert did.
type UpsertResult struct {
	ItemID       string
	Created      bool
	Duplicate    bool
	Skipped      bool
	StageWritten bool
	Stage        leads.Stage
	PriorStage   leads.Stage
}

// Upserter creates or updates exactly one board item per customer cycle.
type Upserter struct {
	client  Client
	claims  LeadClaimer
	timeout time.Duration
	logger  *logging.Logger
}

// NewUpserter wires the board client. claims may be nil, in which case
// duplicate suppression is the caller's job. timeout bounds the whole upsert.
func NewUpserter(client Client, claims LeadClaimer, timeout time.Duration, logger *logging.Logger) *Upserter {
	if client == nil {
		panic("crm: client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Upserter{client: client, claims: claims, timeout: timeout, logger: logger}
}

// Upsert finds the customer's current item by phone and merges the lead into
// it, or creates a new item when there is none or the stored one is closed.
func (u *Upserter) Upsert(ctx context.Context, req UpsertRequest) (UpsertResult, error) {
	phone := SanitizePhone(req.Phone)
	if phone == "" {
		return UpsertResult{}, leads.ErrMissingPhone
	}
	if u.claims != nil && req.MessageID != "" && !u.claims.ClaimLead(req.ConversationID, req.MessageID) {
		u.logger.Info("crm upsert skipped: lead already issued for message",
			"conversation_id", req.ConversationID, "message_id", req.MessageID)
		return UpsertResult{Duplicate: true}, nil
	}
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	existing, err := u.client.FindByPhone(ctx, phone)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("crm: find by phone: %w", err)
	}
	if req.OnlyExisting && (existing == nil || leads.IsTerminal(existing.Stage)) {
		return UpsertResult{Skipped: true}, nil
	}

	res := UpsertResult{}
	current := leads.Stage("")
	isNew := existing == nil
	if existing != nil {
		res.PriorStage = existing.Stage
		if leads.IsTerminal(existing.Stage) {
			u.logger.Info("crm item closed, starting new cycle", "item_id", existing.ID, "stage", existing.Stage)
			isNew = true
		} else {
			res.ItemID = existing.ID
			current = existing.Stage
		}
	}

	stage := req.Stage
	if stage == "" && isNew {
		stage = leads.StageFirstContact
	}
	fields := buildFields(phone, req, stage, current, isNew)
	res.StageWritten = fields.Stage != ""
	res.Stage = current
	if res.StageWritten {
		res.Stage = fields.Stage
	}

	name := strings.TrimSpace(req.Candidate.Name)
	realName := name != "" && !leads.IsPlaceholderName(name)
	if !realName {
		name = unnamedLead
	}
	display := name + " | " + phone

	if isNew {
		id, err := u.client.CreateItem(ctx, display, fields)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("crm: create item: %w", err)
		}
		res.ItemID = id
		res.Created = true
	} else {
		if err := u.client.UpdateColumns(ctx, res.ItemID, fields); err != nil {
			return UpsertResult{}, fmt.Errorf("crm: update item %s: %w", res.ItemID, err)
		}
		if realName && existing.Name != display {
			if err := u.client.Rename(ctx, res.ItemID, display); err != nil {
				u.logger.Warn("crm rename failed", "error", err, "item_id", res.ItemID)
			}
		}
	}

	note := req.Note
	if note == "" {
		note = auditNote(res, name, phone, req.Candidate)
	}
	if err := u.client.AppendNote(ctx, res.ItemID, note); err != nil {
		u.logger.Warn("crm note failed", "error", err, "item_id", res.ItemID)
	}

	u.logger.Info("crm lead upserted",
		"item_id", res.ItemID,
		"created", res.Created,
		"stage", res.Stage,
		"stage_written", res.StageWritten,
		"conversation_id", req.ConversationID,
	)
	return res, nil
}

func buildFields(phone string, req UpsertRequest, stage, current leads.Stage, isNew bool) Fields {
	f := Fields{
		DedupePhone:   phone,
		LastMessageID: strings.TrimSpace(req.MessageID),
		Phone:         phone,
	}
	if stage != "" && leads.ShouldWriteStage(current, stage, isNew) {
		f.Stage = stage
	}
	f.Vehicle = ResolveVehicle(req.Candidate.Interest)
	if isNew || req.Candidate.Payment != leads.PaymentUndefined {
		f.Payment = req.Candidate.Payment.Label()
	}
	if req.Candidate.AppointmentDate != "" {
		f.AppointmentDate = req.Candidate.AppointmentDate
		f.AppointmentTime = req.Candidate.AppointmentTime
	}
	return f
}

func auditNote(res UpsertResult, name, phone string, c leads.Candidate) string {
	if !res.Created {
		if res.StageWritten {
			return fmt.Sprintf("Actualizado a etapa: %s", res.Stage)
		}
		return "Datos del lead actualizados"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ETAPA: %s\n", res.Stage)
	fmt.Fprintf(&b, "Nombre: %s\n", name)
	fmt.Fprintf(&b, "Tel: %s\n", phone)
	interest := c.Interest
	if interest == "" {
		interest = "N/A"
	}
	fmt.Fprintf(&b, "Interés: %s\n", interest)
	switch {
	case c.AppointmentDate != "":
		fmt.Fprintf(&b, "Cita: %s", c.AppointmentDate)
		if c.AppointmentTime != "" {
			fmt.Fprintf(&b, " %s", c.AppointmentTime)
		}
		b.WriteString("\n")
	case c.Appointment != "":
		fmt.Fprintf(&b, "Cita: %s\n", c.Appointment)
	}
	fmt.Fprintf(&b, "Pago: %s\n", c.Payment.Label())
	return b.String()
}

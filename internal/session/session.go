// Package session holds the per-conversation state that survives between
// turns and the stores that persist it.
package session

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wolfman30/dealer-ai-platform/internal/leads"
)

// State is the conversation's automation state.
type State string

const (
	StateStart          State = "start"
	StateActive         State = "active"
	StateSilenced       State = "silenced"
	StateTerminalSilent State = "terminal_silent"
)

const (
	customerPrefix = "Cliente: "
	botPrefix      = "Asesor: "
)

// Session is everything the engine remembers about one conversation.
// Sessions are never deleted by the engine.
type Session struct {
	ID                  string        `json:"id"`
	State               State         `json:"state"`
	History             string        `json:"history"`
	UserName            string        `json:"user_name,omitempty"`
	LastInterest        string        `json:"last_interest,omitempty"`
	LastAppointment     string        `json:"last_appointment,omitempty"`
	LastAppointmentDate string        `json:"last_appointment_date,omitempty"`
	LastAppointmentTime string        `json:"last_appointment_time,omitempty"`
	LastPayment         leads.Payment `json:"last_payment,omitempty"`
	TurnCount           int           `json:"turn_count"`
	PhotoModel          string        `json:"photo_model,omitempty"`
	PhotoIndex          int           `json:"photo_index"`
	LastPDFRequestType  string        `json:"last_pdf_request_type,omitempty"`
	FunnelStage         leads.Stage   `json:"funnel_stage,omitempty"`
	// LeadStage is the stage of the last lead handed to the CRM this cycle.
	LeadStage      leads.Stage `json:"lead_stage,omitempty"`
	Cycle          int         `json:"cycle"`
	LastBotMessage string      `json:"last_bot_message,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// New returns a fresh session in the start state.
func New(id string, now time.Time) *Session {
	return &Session{ID: id, State: StateStart, CreatedAt: now, UpdatedAt: now}
}

// Clone returns an independent copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// BeginTurn counts one processed inbound event.
func (s *Session) BeginTurn(now time.Time) {
	s.TurnCount++
	if s.State == StateStart {
		s.State = StateActive
	}
	s.UpdatedAt = now
}

// AppendTurn records the exchange and trims the transcript to maxChars,
// dropping whole lines from the head.
func (s *Session) AppendTurn(user, bot string, maxChars int) {
	var b strings.Builder
	b.WriteString(s.History)
	if user = oneLine(user); user != "" {
		b.WriteString(customerPrefix + user + "\n")
	}
	if bot = oneLine(bot); bot != "" {
		b.WriteString(botPrefix + bot + "\n")
		s.LastBotMessage = bot
	}
	s.History = trimHead(b.String(), maxChars)
}

// Turn is one line of the transcript.
type Turn struct {
	FromCustomer bool   `json:"from_customer"`
	Text         string `json:"text"`
}

// Turns parses the transcript back into lines.
func (s *Session) Turns() []Turn {
	var out []Turn
	for _, line := range strings.Split(s.History, "\n") {
		switch {
		case strings.HasPrefix(line, customerPrefix):
			out = append(out, Turn{FromCustomer: true, Text: strings.TrimPrefix(line, customerPrefix)})
		case strings.HasPrefix(line, botPrefix):
			out = append(out, Turn{Text: strings.TrimPrefix(line, botPrefix)})
		}
	}
	return out
}

// StartCycle resets the funnel after a terminal stage so the next lead is
// recorded as a new opportunity. Known facts about the customer are kept.
func (s *Session) StartCycle() {
	s.Cycle++
	s.FunnelStage = leads.StageFirstContact
	s.LeadStage = leads.StageUnknown
	s.LastAppointment = ""
	s.LastAppointmentDate = ""
	s.LastAppointmentTime = ""
	s.LastPDFRequestType = ""
}

func oneLine(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

func trimHead(history string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(history) <= maxChars {
		return history
	}
	runes := []rune(history)
	tail := string(runes[len(runes)-maxChars:])
	if idx := strings.IndexByte(tail, '\n'); idx >= 0 && idx < len(tail)-1 {
		return tail[idx+1:]
	}
	return tail
}

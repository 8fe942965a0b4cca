package leads

import "strings"

// Stage is a funnel stage, stored with the label the CRM board uses.
type Stage string

const (
	StageUnknown              Stage = ""
	StageFirstContact         Stage = "1er Contacto"
	StageIntent               Stage = "Intención"
	StageQuotation            Stage = "Cotización"
	StageAppointmentScheduled Stage = "Cita Programada"
	StageClosedWon            Stage = "Venta Cerrada"
	StageClosedLost           Stage = "Venta Caida"
	StageNoInterest           Stage = "Sin Interes"
)

var stageRank = map[Stage]int{
	StageFirstContact:         1,
	StageIntent:               2,
	StageQuotation:            3,
	StageAppointmentScheduled: 4,
}

// Rank returns the ordinal of a ranked stage, 0 for terminal or unknown stages.
func Rank(s Stage) int {
	return stageRank[s]
}

// IsTerminal reports whether s closes the current sales cycle. A new inbound
// event after a terminal stage starts a new logical record.
func IsTerminal(s Stage) bool {
	switch s {
	case StageClosedWon, StageClosedLost, StageNoInterest:
		return true
	}
	return false
}

// ParseStage maps a CRM label, with or without accents, to a Stage.
func ParseStage(label string) Stage {
	switch foldLabel(label) {
	case "1er contacto", "primer contacto":
		return StageFirstContact
	case "intencion":
		return StageIntent
	case "cotizacion":
		return StageQuotation
	case "cita programada":
		return StageAppointmentScheduled
	case "venta cerrada":
		return StageClosedWon
	case "venta caida":
		return StageClosedLost
	case "sin interes":
		return StageNoInterest
	}
	return StageUnknown
}

// Signals are the facts of a turn that can move the funnel.
type Signals struct {
	HasInterest         bool
	DocumentIssued      bool
	AppointmentResolved bool
	Disinterest         bool
}

// Derive computes the stage after a turn. Disinterest wins regardless of rank;
// otherwise the result never ranks below current. A terminal current stage
// means a new cycle, which restarts from first contact.
func Derive(current Stage, s Signals) Stage {
	if s.Disinterest {
		return StageNoInterest
	}

	next := StageFirstContact
	switch {
	case s.AppointmentResolved:
		next = StageAppointmentScheduled
	case s.DocumentIssued:
		next = StageQuotation
	case s.HasInterest:
		next = StageIntent
	}

	if IsTerminal(current) {
		return next
	}
	if Rank(current) > Rank(next) {
		return current
	}
	return next
}

// ShouldWriteStage decides whether a CRM record at current may be moved to
// candidate. New records always take the candidate; "Sin Interes" overrides
// any rank; otherwise only strict advances are written.
func ShouldWriteStage(current, candidate Stage, isNew bool) bool {
	if candidate == StageUnknown {
		return false
	}
	if isNew || candidate == StageNoInterest {
		return true
	}
	if IsTerminal(current) {
		return true
	}
	return Rank(candidate) > Rank(current)
}

func foldLabel(label string) string {
	r := strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u")
	return strings.ToLower(strings.TrimSpace(r.Replace(label)))
}

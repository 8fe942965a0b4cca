package conversation

import (
	"time"

	"github.com/wolfman30/dealer-ai-platform/internal/catalog"
	"github.com/wolfman30/dealer-ai-platform/internal/extraction"
	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/internal/session"
)

// applyExtraction runs every extractor over the customer's message and
// stores what they found. Extractors that find nothing leave the session
// untouched. It reports whether any fact changed.
func applyExtraction(sess *session.Session, text string, snap catalog.Snapshot, now time.Time) bool {
	changed := false

	if name, ok := extraction.Name(text, sess.LastBotMessage); ok && name != sess.UserName {
		sess.UserName = name
		changed = true
	}
	if pay, ok := extraction.Payment(text); ok && pay != sess.LastPayment {
		sess.LastPayment = pay
		changed = true
	}
	if appt, ok := extraction.ParseAppointment(text, now); ok && appt.Display != sess.LastAppointment {
		sess.LastAppointment = appt.Display
		sess.LastAppointmentDate = appt.Date
		sess.LastAppointmentTime = appt.Time
		changed = true
	}
	if interest, ok := extraction.Interest(text, "", snap.Items); ok && interest != sess.LastInterest {
		sess.LastInterest = interest
		changed = true
	}
	return changed
}

// adoptLeadFacts copies facts the model surfaced into the session when the
// extractors missed them. Interest is only adopted for catalog models.
func adoptLeadFacts(sess *session.Session, c leads.Candidate, snap catalog.Snapshot) {
	if sess.UserName == "" && !leads.IsPlaceholderName(c.Name) {
		sess.UserName = c.Name
	}
	if sess.LastInterest == "" {
		if item, ok := snap.Find(c.Interest); ok {
			sess.LastInterest = item.Name()
		}
	}
	if sess.LastAppointment == "" && c.Appointment != "" {
		sess.LastAppointment = c.Appointment
		sess.LastAppointmentDate = c.AppointmentDate
		sess.LastAppointmentTime = c.AppointmentTime
	}
	if sess.LastPayment == leads.PaymentUndefined {
		sess.LastPayment = c.Payment
	}
}

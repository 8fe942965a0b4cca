// Package crm keeps one commercial record per customer interaction on the
// dealership's CRM board.
package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dealer-ai-platform/internal/leads"
)

// Item is the board record found for a phone.
type Item struct {
	ID    string
	Name  string
	Stage leads.Stage
}

// Fields are the column writes for one create or update. Empty strings are
// not written.
type Fields struct {
	DedupePhone     string
	LastMessageID   string
	Phone           string
	Stage           leads.Stage
	Vehicle         string
	Payment         string
	AppointmentDate string
	AppointmentTime string
}

// Client is the minimal board API the upserter needs.
type Client interface {
	// FindByPhone returns the most recently created item for the phone, or
	// nil when there is none.
	FindByPhone(ctx context.Context, phone string) (*Item, error)
	CreateItem(ctx context.Context, name string, fields Fields) (string, error)
	UpdateColumns(ctx context.Context, itemID string, fields Fields) error
	Rename(ctx context.Context, itemID, name string) error
	AppendNote(ctx context.Context, itemID, body string) error
}

var monthsES = [...]string{
	"ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO",
	"JULIO", "AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE",
}

// MonthGroupName is the board group new items are filed under, e.g.
// "FEBRERO 2026".
func MonthGroupName(t time.Time) string {
	return fmt.Sprintf("%s %d", monthsES[t.Month()-1], t.Year())
}

var vehicleSynonyms = []struct {
	label    string
	synonyms []string
}{
	{"Tunland E5", []string{"e5", "tunland", "tunland e5"}},
	{"ESTA 6x4 11.8", []string{"esta 11.8", "6x4 11.8", "esta"}},
	{"ESTA 6x4 X13", []string{"esta x13", "6x4 x13"}},
	{"Miler", []string{"miler", "miller"}},
	{"Toano Panel", []string{"toano", "panel", "toano panel"}},
	{"Tunland G7", []string{"g7", "tunland g7"}},
	{"Tunland G9", []string{"g9", "tunland g9"}},
}

var vehicleNoise = strings.NewReplacer("foton", "", "diesel", "", "4x4", "")

// ResolveVehicle maps a detected interest to the board's vehicle dropdown
// label. Longer synonym matches weigh more; ties keep the first label.
func ResolveVehicle(interest string) string {
	text := strings.TrimSpace(vehicleNoise.Replace(strings.ToLower(interest)))
	if text == "" {
		return ""
	}
	best, bestScore := "", 0
	for _, v := range vehicleSynonyms {
		score := 0
		for _, syn := range v.synonyms {
			if strings.Contains(text, syn) {
				score += len(syn)
			}
		}
		if score > bestScore {
			best, bestScore = v.label, score
		}
	}
	return best
}

// SanitizePhone keeps only digits.
func SanitizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

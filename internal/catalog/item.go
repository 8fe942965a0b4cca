package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Financing is tri-state: a catalog row may say yes, no, or nothing.
type Financing int

const (
	FinancingUnspecified Financing = iota
	FinancingYes
	FinancingNo
)

// Item is one vehicle offered by the dealer.
type Item struct {
	Brand           string
	Model           string
	Year            int
	Price           float64
	Currency        string
	Stock           int
	Colors          []string
	Cabin           string
	Fuel            string
	Financing       Financing
	Location        string
	PhotoURLs       []string
	TechSheetURL    string
	FinancingDocURL string
}

// Name is how the vehicle is referred to in conversation and in the CRM.
func (i Item) Name() string {
	return strings.TrimSpace(i.Model)
}

// PromptLine renders the item as one catalog line for the model context.
// Fields the catalog leaves empty are omitted instead of guessed.
func (i Item) PromptLine() string {
	parts := []string{strings.TrimSpace(strings.Join([]string{i.Brand, i.Model}, " "))}
	if i.Year > 0 {
		parts = append(parts, fmt.Sprintf("año %d", i.Year))
	}
	if i.Price > 0 {
		currency := i.Currency
		if currency == "" {
			currency = "MXN"
		}
		parts = append(parts, fmt.Sprintf("precio $%s %s", formatThousands(i.Price), currency))
	}
	if i.Stock > 0 {
		parts = append(parts, fmt.Sprintf("%d en stock", i.Stock))
	}
	if len(i.Colors) > 0 {
		parts = append(parts, "colores: "+strings.Join(i.Colors, ", "))
	}
	if i.Cabin != "" {
		parts = append(parts, "cabina: "+i.Cabin)
	}
	if i.Fuel != "" {
		parts = append(parts, "combustible: "+i.Fuel)
	}
	switch i.Financing {
	case FinancingYes:
		parts = append(parts, "financiamiento disponible")
	case FinancingNo:
		parts = append(parts, "solo contado")
	}
	if i.Location != "" {
		parts = append(parts, "ubicación: "+i.Location)
	}
	if len(i.PhotoURLs) > 0 {
		parts = append(parts, fmt.Sprintf("%d fotos", len(i.PhotoURLs)))
	}
	return "- " + strings.Join(parts, " | ")
}

func formatThousands(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	for idx, r := range s {
		if idx > 0 && (len(s)-idx)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Snapshot is an immutable view of the catalog for the duration of one turn.
type Snapshot struct {
	Items    []Item
	LoadedAt time.Time
}

// Find returns the item whose name matches, case-insensitively.
func (s Snapshot) Find(name string) (Item, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Item{}, false
	}
	for _, it := range s.Items {
		if strings.ToLower(it.Name()) == needle {
			return it, true
		}
	}
	return Item{}, false
}

// Names lists the item names in catalog order.
func (s Snapshot) Names() []string {
	out := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, it.Name())
	}
	return out
}

// PromptBlock renders the whole catalog for the model context.
func (s Snapshot) PromptBlock() string {
	if len(s.Items) == 0 {
		return "(inventario no disponible)"
	}
	lines := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		lines = append(lines, it.PromptLine())
	}
	return strings.Join(lines, "\n")
}

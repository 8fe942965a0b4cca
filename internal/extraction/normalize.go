// Package extraction holds the deterministic extractors that pull customer
// facts out of free text. Every extractor is pure and reports an explicit
// no-match instead of an empty value.
package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips diacritics, so "Mañana" and "manana" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

var aliasRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\btun\s*lan(d)?\b`), "tunland"},
	{regexp.MustCompile(`\btunlan\b`), "tunland"},
	{regexp.MustCompile(`\bg\s+(7|9)\b`), "g$1"},
	{regexp.MustCompile(`\be\s+5\b`), "e5"},
	{regexp.MustCompile(`\bmill?er\b`), "miler"},
	{regexp.MustCompile(`\bx\s+13\b`), "x13"},
	{regexp.MustCompile(`\btoano\s+van\b`), "toano"},
	{regexp.MustCompile(`\bcamioneta\s+e5\b`), "e5"},
}

// NormalizeAliases folds s and rewrites the common misspellings and spacing
// variants customers use for model names.
func NormalizeAliases(s string) string {
	out := Fold(s)
	for _, rule := range aliasRules {
		out = rule.re.ReplaceAllString(out, rule.repl)
	}
	return out
}

// Tokens splits folded text into alphanumeric tokens. Decimal points inside
// numbers are kept so "11.8" survives as one token.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// KnownModels is the manufacturer line-up the model may have seen in training.
// Names outside the current catalog must never be offered to a customer.
var KnownModels = []string{
	"Tunland E5",
	"Tunland G7",
	"Tunland G9",
	"Tunland V7",
	"Tunland V9",
	"Miler",
	"Toano Panel",
	"View CS2",
	"Aumark",
	"Auman",
	"ESTA 6x4 11.8",
	"ESTA 6x4 X13",
}

// MentionedModels returns the known model names that appear in text.
func MentionedModels(text string) []string {
	folded := " " + strings.Join(Tokens(NormalizeAliases(text)), " ") + " "
	var out []string
	for _, m := range KnownModels {
		needle := " " + strings.Join(Tokens(Fold(m)), " ") + " "
		if strings.Contains(folded, needle) {
			out = append(out, m)
		}
	}
	return out
}

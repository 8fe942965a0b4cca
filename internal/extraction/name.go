package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const nameWordPattern = `[\p{L}][\p{L}\p{M}'-]*`

var namePhrasePattern = nameWordPattern + `(?:\s+` + nameWordPattern + `){0,3}`

var introPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bme\s+llamo\s+(` + namePhrasePattern + `)`),
	regexp.MustCompile(`(?i)\bmi\s+nombre\s+es\s+(` + namePhrasePattern + `)`),
	regexp.MustCompile(`(?i)\bsoy\s+(` + namePhrasePattern + `)`),
	regexp.MustCompile(`(?i)\ble\s+habla\s+(` + namePhrasePattern + `)`),
	regexp.MustCompile(`(?i)\bmy\s+name\s+is\s+(` + namePhrasePattern + `)`),
	regexp.MustCompile(`(?i)\bi'?m\s+(` + namePhrasePattern + `)`),
	regexp.MustCompile(`(?i)\bi\s+am\s+(` + namePhrasePattern + `)`),
}

// contextIntroPattern only counts after the bot asked who it is talking to
// ("¿con quién tengo el gusto?" -> "con Juan").
var contextIntroPattern = regexp.MustCompile(`(?i)^\s*con\s+(` + namePhrasePattern + `)`)

var nameTextNormalizer = strings.NewReplacer(
	"’", "'",
	"‘", "'",
	"′", "'",
)

var notNameWords = map[string]struct{}{
	// pronouns, articles and connectors
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "de": {}, "del": {}, "y": {},
	"e": {}, "o": {}, "que": {}, "con": {}, "para": {}, "por": {}, "en": {}, "a": {}, "al": {},
	"yo": {}, "tu": {}, "usted": {}, "su": {}, "mi": {}, "me": {}, "te": {}, "se": {}, "lo": {},
	"le": {}, "es": {}, "esta": {}, "este": {}, "estoy": {}, "muy": {}, "bien": {}, "aqui": {},
	"the": {}, "and": {}, "from": {}, "here": {}, "interested": {}, "looking": {},
	// greetings and courtesy
	"hola": {}, "buenas": {}, "buenos": {}, "dias": {}, "tardes": {}, "noches": {}, "gracias": {},
	"si": {}, "no": {}, "ok": {}, "okay": {}, "claro": {}, "saludos": {}, "hello": {}, "hi": {},
	"favor": {}, "perdon": {},
	// sales vocabulary
	"interesado": {}, "interesada": {}, "cliente": {}, "quiero": {}, "busco": {}, "necesito": {},
	"precio": {}, "cotizacion": {}, "financiamiento": {}, "contado": {}, "credito": {},
	"camioneta": {}, "camion": {}, "foton": {}, "tunland": {}, "miler": {}, "toano": {},
	"fotos": {}, "foto": {}, "informacion": {}, "info": {}, "cita": {}, "agencia": {},
	"manana": {}, "hoy": {}, "lunes": {}, "martes": {}, "miercoles": {}, "jueves": {},
	"viernes": {}, "sabado": {}, "domingo": {}, "nuevo": {}, "nueva": {},
	// predicates after "soy"
	"casado": {}, "casada": {}, "soltero": {}, "soltera": {}, "divorciado": {}, "divorciada": {},
	"viudo": {}, "viuda": {}, "mexicano": {}, "mexicana": {}, "nuevos": {}, "local": {},
	"mayor": {}, "joven": {}, "estudiante": {}, "empresario": {}, "empresaria": {},
	"transportista": {}, "comerciante": {}, "agricultor": {}, "dueno": {}, "duena": {},
	"gerente": {}, "encargado": {}, "encargada": {}, "vendedor": {}, "vendedora": {},
	"alguien": {}, "ese": {}, "esa": {}, "quien": {}, "mismo": {}, "misma": {},
}

var nameQuestionHints = []string{
	"tu nombre",
	"su nombre",
	"como te llamas",
	"como se llama",
	"con quien tengo el gusto",
	"a nombre de quien",
	"me compartes tu nombre",
	"me regalas tu nombre",
	"your name",
}

// AskedForName reports whether a bot message asked for the customer's name.
func AskedForName(botMessage string) bool {
	folded := Fold(nameTextNormalizer.Replace(botMessage))
	for _, hint := range nameQuestionHints {
		if strings.Contains(folded, hint) {
			return true
		}
	}
	return false
}

// Name extracts the customer's name from a self-introduction. A bare reply
// of one to four words only counts when lastBotMessage asked for the name.
func Name(text, lastBotMessage string) (string, bool) {
	normalized := nameTextNormalizer.Replace(text)

	for _, pattern := range introPatterns {
		if words := introWords(pattern, normalized); len(words) > 0 {
			if name, ok := nameFromWords(words, false); ok {
				return name, true
			}
		}
	}

	if !AskedForName(lastBotMessage) {
		return "", false
	}
	if words := introWords(contextIntroPattern, normalized); len(words) > 0 {
		if name, ok := nameFromWords(words, false); ok {
			return name, true
		}
	}
	words := strings.Fields(normalized)
	if len(words) == 0 || len(words) > 4 {
		return "", false
	}
	return nameFromWords(words, true)
}

// introWords returns the whitespace-delimited tokens the pattern's name group
// starts on, so "Juan123" or "Juan.Perez" reach nameFromWords whole instead of
// as a clean letter prefix.
func introWords(pattern *regexp.Regexp, text string) []string {
	loc := pattern.FindStringSubmatchIndex(text)
	if len(loc) < 4 || loc[2] < 0 {
		return nil
	}
	want := len(strings.Fields(text[loc[2]:loc[3]]))
	words := strings.Fields(text[loc[2]:])
	if len(words) > want {
		words = words[:want]
	}
	return words
}

// nameFromWords keeps leading name-like words, stopping at the first word that
// is not one. strict requires every word to qualify.
func nameFromWords(words []string, strict bool) (string, bool) {
	parts := make([]string, 0, 3)
	for _, w := range words {
		cleaned := cleanNameToken(w)
		if cleaned == "" && !strict {
			break
		}
		if !looksLikeNameWord(cleaned) {
			if strict {
				return "", false
			}
			break
		}
		parts = append(parts, capitalizeNameWord(cleaned))
		if len(parts) == 3 {
			break
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

func cleanNameToken(word string) string {
	word = strings.TrimSpace(word)
	word = strings.Trim(word, ".,!?¡¿\"()[]{}:;")
	return strings.Trim(word, "'-")
}

func looksLikeNameWord(word string) bool {
	count := utf8.RuneCountInString(word)
	if count < 2 || count > 30 {
		return false
	}
	for _, r := range word {
		if !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) && r != '\'' && r != '-' {
			return false
		}
	}
	_, common := notNameWords[Fold(word)]
	return !common
}

func capitalizeNameWord(word string) string {
	first, size := utf8.DecodeRuneInString(word)
	if first == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(first)) + strings.ToLower(word[size:])
}

package conversation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/wolfman30/dealer-ai-platform/internal/catalog"
	"github.com/wolfman30/dealer-ai-platform/internal/extraction"
)

const (
	// ApologyReply is the only text a customer sees when a turn fails.
	ApologyReply = "Disculpa, tuve un problema técnico. ¿Me repites tu mensaje en un momento?"

	nameRequestReply   = "¡Con gusto te comparto precios y detalles! Antes, ¿me compartes tu nombre, por favor?"
	unavailableReply   = "Ese modelo no lo tengo disponible por ahora. ¿Te muestro las opciones que sí tenemos en inventario?"
	attachmentCaption  = "Te comparto lo que me pediste."
	followUpReply      = "¿Te puedo ayudar con algo más?"
	photosSentSentence = "Te comparto las fotos de la %s."
	docSentSentence    = "Te comparto el documento en PDF."
)

var (
	speakerLabelRE   = regexp.MustCompile(`(?i)^\s*\**\s*(asesor|vendedor|agente|asistente|assistant|bot|toño(\s+ram[ií]rez)?)\s*\**\s*:\s*`)
	transcriptLineRE = regexp.MustCompile(`(?im)^\s*cliente\s*:.*$`)

	photoDenialRE = regexp.MustCompile(`(?i)\bno\s+(puedo|podemos|es\s+posible|me\s+es\s+posible|tengo\s+forma\s+de)\s+(enviar|mandar|compartir|adjuntar|mostrar)|\bno\s+(cuento\s+con|tengo)\s+(fotos|im[aá]genes)`)
	docDenialRE   = regexp.MustCompile(`(?i)\bno\s+(puedo|podemos|es\s+posible|me\s+es\s+posible)\s+(enviar|mandar|compartir|adjuntar)[^.!?\n]*(pdf|ficha|documento|archivo|corrida)`)
	photoWordRE   = regexp.MustCompile(`(?i)fotos?|im[aá]gen(es)?|fotograf[ií]as?`)

	markdownLinkRE = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)`)
	boldRE         = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	headingRE      = regexp.MustCompile(`(?m)^#{1,6}\s+`)

	priceMentionRE = regexp.MustCompile(`(?i)\$\s?\d|\b\d[\d,.]*\s*(mil|pesos|mxn)\b`)
)

// stripSpeakerLabel removes a leading "Asesor:" style prefix and any
// transcript line the model continued on the customer's behalf.
func stripSpeakerLabel(reply string) string {
	reply = speakerLabelRE.ReplaceAllString(reply, "")
	reply = transcriptLineRE.ReplaceAllString(reply, "")
	return tidyWhitespace(reply)
}

// rewriteContradictions replaces sentences that deny sending what is in
// fact attached.
func rewriteContradictions(reply string, m Media) string {
	if !m.HasAttachments() {
		return reply
	}
	var b strings.Builder
	replaced := false
	for _, s := range splitSentences(reply) {
		switch {
		case m.Kind == MediaPhotos && photoDenialRE.MatchString(s) && photoWordRE.MatchString(s):
			if !replaced {
				b.WriteString(fmt.Sprintf(photosSentSentence, m.Model) + trailingSpace(s))
			}
			replaced = true
		case m.Kind == MediaDocument && docDenialRE.MatchString(s):
			if !replaced {
				b.WriteString(docSentSentence + trailingSpace(s))
			}
			replaced = true
		default:
			b.WriteString(s)
		}
	}
	return tidyWhitespace(b.String())
}

// toWhatsAppMarkup turns markdown links into bare URLs and markdown bold
// into WhatsApp bold.
func toWhatsAppMarkup(reply string) string {
	reply = markdownLinkRE.ReplaceAllString(reply, "$2")
	reply = boldRE.ReplaceAllString(reply, "*$1*")
	reply = headingRE.ReplaceAllString(reply, "")
	return reply
}

// dropHallucinatedModels removes every sentence naming a manufacturer model
// the catalog does not carry. It returns the removed model names.
func dropHallucinatedModels(reply string, snap catalog.Snapshot) (string, []string) {
	var (
		b       strings.Builder
		dropped []string
		kept    bool
	)
	for _, s := range splitSentences(reply) {
		absent := absentModels(s, snap)
		if len(absent) > 0 {
			dropped = append(dropped, absent...)
			continue
		}
		if strings.TrimSpace(s) != "" {
			kept = true
		}
		b.WriteString(s)
	}
	if len(dropped) == 0 {
		return reply, nil
	}
	if !kept {
		return unavailableReply, dropped
	}
	return tidyWhitespace(b.String()), dropped
}

func absentModels(sentence string, snap catalog.Snapshot) []string {
	var out []string
	for _, m := range extraction.MentionedModels(sentence) {
		if !catalogCarries(snap, m) {
			out = append(out, m)
		}
	}
	return out
}

// catalogCarries reports whether some item's brand and model contain every
// token of model.
func catalogCarries(snap catalog.Snapshot, model string) bool {
	want := extraction.Tokens(extraction.NormalizeAliases(model))
	for _, it := range snap.Items {
		have := make(map[string]struct{})
		for _, tok := range extraction.Tokens(extraction.NormalizeAliases(it.Brand + " " + it.Model)) {
			have[tok] = struct{}{}
		}
		all := true
		for _, tok := range want {
			if _, ok := have[tok]; !ok {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func mentionsPrice(reply string) bool {
	return priceMentionRE.MatchString(reply)
}

// splitSentences cuts text after sentence punctuation or a newline. The
// pieces concatenate back to the input. A period between digits ("11.8")
// does not end a sentence.
func splitSentences(text string) []string {
	runes := []rune(text)
	var (
		out   []string
		start int
	)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		end := false
		switch r {
		case '\n':
			end = true
		case '.', '!', '?':
			next := i + 1
			if r == '.' && next < len(runes) && i > 0 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[next]) {
				continue
			}
			for next < len(runes) && (runes[next] == '.' || runes[next] == '!' || runes[next] == '?') {
				next++
			}
			i = next - 1
			end = next >= len(runes) || unicode.IsSpace(runes[next])
		}
		if !end {
			continue
		}
		for i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\t' || runes[i+1] == '\n') {
			i++
		}
		out = append(out, string(runes[start:i+1]))
		start = i + 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func trailingSpace(s string) string {
	trimmed := strings.TrimRightFunc(s, unicode.IsSpace)
	return s[len(trimmed):]
}

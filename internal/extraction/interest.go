package extraction

import (
	"strconv"

	"github.com/wolfman30/dealer-ai-platform/internal/catalog"
)

// interestStopWords are model-name tokens too generic to identify a vehicle.
var interestStopWords = map[string]struct{}{
	"de": {}, "la": {}, "el": {}, "los": {}, "las": {}, "y": {}, "con": {}, "para": {},
	"esta": {}, "este": {}, "foton": {}, "camioneta": {}, "camion": {}, "pickup": {},
	"van": {}, "panel": {}, "cabina": {}, "doble": {}, "sencilla": {}, "4x4": {}, "4x2": {},
	"diesel": {}, "gasolina": {},
}

const interestThreshold = 2

// Interest scores every catalog item against the user's message (weight 2)
// and the bot's draft (weight 1), with +3 when the user names the exact year.
// The best score at or above the threshold wins; a tie is no match.
func Interest(userText, botText string, items []catalog.Item) (string, bool) {
	userTokens := tokenSet(NormalizeAliases(userText))
	botTokens := tokenSet(NormalizeAliases(botText))

	best, bestScore, tied := "", 0, false
	for _, it := range items {
		score := 0
		for _, tok := range modelTokens(it.Name()) {
			if _, ok := userTokens[tok]; ok {
				score += 2
			}
			if _, ok := botTokens[tok]; ok {
				score++
			}
		}
		if it.Year > 0 && score > 0 {
			if _, ok := userTokens[strconv.Itoa(it.Year)]; ok {
				score += 3
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = it.Name(), score, false
		case score == bestScore && score > 0 && it.Name() != best:
			tied = true
		}
	}
	if bestScore < interestThreshold || tied {
		return "", false
	}
	return best, true
}

func tokenSet(folded string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokens(folded) {
		set[tok] = struct{}{}
	}
	return set
}

// ModelTokenHits counts the distinctive tokens of model that appear in text.
func ModelTokenHits(text, model string) int {
	tokens := tokenSet(NormalizeAliases(text))
	hits := 0
	for _, tok := range modelTokens(model) {
		if _, ok := tokens[tok]; ok {
			hits++
		}
	}
	return hits
}

func modelTokens(model string) []string {
	var out []string
	for _, tok := range Tokens(NormalizeAliases(model)) {
		if _, stop := interestStopWords[tok]; stop || len(tok) < 2 {
			continue
		}
		out = append(out, tok)
	}
	return out
}

package extraction

import (
	"regexp"
	"strings"
)

// PhotoAsk classifies how a message asks for pictures.
type PhotoAsk int

const (
	PhotoAskNone PhotoAsk = iota
	// PhotoAskFirst is an explicit request: "mándame fotos".
	PhotoAskFirst
	// PhotoAskOne continues the current photo session by exactly one: "otra foto".
	PhotoAskOne
	// PhotoAskPage continues by a page: "más fotos".
	PhotoAskPage
)

// DocumentKind names the PDF a customer asked for.
type DocumentKind string

const (
	DocumentNone      DocumentKind = ""
	DocumentTechSheet DocumentKind = "ficha"
	DocumentFinancing DocumentKind = "financiamiento"
)

var (
	onePhotoRE      = regexp.MustCompile(`\b(?:otra|siguiente)\s+(?:foto|imagen|fotografia)\b|^\s*(?:otra|una\s+mas)\s*[.!?]*\s*$`)
	morePhotosRE    = regexp.MustCompile(`\b(?:mas|otras)\s+(?:fotos|imagenes|fotografias)\b`)
	photoRE         = regexp.MustCompile(`\b(?:fotos?|imagen(?:es)?|fotografias?|pics?|photos?)\b|\bcomo\s+se\s+ve\b`)
	locationRE      = regexp.MustCompile(`\b(?:ubicacion|ubicados|direccion|donde\s+(?:estan|se\s+encuentran|queda|quedan)|como\s+llego|mapa|sucursal)\b`)
	browseRE        = regexp.MustCompile(`\b(?:que\s+(?:modelos|vehiculos|camionetas|unidades|tienen|manejan|venden)|catalogo|inventario|todos\s+los\s+modelos|opciones|lista\s+de\s+precios)\b`)
	financingTalkRE = regexp.MustCompile(`\b(?:financ\w*|credito|mensualidad(?:es)?|enganche|plazos?|a\s+meses|corrida)\b`)
	techSheetRE     = regexp.MustCompile(`\b(?:ficha(?:\s+tecnica)?|especificaciones|fichas)\b`)
	financingDocRE  = regexp.MustCompile(`\b(?:corrida(?:\s+financiera)?|simulacion|cotizacion\s+(?:en\s+)?pdf|plan\s+de\s+financiamiento)\b`)
	priceRE         = regexp.MustCompile(`\b(?:cuanto\s+(?:cuesta|sale|vale|esta)|precio|costo|cotiza\w*)\b`)
	disinterestRE   = regexp.MustCompile(`\b(?:ya\s+no\s+me\s+interesa|no\s+me\s+interesa|no\s+estoy\s+interesad[oa]|ya\s+compre|dejen\s+de\s+escribir|no\s+me\s+escriban|ya\s+no\s+gracias)\b`)
)

var confirmations = map[string]struct{}{
	"si": {}, "ok": {}, "okay": {}, "va": {}, "dale": {}, "confirmo": {}, "perfecto": {},
	"de acuerdo": {}, "claro": {}, "si claro": {}, "claro que si": {}, "listo": {}, "sale": {},
	"esta bien": {}, "si por favor": {}, "si gracias": {}, "ok gracias": {}, "va que va": {},
	"si esta bien": {}, "perfecto gracias": {}, "ahi nos vemos": {}, "alli estare": {}, "ahi estare": {},
}

// Photo reports how text asks for pictures, if at all.
func Photo(text string) PhotoAsk {
	folded := Fold(text)
	switch {
	case onePhotoRE.MatchString(folded):
		return PhotoAskOne
	case morePhotosRE.MatchString(folded):
		return PhotoAskPage
	case photoRE.MatchString(folded):
		return PhotoAskFirst
	}
	return PhotoAskNone
}

// IsLocationRequest reports whether the customer asks where the dealership is.
func IsLocationRequest(text string) bool {
	return locationRE.MatchString(Fold(text))
}

// IsCatalogBrowse reports whether the customer wants to see the whole line-up.
func IsCatalogBrowse(text string) bool {
	return browseRE.MatchString(Fold(text))
}

// MentionsFinancing reports whether financing terms appear in text.
func MentionsFinancing(text string) bool {
	return financingTalkRE.MatchString(Fold(text))
}

// IsPriceQuestion reports whether the customer asks for a price.
func IsPriceQuestion(text string) bool {
	return priceRE.MatchString(Fold(text))
}

// Document returns the PDF the customer asked for. Financing documents win
// when both are named.
func Document(text string) (DocumentKind, bool) {
	folded := Fold(text)
	switch {
	case financingDocRE.MatchString(folded):
		return DocumentFinancing, true
	case techSheetRE.MatchString(folded):
		return DocumentTechSheet, true
	}
	return DocumentNone, false
}

// IsDisinterest reports an opt-out keyword (exact STOP or BAJA) or a
// disinterest phrase.
func IsDisinterest(text string) bool {
	trimmed := strings.ToUpper(strings.Trim(strings.TrimSpace(text), ".!"))
	if trimmed == "STOP" || trimmed == "BAJA" {
		return true
	}
	return disinterestRE.MatchString(Fold(text))
}

// IsShortConfirmation reports a short affirmative like "sí" or "perfecto".
func IsShortConfirmation(text string) bool {
	folded := strings.Join(Tokens(Fold(text)), " ")
	_, ok := confirmations[folded]
	return ok
}

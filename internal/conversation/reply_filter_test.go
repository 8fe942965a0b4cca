package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"two sentences", "Hola. ¿Cómo estás? Bien", []string{"Hola. ", "¿Cómo estás? ", "Bien"}},
		{"decimal stays", "El motor es de 2.8 litros.", []string{"El motor es de 2.8 litros."}},
		{"newline ends sentence", "Precio especial\nTe espero", []string{"Precio especial\n", "Te espero"}},
		{"repeated punctuation", "¡Claro!! Te ayudo", []string{"¡Claro!! ", "Te ayudo"}},
		{"empty", "", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := splitSentences(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.in, strings.Join(got, ""))
		})
	}
}

func TestDropHallucinatedModels(t *testing.T) {
	snap := testCatalog()

	reply, dropped := dropHallucinatedModels("La Tunland G9 tiene motor diésel. También tenemos la Tunland G7 en oferta. ¿Te agendo?", snap)
	assert.Equal(t, []string{"Tunland G7"}, dropped)
	assert.NotContains(t, reply, "G7")
	assert.Contains(t, reply, "Tunland G9")
	assert.Contains(t, reply, "¿Te agendo?")

	reply, dropped = dropHallucinatedModels("Claro, la Tunland V9 es muy buena.", snap)
	assert.Equal(t, []string{"Tunland V9"}, dropped)
	assert.Equal(t, unavailableReply, reply)

	reply, dropped = dropHallucinatedModels("La Miler es ideal para reparto.", snap)
	assert.Nil(t, dropped)
	assert.Equal(t, "La Miler es ideal para reparto.", reply)
}

func TestRewriteContradictions(t *testing.T) {
	photos := Media{Kind: MediaPhotos, Model: "Tunland G9", URLs: []string{"https://cdn.example.com/g9/1.jpg"}}

	got := rewriteContradictions("No puedo enviar fotos por aquí. ¿Te agendo una cita?", photos)
	assert.Equal(t, "Te comparto las fotos de la Tunland G9. ¿Te agendo una cita?", got)

	doc := Media{Kind: MediaDocument, Model: "Tunland G9", URLs: []string{"https://cdn.example.com/g9/ficha.pdf"}}
	got = rewriteContradictions("Una disculpa, no puedo enviar la ficha en PDF. ¿Algo más?", doc)
	assert.Equal(t, "Te comparto el documento en PDF. ¿Algo más?", got)

	untouched := "No puedo enviar fotos por aquí."
	assert.Equal(t, untouched, rewriteContradictions(untouched, Media{Kind: MediaUnavailable}))
}

func TestToWhatsAppMarkup(t *testing.T) {
	got := toWhatsAppMarkup("## Detalles\nMira [la ficha](https://cdn.example.com/g9/ficha.pdf) con el **precio**")
	assert.Equal(t, "Detalles\nMira https://cdn.example.com/g9/ficha.pdf con el *precio*", got)
}

func TestStripSpeakerLabel(t *testing.T) {
	got := stripSpeakerLabel("Asesor: Hola, ¿cómo te llamas?\nCliente: Juan")
	assert.Equal(t, "Hola, ¿cómo te llamas?", got)

	got = stripSpeakerLabel("**Toño Ramírez**: ¡Claro que sí!")
	assert.Equal(t, "¡Claro que sí!", got)
}

func TestMentionsPrice(t *testing.T) {
	assert.True(t, mentionsPrice("Está en $589,900"))
	assert.True(t, mentionsPrice("cuesta 589 mil pesos"))
	assert.False(t, mentionsPrice("¿Me compartes tu nombre?"))
}

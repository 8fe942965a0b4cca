package handoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func TestSeenInbound(t *testing.T) {
	g := NewGate(Config{Capacity: 2})
	assert.False(t, g.SeenInbound("m1"))
	assert.True(t, g.SeenInbound("m1"))
	assert.False(t, g.SeenInbound(""))
	assert.False(t, g.SeenInbound(""))

	g.SeenInbound("m2")
	g.SeenInbound("m3")
	assert.False(t, g.SeenInbound("m1"), "m1 evicted at capacity")
}

func TestClaimLead_OncePerMessage(t *testing.T) {
	g := NewGate(Config{})
	assert.True(t, g.ClaimLead("521", "m1"))
	assert.False(t, g.ClaimLead("521", "m1"))
	assert.True(t, g.ClaimLead("521", "m2"))
	assert.True(t, g.ClaimLead("522", "m1"))
}

func TestClassifyEcho(t *testing.T) {
	g := NewGate(Config{EchoWindow: 15 * time.Second})
	g.RecordBotSend("521", "wamid.bot1", "¡Hola! ¿Cómo te llamas?", t0)

	tests := []struct {
		name string
		id   string
		text string
		at   time.Time
		want Origin
	}{
		{"known id", "wamid.bot1", "anything", t0.Add(time.Hour), OriginBot},
		{"exact recent text", "", "¡Hola!  ¿Cómo te llamas?", t0.Add(time.Hour), OriginBot},
		{"inside window", "", "Claro, te comparto la ficha técnica.", t0.Add(5 * time.Second), OriginBot},
		{"human marker in window", "", "Hola, soy Carlos de la agencia, te llamo en 5 minutos.", t0.Add(5 * time.Second), OriginHuman},
		{"free form in window", "", "si claro q te espero", t0.Add(5 * time.Second), OriginHuman},
		{"outside window", "", "Claro, te comparto la ficha técnica.", t0.Add(time.Minute), OriginHuman},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.ClassifyEcho("521", tt.id, tt.text, tt.at))
		})
	}
}

func TestClassifyEcho_UnknownConversationIsHuman(t *testing.T) {
	g := NewGate(Config{})
	assert.Equal(t, OriginHuman, g.ClassifyEcho("999", "", "Buenas tardes.", t0))
}

func TestRecordBotSend_KeepsOnlyRecentTexts(t *testing.T) {
	g := NewGate(Config{RecentBotMemory: 2})
	g.RecordBotSend("521", "", "Uno.", t0)
	g.RecordBotSend("521", "", "Dos.", t0)
	g.RecordBotSend("521", "", "Tres.", t0)

	late := t0.Add(time.Hour)
	assert.Equal(t, OriginHuman, g.ClassifyEcho("521", "", "Uno.", late))
	assert.Equal(t, OriginBot, g.ClassifyEcho("521", "", "Tres.", late))
}

func TestObserveEcho_SilencesAndExpires(t *testing.T) {
	g := NewGate(Config{SilenceDuration: 12 * time.Hour})

	origin := g.ObserveEcho("521", "", "Buenas, le atiende Laura.", t0)
	require.Equal(t, OriginHuman, origin)

	st := g.Status("521", t0.Add(time.Hour))
	assert.True(t, st.Silenced)
	assert.False(t, st.Active())
	assert.Equal(t, t0.Add(12*time.Hour), st.Until)

	st = g.Status("521", t0.Add(12*time.Hour))
	assert.True(t, st.Active(), "auto reactivation at expiry")
}

func TestObserveEcho_BotEchoDoesNotSilence(t *testing.T) {
	g := NewGate(Config{})
	g.RecordBotSend("521", "id1", "Te espero mañana.", t0)
	assert.Equal(t, OriginBot, g.ObserveEcho("521", "id1", "Te espero mañana.", t0.Add(time.Second)))
	assert.True(t, g.Status("521", t0.Add(time.Second)).Active())
}

func TestMuteIsNonExpiring(t *testing.T) {
	g := NewGate(Config{SilenceDuration: time.Hour})
	g.Mute("521")
	st := g.Status("521", t0.Add(365*24*time.Hour))
	assert.True(t, st.Muted)
	assert.False(t, st.Active())

	g.Silence("521", t0.Add(time.Hour))
	g.Unmute("521")
	assert.True(t, g.Status("521", t0).Active(), "unmute clears automatic silence too")
}

func TestSilence_KeepsLaterExpiry(t *testing.T) {
	g := NewGate(Config{})
	g.Silence("521", t0.Add(2*time.Hour))
	g.Silence("521", t0.Add(time.Hour))
	assert.Equal(t, t0.Add(2*time.Hour), g.Status("521", t0).Until)
}

func TestParseCommand(t *testing.T) {
	assert.Equal(t, CommandMute, ParseCommand("/humano"))
	assert.Equal(t, CommandMute, ParseCommand("  BOT   off "))
	assert.Equal(t, CommandUnmute, ParseCommand("/bot"))
	assert.Equal(t, CommandUnmute, ParseCommand("Bot On"))
	assert.Equal(t, CommandNone, ParseCommand("quiero hablar con un humano"))
}

func TestLooksFreeForm(t *testing.T) {
	assert.True(t, LooksFreeForm("ok ahorita lo reviso"))
	assert.True(t, LooksFreeForm("Si, q modelo buscas?"))
	assert.False(t, LooksFreeForm("¡Claro! Te comparto las fotos."))
	assert.False(t, LooksFreeForm("Perfecto, te espero el viernes."))
	assert.False(t, LooksFreeForm(""))
}

package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/dealer-ai-platform/internal/leads"
)

func TestAppendTurn_RecordsBothSides(t *testing.T) {
	s := New("5215512345678", time.Now())
	s.AppendTurn("Hola, me interesa la Miler", "¡Hola! Con gusto. ¿Cómo te llamas?", 4000)

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.True(t, turns[0].FromCustomer)
	assert.Equal(t, "Hola, me interesa la Miler", turns[0].Text)
	assert.False(t, turns[1].FromCustomer)
	assert.Equal(t, "¡Hola! Con gusto. ¿Cómo te llamas?", s.LastBotMessage)
}

func TestAppendTurn_FlattensNewlines(t *testing.T) {
	s := New("a", time.Now())
	s.AppendTurn("línea uno\nlínea dos", "", 4000)
	assert.Equal(t, "Cliente: línea uno línea dos\n", s.History)
	assert.Empty(t, s.LastBotMessage)
}

func TestAppendTurn_TrimsHeadOnLineBoundary(t *testing.T) {
	s := New("a", time.Now())
	for i := 0; i < 50; i++ {
		s.AppendTurn("mensaje del cliente con texto", "respuesta del asesor con texto", 200)
	}
	assert.LessOrEqual(t, len([]rune(s.History)), 200)
	assert.NotEmpty(t, s.History)
	first := strings.SplitN(s.History, "\n", 2)[0]
	assert.True(t, strings.HasPrefix(first, "Cliente: ") || strings.HasPrefix(first, "Asesor: "), first)
	assert.True(t, strings.HasSuffix(s.History, "Asesor: respuesta del asesor con texto\n"))
}

func TestAppendTurn_ZeroBudgetKeepsEverything(t *testing.T) {
	s := New("a", time.Now())
	s.AppendTurn(strings.Repeat("x", 5000), "", 0)
	assert.Greater(t, len(s.History), 5000)
}

func TestBeginTurn(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	s := New("a", now.Add(-time.Hour))
	require.Equal(t, StateStart, s.State)

	s.BeginTurn(now)
	assert.Equal(t, 1, s.TurnCount)
	assert.Equal(t, StateActive, s.State)
	assert.Equal(t, now, s.UpdatedAt)

	s.State = StateSilenced
	s.BeginTurn(now)
	assert.Equal(t, StateSilenced, s.State)
}

func TestStartCycle(t *testing.T) {
	s := New("a", time.Now())
	s.UserName = "Juan Pérez"
	s.LastInterest = "Foton Miler"
	s.LastAppointment = "Mañana 10:00 AM"
	s.LastAppointmentDate = "2026-02-11"
	s.FunnelStage = leads.StageClosedWon
	s.LeadStage = leads.StageAppointmentScheduled

	s.StartCycle()

	assert.Equal(t, 1, s.Cycle)
	assert.Equal(t, leads.StageFirstContact, s.FunnelStage)
	assert.Empty(t, s.LastAppointment)
	assert.Empty(t, s.LastAppointmentDate)
	assert.Empty(t, s.LeadStage)
	assert.Equal(t, "Juan Pérez", s.UserName)
	assert.Equal(t, "Foton Miler", s.LastInterest)
}

func TestClone_IsIndependent(t *testing.T) {
	s := New("a", time.Now())
	cp := s.Clone()
	cp.UserName = "otro"
	assert.Empty(t, s.UserName)
	assert.Nil(t, (*Session)(nil).Clone())
}

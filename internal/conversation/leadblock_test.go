package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/internal/session"
)

func TestExtractLeadBlock(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantOK      bool
		wantName    string
		wantPayment leads.Payment
		wantVisible string
	}{
		{
			name:        "fenced json",
			reply:       "Perfecto Juan, te espero.\n```json\n{\"nombre\": \"Juan Pérez\", \"interes\": \"Tunland G9\", \"cita\": \"Mañana 10:00 AM\", \"pago\": \"contado\"}\n```",
			wantOK:      true,
			wantName:    "Juan Pérez",
			wantPayment: leads.PaymentCash,
			wantVisible: "Perfecto Juan, te espero.",
		},
		{
			name:        "trailing comma tolerated",
			reply:       "Listo.\n```\n{\"nombre\": \"Ana\", \"interes\": \"Miler\", \"cita\": \"Lunes\",}\n```",
			wantOK:      true,
			wantName:    "Ana",
			wantVisible: "Listo.",
		},
		{
			name:        "bare object",
			reply:       "Te espero el lunes. {\"nombre\": \"Ana\", \"interes\": \"Miler\", \"cita\": \"Lunes\", \"pago\": \"financiamiento\"}",
			wantOK:      true,
			wantName:    "Ana",
			wantPayment: leads.PaymentFinancing,
			wantVisible: "Te espero el lunes.",
		},
		{
			name:        "malformed block is dropped",
			reply:       "Hola\n```json\n{nombre: Juan\n```",
			wantOK:      false,
			wantVisible: "Hola",
		},
		{
			name:        "nested bare object",
			reply:       "Listo, te espero. {\"nombre\": \"Ana\", \"extra\": {\"origen\": \"whatsapp\"}, \"interes\": \"Miler\", \"cita\": \"Lunes\"}",
			wantOK:      true,
			wantName:    "Ana",
			wantVisible: "Listo, te espero.",
		},
		{
			name:        "brace inside string value",
			reply:       "Anotado. {\"nombre\": \"Ana {la de Puebla}\", \"interes\": \"Miler\", \"cita\": \"Lunes\"} ¡Nos vemos!",
			wantOK:      true,
			wantName:    "Ana {la de Puebla}",
			wantVisible: "Anotado.  ¡Nos vemos!",
		},
		{
			name:        "unterminated fence is hidden",
			reply:       "Te espero el lunes.\n```json\n{\"nombre\": \"Ana\", \"interes\": \"Miler\", \"cita\": \"Lunes\"}",
			wantOK:      true,
			wantName:    "Ana",
			wantVisible: "Te espero el lunes.",
		},
		{
			name:        "truncated object is hidden",
			reply:       "Te espero el lunes. {\"nombre\": \"Ana\", \"interes\": {\"modelo\": \"Mil",
			wantOK:      false,
			wantVisible: "Te espero el lunes.",
		},
		{
			name:        "no block",
			reply:       "¿Qué modelo te interesa?",
			wantOK:      false,
			wantVisible: "¿Qué modelo te interesa?",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, ok, visible := extractLeadBlock(tc.reply)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantVisible, visible)
			if tc.wantOK {
				assert.Equal(t, tc.wantName, c.Name)
				assert.Equal(t, tc.wantPayment, c.Payment)
			}
		})
	}
}

func TestExtractLeadBlock_EnglishKeys(t *testing.T) {
	c, ok, _ := extractLeadBlock("```json\n{\"name\": \"Luis\", \"interest\": \"Tunland E5\", \"appointment\": \"Viernes 5:00 PM\"}\n```")
	require.True(t, ok)
	assert.Equal(t, leads.Candidate{Name: "Luis", Interest: "Tunland E5", Appointment: "Viernes 5:00 PM"}, c)
}

func TestMergeSessionFacts(t *testing.T) {
	sess := session.New("conv-1", time.Now())
	sess.UserName = "Juan"
	sess.LastInterest = "Tunland G9"
	sess.LastAppointment = "Mañana 10:00 AM"
	sess.LastAppointmentDate = "2025-03-04"
	sess.LastAppointmentTime = "10:00:00"
	sess.LastPayment = leads.PaymentFinancing

	got := mergeSessionFacts(leads.Candidate{Name: "cliente", Interest: "Tunland G9"}, sess)
	assert.Equal(t, leads.Candidate{
		Name:            "Juan",
		Interest:        "Tunland G9",
		Appointment:     "Mañana 10:00 AM",
		AppointmentDate: "2025-03-04",
		AppointmentTime: "10:00:00",
		Payment:         leads.PaymentFinancing,
	}, got)

	got = mergeSessionFacts(leads.Candidate{Appointment: "Lunes"}, sess)
	assert.Equal(t, "Lunes", got.Appointment)
	assert.Empty(t, got.AppointmentDate, "stored date belongs to a different appointment")
}

package crm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

type claimSet map[string]bool

func (c claimSet) ClaimLead(conv, msg string) bool {
	k := leads.Key(conv, msg)
	if c[k] {
		return false
	}
	c[k] = true
	return true
}

func newTestUpserter(client Client) *Upserter {
	return NewUpserter(client, claimSet{}, time.Second, logging.Discard())
}

func candidate() leads.Candidate {
	return leads.Candidate{
		Name:            "Juan Pérez",
		Interest:        "Foton Tunland G9 2025",
		Appointment:     "Mañana 10:00 AM",
		AppointmentDate: "2026-02-11",
		AppointmentTime: "10:00:00",
		Payment:         leads.PaymentFinancing,
	}
}

func TestUpsert_CreatesNewItem(t *testing.T) {
	mem := NewMemoryClient()
	res, err := newTestUpserter(mem).Upsert(context.Background(), UpsertRequest{
		Phone:          "whatsapp:+5215512345678",
		ConversationID: "5215512345678",
		MessageID:      "SM1",
		Candidate:      candidate(),
		Stage:          leads.StageAppointmentScheduled,
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.StageWritten)

	items := mem.Items()
	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, "Juan Pérez | 5215512345678", it.Name)
	assert.Equal(t, "5215512345678", it.Fields.DedupePhone)
	assert.Equal(t, "SM1", it.Fields.LastMessageID)
	assert.Equal(t, leads.StageAppointmentScheduled, it.Fields.Stage)
	assert.Equal(t, "Tunland G9", it.Fields.Vehicle)
	assert.Equal(t, "Financiamiento", it.Fields.Payment)
	assert.Equal(t, "2026-02-11", it.Fields.AppointmentDate)
	require.Len(t, it.Notes, 1)
	assert.Contains(t, it.Notes[0], "ETAPA: Cita Programada")
	assert.Contains(t, it.Notes[0], "Cita: 2026-02-11 10:00:00")
}

func TestUpsert_DefaultsNewItemToFirstContact(t *testing.T) {
	mem := NewMemoryClient()
	c := leads.Candidate{Name: "Cliente"}
	res, err := newTestUpserter(mem).Upsert(context.Background(), UpsertRequest{Phone: "521", MessageID: "m1", ConversationID: "521", Candidate: c})
	require.NoError(t, err)
	assert.Equal(t, leads.StageFirstContact, res.Stage)

	it := mem.Items()[0]
	assert.Equal(t, "Lead sin nombre | 521", it.Name, "placeholder names are not used")
	assert.Equal(t, "Por definir", it.Fields.Payment)
}

func TestUpsert_DuplicateMessageSkipsCRM(t *testing.T) {
	mem := NewMemoryClient()
	u := newTestUpserter(mem)
	req := UpsertRequest{Phone: "521", ConversationID: "521", MessageID: "SM1", Candidate: candidate(), Stage: leads.StageIntent}

	_, err := u.Upsert(context.Background(), req)
	require.NoError(t, err)
	res, err := u.Upsert(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Len(t, mem.Items(), 1)
	assert.Len(t, mem.Items()[0].Notes, 1)
}

func TestUpsert_StageNeverRegresses(t *testing.T) {
	mem := NewMemoryClient()
	u := newTestUpserter(mem)
	ctx := context.Background()

	_, err := u.Upsert(ctx, UpsertRequest{Phone: "521", ConversationID: "521", MessageID: "m1", Candidate: candidate(), Stage: leads.StageAppointmentScheduled})
	require.NoError(t, err)

	c := candidate()
	c.Payment = leads.PaymentUndefined
	res, err := u.Upsert(ctx, UpsertRequest{Phone: "521", ConversationID: "521", MessageID: "m2", Candidate: c, Stage: leads.StageIntent})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.False(t, res.StageWritten)
	assert.Equal(t, leads.StageAppointmentScheduled, res.Stage)

	it := mem.Items()[0]
	assert.Equal(t, leads.StageAppointmentScheduled, it.Fields.Stage)
	assert.Equal(t, "Financiamiento", it.Fields.Payment, "undefined payment does not overwrite")
	assert.Equal(t, "m2", it.Fields.LastMessageID)
	assert.Equal(t, "Datos del lead actualizados", it.Notes[1])
}

func TestUpsert_NoInterestOverridesRank(t *testing.T) {
	mem := NewMemoryClient()
	u := newTestUpserter(mem)
	ctx := context.Background()
	_, err := u.Upsert(ctx, UpsertRequest{Phone: "521", ConversationID: "521", MessageID: "m1", Candidate: candidate(), Stage: leads.StageAppointmentScheduled})
	require.NoError(t, err)

	res, err := u.Upsert(ctx, UpsertRequest{Phone: "521", ConversationID: "521", MessageID: "m2", Candidate: candidate(), Stage: leads.StageNoInterest})
	require.NoError(t, err)
	assert.True(t, res.StageWritten)
	assert.Equal(t, leads.StageNoInterest, mem.Items()[0].Fields.Stage)
}

func TestUpsert_TerminalStageStartsNewCycle(t *testing.T) {
	mem := NewMemoryClient()
	u := newTestUpserter(mem)
	ctx := context.Background()
	_, err := u.Upsert(ctx, UpsertRequest{Phone: "521", ConversationID: "521", MessageID: "m1", Candidate: candidate(), Stage: leads.StageNoInterest})
	require.NoError(t, err)

	res, err := u.Upsert(ctx, UpsertRequest{Phone: "521", ConversationID: "521", MessageID: "m2", Candidate: candidate(), Stage: leads.StageIntent})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, leads.StageNoInterest, res.PriorStage)

	items := mem.Items()
	require.Len(t, items, 2)
	assert.Equal(t, leads.StageNoInterest, items[0].Fields.Stage)
	assert.Equal(t, leads.StageIntent, items[1].Fields.Stage)
}

func TestUpsert_RenamesWhenNameLearned(t *testing.T) {
	mem := NewMemoryClient()
	u := newTestUpserter(mem)
	ctx := context.Background()
	_, err := u.Upsert(ctx, UpsertRequest{Phone: "521", ConversationID: "521", MessageID: "m1"})
	require.NoError(t, err)

	_, err = u.Upsert(ctx, UpsertRequest{Phone: "521", ConversationID: "521", MessageID: "m2", Candidate: leads.Candidate{Name: "Ana López"}})
	require.NoError(t, err)
	assert.Equal(t, "Ana López | 521", mem.Items()[0].Name)
}

func TestUpsert_MissingPhone(t *testing.T) {
	_, err := newTestUpserter(NewMemoryClient()).Upsert(context.Background(), UpsertRequest{Phone: "whatsapp:"})
	assert.ErrorIs(t, err, leads.ErrMissingPhone)
}

type failingFind struct{ *MemoryClient }

func (failingFind) FindByPhone(context.Context, string) (*Item, error) {
	return nil, errors.New("board unavailable")
}

func TestUpsert_FindErrorFails(t *testing.T) {
	_, err := newTestUpserter(failingFind{NewMemoryClient()}).Upsert(context.Background(), UpsertRequest{Phone: "521", MessageID: "m1"})
	assert.ErrorContains(t, err, "board unavailable")
}

func TestUpsert_OnlyExistingNeverCreates(t *testing.T) {
	mem := NewMemoryClient()
	up := newTestUpserter(mem)

	res, err := up.Upsert(context.Background(), UpsertRequest{
		Phone: "521", ConversationID: "521", MessageID: "m1",
		Stage: leads.StageNoInterest, OnlyExisting: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, mem.Items())

	_, err = up.Upsert(context.Background(), UpsertRequest{Phone: "521", ConversationID: "521", MessageID: "m2", Candidate: candidate()})
	require.NoError(t, err)
	res, err = up.Upsert(context.Background(), UpsertRequest{
		Phone: "521", ConversationID: "521", MessageID: "m3",
		Stage: leads.StageNoInterest, OnlyExisting: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, leads.StageNoInterest, res.Stage)
}

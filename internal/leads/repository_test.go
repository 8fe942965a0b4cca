package leads

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository_RecordAndList(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	older := &Lead{Phone: "5215512345678", Stage: StageIntent, CreatedAt: time.Now().Add(-time.Hour)}
	newer := &Lead{Phone: "5215512345678", Stage: StageAppointmentScheduled}
	require.NoError(t, repo.Record(ctx, older))
	require.NoError(t, repo.Record(ctx, newer))
	require.NoError(t, repo.Record(ctx, &Lead{Phone: "5210000000000"}))

	got, err := repo.ListByPhone(ctx, "5215512345678", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, StageAppointmentScheduled, got[0].Stage)
	assert.NotEmpty(t, got[0].ID)

	limited, err := repo.ListByPhone(ctx, "5215512345678", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestInMemoryRepository_RequiresPhone(t *testing.T) {
	err := NewInMemoryRepository().Record(context.Background(), &Lead{})
	assert.True(t, errors.Is(err, ErrMissingPhone))
}

func TestPostgresRepository_Record(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock)
	lead := &Lead{
		ID:             "lead-1",
		ConversationID: "5215512345678",
		MessageID:      "SM1",
		Phone:          "5215512345678",
		Candidate:      Candidate{Name: "Juan Pérez", Interest: "Tunland G9", Appointment: "Mañana 10:00 AM", Payment: PaymentCash},
		Stage:          StageAppointmentScheduled,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leads")).
		WithArgs("lead-1", "5215512345678", "SM1", "5215512345678", "Juan Pérez", "Tunland G9", "Mañana 10:00 AM",
			"", "", "cash", "Cita Programada", 0, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Record(context.Background(), lead))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListByPhone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "conversation_id", "message_id", "phone", "name", "interest", "appointment",
		"appointment_date", "appointment_time", "payment", "stage", "cycle", "crm_item_id", "created_at"}).
		AddRow("lead-1", "5215512345678", "SM1", "5215512345678", "Juan Pérez", "Tunland G9", "Mañana 10:00 AM",
			"2026-02-11", "10:00:00", "financing", "Cita Programada", 1, "987", now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM leads")).
		WithArgs("5215512345678", 50).
		WillReturnRows(rows)

	repo := newPostgresRepositoryWithDB(mock)
	got, err := repo.ListByPhone(context.Background(), "5215512345678", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, PaymentFinancing, got[0].Candidate.Payment)
	assert.Equal(t, StageAppointmentScheduled, got[0].Stage)
	assert.Equal(t, "987", got[0].CRMItemID)
	require.NoError(t, mock.ExpectationsWereMet())
}

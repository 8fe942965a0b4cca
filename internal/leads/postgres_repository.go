package leads

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type leadQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	db leadQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db leadQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Record inserts a lead row. A repeated (conversation, message) pair is ignored.
func (r *PostgresRepository) Record(ctx context.Context, lead *Lead) error {
	if lead == nil || strings.TrimSpace(lead.Phone) == "" {
		return ErrMissingPhone
	}
	prepareLead(lead)

	query := `
		INSERT INTO leads (id, conversation_id, message_id, phone, name, interest, appointment,
			appointment_date, appointment_time, payment, stage, cycle, crm_item_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (conversation_id, message_id) DO NOTHING
	`
	c := lead.Candidate
	if _, err := r.db.Exec(ctx, query,
		lead.ID,
		lead.ConversationID,
		lead.MessageID,
		lead.Phone,
		c.Name,
		c.Interest,
		c.Appointment,
		c.AppointmentDate,
		c.AppointmentTime,
		string(c.Payment),
		string(lead.Stage),
		lead.Cycle,
		lead.CRMItemID,
		lead.CreatedAt,
	); err != nil {
		return fmt.Errorf("leads: insert failed: %w", err)
	}
	return nil
}

// ListByPhone returns the most recent leads for a phone first.
func (r *PostgresRepository) ListByPhone(ctx context.Context, phone string, limit int) ([]*Lead, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `
		SELECT id, conversation_id, message_id, phone, name, interest, appointment,
			appointment_date, appointment_time, payment, stage, cycle, crm_item_id, created_at
		FROM leads
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		var (
			lead    Lead
			payment string
			stage   string
		)
		if err := rows.Scan(
			&lead.ID,
			&lead.ConversationID,
			&lead.MessageID,
			&lead.Phone,
			&lead.Candidate.Name,
			&lead.Candidate.Interest,
			&lead.Candidate.Appointment,
			&lead.Candidate.AppointmentDate,
			&lead.Candidate.AppointmentTime,
			&payment,
			&stage,
			&lead.Cycle,
			&lead.CRMItemID,
			&lead.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		lead.Candidate.Payment = Payment(payment)
		lead.Stage = Stage(stage)
		out = append(out, &lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: rows failed: %w", err)
	}
	return out, nil
}

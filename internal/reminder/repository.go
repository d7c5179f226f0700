package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/chairtime/internal/model"
	"github.com/md-rashed-zaman/chairtime/libs/db"
)

// Store is the durable side of the scheduler. The pgx-backed Repository is
// the production implementation; tests substitute an in-memory fake.
type Store interface {
	Insert(ctx context.Context, rem model.Reminder) error
	ExistsForAppointment(ctx context.Context, appointmentID int64) (bool, error)
	MarkSent(ctx context.Context, appointmentID int64, kind string) error
	ListPending(ctx context.Context, after time.Time) ([]model.Reminder, error)
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a scheduled reminder row. The (appointment_id,
// reminder_type) unique constraint absorbs races between two scheduling
// attempts; losing the race is not an error.
func (r *Repository) Insert(ctx context.Context, rem model.Reminder) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduled_reminders (appointment_id, reminder_type, scheduled_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (appointment_id, reminder_type) DO NOTHING
	`, rem.AppointmentID, rem.Kind, rem.TriggerAt)
	if err != nil {
		return fmt.Errorf("insert reminder %d/%s: %w", rem.AppointmentID, rem.Kind, err)
	}
	return nil
}

func (r *Repository) ExistsForAppointment(ctx context.Context, appointmentID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM scheduled_reminders WHERE appointment_id = $1)
	`, appointmentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reminders for %d: %w", appointmentID, err)
	}
	return exists, nil
}

// MarkSent flips the sent flag. Rows are never deleted after dispatch: they
// stay behind as the idempotency and audit trail.
func (r *Repository) MarkSent(ctx context.Context, appointmentID int64, kind string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scheduled_reminders
		SET sent = TRUE
		WHERE appointment_id = $1 AND reminder_type = $2
	`, appointmentID, kind)
	if err != nil {
		return fmt.Errorf("mark reminder %d/%s sent: %w", appointmentID, kind, err)
	}
	return nil
}

// ListPending returns unsent reminders whose trigger is still ahead of
// `after`. Rows whose trigger elapsed while the process was down are
// deliberately excluded: they are never delivered retroactively.
func (r *Repository) ListPending(ctx context.Context, after time.Time) ([]model.Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, reminder_type, scheduled_time, sent
		FROM scheduled_reminders
		WHERE sent = FALSE AND scheduled_time > $1
		ORDER BY scheduled_time
	`, after)
	if err != nil {
		return nil, fmt.Errorf("list pending reminders: %w", err)
	}
	defer rows.Close()

	var pending []model.Reminder
	for rows.Next() {
		var rem model.Reminder
		if err := rows.Scan(&rem.ID, &rem.AppointmentID, &rem.Kind, &rem.TriggerAt, &rem.Sent); err != nil {
			return nil, err
		}
		pending = append(pending, rem)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return pending, nil
}

// DeleteUnsentTx removes the unsent rows of a cancelled appointment inside
// the cancellation transaction, so the ledger does not accumulate orphans.
// Sent rows are kept for the audit trail.
func (r *Repository) DeleteUnsentTx(ctx context.Context, tx pgx.Tx, appointmentID int64) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM scheduled_reminders
		WHERE appointment_id = $1 AND sent = FALSE
	`, appointmentID)
	if err != nil {
		return fmt.Errorf("delete unsent reminders for %d: %w", appointmentID, err)
	}
	return nil
}

package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/chairtime/internal/model"
	"github.com/md-rashed-zaman/chairtime/libs/db"
)

var (
	// ErrSlotTaken is returned when another appointment already occupies the
	// exact (date, time) pair. The booked_slots primary key is the sole
	// double-booking guard; availability listings are advisory only.
	ErrSlotTaken = errors.New("slot already booked")
	// ErrNotFound covers both a missing appointment and an ownership
	// mismatch on cancellation, so callers cannot probe other users' ids.
	ErrNotFound = errors.New("appointment not found")
)

const appointmentColumns = `
	id, user_id, user_name, user_username, phone, service,
	appointment_date, appointment_time, created_at, reminder_sent`

type Repository struct {
	pool db.Querier
}

func NewRepository(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateTx inserts the appointment and claims its slot in the running
// transaction. The slot claim and the appointment row commit or roll back
// together, so booked_slots can never diverge from appointments.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (int64, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(user_id, user_name, user_username, phone, service, appointment_date, appointment_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, appt.UserID, appt.UserName, appt.UserUsername, appt.Phone, appt.Service,
		appt.Date, appt.Time).Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert appointment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booked_slots (slot_date, slot_time, appointment_id)
		VALUES ($1, $2, $3)
	`, appt.Date, appt.Time, appt.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrSlotTaken
		}
		return 0, fmt.Errorf("claim slot: %w", err)
	}

	return appt.ID, nil
}

// Find returns the appointment and whether it exists. Absence is not an
// error: reminder callbacks use it to detect cancellations.
func (r *Repository) Find(ctx context.Context, id int64) (model.Appointment, bool, error) {
	var appt model.Appointment
	err := r.pool.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id).Scan(
		&appt.ID, &appt.UserID, &appt.UserName, &appt.UserUsername, &appt.Phone,
		&appt.Service, &appt.Date, &appt.Time, &appt.CreatedAt, &appt.ReminderSent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, false, nil
		}
		return model.Appointment{}, false, fmt.Errorf("load appointment %d: %w", id, err)
	}
	return appt, true, nil
}

// CancelTx deletes the appointment in the running transaction and returns
// its last snapshot. When requester is non-nil the delete only applies if
// the appointment belongs to that requester; the administrator path passes
// nil and deletes unconditionally. The booked_slots row is freed by the
// ON DELETE CASCADE constraint inside the same transaction.
func (r *Repository) CancelTx(ctx context.Context, tx pgx.Tx, id int64, requester *int64) (model.Appointment, error) {
	query := `
		DELETE FROM appointments
		WHERE id = $1
		RETURNING` + appointmentColumns
	args := []any{id}
	if requester != nil {
		query = `
		DELETE FROM appointments
		WHERE id = $1 AND user_id = $2
		RETURNING` + appointmentColumns
		args = append(args, *requester)
	}

	var appt model.Appointment
	err := tx.QueryRow(ctx, query, args...).Scan(
		&appt.ID, &appt.UserID, &appt.UserName, &appt.UserUsername, &appt.Phone,
		&appt.Service, &appt.Date, &appt.Time, &appt.CreatedAt, &appt.ReminderSent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("cancel appointment %d: %w", id, err)
	}
	return appt, nil
}

// BookedTimes returns the set of taken time-of-day strings for a date.
func (r *Repository) BookedTimes(ctx context.Context, date string) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_time FROM booked_slots WHERE slot_date = $1
	`, date)
	if err != nil {
		return nil, fmt.Errorf("load booked slots for %s: %w", date, err)
	}
	defer rows.Close()

	taken := map[string]struct{}{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		taken[t] = struct{}{}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return taken, nil
}

// ByUser lists a client's appointments ordered by (date, time) ascending.
func (r *Repository) ByUser(ctx context.Context, userID int64) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE user_id = $1
		ORDER BY appointment_date, appointment_time
	`, userID)
}

// All lists every appointment ordered by (date, time) ascending.
func (r *Repository) All(ctx context.Context) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		ORDER BY appointment_date, appointment_time
	`)
}

// OnDate lists the appointments for one date ordered by time ascending.
func (r *Repository) OnDate(ctx context.Context, date string) ([]model.Appointment, error) {
	return r.list(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE appointment_date = $1
		ORDER BY appointment_time
	`, date)
}

// PurgeElapsed deletes every appointment whose date is before today and
// every appointment dated today whose time is before nowClock; cascades
// free the matching booked_slots rows. Idempotent: running it with nothing
// to delete is not an error.
func (r *Repository) PurgeElapsed(ctx context.Context, today, nowClock string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE appointment_date < $1
		   OR (appointment_date = $1 AND appointment_time < $2)
	`, today, nowClock)
	if err != nil {
		return 0, fmt.Errorf("purge elapsed appointments: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		if err := rows.Scan(
			&appt.ID, &appt.UserID, &appt.UserName, &appt.UserUsername, &appt.Phone,
			&appt.Service, &appt.Date, &appt.Time, &appt.CreatedAt, &appt.ReminderSent,
		); err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

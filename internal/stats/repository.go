package stats

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/chairtime/libs/db"
)

// Summary is the admin dashboard aggregate over the booking ledger.
type Summary struct {
	TotalBookings    int64            `json:"total_bookings"`
	BookingsToday    int64            `json:"bookings_today"`
	UpcomingBookings int64            `json:"upcoming_bookings"`
	WalkIns          int64            `json:"walk_ins"`
	RemindersSent    int64            `json:"reminders_sent"`
	ByService        map[string]int64 `json:"by_service"`
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Summarize computes the aggregates as of the given business-local date and
// clock time.
func (r *Repository) Summarize(ctx context.Context, today, nowClock string) (Summary, error) {
	s := Summary{ByService: map[string]int64{}}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE appointment_date = $1),
			COUNT(*) FILTER (WHERE appointment_date > $1
				OR (appointment_date = $1 AND appointment_time >= $2)),
			COUNT(*) FILTER (WHERE user_id = 0)
		FROM appointments
	`, today, nowClock).Scan(&s.TotalBookings, &s.BookingsToday, &s.UpcomingBookings, &s.WalkIns)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize appointments: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM scheduled_reminders WHERE sent = TRUE
	`).Scan(&s.RemindersSent)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize reminders: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT service, COUNT(*)
		FROM appointments
		GROUP BY service
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var service string
		var n int64
		if err := rows.Scan(&service, &n); err != nil {
			return Summary{}, err
		}
		s.ByService[service] = n
	}
	if rows.Err() != nil {
		return Summary{}, rows.Err()
	}
	return s, nil
}

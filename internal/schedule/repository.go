package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/chairtime/internal/model"
	"github.com/md-rashed-zaman/chairtime/libs/db"
)

// Default hours returned when a weekday has no stored row, so consumers
// never observe an absent schedule.
const (
	DefaultOpen  = "10:00"
	DefaultClose = "20:00"
)

func defaultWorkDay(weekday int) model.WorkDay {
	return model.WorkDay{
		Weekday: weekday,
		Open:    DefaultOpen,
		Close:   DefaultClose,
		Working: true,
	}
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// SetWorkDay replaces any existing rows for the weekday in one transaction,
// so there is never more than one live row per weekday after it commits.
func (r *Repository) SetWorkDay(ctx context.Context, day model.WorkDay) error {
	if day.Weekday < 0 || day.Weekday > 6 {
		return fmt.Errorf("weekday out of range: %d", day.Weekday)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM work_schedule WHERE weekday = $1`, day.Weekday); err != nil {
		return fmt.Errorf("clear weekday %d: %w", day.Weekday, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO work_schedule (weekday, start_time, end_time, is_working)
		VALUES ($1, $2, $3, $4)
	`, day.Weekday, day.Open, day.Close, day.Working); err != nil {
		return fmt.Errorf("insert weekday %d: %w", day.Weekday, err)
	}

	return tx.Commit(ctx)
}

// WorkDay returns the latest stored row for the weekday, or the hard-coded
// default when nothing is stored.
func (r *Repository) WorkDay(ctx context.Context, weekday int) (model.WorkDay, error) {
	var day model.WorkDay
	err := r.pool.QueryRow(ctx, `
		SELECT weekday, start_time, end_time, is_working
		FROM work_schedule
		WHERE weekday = $1
		ORDER BY id DESC
		LIMIT 1
	`, weekday).Scan(&day.Weekday, &day.Open, &day.Close, &day.Working)
	if err != nil {
		if isNoRows(err) {
			return defaultWorkDay(weekday), nil
		}
		return model.WorkDay{}, fmt.Errorf("load weekday %d: %w", weekday, err)
	}
	return day, nil
}

// Week returns all seven days indexed by time.Weekday, defaulting any
// weekday without a stored row.
func (r *Repository) Week(ctx context.Context) ([7]model.WorkDay, error) {
	var week [7]model.WorkDay
	for i := range week {
		week[i] = defaultWorkDay(i)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (weekday) weekday, start_time, end_time, is_working
		FROM work_schedule
		ORDER BY weekday, id DESC
	`)
	if err != nil {
		return week, fmt.Errorf("load week: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day model.WorkDay
		if err := rows.Scan(&day.Weekday, &day.Open, &day.Close, &day.Working); err != nil {
			return week, fmt.Errorf("scan work day: %w", err)
		}
		if day.Weekday >= 0 && day.Weekday <= 6 {
			week[day.Weekday] = day
		}
	}
	if rows.Err() != nil {
		return week, rows.Err()
	}
	return week, nil
}

// Compact removes stale duplicate rows per weekday, keeping the most
// recently inserted. Duplicates can only appear when two SetWorkDay calls
// race; the sweep keeps the table canonical either way. Safe to run
// repeatedly.
func (r *Repository) Compact(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM work_schedule ws
		USING work_schedule newer
		WHERE newer.weekday = ws.weekday AND newer.id > ws.id
	`)
	if err != nil {
		return 0, fmt.Errorf("compact work schedule: %w", err)
	}
	return tag.RowsAffected(), nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

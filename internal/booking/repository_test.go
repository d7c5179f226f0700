package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/md-rashed-zaman/chairtime/internal/model"
)

func newMockRepository(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func TestCreateTxClaimsSlotAtomically(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()

	appt := model.Appointment{
		UserID:   501,
		UserName: "Client",
		Service:  "Haircut",
		Date:     "2026-09-01",
		Time:     "14:30",
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(appt.UserID, appt.UserName, appt.UserUsername, appt.Phone,
			appt.Service, appt.Date, appt.Time).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).
			AddRow(int64(41), time.Now()))
	mock.ExpectExec("INSERT INTO booked_slots").
		WithArgs(appt.Date, appt.Time, int64(41)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	id, err := repo.CreateTx(ctx, tx, &appt)
	if err != nil {
		t.Fatalf("CreateTx: %v", err)
	}
	if id != 41 || appt.ID != 41 {
		t.Fatalf("id = %d, appt.ID = %d, want 41", id, appt.ID)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateTxSlotConflict(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()

	appt := model.Appointment{
		UserID:   502,
		UserName: "Client",
		Service:  "Haircut",
		Date:     "2026-09-01",
		Time:     "14:30",
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(appt.UserID, appt.UserName, appt.UserUsername, appt.Phone,
			appt.Service, appt.Date, appt.Time).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).
			AddRow(int64(42), time.Now()))
	mock.ExpectExec("INSERT INTO booked_slots").
		WithArgs(appt.Date, appt.Time, int64(42)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "booked_slots_pkey"})
	mock.ExpectRollback()

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_, err = repo.CreateTx(ctx, tx, &appt)
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("err = %v, want ErrSlotTaken", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCancelTxReturnsSnapshot(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()

	created := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM appointments").
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "user_name", "user_username", "phone", "service",
			"appointment_date", "appointment_time", "created_at", "reminder_sent",
		}).AddRow(int64(5), int64(501), "Client", "", "", "Haircut",
			"2026-09-01", "14:30", created, false))

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	appt, err := repo.CancelTx(ctx, tx, 5, nil)
	if err != nil {
		t.Fatalf("CancelTx: %v", err)
	}
	if appt.ID != 5 || appt.UserID != 501 || appt.Date != "2026-09-01" || appt.Time != "14:30" {
		t.Fatalf("snapshot = %+v", appt)
	}
}

func TestCancelTxNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM appointments").
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_, err = repo.CancelTx(ctx, tx, 7, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelTxOwnershipMismatch(t *testing.T) {
	repo, mock := newMockRepository(t)
	ctx := context.Background()

	requester := int64(999)
	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM appointments").
		WithArgs(int64(7), requester).
		WillReturnError(pgx.ErrNoRows)

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_, err = repo.CancelTx(ctx, tx, 7, &requester)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPurgeElapsedBoundary(t *testing.T) {
	repo, mock := newMockRepository(t)

	// Everything strictly before today goes, plus today's rows whose time
	// is already behind the business clock.
	mock.ExpectExec("DELETE FROM appointments").
		WithArgs("2026-06-10", "14:30").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	purged, err := repo.PurgeElapsed(context.Background(), "2026-06-10", "14:30")
	if err != nil {
		t.Fatalf("PurgeElapsed: %v", err)
	}
	if purged != 3 {
		t.Fatalf("purged = %d, want 3", purged)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("claim slot: %w", &pgconn.PgError{Code: "23505"}), true},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"plain error", errors.New("23505"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isUniqueViolation(tc.err); got != tc.want {
				t.Fatalf("isUniqueViolation = %v, want %v", got, tc.want)
			}
		})
	}
}

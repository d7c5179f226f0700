package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/chairtime/internal/clock"
	"github.com/md-rashed-zaman/chairtime/internal/model"
	"github.com/md-rashed-zaman/chairtime/internal/notify"
)

// Appointments is the scheduler's read view of the booking ledger. The
// dispatch callback re-reads through it so a cancelled appointment is
// detected at fire time.
type Appointments interface {
	Find(ctx context.Context, id int64) (model.Appointment, bool, error)
}

type Config struct {
	// Offsets maps reminder kind to how long before the appointment it
	// fires. Defaults to 24h and 1h.
	Offsets map[string]time.Duration
	// DeliverTimeout bounds a single delivery attempt.
	DeliverTimeout time.Duration
}

// Scheduler owns the reminder lifecycle: it persists scheduled rows, arms
// in-memory timers, dispatches when they fire, and re-arms surviving rows
// after a restart.
type Scheduler struct {
	store          Store
	appts          Appointments
	dispatcher     notify.Dispatcher
	timers         *Timers
	biz            *clock.Business
	logger         *slog.Logger
	offsets        map[string]time.Duration
	deliverTimeout time.Duration
}

func NewScheduler(store Store, appts Appointments, dispatcher notify.Dispatcher, biz *clock.Business, logger *slog.Logger, cfg Config) *Scheduler {
	offsets := cfg.Offsets
	if len(offsets) == 0 {
		offsets = map[string]time.Duration{
			model.ReminderKind24h: 24 * time.Hour,
			model.ReminderKind1h:  time.Hour,
		}
	}
	deliverTimeout := cfg.DeliverTimeout
	if deliverTimeout <= 0 {
		deliverTimeout = 10 * time.Second
	}
	return &Scheduler{
		store:          store,
		appts:          appts,
		dispatcher:     dispatcher,
		timers:         NewTimers(),
		biz:            biz,
		logger:         logger,
		offsets:        offsets,
		deliverTimeout: deliverTimeout,
	}
}

// TimerKey is the deterministic registry name for one reminder tier.
func TimerKey(appointmentID int64, kind string) string {
	return fmt.Sprintf("reminder:%d:%s", appointmentID, kind)
}

// Schedule persists and arms the reminder tiers for a fresh booking.
//
// It is idempotent per appointment: if any reminder row or timer already
// exists for it, the whole call is a no-op, so a repeated invocation for the
// same booking can never double-notify the client. Tiers whose trigger is
// already in the past are skipped silently; a same-day booking simply
// forgoes its 24h reminder.
func (s *Scheduler) Schedule(ctx context.Context, appt model.Appointment) error {
	apptAt, err := s.biz.SlotInstant(appt.Date, appt.Time)
	if err != nil {
		return fmt.Errorf("compute appointment instant for %d: %w", appt.ID, err)
	}

	exists, err := s.store.ExistsForAppointment(ctx, appt.ID)
	if err != nil {
		return err
	}
	if exists || s.hasTimers(appt.ID) {
		s.logger.Info("reminders already scheduled", "appointment_id", appt.ID)
		return nil
	}

	now := s.biz.NowUTC()
	for kind, offset := range s.offsets {
		trigger := apptAt.Add(-offset)
		if !trigger.After(now) {
			continue
		}
		if err := s.store.Insert(ctx, model.Reminder{
			AppointmentID: appt.ID,
			Kind:          kind,
			TriggerAt:     trigger,
		}); err != nil {
			return err
		}
		s.arm(appt.ID, kind, trigger)
	}
	return nil
}

// RestoreAll re-arms a timer for every unsent reminder whose trigger is
// still in the future. Called once at process start. Past-due rows are left
// unsent and never fire again.
func (s *Scheduler) RestoreAll(ctx context.Context) error {
	pending, err := s.store.ListPending(ctx, s.biz.NowUTC())
	if err != nil {
		return err
	}
	for _, rem := range pending {
		s.arm(rem.AppointmentID, rem.Kind, rem.TriggerAt)
	}
	s.logger.Info("reminders restored", "count", len(pending))
	return nil
}

// CancelTimers drops the in-memory timers of a cancelled appointment. The
// durable rows are removed by the cancellation transaction; even if a timer
// slips through, its callback re-reads the appointment and aborts.
func (s *Scheduler) CancelTimers(appointmentID int64) {
	for kind := range s.offsets {
		s.timers.Cancel(TimerKey(appointmentID, kind))
	}
}

// Stop releases every armed timer. Used on shutdown.
func (s *Scheduler) Stop() {
	s.timers.StopAll()
}

func (s *Scheduler) hasTimers(appointmentID int64) bool {
	for kind := range s.offsets {
		if s.timers.Has(TimerKey(appointmentID, kind)) {
			return true
		}
	}
	return false
}

func (s *Scheduler) arm(appointmentID int64, kind string, trigger time.Time) {
	delay := trigger.Sub(s.biz.NowUTC())
	registered := s.timers.RegisterOnce(TimerKey(appointmentID, kind), delay, func() {
		s.fire(appointmentID, kind)
	})
	if registered {
		s.logger.Info("reminder armed",
			"appointment_id", appointmentID,
			"kind", kind,
			"trigger_at", trigger.Format(time.RFC3339),
		)
	}
}

// fire is the dispatch callback for one reminder tier.
func (s *Scheduler) fire(appointmentID int64, kind string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deliverTimeout)
	defer cancel()

	appt, found, err := s.appts.Find(ctx, appointmentID)
	if err != nil {
		s.logger.Error("reminder fire: appointment lookup failed",
			"appointment_id", appointmentID, "kind", kind, "err", err)
		return
	}
	if !found {
		// Cancelled since scheduling; nothing to deliver.
		return
	}

	if appt.IsWalkIn() {
		if err := s.store.MarkSent(ctx, appointmentID, kind); err != nil {
			s.logger.Error("reminder fire: mark walk-in sent failed",
				"appointment_id", appointmentID, "kind", kind, "err", err)
		}
		return
	}

	err = s.dispatcher.Deliver(ctx, appt.UserID, notify.ReminderText(kind, appt))
	switch {
	case err == nil:
		if err := s.store.MarkSent(ctx, appointmentID, kind); err != nil {
			s.logger.Error("reminder fire: mark sent failed",
				"appointment_id", appointmentID, "kind", kind, "err", err)
		}
	case errors.Is(err, notify.ErrUnreachable):
		// Terminal: stop attempting, count it as handled.
		s.logger.Warn("reminder recipient unreachable",
			"appointment_id", appointmentID, "kind", kind)
		if err := s.store.MarkSent(ctx, appointmentID, kind); err != nil {
			s.logger.Error("reminder fire: mark unreachable sent failed",
				"appointment_id", appointmentID, "kind", kind, "err", err)
		}
	default:
		// Transient failure: leave the row unsent. There is no in-process
		// retry; the row is only eligible again via restore on restart.
		s.logger.Error("reminder delivery failed",
			"appointment_id", appointmentID, "kind", kind, "err", err)
	}
}

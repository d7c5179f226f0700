package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/chairtime/internal/availability"
	"github.com/md-rashed-zaman/chairtime/internal/booking"
	"github.com/md-rashed-zaman/chairtime/internal/clock"
	"github.com/md-rashed-zaman/chairtime/internal/model"
	"github.com/md-rashed-zaman/chairtime/internal/notify"
	"github.com/md-rashed-zaman/chairtime/internal/outbox"
)

// BookingStore is the appointment ledger as the handlers consume it.
// booking.Repository is the production implementation.
type BookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (int64, error)
	CancelTx(ctx context.Context, tx pgx.Tx, id int64, requester *int64) (model.Appointment, error)
	BookedTimes(ctx context.Context, date string) (map[string]struct{}, error)
	ByUser(ctx context.Context, userID int64) ([]model.Appointment, error)
	All(ctx context.Context) ([]model.Appointment, error)
	OnDate(ctx context.Context, date string) ([]model.Appointment, error)
}

// ScheduleStore reads and writes the weekly work schedule.
type ScheduleStore interface {
	WorkDay(ctx context.Context, weekday int) (model.WorkDay, error)
	Week(ctx context.Context) ([7]model.WorkDay, error)
	SetWorkDay(ctx context.Context, day model.WorkDay) error
}

// ReminderStore clears a cancelled appointment's unsent reminder rows
// inside the cancellation transaction.
type ReminderStore interface {
	DeleteUnsentTx(ctx context.Context, tx pgx.Tx, appointmentID int64) error
}

// EventWriter appends a domain event to the outbox in the running
// transaction.
type EventWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// ReminderScheduler arms and disarms reminder delivery for a booking.
type ReminderScheduler interface {
	Schedule(ctx context.Context, appt model.Appointment) error
	CancelTimers(appointmentID int64)
}

// BookingHandler serves the public booking API consumed by the chat frontend.
type BookingHandler struct {
	bookings    BookingStore
	schedules   ScheduleStore
	reminders   ReminderStore
	outboxRepo  EventWriter
	scheduler   ReminderScheduler
	dispatcher  notify.Dispatcher
	biz         *clock.Business
	logger      *slog.Logger
	staffChatID int64
}

func NewBookingHandler(
	bookings BookingStore,
	schedules ScheduleStore,
	reminders ReminderStore,
	outboxRepo EventWriter,
	scheduler ReminderScheduler,
	dispatcher notify.Dispatcher,
	biz *clock.Business,
	logger *slog.Logger,
	staffChatID int64,
) *BookingHandler {
	return &BookingHandler{
		bookings:    bookings,
		schedules:   schedules,
		reminders:   reminders,
		outboxRepo:  outboxRepo,
		scheduler:   scheduler,
		dispatcher:  dispatcher,
		biz:         biz,
		logger:      logger,
		staffChatID: staffChatID,
	}
}

type createBookingRequest struct {
	UserID       int64  `json:"user_id"`
	UserName     string `json:"user_name"`
	UserUsername string `json:"user_username"`
	Phone        string `json:"phone"`
	Service      string `json:"service"`
	Date         string `json:"date"`
	Time         string `json:"time"`
}

type createBookingResponse struct {
	AppointmentID int64 `json:"appointment_id"`
}

type cancelBookingRequest struct {
	AppointmentID int64 `json:"appointment_id"`
	UserID        int64 `json:"user_id"`
}

type appointmentItem struct {
	AppointmentID int64  `json:"appointment_id"`
	UserID        int64  `json:"user_id,omitempty"`
	UserName      string `json:"user_name"`
	Phone         string `json:"phone,omitempty"`
	Service       string `json:"service"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	CreatedAt     string `json:"created_at"`
}

func appointmentItems(appts []model.Appointment) []appointmentItem {
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, appointmentItem{
			AppointmentID: appt.ID,
			UserID:        appt.UserID,
			UserName:      appt.UserName,
			Phone:         appt.Phone,
			Service:       appt.Service,
			Date:          appt.Date,
			Time:          appt.Time,
			CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return items
}

// Dates lists upcoming days that still have at least one free slot.
func (h *BookingHandler) Dates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	week, err := h.schedules.Week(r.Context())
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	dates := availability.DateCandidates(week, h.biz.Now(), availability.LookaheadDays, availability.DateCandidateCount)
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

// Slots lists the free half-hour ticks of one day.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	day, err := clock.ParseDate(date)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	workDay, err := h.schedules.WorkDay(r.Context(), int(day.Weekday()))
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	booked, err := h.bookings.BookedTimes(r.Context(), date)
	if err != nil {
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}

	slots, err := availability.Slots(workDay, booked, h.biz.IsToday(date), h.biz.NowClockMinutes())
	if err != nil {
		http.Error(w, "failed to compute slots", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.UserID <= 0 {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	appt := model.Appointment{
		UserID:       req.UserID,
		UserName:     strings.TrimSpace(req.UserName),
		UserUsername: strings.TrimSpace(req.UserUsername),
		Phone:        strings.TrimSpace(req.Phone),
		Service:      strings.TrimSpace(req.Service),
		Date:         strings.TrimSpace(req.Date),
		Time:         strings.TrimSpace(req.Time),
	}
	h.book(w, r, appt)
}

// book runs the shared create path for both client and walk-in bookings.
func (h *BookingHandler) book(w http.ResponseWriter, r *http.Request, appt model.Appointment) {
	if appt.UserName == "" || appt.Service == "" {
		http.Error(w, "user_name and service required", http.StatusBadRequest)
		return
	}
	if status, msg := h.validateSlot(r.Context(), appt.Date, appt.Time); status != 0 {
		http.Error(w, msg, status)
		return
	}

	ctx := r.Context()
	tx, err := h.bookings.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.bookings.CreateTx(ctx, tx, &appt)
	if err != nil {
		if errors.Is(err, booking.ErrSlotTaken) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		h.logger.Error("create appointment failed", "err", err)
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	evtPayload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"user_id":        appt.UserID,
		"service":        appt.Service,
		"date":           appt.Date,
		"time":           appt.Time,
		"walk_in":        appt.IsWalkIn(),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: outbox.AggregateAppointment,
		AggregateID:   strconv.FormatInt(id, 10),
		EventType:     outbox.EventAppointmentBooked,
		Payload:       evtPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	if !appt.IsWalkIn() {
		// The booking is already committed; scheduling must not die with
		// the request context if the client disconnects.
		schedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.scheduler.Schedule(schedCtx, appt); err != nil {
			h.logger.Error("reminder scheduling failed", "appointment_id", id, "err", err)
		}
	}
	h.notifyStaff(notify.StaffBookedText(appt))

	writeJSON(w, http.StatusCreated, createBookingResponse{AppointmentID: id})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.AppointmentID <= 0 || req.UserID <= 0 {
		http.Error(w, "appointment_id and user_id required", http.StatusBadRequest)
		return
	}
	h.cancel(w, r, req.AppointmentID, &req.UserID)
}

// cancel removes the appointment, its slot claim, and its unsent reminders
// in one transaction. A nil requester skips the ownership check.
func (h *BookingHandler) cancel(w http.ResponseWriter, r *http.Request, appointmentID int64, requester *int64) {
	ctx := r.Context()
	tx, err := h.bookings.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.bookings.CancelTx(ctx, tx, appointmentID, requester)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("cancel appointment failed", "err", err)
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	if err := h.reminders.DeleteUnsentTx(ctx, tx, appointmentID); err != nil {
		http.Error(w, "failed to clear reminders", http.StatusInternalServerError)
		return
	}

	cancelPayload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"user_id":        appt.UserID,
		"service":        appt.Service,
		"date":           appt.Date,
		"time":           appt.Time,
	})
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: outbox.AggregateAppointment,
		AggregateID:   strconv.FormatInt(appt.ID, 10),
		EventType:     outbox.EventAppointmentCancelled,
		Payload:       cancelPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.scheduler.CancelTimers(appt.ID)
	h.notifyStaff(notify.StaffCancelledText(appt))

	writeJSON(w, http.StatusOK, map[string]any{
		"appointment_id": appt.ID,
		"status":         "cancelled",
	})
}

// List returns a user's upcoming and past appointments.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("user_id")), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	appts, err := h.bookings.ByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, appointmentItems(appts))
}

// validateSlot enforces the booking rules shared by every create path:
// well-formed date and time, half-hour alignment, inside the weekday's work
// window, and not in the past. Returns (0, "") when the slot is acceptable.
func (h *BookingHandler) validateSlot(ctx context.Context, date, slot string) (int, string) {
	day, err := clock.ParseDate(date)
	if err != nil {
		return http.StatusBadRequest, "invalid date"
	}
	minutes, err := clock.ParseClockMinutes(slot)
	if err != nil {
		return http.StatusBadRequest, "invalid time"
	}
	if minutes%availability.SlotMinutes != 0 {
		return http.StatusUnprocessableEntity, "time must align to a half-hour slot"
	}

	today := h.biz.Today()
	if date < today {
		return http.StatusUnprocessableEntity, "date is in the past"
	}
	if date == today && minutes <= h.biz.NowClockMinutes() {
		return http.StatusUnprocessableEntity, "time slot has already passed"
	}

	workDay, err := h.schedules.WorkDay(ctx, int(day.Weekday()))
	if err != nil {
		return http.StatusInternalServerError, "failed to load schedule"
	}
	if !workDay.Working {
		return http.StatusUnprocessableEntity, "the shop is closed that day"
	}
	open, err := clock.ParseClockMinutes(workDay.Open)
	if err != nil {
		return http.StatusInternalServerError, "failed to load schedule"
	}
	closeMin, err := clock.ParseClockMinutes(workDay.Close)
	if err != nil {
		return http.StatusInternalServerError, "failed to load schedule"
	}
	if minutes < open || minutes > closeMin-availability.SlotMinutes {
		return http.StatusUnprocessableEntity, fmt.Sprintf("time must be between %s and %s",
			workDay.Open, availability.FormatLastSlot(workDay.Close))
	}
	return 0, ""
}

// notifyStaff forwards booking activity to the shop chat. Failures are
// logged and swallowed: the booking itself already committed.
func (h *BookingHandler) notifyStaff(text string) {
	if h.staffChatID == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.dispatcher.Deliver(ctx, h.staffChatID, text); err != nil {
			h.logger.Warn("staff notification failed", "err", err)
		}
	}()
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/chairtime/internal/clock"
	"github.com/md-rashed-zaman/chairtime/internal/model"
	"github.com/md-rashed-zaman/chairtime/internal/stats"
	"github.com/md-rashed-zaman/chairtime/libs/auth"
	"golang.org/x/crypto/bcrypt"
)

// AdminHandler serves the authenticated management API. Booking mutations go
// through the shared BookingHandler paths so walk-ins obey the same slot
// rules as client bookings.
type AdminHandler struct {
	core         *BookingHandler
	statsRepo    *stats.Repository
	logger       *slog.Logger
	passwordHash string
	jwtSecret    string
	tokenTTL     time.Duration
}

func NewAdminHandler(core *BookingHandler, statsRepo *stats.Repository, logger *slog.Logger, passwordHash, jwtSecret string, tokenTTL time.Duration) *AdminHandler {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &AdminHandler{
		core:         core,
		statsRepo:    statsRepo,
		logger:       logger,
		passwordHash: passwordHash,
		jwtSecret:    jwtSecret,
		tokenTTL:     tokenTTL,
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type workDayItem struct {
	Weekday int    `json:"weekday"`
	Open    string `json:"open"`
	Close   string `json:"close"`
	Working bool   `json:"working"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if h.passwordHash == "" || h.jwtSecret == "" {
		http.Error(w, "admin access not configured", http.StatusServiceUnavailable)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  "admin",
		Role: "admin",
		Iat:  now.Unix(),
		Exp:  now.Add(h.tokenTTL).Unix(),
	}, h.jwtSecret)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "Bearer"})
}

// RequireAdmin guards management routes with a bearer token check.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		claims, err := auth.ParseAndVerifyHS256(token, h.jwtSecret)
		if err != nil || claims.Role != "admin" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Schedule reads or updates the weekly work schedule.
func (h *AdminHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSchedule(w, r)
	case http.MethodPut:
		h.putSchedule(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) getSchedule(w http.ResponseWriter, r *http.Request) {
	week, err := h.core.schedules.Week(r.Context())
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	items := make([]workDayItem, 0, len(week))
	for _, day := range week {
		items = append(items, workDayItem{
			Weekday: day.Weekday,
			Open:    day.Open,
			Close:   day.Close,
			Working: day.Working,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AdminHandler) putSchedule(w http.ResponseWriter, r *http.Request) {
	var req workDayItem
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		http.Error(w, "weekday must be 0..6", http.StatusBadRequest)
		return
	}
	openMin, err := clock.ParseClockMinutes(req.Open)
	if err != nil {
		http.Error(w, "invalid open time", http.StatusBadRequest)
		return
	}
	closeMin, err := clock.ParseClockMinutes(req.Close)
	if err != nil {
		http.Error(w, "invalid close time", http.StatusBadRequest)
		return
	}
	if req.Working && closeMin <= openMin {
		http.Error(w, "close must be after open", http.StatusUnprocessableEntity)
		return
	}

	if err := h.core.schedules.SetWorkDay(r.Context(), model.WorkDay{
		Weekday: req.Weekday,
		Open:    req.Open,
		Close:   req.Close,
		Working: req.Working,
	}); err != nil {
		h.logger.Error("set work day failed", "weekday", req.Weekday, "err", err)
		http.Error(w, "failed to update schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Bookings lists every appointment, optionally filtered by date.
func (h *AdminHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	var (
		appts []model.Appointment
		err   error
	)
	if date != "" {
		if _, perr := clock.ParseDate(date); perr != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		appts, err = h.core.bookings.OnDate(r.Context(), date)
	} else {
		appts, err = h.core.bookings.All(r.Context())
	}
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, appointmentItems(appts))
}

type walkInRequest struct {
	UserName string `json:"user_name"`
	Phone    string `json:"phone"`
	Service  string `json:"service"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

// CreateWalkIn books on behalf of a client without a chat account. Walk-ins
// never get reminders; there is no chat to deliver them to.
func (h *AdminHandler) CreateWalkIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req walkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	h.core.book(w, r, model.Appointment{
		UserID:   model.WalkInUserID,
		UserName: strings.TrimSpace(req.UserName),
		Phone:    strings.TrimSpace(req.Phone),
		Service:  strings.TrimSpace(req.Service),
		Date:     strings.TrimSpace(req.Date),
		Time:     strings.TrimSpace(req.Time),
	})
}

type adminCancelRequest struct {
	AppointmentID int64 `json:"appointment_id"`
}

// Cancel removes any appointment regardless of owner.
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req adminCancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.AppointmentID <= 0 {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	h.core.cancel(w, r, req.AppointmentID, nil)
}

// Stats reports the booking ledger aggregates.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := h.statsRepo.Summarize(r.Context(), h.core.biz.Today(), h.core.biz.NowClock())
	if err != nil {
		h.logger.Error("stats query failed", "err", err)
		http.Error(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

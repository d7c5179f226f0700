package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/chairtime/internal/model"
	"github.com/md-rashed-zaman/chairtime/libs/auth"
	"golang.org/x/crypto/bcrypt"
)

func newAdminHandler(t *testing.T, password, secret string) *AdminHandler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return NewAdminHandler(&BookingHandler{}, nil, discardLogger(), string(hash), secret, time.Hour)
}

func TestAdminLogin(t *testing.T) {
	h := newAdminHandler(t, "pass123", "secret")

	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"pass123"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	claims, err := auth.ParseAndVerifyHS256(resp.AccessToken, "secret")
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Role != "admin" {
		t.Errorf("role = %q, want admin", claims.Role)
	}
}

func TestAdminLoginWrongPassword(t *testing.T) {
	h := newAdminHandler(t, "pass123", "secret")

	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"nope"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminLoginUnconfigured(t *testing.T) {
	h := NewAdminHandler(&BookingHandler{}, nil, discardLogger(), "", "", time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"x"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	h := newAdminHandler(t, "pass123", "secret")

	var reached bool
	guarded := h.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	now := time.Now()
	goodToken, err := auth.SignHS256(auth.Claims{Sub: "admin", Role: "admin", Iat: now.Unix(), Exp: now.Add(time.Hour).Unix()}, "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	userToken, err := auth.SignHS256(auth.Claims{Sub: "7", Role: "user", Iat: now.Unix(), Exp: now.Add(time.Hour).Unix()}, "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantReach  bool
	}{
		{"no header", "", http.StatusUnauthorized, false},
		{"not bearer", "Basic abc", http.StatusUnauthorized, false},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized, false},
		{"wrong role", "Bearer " + userToken, http.StatusUnauthorized, false},
		{"valid", "Bearer " + goodToken, http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodGet, "/admin/bookings", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if reached != tt.wantReach {
				t.Errorf("reached = %v, want %v", reached, tt.wantReach)
			}
		})
	}
}

func TestAdminCancelSkipsOwnershipCheck(t *testing.T) {
	core, f := newWiredBookingHandler()
	f.bookings.snapshot = model.Appointment{
		ID: 3, UserID: 501, UserName: "Ann", Service: "Haircut",
		Date: "2030-06-10", Time: "14:30",
	}
	h := NewAdminHandler(core, nil, discardLogger(), "", "", time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/admin/bookings/cancel", strings.NewReader(`{"appointment_id":3}`))
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if f.bookings.requester != nil {
		t.Fatal("administrator cancellation must not pass a requester")
	}
	if f.bookings.cancelledID != 3 {
		t.Fatalf("cancelled id = %d, want 3", f.bookings.cancelledID)
	}
}

func TestPutScheduleValidation(t *testing.T) {
	h := newAdminHandler(t, "pass123", "secret")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"weekday out of range", `{"weekday":7,"open":"10:00","close":"20:00","working":true}`, http.StatusBadRequest},
		{"bad open", `{"weekday":1,"open":"ten","close":"20:00","working":true}`, http.StatusBadRequest},
		{"bad close", `{"weekday":1,"open":"10:00","close":"late","working":true}`, http.StatusBadRequest},
		{"close before open", `{"weekday":1,"open":"20:00","close":"10:00","working":true}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/admin/schedule", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Schedule(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

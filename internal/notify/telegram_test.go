package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/md-rashed-zaman/chairtime/internal/model"
)

func TestTelegramDispatcherDeliver(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewTelegramDispatcherWithBaseURL("test-token", srv.URL)
	if err := d.Deliver(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["chat_id"].(float64) != 42 {
		t.Errorf("chat_id = %v", gotBody["chat_id"])
	}
	if gotBody["text"] != "hello" {
		t.Errorf("text = %v", gotBody["text"])
	}
}

func TestTelegramDispatcherForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"description": "bot was blocked by the user"})
	}))
	defer srv.Close()

	d := NewTelegramDispatcherWithBaseURL("t", srv.URL)
	err := d.Deliver(context.Background(), 7, "hi")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("want ErrUnreachable, got %v", err)
	}
}

func TestTelegramDispatcherServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewTelegramDispatcherWithBaseURL("t", srv.URL)
	err := d.Deliver(context.Background(), 7, "hi")
	if err == nil {
		t.Fatal("want error for 500")
	}
	if errors.Is(err, ErrUnreachable) {
		t.Fatal("500 must not map to ErrUnreachable")
	}
}

func TestTelegramDispatcherNoToken(t *testing.T) {
	d := NewTelegramDispatcher("")
	if err := d.Deliver(context.Background(), 1, "x"); err == nil {
		t.Fatal("want error when token missing")
	}
}

func TestReminderText(t *testing.T) {
	appt := model.Appointment{Service: "Haircut", Date: "2026-06-10", Time: "14:30"}

	got := ReminderText(model.ReminderKind24h, appt)
	if got != "Reminder: you have an appointment tomorrow.\nHaircut on 2026-06-10 at 14:30." {
		t.Errorf("24h text = %q", got)
	}
	got = ReminderText(model.ReminderKind1h, appt)
	if got != "Reminder: your appointment starts in one hour.\nHaircut on 2026-06-10 at 14:30." {
		t.Errorf("1h text = %q", got)
	}
}

package model

import "time"

// WalkInUserID marks appointments an administrator entered on behalf of a
// walk-in client. Walk-ins have no chat account and never receive reminders.
const WalkInUserID int64 = 0

const (
	ReminderKind24h = "24h"
	ReminderKind1h  = "1h"
)

type Appointment struct {
	ID           int64
	UserID       int64 // chat account id; WalkInUserID for proxy bookings
	UserName     string
	UserUsername string
	Phone        string
	Service      string
	Date         string // business-local civil date, "2006-01-02"
	Time         string // half-hour-aligned local time of day, "15:04"
	CreatedAt    time.Time
	ReminderSent bool // legacy flag, superseded by scheduled_reminders rows
}

// IsWalkIn reports whether the appointment is an administrator proxy booking.
func (a Appointment) IsWalkIn() bool {
	return a.UserID == WalkInUserID
}

type WorkDay struct {
	Weekday int // time.Weekday numbering, 0 = Sunday
	Open    string
	Close   string
	Working bool
}

type Reminder struct {
	ID            int64
	AppointmentID int64
	Kind          string // ReminderKind24h or ReminderKind1h
	TriggerAt     time.Time
	Sent          bool
}

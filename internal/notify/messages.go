package notify

import (
	"fmt"

	"github.com/md-rashed-zaman/chairtime/internal/model"
)

// ReminderText renders the message delivered to a client ahead of their visit.
func ReminderText(kind string, appt model.Appointment) string {
	var lead string
	switch kind {
	case model.ReminderKind24h:
		lead = "Reminder: you have an appointment tomorrow."
	case model.ReminderKind1h:
		lead = "Reminder: your appointment starts in one hour."
	default:
		lead = "Reminder: you have an upcoming appointment."
	}
	return fmt.Sprintf("%s\n%s on %s at %s.", lead, appt.Service, appt.Date, appt.Time)
}

// StaffBookedText tells the shop chat about a new booking.
func StaffBookedText(appt model.Appointment) string {
	who := appt.UserName
	if appt.UserUsername != "" {
		who = fmt.Sprintf("%s (@%s)", appt.UserName, appt.UserUsername)
	}
	return fmt.Sprintf("New booking: %s, %s at %s, %s, phone %s.",
		who, appt.Date, appt.Time, appt.Service, appt.Phone)
}

// StaffCancelledText tells the shop chat a slot opened up.
func StaffCancelledText(appt model.Appointment) string {
	return fmt.Sprintf("Cancelled: %s at %s (%s, %s).",
		appt.Date, appt.Time, appt.Service, appt.UserName)
}

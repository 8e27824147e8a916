// Package calendar exports reminder events as iCalendar files.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Recurrence is the closed set of repeat rules the reminder form offers.
type Recurrence string

const (
	RecurNone    Recurrence = "none"
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

// ParseRecurrence normalizes user input to a known recurrence, defaulting to
// none.
func ParseRecurrence(s string) Recurrence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return RecurDaily
	case "weekly":
		return RecurWeekly
	case "monthly":
		return RecurMonthly
	default:
		return RecurNone
	}
}

// Event is one calendar event description.
type Event struct {
	Name       string
	Start      time.Time
	Duration   time.Duration
	Recurrence Recurrence
	Notes      string
}

const icsTimeLayout = "20060102T150405"

// WriteEvent emits a single-VEVENT iCalendar document. Calendar apps accept
// the file as-is; recurrence maps to an RRULE.
func WriteEvent(w io.Writer, ev Event) error {
	if strings.TrimSpace(ev.Name) == "" {
		return fmt.Errorf("event name must not be empty")
	}
	if ev.Start.IsZero() {
		return fmt.Errorf("event start must not be zero")
	}
	duration := ev.Duration
	if duration <= 0 {
		duration = 30 * time.Minute
	}

	var sb strings.Builder
	sb.WriteString("BEGIN:VCALENDAR\r\n")
	sb.WriteString("VERSION:2.0\r\n")
	sb.WriteString("PRODID:-//reflective//journal reminders//EN\r\n")
	sb.WriteString("BEGIN:VEVENT\r\n")
	sb.WriteString("UID:" + uuid.NewString() + "@reflective\r\n")
	sb.WriteString("DTSTAMP:" + time.Now().UTC().Format(icsTimeLayout) + "Z\r\n")
	sb.WriteString("DTSTART:" + ev.Start.Format(icsTimeLayout) + "\r\n")
	sb.WriteString("DTEND:" + ev.Start.Add(duration).Format(icsTimeLayout) + "\r\n")
	sb.WriteString("SUMMARY:" + escapeText(ev.Name) + "\r\n")
	if rule := rrule(ev.Recurrence); rule != "" {
		sb.WriteString("RRULE:" + rule + "\r\n")
	}
	if strings.TrimSpace(ev.Notes) != "" {
		sb.WriteString("DESCRIPTION:" + escapeText(ev.Notes) + "\r\n")
	}
	sb.WriteString("END:VEVENT\r\n")
	sb.WriteString("END:VCALENDAR\r\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func rrule(r Recurrence) string {
	switch r {
	case RecurDaily:
		return "FREQ=DAILY"
	case RecurWeekly:
		return "FREQ=WEEKLY"
	case RecurMonthly:
		return "FREQ=MONTHLY"
	default:
		return ""
	}
}

// escapeText applies RFC 5545 text escaping.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

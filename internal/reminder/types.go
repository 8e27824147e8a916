// Package reminder schedules journaling reminders and exports them as
// calendar events.
package reminder

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nyshlabs/reflective/internal/calendar"
)

// Schedule describes when a reminder fires.
//   - kind "cron": Expr is a 6-field cron expression (with seconds)
//   - kind "every": fires every EveryMs milliseconds
//   - kind "at": fires once at AtMs (unix millis) and disables itself
type Schedule struct {
	Kind    string `json:"kind"`
	Expr    string `json:"expr,omitempty"`
	EveryMs int64  `json:"everyMs,omitempty"`
	AtMs    int64  `json:"atMs,omitempty"`
}

// Delivery routes the fired reminder to a channel, or nowhere if Channel is
// empty (calendar-only reminders).
type Delivery struct {
	Channel string `json:"channel,omitempty"`
	To      string `json:"to,omitempty"`
	Message string `json:"message"`
}

// State tracks the last run, persisted with the reminder.
type State struct {
	LastRunAtMs int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

// Reminder is one scheduled journaling prompt.
type Reminder struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Schedule    Schedule            `json:"schedule"`
	Delivery    Delivery            `json:"delivery"`
	Recurrence  calendar.Recurrence `json:"recurrence"`
	StartAt     time.Time           `json:"startAt"`
	Notes       string              `json:"notes,omitempty"`
	Enabled     bool                `json:"enabled"`
	OneShot     bool                `json:"oneShot,omitempty"`
	State       State               `json:"state"`
	CreatedAtMs int64               `json:"createdAtMs"`
}

func NewReminder(name string, start time.Time, rec calendar.Recurrence, delivery Delivery, notes string) Reminder {
	r := Reminder{
		ID:          uuid.NewString(),
		Name:        name,
		Recurrence:  rec,
		StartAt:     start,
		Delivery:    delivery,
		Notes:       notes,
		Enabled:     true,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	r.Schedule = scheduleFor(start, rec)
	r.OneShot = rec == calendar.RecurNone
	return r
}

// scheduleFor maps the form's {start, recurrence} to a runnable schedule.
func scheduleFor(start time.Time, rec calendar.Recurrence) Schedule {
	switch rec {
	case calendar.RecurDaily:
		return Schedule{Kind: "cron", Expr: fmt.Sprintf("0 %d %d * * *", start.Minute(), start.Hour())}
	case calendar.RecurWeekly:
		return Schedule{Kind: "cron", Expr: fmt.Sprintf("0 %d %d * * %d", start.Minute(), start.Hour(), int(start.Weekday()))}
	case calendar.RecurMonthly:
		return Schedule{Kind: "cron", Expr: fmt.Sprintf("0 %d %d %d * *", start.Minute(), start.Hour(), start.Day())}
	default:
		return Schedule{Kind: "at", AtMs: start.UnixMilli()}
	}
}

// Event converts the reminder to its calendar-export form.
func (r Reminder) Event() calendar.Event {
	return calendar.Event{
		Name:       r.Name,
		Start:      r.StartAt,
		Recurrence: r.Recurrence,
		Notes:      r.Notes,
	}
}

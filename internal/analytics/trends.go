package analytics

import (
	"github.com/nyshlabs/reflective/internal/journal"
)

// Weekdays in chart order. The weekday breakdown always carries all seven
// keys so chart axes stay stable regardless of data sparsity.
var Weekdays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// MoodColors is the fixed color mapping the dashboard charts use. Moods
// outside this map get a default color at render time.
var MoodColors = map[string]string{
	"😄 Great":   "#4CAF50",
	"🙂 Okay":    "#8BC34A",
	"😐 Neutral": "#FFC107",
	"😔 Low":     "#FF9800",
	"😣 Anxious": "#F44336",
}

// MoodBreakdown counts entries per mood label. The sum of counts always
// equals the entry count.
func MoodBreakdown(entries []journal.Entry) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Mood]++
	}
	return counts
}

// WeekdayBreakdown counts entries per named weekday. Every weekday is
// present in the result, zero counts included.
func WeekdayBreakdown(entries []journal.Entry) map[string]int {
	counts := make(map[string]int, len(Weekdays))
	for _, d := range Weekdays {
		counts[d] = 0
	}
	for _, e := range entries {
		counts[e.Timestamp.Weekday().String()]++
	}
	return counts
}

// HourBreakdown counts entries per hour of day (0-23).
func HourBreakdown(entries []journal.Entry) map[int]int {
	counts := make(map[int]int)
	for _, e := range entries {
		counts[e.Timestamp.Hour()]++
	}
	return counts
}

// DailyCounts counts entries per calendar day, for the timeline view.
func DailyCounts(entries []journal.Entry) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Timestamp.Format(journal.DateLayout)]++
	}
	return counts
}

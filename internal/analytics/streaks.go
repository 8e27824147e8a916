// Package analytics derives read-only statistics from the journal. Every
// function here is pure: results are recomputed from the entry set on each
// call and nothing is cached.
package analytics

import (
	"sort"
	"time"

	"github.com/nyshlabs/reflective/internal/journal"
)

// Streaks holds the two consecutive-day figures shown on the dashboard.
type Streaks struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// ComputeStreaks reduces the entry set to distinct journaled days and counts
// consecutive-day runs. Current is the length of the run ending at the most
// recent journaled day; it is relative to the data, not to wall-clock today,
// so it answers "how long was the most recent unbroken run".
func ComputeStreaks(entries []journal.Entry) Streaks {
	days := distinctDays(entries)
	if len(days) == 0 {
		return Streaks{}
	}

	// Newest first; a gap of exactly one day continues a run.
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	longest := 1
	run := 1
	for i := 1; i < len(days); i++ {
		if dayGap(days[i-1], days[i]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	// The current streak is the run containing the most recent day: walk
	// from days[0] until the first gap wider than one day.
	current := 1
	for i := 1; i < len(days); i++ {
		if dayGap(days[i-1], days[i]) != 1 {
			break
		}
		current++
	}

	return Streaks{Current: current, Longest: longest}
}

// dayGap returns the whole-day distance between two midnight-normalized days,
// newer first.
func dayGap(newer, older time.Time) int {
	return int(newer.Sub(older).Hours() / 24)
}

// distinctDays truncates timestamps to calendar days and dedupes. Days are
// normalized to UTC midnight so subtraction yields exact multiples of 24h.
func distinctDays(entries []journal.Entry) []time.Time {
	seen := make(map[time.Time]bool, len(entries))
	days := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		d := time.Date(e.Timestamp.Year(), e.Timestamp.Month(), e.Timestamp.Day(), 0, 0, 0, 0, time.UTC)
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days
}

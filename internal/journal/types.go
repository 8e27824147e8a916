package journal

import (
	"strings"
	"time"
)

// TimeLayout is the second-resolution layout entries are stored with.
const TimeLayout = "2006-01-02 15:04:05"

// DateLayout is the calendar-day layout used by filters and streaks.
const DateLayout = "2006-01-02"

// Moods is the set of labels the UI offers. The store accepts any non-empty
// mood so entries written with labels later removed from this set stay valid.
var Moods = []string{
	"😄 Great",
	"🙂 Okay",
	"😐 Neutral",
	"😔 Low",
	"😣 Anxious",
	"😊 Happy",
	"😌 Relaxed",
	"😟 Worried",
	"😠 Angry",
	"😴 Tired",
}

// DefaultMood is used when an entry arrives without a mood choice, e.g. from
// a chat command.
const DefaultMood = "😐 Neutral"

// Entry is one persisted journal record. Entries are immutable after creation.
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Mood      string    `json:"mood"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows List results. Zero values mean "no constraint"; set fields
// combine as a conjunction.
type Filter struct {
	Date time.Time
	Mood string
}

// Order controls the timestamp ordering of All.
type Order int

const (
	// Descending is what display consumers want: newest first.
	Descending Order = iota
	// Ascending is what streak computation wants: oldest first.
	Ascending
)

// JoinTags flattens a tag set into the stored comma-separated form.
// A tag containing a comma splits on read; the ambiguity is inherited from
// the on-disk format and kept for compatibility.
func JoinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return strings.Join(cleaned, ", ")
}

// SplitTags parses the stored comma-separated form back into a tag list.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

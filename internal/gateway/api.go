package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nyshlabs/reflective/internal/analytics"
	"github.com/nyshlabs/reflective/internal/calendar"
	"github.com/nyshlabs/reflective/internal/chat"
	"github.com/nyshlabs/reflective/internal/insight"
	"github.com/nyshlabs/reflective/internal/journal"
	"github.com/nyshlabs/reflective/internal/reminder"
)

// apiHandler builds the REST surface mounted under /api/ by the web UI
// channel.
func (g *Gateway) apiHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/entries", g.handleEntries)
	mux.HandleFunc("/api/stats", g.handleStats)
	mux.HandleFunc("/api/search", g.handleSearch)
	mux.HandleFunc("/api/insight", g.handleInsight)
	mux.HandleFunc("/api/moods", g.handleMoods)
	mux.HandleFunc("/api/templates", g.handleTemplates)
	mux.HandleFunc("/api/reminders", g.handleReminders)
	mux.HandleFunc("/api/reminders/", g.handleReminderByID)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type entryRequest struct {
	Text      string   `json:"text"`
	Mood      string   `json:"mood"`
	Tags      []string `json:"tags,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

func (g *Gateway) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req entryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		ts := time.Now()
		if req.Timestamp != "" {
			parsed, err := time.ParseInLocation(journal.TimeLayout, req.Timestamp, time.Local)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("timestamp must use layout %q", journal.TimeLayout))
				return
			}
			ts = parsed
		}

		id, err := g.store.Append(r.Context(), req.Text, req.Mood, req.Tags, ts)
		if err != nil {
			var verr *journal.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, verr.Error())
				return
			}
			log.Printf("[api] append entry: %v", err)
			writeError(w, http.StatusInternalServerError, "could not save entry")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})

	case http.MethodGet:
		f := journal.Filter{Mood: r.URL.Query().Get("mood")}
		if date := r.URL.Query().Get("date"); date != "" {
			parsed, err := time.ParseInLocation(journal.DateLayout, date, time.Local)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("date must use layout %q", journal.DateLayout))
				return
			}
			f.Date = parsed
		}

		entries, err := g.store.List(r.Context(), f)
		if err != nil {
			log.Printf("[api] list entries: %v", err)
			writeError(w, http.StatusInternalServerError, "could not list entries")
			return
		}
		writeJSON(w, http.StatusOK, entries)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries, err := g.store.All(r.Context(), journal.Descending)
	if err != nil {
		log.Printf("[api] stats: %v", err)
		writeError(w, http.StatusInternalServerError, "could not read entries")
		return
	}

	streaks := analytics.ComputeStreaks(entries)
	writeJSON(w, http.StatusOK, map[string]any{
		"total":         len(entries),
		"currentStreak": streaks.Current,
		"longestStreak": streaks.Longest,
		"moodCounts":    analytics.MoodBreakdown(entries),
		"weekdayCounts": analytics.WeekdayBreakdown(entries),
		"hourCounts":    analytics.HourBreakdown(entries),
		"dailyCounts":   analytics.DailyCounts(entries),
	})
}

func (g *Gateway) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query().Get("q")
	limit := g.cfg.Search.Limit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := g.store.Search(r.Context(), query, limit)
	if err != nil {
		log.Printf("[api] search: %v", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (g *Gateway) handleInsight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries, err := g.store.All(r.Context(), journal.Descending)
	if err != nil {
		log.Printf("[api] insight: %v", err)
		writeError(w, http.StatusInternalServerError, "could not read entries")
		return
	}

	summary, err := g.insight.Analyze(r.Context(), entries)
	if err != nil {
		var empty *insight.EmptyCorpusError
		if errors.As(err, &empty) {
			writeError(w, http.StatusUnprocessableEntity, "no journal entries to analyze")
			return
		}
		log.Printf("[api] insight: %v", err)
		writeError(w, http.StatusBadGateway, "assistant unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"insight": summary})
}

func (g *Gateway) handleMoods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, journal.Moods)
}

func (g *Gateway) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	templates, err := chat.LoadTemplates()
	if err != nil {
		log.Printf("[api] templates: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load templates")
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

type reminderRequest struct {
	Name       string `json:"name"`
	Start      string `json:"start"`
	Recurrence string `json:"recurrence,omitempty"`
	Channel    string `json:"channel,omitempty"`
	To         string `json:"to,omitempty"`
	Message    string `json:"message,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

func (g *Gateway) handleReminders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req reminderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		start, err := time.ParseInLocation(journal.TimeLayout, req.Start, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("start must use layout %q", journal.TimeLayout))
			return
		}

		rem := reminder.NewReminder(req.Name, start, calendar.ParseRecurrence(req.Recurrence), reminder.Delivery{
			Channel: req.Channel,
			To:      req.To,
			Message: req.Message,
		}, req.Notes)

		added, err := g.reminders.Add(rem)
		if err != nil {
			log.Printf("[api] add reminder: %v", err)
			writeError(w, http.StatusInternalServerError, "could not save reminder")
			return
		}
		writeJSON(w, http.StatusCreated, added)

	case http.MethodGet:
		writeJSON(w, http.StatusOK, g.reminders.List())

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleReminderByID serves /api/reminders/{id} and /api/reminders/{id}/ics.
func (g *Gateway) handleReminderByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/reminders/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	switch {
	case sub == "ics" && r.Method == http.MethodGet:
		rem, ok := g.reminders.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "reminder not found")
			return
		}
		var buf bytes.Buffer
		if err := calendar.WriteEvent(&buf, rem.Event()); err != nil {
			log.Printf("[api] export ics: %v", err)
			writeError(w, http.StatusInternalServerError, "could not export event")
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rem.Name+".ics"))
		_, _ = w.Write(buf.Bytes())

	case sub == "" && r.Method == http.MethodDelete:
		if !g.reminders.Remove(id) {
			writeError(w, http.StatusNotFound, "reminder not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case sub == "" && r.Method == http.MethodGet:
		rem, ok := g.reminders.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "reminder not found")
			return
		}
		writeJSON(w, http.StatusOK, rem)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

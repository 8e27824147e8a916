package journal

import (
	"context"
	"strings"
)

// DefaultSearchLimit keeps search responses small enough for the UI.
const DefaultSearchLimit = 5

// Search returns the most recent entries whose text contains the query as a
// case-insensitive substring, at most limit of them (DefaultSearchLimit when
// limit <= 0). This is a deliberate linear scan: at personal-journal scale a
// tokenized index would be over-engineering.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, entry_text, mood, tags, created_at
		FROM journal_entries
		WHERE instr(lower(entry_text), lower(?)) > 0
		ORDER BY timestamp DESC, id ASC
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, &StorageError{Op: "search entries", Err: err}
	}
	defer rows.Close()
	return scanEntries(rows)
}

// MatchesFold reports whether text contains query as a case-insensitive
// substring. Callers holding transcripts in memory compose it with the same
// bound Search uses.
func MatchesFold(text, query string) bool {
	if query = strings.TrimSpace(query); query == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(query))
}

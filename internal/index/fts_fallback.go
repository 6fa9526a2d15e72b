//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/inkday/internal/diary"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search decodes and scans every day row.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ diary.DateKey, _ []diary.Event) error { return nil }

func ftsDelete(_ *sql.Tx, _ diary.DateKey) error { return nil }

func ftsReset(_ *sql.Tx) error { return nil }

// Search returns events whose text or tags contain query, case-insensitively,
// in chronological order (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	needle := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(query), "#"))
	if needle == "" {
		return []SearchResult{}, nil
	}

	// Matching runs on decoded events. The stored JSON escapes characters
	// such as & and <, so the raw value cannot be filtered with LIKE.
	rows, err := db.conn.Query(`SELECT key, value FROM kv WHERE key GLOB ?`, dayKeyGlob)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		if !diary.IsDateKey(key) {
			continue
		}
		for i, e := range decodeDay(value) {
			if eventMatches(e, needle) {
				out = append(out, SearchResult{DateKey: diary.DateKey(key), Position: i, Event: e})
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortResults(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func eventMatches(e diary.Event, needle string) bool {
	if strings.Contains(strings.ToLower(e.Text), needle) {
		return true
	}
	for _, tag := range e.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		ti, _ := results[i].DateKey.Time()
		tj, _ := results[j].DateKey.Time()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return results[i].Position < results[j].Position
	})
}

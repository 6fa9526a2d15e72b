//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/inkday/internal/diary"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS events_fts USING fts5(
			date_key UNINDEXED,
			position UNINDEXED,
			text,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, key diary.DateKey, events []diary.Event) error {
	if err := ftsDelete(tx, key); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO events_fts (date_key, position, text, tags) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare fts insert: %w", err)
	}
	defer stmt.Close()
	for i, e := range events {
		if _, err := stmt.Exec(string(key), i, e.Text, strings.Join(e.Tags, " ")); err != nil {
			return fmt.Errorf("index: upsert fts: %w", err)
		}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, key diary.DateKey) error {
	if _, err := tx.Exec(`DELETE FROM events_fts WHERE date_key = ?`, string(key)); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

func ftsReset(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM events_fts`); err != nil {
		return fmt.Errorf("index: reset fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search over event text and tags, best
// matches first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	query = strings.TrimPrefix(strings.TrimSpace(query), "#")
	if query == "" {
		return []SearchResult{}, nil
	}
	rows, err := db.conn.Query(`
		SELECT date_key, position
		FROM events_fts
		WHERE events_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, phraseQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}

	type hit struct {
		key      diary.DateKey
		position int
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.key, &h.position); err != nil {
			rows.Close()
			return nil, err
		}
		hits = append(hits, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	days := make(map[diary.DateKey][]diary.Event)
	out := []SearchResult{}
	for _, h := range hits {
		events, ok := days[h.key]
		if !ok {
			if events, err = db.GetDay(h.key); err != nil {
				return nil, err
			}
			days[h.key] = events
		}
		if h.position < len(events) {
			out = append(out, SearchResult{DateKey: h.key, Position: h.position, Event: events[h.position]})
		}
	}
	return out, nil
}

// phraseQuery quotes query as a single FTS5 phrase so punctuation such as
// & or < is tokenised rather than parsed as query syntax.
func phraseQuery(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}

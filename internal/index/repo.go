package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/starford/inkday/internal/apperr"
	"github.com/starford/inkday/internal/diary"
)

// ChecksumKey stores the checksum of the last document mirrored into the DB.
const ChecksumKey = "documentChecksum"

// SearchResult is one matching event.
type SearchResult struct {
	DateKey  diary.DateKey `json:"dateKey"`
	Position int           `json:"position"`
	Event    diary.Event   `json:"event"`
}

// TagCount reports how many events carry a tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

// PutDay normalises events, assigns IDs to events without one and stores the
// day. A day left with no events is deleted. It returns the stored events.
func (db *DB) PutDay(key diary.DateKey, events []diary.Event) ([]diary.Event, error) {
	if !diary.IsDateKey(string(key)) {
		return nil, fmt.Errorf("index: put day %q: %w", key, apperr.ErrInvalidDateKey)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stored, err := putDay(tx, key, events)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("index: commit: %w", err)
	}
	return stored, nil
}

func putDay(tx *sql.Tx, key diary.DateKey, events []diary.Event) ([]diary.Event, error) {
	normalized := withIDs(diary.NormalizeEvents(events))
	if len(normalized) == 0 {
		if err := deleteDay(tx, key); err != nil {
			return nil, err
		}
		return normalized, nil
	}

	value, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("index: encode day %s: %w", key, err)
	}
	if err := setValue(tx, string(key), string(value)); err != nil {
		return nil, err
	}
	if err := ftsUpsert(tx, key, normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

// GetDay returns the events stored for key, or an empty list.
func (db *DB) GetDay(key diary.DateKey) ([]diary.Event, error) {
	value, ok, err := getValue(db.conn, string(key))
	if err != nil {
		return nil, err
	}
	if !ok {
		return []diary.Event{}, nil
	}
	return decodeDay(value), nil
}

// DeleteDay removes a day.
func (db *DB) DeleteDay(key diary.DateKey) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteDay(tx, key); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteDay(tx *sql.Tx, key diary.DateKey) error {
	if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, string(key)); err != nil {
		return fmt.Errorf("index: delete day %s: %w", key, err)
	}
	return ftsDelete(tx, key)
}

// Calendar returns every stored day. Rows whose value cannot be decoded, or
// that hold no events, are left out.
func (db *DB) Calendar() (diary.CalendarMap, error) {
	rows, err := db.conn.Query(`SELECT key, value FROM kv WHERE key GLOB ?`, dayKeyGlob)
	if err != nil {
		return nil, fmt.Errorf("index: calendar: %w", err)
	}
	defer rows.Close()

	cal := make(diary.CalendarMap)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		if !diary.IsDateKey(key) {
			continue
		}
		events := decodeDay(value)
		if len(events) == 0 {
			continue
		}
		cal[diary.DateKey(key)] = events
	}
	return cal, rows.Err()
}

// Replace swaps the whole calendar and the save timestamp in one transaction.
func (db *DB) Replace(cal diary.CalendarMap, lastSaved int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM kv WHERE key GLOB ?`, dayKeyGlob); err != nil {
		return fmt.Errorf("index: clear days: %w", err)
	}
	if err := ftsReset(tx); err != nil {
		return err
	}
	for key, events := range cal {
		if !diary.IsDateKey(string(key)) {
			continue
		}
		if _, err := putDay(tx, key, events); err != nil {
			return err
		}
	}
	if err := setValue(tx, diary.TimestampKey, strconv.FormatInt(lastSaved, 10)); err != nil {
		return err
	}
	return tx.Commit()
}

// LastSavedTimestamp returns the stored save time, or 0 when none is stored.
func (db *DB) LastSavedTimestamp() (int64, error) {
	value, ok, err := getValue(db.conn, diary.TimestampKey)
	if err != nil || !ok {
		return 0, err
	}
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, nil
	}
	return ts, nil
}

// SetLastSavedTimestamp records the save time.
func (db *DB) SetLastSavedTimestamp(ts int64) error {
	return setValue(db.conn, diary.TimestampKey, strconv.FormatInt(ts, 10))
}

// DocumentChecksum returns the checksum of the last mirrored document, or an
// empty string.
func (db *DB) DocumentChecksum() (string, error) {
	value, _, err := getValue(db.conn, ChecksumKey)
	return value, err
}

// SetDocumentChecksum records the checksum of the mirrored document.
func (db *DB) SetDocumentChecksum(sum string) error {
	return setValue(db.conn, ChecksumKey, sum)
}

// Tags counts tag usage across all days, most used first.
func (db *DB) Tags() ([]TagCount, error) {
	cal, err := db.Calendar()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, events := range cal {
		for _, e := range events {
			for _, tag := range e.Tags {
				counts[tag]++
			}
		}
	}
	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}

func getValue(q queryer, key string) (string, bool, error) {
	var value string
	err := q.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: get %s: %w", key, err)
	}
	return value, true, nil
}

func setValue(e execer, key, value string) error {
	_, err := e.Exec(`
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: set %s: %w", key, err)
	}
	return nil
}

// decodeDay reads a stored JSON array, accepting legacy bare-string events.
func decodeDay(value string) []diary.Event {
	var raw []diary.RawEvent
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return []diary.Event{}
	}
	return diary.Normalize(raw)
}

func withIDs(events []diary.Event) []diary.Event {
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
	}
	return events
}

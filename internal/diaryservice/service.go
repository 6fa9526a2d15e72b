// Package diaryservice coordinates the diary codec, the Markdown document
// store and the local SQLite mirror.
package diaryservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/starford/inkday/internal/apperr"
	"github.com/starford/inkday/internal/checksum"
	"github.com/starford/inkday/internal/diary"
	"github.com/starford/inkday/internal/index"
	"github.com/starford/inkday/internal/storage"
)

// DefaultDocument is the document path used when none is configured.
const DefaultDocument = "diary.md"

// Notifier receives change notifications, typically the SSE broker.
type Notifier interface {
	PublishDayEvent(kind, key string)
	PublishCalendarEvent(reason string)
}

// LoadResult is the calendar read from the document.
type LoadResult struct {
	Calendar           diary.CalendarMap
	LastSavedTimestamp string
	ETag               string
}

// SaveRequest carries a full calendar to persist.
type SaveRequest struct {
	Calendar diary.CalendarMap
	// LastSavedTimestamp is a numeric string; anything else means now.
	LastSavedTimestamp string
	// IfMatch, when set, must equal the current document ETag.
	IfMatch string
}

// SaveResult reports what was written.
type SaveResult struct {
	LastSavedTimestamp string `json:"lastSavedTimestamp"`
	Days               int    `json:"days"`
	ETag               string `json:"-"`
}

// Service coordinates storage and index operations.
type Service struct {
	store   storage.Provider
	db      index.DayStore
	codec   *diary.Codec
	docPath string
	logger  *slog.Logger
	notify  Notifier

	loads  singleflight.Group
	saveMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithDocument sets the document path relative to the store root.
func WithDocument(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.docPath = path
		}
	}
}

// WithCodec replaces the default codec, e.g. to pin the clock in tests.
func WithCodec(c *diary.Codec) Option {
	return func(s *Service) { s.codec = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifier sets the change notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notify = n }
}

// NewService creates a new diary service.
func NewService(store storage.Provider, db index.DayStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		db:      db,
		codec:   diary.NewCodec(),
		docPath: DefaultDocument,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DocumentPath returns the document path relative to the store root.
func (s *Service) DocumentPath() string {
	return s.docPath
}

// Load parses the document. The returned timestamp is the larger of the
// document's own timestamp and the store's modification time in
// milliseconds. A missing document loads as an empty calendar with "0".
// Concurrent calls share one read.
func (s *Service) Load(ctx context.Context) (*LoadResult, error) {
	v, err, _ := s.loads.Do("load", func() (any, error) {
		return s.load()
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := v.(*LoadResult)
	// Callers own their copy of the map.
	return &LoadResult{
		Calendar:           copyCalendar(res.Calendar),
		LastSavedTimestamp: res.LastSavedTimestamp,
		ETag:               res.ETag,
	}, nil
}

func (s *Service) load() (*LoadResult, error) {
	data, err := s.store.Read(s.docPath)
	if errors.Is(err, os.ErrNotExist) {
		return &LoadResult{Calendar: diary.CalendarMap{}, LastSavedTimestamp: "0"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("diaryservice: load: %w", err)
	}

	doc := s.codec.Parse(string(data))
	ts := doc.LastSavedTimestamp
	if meta, statErr := s.store.Stat(s.docPath); statErr == nil && meta.UpdatedAtMillis() > ts {
		ts = meta.UpdatedAtMillis()
	}
	return &LoadResult{
		Calendar:           doc.Calendar,
		LastSavedTimestamp: strconv.FormatInt(ts, 10),
		ETag:               checksum.ETag(data),
	}, nil
}

// Save formats the calendar, writes the document and mirrors it into the
// local DB. Saves run one at a time.
func (s *Service) Save(_ context.Context, req SaveRequest) (*SaveResult, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if req.IfMatch != "" {
		current, err := s.store.Read(s.docPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil, apperr.ErrConflict
		case err != nil:
			return nil, fmt.Errorf("diaryservice: save: %w", err)
		case checksum.ETag(current) != req.IfMatch && checksum.Sum(current) != req.IfMatch:
			return nil, apperr.ErrConflict
		}
	}

	ts := s.codec.ResolveTimestamp(req.LastSavedTimestamp)
	res, err := s.write(req.Calendar, ts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("diary saved", slog.Int("days", res.Days), slog.String("lastSavedTimestamp", res.LastSavedTimestamp))
	if s.notify != nil {
		s.notify.PublishCalendarEvent("saved")
	}
	return res, nil
}

// write formats and stores cal with timestamp ts, then mirrors it. Callers
// hold saveMu.
func (s *Service) write(cal diary.CalendarMap, ts int64) (*SaveResult, error) {
	text := s.codec.Format(cal, strconv.FormatInt(ts, 10))
	data := []byte(text)
	if err := s.store.Write(s.docPath, data); err != nil {
		return nil, fmt.Errorf("diaryservice: write document: %w", err)
	}

	// Mirror what the document now says so the local copy matches it exactly.
	doc := s.codec.Parse(text)
	carryIDs(doc.Calendar, cal)
	if err := s.db.Replace(doc.Calendar, ts); err != nil {
		return nil, fmt.Errorf("diaryservice: mirror: %w", err)
	}
	if err := s.db.SetDocumentChecksum(checksum.Sum(data)); err != nil {
		return nil, fmt.Errorf("diaryservice: record checksum: %w", err)
	}
	return &SaveResult{
		LastSavedTimestamp: strconv.FormatInt(ts, 10),
		Days:               len(doc.Calendar),
		ETag:               checksum.ETag(data),
	}, nil
}

// Import replaces the diary with the given Markdown. The document's own
// timestamp is kept when it has one.
func (s *Service) Import(_ context.Context, markdown string) (*SaveResult, error) {
	doc := s.codec.Parse(markdown)
	ts := ""
	if doc.LastSavedTimestamp != 0 {
		ts = strconv.FormatInt(doc.LastSavedTimestamp, 10)
	}

	s.saveMu.Lock()
	res, err := s.write(doc.Calendar, s.codec.ResolveTimestamp(ts))
	s.saveMu.Unlock()
	if err != nil {
		return nil, err
	}
	s.logger.Info("diary imported", slog.Int("days", res.Days))
	if s.notify != nil {
		s.notify.PublishCalendarEvent("imported")
	}
	return res, nil
}

// Export renders the local copy as a Markdown document.
func (s *Service) Export(_ context.Context) (string, error) {
	cal, err := s.db.Calendar()
	if err != nil {
		return "", fmt.Errorf("diaryservice: export: %w", err)
	}
	ts, err := s.db.LastSavedTimestamp()
	if err != nil {
		return "", fmt.Errorf("diaryservice: export: %w", err)
	}
	if ts == 0 {
		return s.codec.Format(cal, ""), nil
	}
	return s.codec.Format(cal, strconv.FormatInt(ts, 10)), nil
}

// GetDay returns the events of one day, or an empty list.
func (s *Service) GetDay(_ context.Context, key diary.DateKey) ([]diary.Event, error) {
	if _, _, _, ok := key.Parts(); !ok {
		return nil, apperr.ErrInvalidDateKey
	}
	return s.db.GetDay(key)
}

// PutDay replaces one day and writes the whole calendar back to the
// document with a fresh timestamp.
func (s *Service) PutDay(_ context.Context, key diary.DateKey, events []diary.Event) ([]diary.Event, error) {
	if _, _, _, ok := key.Parts(); !ok {
		return nil, apperr.ErrInvalidDateKey
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.putDay(key, events)
}

// AddEvent appends one event to a day.
func (s *Service) AddEvent(_ context.Context, key diary.DateKey, event diary.Event) ([]diary.Event, error) {
	if _, _, _, ok := key.Parts(); !ok {
		return nil, apperr.ErrInvalidDateKey
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	current, err := s.db.GetDay(key)
	if err != nil {
		return nil, err
	}
	return s.putDay(key, append(current, event))
}

// putDay stores a day and flushes. Callers hold saveMu.
func (s *Service) putDay(key diary.DateKey, events []diary.Event) ([]diary.Event, error) {
	stored, err := s.db.PutDay(key, events)
	if err != nil {
		return nil, err
	}
	if err := s.flush(); err != nil {
		return nil, err
	}

	kind := "updated"
	if len(stored) == 0 {
		kind = "deleted"
	}
	if s.notify != nil {
		s.notify.PublishDayEvent(kind, string(key))
	}
	return stored, nil
}

// DeleteDay removes a day. Deleting a day that has no events reports
// apperr.ErrNotFound.
func (s *Service) DeleteDay(_ context.Context, key diary.DateKey) error {
	if _, _, _, ok := key.Parts(); !ok {
		return apperr.ErrInvalidDateKey
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	current, err := s.db.GetDay(key)
	if err != nil {
		return err
	}
	if len(current) == 0 {
		return apperr.ErrNotFound
	}
	if err := s.db.DeleteDay(key); err != nil {
		return err
	}
	if err := s.flush(); err != nil {
		return err
	}
	if s.notify != nil {
		s.notify.PublishDayEvent("deleted", string(key))
	}
	return nil
}

// flush writes the local copy to the document. Callers hold saveMu.
func (s *Service) flush() error {
	cal, err := s.db.Calendar()
	if err != nil {
		return fmt.Errorf("diaryservice: flush: %w", err)
	}
	ts := s.codec.ResolveTimestamp("")
	data := []byte(s.codec.Format(cal, strconv.FormatInt(ts, 10)))
	if err := s.store.Write(s.docPath, data); err != nil {
		return fmt.Errorf("diaryservice: flush: %w", err)
	}
	if err := s.db.SetLastSavedTimestamp(ts); err != nil {
		return err
	}
	return s.db.SetDocumentChecksum(checksum.Sum(data))
}

// Search delegates event search to the local DB.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Tags returns tag usage counts.
func (s *Service) Tags(_ context.Context) ([]index.TagCount, error) {
	return s.db.Tags()
}

// carryIDs copies event IDs from src into the parsed calendar. A day keeps
// its IDs only when it parsed back with the same number of events, so IDs
// match by position.
func carryIDs(parsed, src diary.CalendarMap) {
	for key, events := range parsed {
		from := diary.NormalizeEvents(src[key])
		if len(from) != len(events) {
			continue
		}
		for i := range events {
			events[i].ID = from[i].ID
		}
	}
}

func copyCalendar(cal diary.CalendarMap) diary.CalendarMap {
	out := make(diary.CalendarMap, len(cal))
	for k, events := range cal {
		cp := make([]diary.Event, len(events))
		for i, e := range events {
			e.Tags = append([]string{}, e.Tags...)
			cp[i] = e
		}
		out[k] = cp
	}
	return out
}

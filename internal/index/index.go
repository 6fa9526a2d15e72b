package index

import "github.com/starford/inkday/internal/diary"

// DayStore defines the local persistence operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type DayStore interface {
	PutDay(key diary.DateKey, events []diary.Event) ([]diary.Event, error)
	GetDay(key diary.DateKey) ([]diary.Event, error)
	DeleteDay(key diary.DateKey) error
	Calendar() (diary.CalendarMap, error)
	Replace(cal diary.CalendarMap, lastSaved int64) error
	LastSavedTimestamp() (int64, error)
	SetLastSavedTimestamp(ts int64) error
	DocumentChecksum() (string, error)
	SetDocumentChecksum(sum string) error
	Search(query string, limit int) ([]SearchResult, error)
	Tags() ([]TagCount, error)
	Close() error
}

// Verify *DB satisfies DayStore at compile time.
var _ DayStore = (*DB)(nil)

package index

import (
	"errors"
	"log/slog"
	"os"

	"github.com/starford/inkday/internal/checksum"
	"github.com/starford/inkday/internal/diary"
	"github.com/starford/inkday/internal/storage"
)

// Sync brings the DB in line with the Markdown document at docPath. It
// re-imports the document only when its checksum differs from the one
// recorded by the last import or save, and reports whether anything changed.
// A missing document leaves the DB untouched.
func Sync(db *DB, store storage.Provider, docPath string, logger *slog.Logger) (bool, error) {
	data, err := store.Read(docPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("sync: no document", slog.String("path", docPath))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	sum := checksum.Sum(data)
	known, err := db.DocumentChecksum()
	if err != nil {
		return false, err
	}
	if known == sum {
		return false, nil
	}

	if err := importDocument(db, data, sum); err != nil {
		return false, err
	}
	logger.Info("sync: imported document", slog.String("path", docPath), slog.String("checksum", sum))
	return true, nil
}

// importDocument parses data and replaces the whole calendar with it.
func importDocument(db *DB, data []byte, sum string) error {
	doc := diary.Parse(string(data))
	if err := db.Replace(doc.Calendar, doc.LastSavedTimestamp); err != nil {
		return err
	}
	return db.SetDocumentChecksum(sum)
}

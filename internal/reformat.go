package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/inkday/internal/diary"
	"github.com/starford/inkday/internal/storage"
)

// FormatResult reports one document handled by Reformat.
type FormatResult struct {
	Path    string
	Changed bool
	// Skipped marks a file found in a directory that is not a diary.
	Skipped bool
}

// Reformat rewrites the diary document at path, or every .md document under
// path when it is a directory, in canonical form. The document's own
// timestamp is kept. With check set nothing is written and the results only
// report which documents are not canonical. In directory mode, .md files
// with no date line and no timestamp comment are left untouched and
// reported as skipped.
func Reformat(path string, check bool) ([]FormatResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reformat: %w", err)
	}

	dirMode := info.IsDir()
	root, names := filepath.Dir(path), []string{filepath.Base(path)}
	if dirMode {
		root, names = path, nil
	}

	store, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("reformat: %w", err)
	}
	if names == nil {
		metas, err := store.List("")
		if err != nil {
			return nil, fmt.Errorf("reformat: %w", err)
		}
		for _, m := range metas {
			names = append(names, m.Path)
		}
	}

	results := make([]FormatResult, 0, len(names))
	for _, name := range names {
		data, err := store.Read(name)
		if err != nil {
			return results, fmt.Errorf("reformat: %w", err)
		}
		doc := diary.Parse(string(data))
		if dirMode && !doc.Recognized {
			results = append(results, FormatResult{Path: filepath.Join(root, filepath.FromSlash(name)), Skipped: true})
			continue
		}
		canonical := diary.FormatMillis(doc.Calendar, doc.LastSavedTimestamp)

		res := FormatResult{Path: filepath.Join(root, filepath.FromSlash(name)), Changed: canonical != string(data)}
		if res.Changed && !check {
			if err := store.Write(name, []byte(canonical)); err != nil {
				return results, fmt.Errorf("reformat: %w", err)
			}
		}
		results = append(results, res)
	}
	return results, nil
}

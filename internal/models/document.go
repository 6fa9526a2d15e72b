// Package models defines the shared storage types for inkday.
package models

import "time"

// DocumentMetadata describes a stored diary document without its content.
type DocumentMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdatedAtMillis returns the modification time in milliseconds since the
// epoch, or 0 when it is unknown.
func (m DocumentMetadata) UpdatedAtMillis() int64 {
	if m.UpdatedAt.IsZero() {
		return 0
	}
	return m.UpdatedAt.UnixMilli()
}

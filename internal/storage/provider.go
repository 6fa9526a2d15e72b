// Package storage defines where the Markdown diary document lives.
package storage

import "github.com/starford/inkday/internal/models"

// Provider is the interface for diary document operations.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to root).
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the document at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically replaces the document at path (relative to root).
	Write(path string, content []byte) error
	// Stat returns metadata for the document at path without reading it twice.
	Stat(path string) (models.DocumentMetadata, error)
}

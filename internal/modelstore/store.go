// Package modelstore persists trained classifier models. The file-backed
// implementation keeps a primary artifact plus a single backup slot so a
// corrupted primary can be recovered from the previous generation.
package modelstore

import (
	"errors"

	"moneta/internal/classifier"
)

var (
	// ErrNotFound means the requested artifact does not exist on disk.
	ErrNotFound = errors.New("model artifact not found")
	// ErrCorrupt means the artifact exists but cannot be decoded into a
	// usable model.
	ErrCorrupt = errors.New("model artifact corrupt")
)

// Store is the persistence port the classifier service drives.
type Store interface {
	// Load decodes the primary artifact.
	Load() (*classifier.Model, error)
	// LoadBackup decodes the backup artifact.
	LoadBackup() (*classifier.Model, error)
	// Save rotates the current primary into the backup slot (overwriting
	// any prior backup) and then writes the model as the new primary.
	Save(m *classifier.Model) error
	// PromoteBackup copies the backup artifact over the primary.
	PromoteBackup() error
	// RemovePrimary deletes the primary artifact if present.
	RemovePrimary() error
	// RemoveAll deletes both artifacts if present.
	RemoveAll() error

	PrimaryExists() bool
	BackupExists() bool
}

package modelstore

import (
	"fmt"
	"os"
	"path/filepath"

	"moneta/internal/classifier"
)

// FileStore keeps the primary artifact and its single backup at fixed
// sibling paths. Writes go through a temp file and rename so a crash leaves
// either the old valid primary or a valid backup, never a torn file.
type FileStore struct {
	primaryPath string
	backupPath  string
}

func NewFileStore(primaryPath, backupPath string) (*FileStore, error) {
	if primaryPath == "" || backupPath == "" {
		return nil, fmt.Errorf("model store paths must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(primaryPath), 0o755); err != nil {
		return nil, fmt.Errorf("create model directory: %w", err)
	}
	return &FileStore{primaryPath: primaryPath, backupPath: backupPath}, nil
}

func (s *FileStore) Load() (*classifier.Model, error) {
	return s.loadPath(s.primaryPath)
}

func (s *FileStore) LoadBackup() (*classifier.Model, error) {
	return s.loadPath(s.backupPath)
}

func (s *FileStore) loadPath(path string) (*classifier.Model, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return m, nil
}

func (s *FileStore) Save(m *classifier.Model) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	// Rotate the previous generation into the backup slot first; only then
	// is it safe to replace the primary.
	if s.PrimaryExists() {
		if err := copyFile(s.primaryPath, s.backupPath); err != nil {
			return fmt.Errorf("rotate backup: %w", err)
		}
	}
	if err := writeFileAtomic(s.primaryPath, data); err != nil {
		return fmt.Errorf("write primary: %w", err)
	}
	return nil
}

func (s *FileStore) PromoteBackup() error {
	if !s.BackupExists() {
		return fmt.Errorf("%w: %s", ErrNotFound, s.backupPath)
	}
	if err := copyFile(s.backupPath, s.primaryPath); err != nil {
		return fmt.Errorf("promote backup: %w", err)
	}
	return nil
}

func (s *FileStore) RemovePrimary() error {
	return removeIfPresent(s.primaryPath)
}

func (s *FileStore) RemoveAll() error {
	if err := removeIfPresent(s.primaryPath); err != nil {
		return err
	}
	return removeIfPresent(s.backupPath)
}

func (s *FileStore) PrimaryExists() bool { return fileExists(s.primaryPath) }
func (s *FileStore) BackupExists() bool  { return fileExists(s.backupPath) }

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func removeIfPresent(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeFileAtomic(dst, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

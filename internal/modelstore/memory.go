package modelstore

import (
	"fmt"
	"sync"

	"moneta/internal/classifier"
)

// MemoryStore is an in-memory Store for tests. Artifacts are held as the
// encoded bytes, so corruption and decode failures behave exactly like the
// file-backed store.
type MemoryStore struct {
	mu      sync.Mutex
	primary []byte
	backup  []byte

	// SaveErr, when set, makes Save fail without touching either slot.
	SaveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SetPrimary seeds the primary slot with raw bytes, valid or not.
func (s *MemoryStore) SetPrimary(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primary = append([]byte(nil), data...)
}

// SetBackup seeds the backup slot with raw bytes.
func (s *MemoryStore) SetBackup(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backup = append([]byte(nil), data...)
}

func (s *MemoryStore) Load() (*classifier.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeSlot(s.primary, "primary")
}

func (s *MemoryStore) LoadBackup() (*classifier.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeSlot(s.backup, "backup")
}

func decodeSlot(data []byte, name string) (*classifier.Model, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return Decode(data)
}

func (s *MemoryStore) Save(m *classifier.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if s.primary != nil {
		s.backup = s.primary
	}
	s.primary = data
	return nil
}

func (s *MemoryStore) PromoteBackup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backup == nil {
		return fmt.Errorf("%w: backup", ErrNotFound)
	}
	s.primary = append([]byte(nil), s.backup...)
	return nil
}

func (s *MemoryStore) RemovePrimary() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primary = nil
	return nil
}

func (s *MemoryStore) RemoveAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primary = nil
	s.backup = nil
	return nil
}

func (s *MemoryStore) PrimaryExists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary != nil
}

func (s *MemoryStore) BackupExists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backup != nil
}

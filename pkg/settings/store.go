package settings

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrNotFound is returned by a Storage that holds no record yet.
var ErrNotFound = errors.New("settings record not found")

// Storage is non-volatile memory holding a single record.
//
// WriteRecord stages the whole record; it becomes durable only after Commit
// returns. A failed or missing Commit leaves the previously committed record intact.
type Storage interface {
	ReadRecord(p []byte) (int, error)
	WriteRecord(p []byte) error
	Commit() error
}

// Store reads and writes the persisted record. The gains in effect live in the
// scale selectors; the store only hands them over at start-up and on save.
type Store struct {
	storage  Storage
	defaults Settings

	mu sync.Mutex
}

// NewStore creates a store backed by storage. defaults are used whenever the
// stored record is missing or fails validation.
func NewStore(storage Storage, defaults Settings) *Store {
	return &Store{
		storage:  storage,
		defaults: defaults,
	}
}

// Load reads and validates the stored record. It never fails: a missing or
// corrupt record is logged and replaced by the defaults.
func (s *Store) Load() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, RecordSize)
	n, err := s.storage.ReadRecord(buf)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Printf("settings: no stored record, using default gains")
		} else {
			log.Printf("settings: failed to read record, using default gains: %v", err)
		}
		return s.defaults
	}

	settings, err := Decode(buf[:n])
	if err != nil {
		log.Printf("settings: %v, using default gains", err)
		return s.defaults
	}

	return settings
}

// Save validates settings, writes the whole record and commits it.
// It returns only after the storage reports the commit durable. On failure the
// previously committed record stays intact.
func (s *Store) Save(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Encode computes the checksum right before the write.
	if err := s.storage.WriteRecord(settings.Encode()); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := s.storage.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}

	return nil
}

// Defaults returns the compiled-in settings.
func (s *Store) Defaults() Settings {
	return s.defaults
}

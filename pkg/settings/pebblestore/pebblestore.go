// Package pebblestore persists the settings record in a pebble database.
package pebblestore

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/itohio/gomm/pkg/settings"
)

// DefaultKey is the key the record is stored under.
const DefaultKey = "settings/gains"

// Store is a settings.Storage backed by a pebble database. The staged record lives in
// a batch that is applied with a synced commit.
type Store struct {
	db    *pebble.DB
	key   []byte
	batch *pebble.Batch
}

var _ settings.Storage = (*Store)(nil)

// Open opens (or creates) the database at path. opts may be nil.
func Open(path string, opts *pebble.Options) (*Store, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database %s: %w", path, err)
	}

	return &Store{db: db, key: []byte(DefaultKey)}, nil
}

// ReadRecord copies the stored record into p.
func (s *Store) ReadRecord(p []byte) (int, error) {
	value, closer, err := s.db.Get(s.key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, settings.ErrNotFound
		}
		return 0, fmt.Errorf("failed to read settings: %w", err)
	}
	defer closer.Close()

	if len(value) > len(p) {
		return 0, fmt.Errorf("stored record too large: %d bytes", len(value))
	}
	return copy(p, value), nil
}

// WriteRecord stages p in a new batch, discarding any uncommitted one.
func (s *Store) WriteRecord(p []byte) error {
	s.discard()

	batch := s.db.NewBatch()
	if err := batch.Set(s.key, p, nil); err != nil {
		batch.Close()
		return fmt.Errorf("failed to stage settings: %w", err)
	}
	s.batch = batch
	return nil
}

// Commit applies the staged batch and syncs it to disk.
func (s *Store) Commit() error {
	if s.batch == nil {
		return errors.New("nothing to commit")
	}
	defer s.discard()

	if err := s.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}

// Close closes the database, dropping any uncommitted record.
func (s *Store) Close() error {
	s.discard()
	return s.db.Close()
}

func (s *Store) discard() {
	if s.batch != nil {
		s.batch.Close()
		s.batch = nil
	}
}

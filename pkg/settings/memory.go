package settings

import (
	"errors"
	"sync"
)

// Memory is an in-memory Storage emulating an EEPROM with a commit step.
type Memory struct {
	mu        sync.Mutex
	committed []byte
	staged    []byte

	// Injected failures, returned by the next call of the matching method.
	WriteErr  error
	CommitErr error
}

var _ Storage = (*Memory)(nil)

// NewMemory creates an empty memory storage.
func NewMemory() *Memory {
	return &Memory{}
}

// ReadRecord copies the committed record into p.
func (m *Memory) ReadRecord(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.committed == nil {
		return 0, ErrNotFound
	}
	return copy(p, m.committed), nil
}

// WriteRecord stages p for the next Commit.
func (m *Memory) WriteRecord(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.WriteErr; err != nil {
		m.WriteErr = nil
		return err
	}
	m.staged = append([]byte(nil), p...)
	return nil
}

// Commit makes the staged record the committed one.
func (m *Memory) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.CommitErr; err != nil {
		m.CommitErr = nil
		m.staged = nil
		return err
	}
	if m.staged == nil {
		return errors.New("nothing to commit")
	}
	m.committed = m.staged
	m.staged = nil
	return nil
}

// Raw returns a copy of the committed bytes.
func (m *Memory) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.committed...)
}

// SetRaw replaces the committed bytes, bypassing validation.
func (m *Memory) SetRaw(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append([]byte(nil), p...)
}

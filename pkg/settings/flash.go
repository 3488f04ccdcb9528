package settings

import (
	"errors"
	"fmt"
)

// BlockDevice is the subset of TinyGo's machine.Flash used for the record.
type BlockDevice interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	WriteBlockSize() int64
	EraseBlockSize() int64
	EraseBlocks(start, length int64) error
}

// Flash keeps the record at offset 0 of a block device. The record is staged
// in RAM and written by Commit after erasing the first block; erased flash
// reads as 0xFF, which fails the header check and loads the defaults.
type Flash struct {
	dev    BlockDevice
	staged []byte
}

var _ Storage = (*Flash)(nil)

// NewFlash creates a storage on dev.
func NewFlash(dev BlockDevice) *Flash {
	return &Flash{dev: dev}
}

func (f *Flash) ReadRecord(p []byte) (int, error) {
	n, err := f.dev.ReadAt(p, 0)
	if err != nil {
		return 0, fmt.Errorf("flash read: %w", err)
	}
	return n, nil
}

func (f *Flash) WriteRecord(p []byte) error {
	if int64(len(p)) > f.dev.EraseBlockSize() {
		return fmt.Errorf("record of %d bytes exceeds the erase block", len(p))
	}
	f.staged = append(f.staged[:0], p...)
	return nil
}

func (f *Flash) Commit() error {
	if len(f.staged) == 0 {
		return errors.New("nothing to commit")
	}

	// Writes must cover whole write blocks; pad with the erased value.
	buf := f.staged
	if wb := f.dev.WriteBlockSize(); wb > 1 {
		if rem := int64(len(buf)) % wb; rem != 0 {
			for i := rem; i < wb; i++ {
				buf = append(buf, 0xFF)
			}
		}
	}

	if err := f.dev.EraseBlocks(0, 1); err != nil {
		return fmt.Errorf("flash erase: %w", err)
	}
	if _, err := f.dev.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("flash write: %w", err)
	}
	f.staged = f.staged[:0]
	return nil
}

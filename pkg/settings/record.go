// Package settings persists the calibration gains as a checksummed fixed-layout record.
//
// Layout (34 bytes): [header:1][gains:8 x float32 little-endian][checksum:1].
// The four voltage gains come first, then the four current gains. The checksum
// is the XOR fold of every preceding byte.
package settings

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/itohio/gomm/pkg/checksum"
	"github.com/itohio/gomm/pkg/config"
	"github.com/itohio/gomm/pkg/scale"
)

const (
	// Header marks a settings record.
	Header byte = 0xA5
	// RecordSize is the size of an encoded record in bytes.
	RecordSize = 1 + 4*scale.NumChannels*scale.NumScales + 1
)

// ErrCorrupt is returned by Decode for records that fail validation.
var ErrCorrupt = errors.New("settings record corrupt")

// Settings holds the calibrated gains of both channels.
type Settings struct {
	Gains [scale.NumChannels][scale.NumScales]float32
}

// Default returns the compiled-in gains of the configuration.
func Default(cfg *config.Config) Settings {
	var s Settings
	s.Gains[scale.Voltage] = cfg.Voltage.Gains
	s.Gains[scale.Current] = cfg.Current.Gains
	return s
}

// Validate checks every gain is usable as a divisor.
func (s Settings) Validate() error {
	for ch := range s.Gains {
		for i, g := range s.Gains[ch] {
			if !scale.ValidGain(g) {
				return fmt.Errorf("%s gain %d is invalid: %v", scale.Channel(ch), i, g)
			}
		}
	}
	return nil
}

// Encode serialises s into a full record including header and checksum.
func (s Settings) Encode() []byte {
	buf := make([]byte, RecordSize)
	buf[0] = Header
	off := 1
	for ch := range s.Gains {
		for _, g := range s.Gains[ch] {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(g))
			off += 4
		}
	}
	buf[RecordSize-1] = checksum.XOR(buf[:RecordSize-1])
	return buf
}

// Decode parses a record. Header, checksum and gain validity must all hold.
func Decode(buf []byte) (Settings, error) {
	var s Settings

	if len(buf) != RecordSize {
		return s, fmt.Errorf("%w: size %d, want %d", ErrCorrupt, len(buf), RecordSize)
	}
	if buf[0] != Header {
		return s, fmt.Errorf("%w: header 0x%02X, want 0x%02X", ErrCorrupt, buf[0], Header)
	}
	if !checksum.Verify(buf) {
		return s, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	off := 1
	for ch := range s.Gains {
		for i := range s.Gains[ch] {
			s.Gains[ch][i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
		}
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return s, nil
}

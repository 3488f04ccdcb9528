// Package uplink implements the fixed-size packet the meter sends to a host.
//
// Layout (10 bytes): [0x55][voltage:float32 LE][current:float32 LE][checksum],
// where checksum is the XOR fold of the nine preceding bytes. An invalid
// reading is sent as NaN and an overload as +Inf.
package uplink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/gomm/pkg/checksum"
	"github.com/itohio/gomm/pkg/scale"
)

const (
	// Header starts every packet.
	Header byte = 0x55
	// PacketSize is the size of an encoded packet.
	PacketSize = 10
)

var (
	ErrShortPacket = errors.New("short packet")
	ErrBadHeader   = errors.New("bad packet header")
	ErrChecksum    = errors.New("packet checksum mismatch")
)

// Packet carries one pair of readings.
type Packet struct {
	Timestamp time.Time // Host receive time, not transmitted
	Voltage   float32
	Current   float32
}

// NewPacket builds a packet from two evaluated readings.
func NewPacket(voltage, current scale.Reading) Packet {
	return Packet{
		Voltage: readingValue(voltage),
		Current: readingValue(current),
	}
}

// VoltageReading converts the transmitted voltage back into a reading.
func (p Packet) VoltageReading() scale.Reading {
	return valueReading(p.Voltage)
}

// CurrentReading converts the transmitted current back into a reading.
func (p Packet) CurrentReading() scale.Reading {
	return valueReading(p.Current)
}

// Encode serialises the packet.
func (p Packet) Encode() []byte {
	buf := make([]byte, PacketSize)
	buf[0] = Header
	binary.LittleEndian.PutUint32(buf[1:], math.Float32bits(p.Voltage))
	binary.LittleEndian.PutUint32(buf[5:], math.Float32bits(p.Current))
	buf[PacketSize-1] = checksum.XOR(buf[:PacketSize-1])
	return buf
}

// Decode parses one packet from the start of buf.
func Decode(buf []byte) (Packet, error) {
	if len(buf) < PacketSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(buf))
	}
	if buf[0] != Header {
		return Packet{}, fmt.Errorf("%w: 0x%02X", ErrBadHeader, buf[0])
	}
	if !checksum.Verify(buf[:PacketSize]) {
		return Packet{}, ErrChecksum
	}

	return Packet{
		Voltage: math.Float32frombits(binary.LittleEndian.Uint32(buf[1:])),
		Current: math.Float32frombits(binary.LittleEndian.Uint32(buf[5:])),
	}, nil
}

func readingValue(r scale.Reading) float32 {
	if !r.Valid {
		return math32.NaN()
	}
	return r.Value
}

func valueReading(v float32) scale.Reading {
	if math32.IsNaN(v) {
		return scale.Reading{}
	}
	return scale.Reading{Valid: true, Value: v}
}

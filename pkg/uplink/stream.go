package uplink

import (
	"bufio"
	"io"

	"github.com/itohio/gomm/pkg/checksum"
	"github.com/itohio/gomm/pkg/scale"
)

// Writer sends packets to an io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter creates a packet writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send encodes and writes one packet.
func (w *Writer) Send(voltage, current scale.Reading) error {
	_, err := w.w.Write(NewPacket(voltage, current).Encode())
	return err
}

// Reader extracts packets from a byte stream. Bytes that do not start a
// packet with a valid checksum are skipped one at a time, so the reader
// resynchronises after noise or a partial packet.
type Reader struct {
	r       *bufio.Reader
	skipped int
}

// NewReader creates a packet reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64)}
}

// Skipped returns the number of bytes discarded while searching for packets.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Next returns the next valid packet. Timestamp is left empty.
func (r *Reader) Next() (Packet, error) {
	frame := make([]byte, PacketSize)
	frame[0] = Header

	for {
		b, err := r.r.ReadByte()
		if err != nil {
			return Packet{}, err
		}
		if b != Header {
			r.skipped++
			continue
		}

		rest, err := r.r.Peek(PacketSize - 1)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Packet{}, err
		}
		copy(frame[1:], rest)

		if !checksum.Verify(frame) {
			// The header may have been payload; retry from the next byte.
			r.skipped++
			continue
		}

		if _, err := r.r.Discard(PacketSize - 1); err != nil {
			return Packet{}, err
		}
		return Decode(frame)
	}
}

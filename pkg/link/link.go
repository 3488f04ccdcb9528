// Package link connects to the meter's uplink over a serial port.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/itohio/gomm/pkg/uplink"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the baud rate of the meter's serial port.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the packets channel buffer.
	DefaultBufferSize = 100
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Link is a serial connection to the meter.
type Link struct {
	port     string
	baudRate int

	conn      serial.Port
	packets   chan uplink.Packet
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a Link for the given port. Zero values select the defaults.
func New(port string, baudRate int, bufSize int) *Link {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Link{
		port:     port,
		baudRate: baudRate,
		packets:  make(chan uplink.Packet, bufSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Connect opens the serial port. With receive set, packets are decoded in the
// background and delivered on Packets.
func (l *Link) Connect(receive bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connected {
		return errors.New("already connected")
	}

	port, err := serial.Open(l.port, &serial.Mode{BaudRate: l.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", l.port, err)
	}

	l.conn = port
	l.connected = true

	if receive {
		go l.readPackets(port)
	} else {
		close(l.packets)
	}

	return nil
}

// Close closes the connection and stops reading packets.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		return nil
	}

	l.cancel()

	if l.conn != nil {
		if err := l.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		l.conn = nil
	}

	l.connected = false
	return nil
}

// Packets returns the channel of received packets. It is closed when reading stops.
func (l *Link) Packets() <-chan uplink.Packet {
	return l.packets
}

// Write sends raw bytes, typically encoded packets, to the port.
func (l *Link) Write(p []byte) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.connected {
		return 0, errors.New("not connected")
	}
	return l.conn.Write(p)
}

func (l *Link) readPackets(r io.Reader) {
	defer close(l.packets)
	receive(l.ctx, uplink.NewReader(r), l.packets)
}

// receive decodes packets from r into out until ctx is done or r fails.
func receive(ctx context.Context, r *uplink.Reader, out chan<- uplink.Packet) {
	skipped := 0
	for {
		p, err := r.Next()
		if n := r.Skipped(); n > skipped {
			log.Printf("Discarded %d bytes while resynchronising uplink", n-skipped)
			skipped = n
		}
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				log.Printf("Error reading from serial port: %v", err)
			}
			return
		}
		p.Timestamp = time.Now()

		select {
		case out <- p:
		case <-ctx.Done():
			return
		default:
			log.Printf("Packets channel full, dropping packet")
		}
	}
}

package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/banshee-data/tslumd/internal/monitoring"
)

// ErrWriteFailed is returned when the port accepts only part of a packet.
var ErrWriteFailed = errors.New("failed to write to serial port")

// Porter is the part of a serial port PacketWriter needs. serial.Port
// satisfies it.
type Porter interface {
	io.Writer
	io.Closer
}

// Opener opens the device at path.
type Opener func(path string, mode *serial.Mode) (Porter, error)

// DefaultOpener opens a real serial device.
func DefaultOpener(path string, mode *serial.Mode) (Porter, error) {
	return serial.Open(path, mode)
}

// PacketWriter sends whole packets to a serial port. Writes are serialised so
// packets from concurrent callers never interleave.
type PacketWriter struct {
	mu   sync.Mutex
	port Porter
	path string
}

// NewPacketWriter wraps an already open port.
func NewPacketWriter(port Porter, path string) *PacketWriter {
	return &PacketWriter{port: port, path: path}
}

// Open opens path with opts using opener (DefaultOpener when nil).
func Open(path string, opts PortOptions, opener Opener) (*PacketWriter, error) {
	if opener == nil {
		opener = DefaultOpener
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := opener(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	monitoring.Logf("Opened serial port %s at %s", path, opts)
	return NewPacketWriter(port, path), nil
}

// WritePacket writes one packet.
func (w *PacketWriter) WritePacket(packet []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.port.Write(packet)
	if err != nil {
		return fmt.Errorf("serial write to %s: %w", w.path, err)
	}
	if n != len(packet) {
		return ErrWriteFailed
	}
	return nil
}

// Close closes the underlying port.
func (w *PacketWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.port.Close()
}

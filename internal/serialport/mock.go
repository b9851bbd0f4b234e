package serialport

import (
	"bytes"
	"errors"
	"sync"

	"go.bug.st/serial"
)

// TestablePort implements Porter with configurable failures for tests.
type TestablePort struct {
	mu sync.Mutex

	// WriteBuffer captures data written to the port
	WriteBuffer bytes.Buffer
	// WriteError is returned by the next Write call if set
	WriteError error
	// ShortWrite makes Write accept one byte less than requested
	ShortWrite bool
	// CloseError is returned by Close if set
	CloseError error
	// Closed indicates whether Close was called
	Closed bool
	// WriteCalls records the number of Write calls
	WriteCalls int
}

// Write appends p to WriteBuffer.
func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++
	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	if t.ShortWrite && len(p) > 0 {
		p = p[:len(p)-1]
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return t.CloseError
}

// Written returns a copy of everything written so far.
func (t *TestablePort) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return bytes.Clone(t.WriteBuffer.Bytes())
}

// MockOpener records Open calls and hands out Port.
type MockOpener struct {
	Port  Porter
	Error error
	Calls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path string
	Mode *serial.Mode
}

// Open implements Opener.
func (m *MockOpener) Open(path string, mode *serial.Mode) (Porter, error) {
	m.Calls = append(m.Calls, MockOpenCall{Path: path, Mode: mode})
	if m.Error != nil {
		return nil, m.Error
	}
	return m.Port, nil
}

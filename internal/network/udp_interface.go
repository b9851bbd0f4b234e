package network

import (
	"net"
	"sync"
	"time"
)

// UDPSocket is the receive side of a UDP socket.
// This abstraction enables unit testing without real network connections.
type UDPSocket interface {
	// ReadFromUDP reads a UDP packet from the socket.
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)

	// SetReadBuffer sets the size of the operating system's receive buffer.
	SetReadBuffer(bytes int) error

	// SetReadDeadline sets the deadline for future Read calls.
	SetReadDeadline(t time.Time) error

	// Close closes the socket.
	Close() error

	// LocalAddr returns the local network address.
	LocalAddr() net.Addr
}

// UDPWriter is a connected UDP socket used for sending.
type UDPWriter interface {
	Write(b []byte) (int, error)
	Close() error
	RemoteAddr() net.Addr
}

// UDPSocketFactory creates listening and connected UDP sockets.
type UDPSocketFactory interface {
	// ListenUDP creates and returns a new listening socket.
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)

	// DialUDP creates a socket connected to raddr.
	DialUDP(network string, raddr *net.UDPAddr) (UDPWriter, error)
}

// RealUDPSocketFactory implements UDPSocketFactory with the net package.
type RealUDPSocketFactory struct{}

// NewRealUDPSocketFactory creates a new RealUDPSocketFactory.
func NewRealUDPSocketFactory() *RealUDPSocketFactory {
	return &RealUDPSocketFactory{}
}

// ListenUDP creates a new UDP socket.
func (f *RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// DialUDP creates a connected UDP socket.
func (f *RealUDPSocketFactory) DialUDP(network string, raddr *net.UDPAddr) (UDPWriter, error) {
	conn, err := net.DialUDP(network, nil, raddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// MockUDPSocket implements UDPSocket for testing.
type MockUDPSocket struct {
	mu sync.Mutex
	// Packets holds the packets to return from ReadFromUDP.
	Packets []MockUDPPacket
	// ReadIndex tracks the current position in Packets.
	ReadIndex int
	// Closed indicates whether Close was called.
	Closed bool
	// ReadBufferSize holds the value set by SetReadBuffer.
	ReadBufferSize int
	// LocalAddress is returned by LocalAddr.
	LocalAddress *net.UDPAddr
	// ReadError is returned on the next ReadFromUDP call if set.
	ReadError error
	// SetReadBufferError is returned by SetReadBuffer if set.
	SetReadBufferError error
}

// MockUDPPacket represents a packet for mock testing.
type MockUDPPacket struct {
	Data []byte
	Addr *net.UDPAddr
}

// NewMockUDPSocket creates a new MockUDPSocket with the given packets.
func NewMockUDPSocket(packets []MockUDPPacket) *MockUDPSocket {
	return &MockUDPSocket{
		Packets: packets,
		LocalAddress: &net.UDPAddr{
			IP:   net.ParseIP("127.0.0.1"),
			Port: 1234,
		},
	}
}

// ReadFromUDP returns the next packet, then timeouts once Packets runs out.
func (m *MockUDPSocket) ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, nil, net.ErrClosed
	}
	if m.ReadError != nil {
		err := m.ReadError
		m.ReadError = nil
		return 0, nil, err
	}
	if m.ReadIndex >= len(m.Packets) {
		m.mu.Unlock()
		time.Sleep(time.Millisecond)
		m.mu.Lock()
		return 0, nil, &net.OpError{
			Op:  "read",
			Net: "udp",
			Err: &timeoutError{},
		}
	}
	pkt := m.Packets[m.ReadIndex]
	m.ReadIndex++
	n = copy(b, pkt.Data)
	return n, pkt.Addr, nil
}

// SetReadBuffer records the buffer size.
func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetReadBufferError != nil {
		return m.SetReadBufferError
	}
	m.ReadBufferSize = bytes
	return nil
}

// SetReadDeadline is a no-op; reads never block.
func (m *MockUDPSocket) SetReadDeadline(t time.Time) error {
	return nil
}

// Close marks the socket as closed.
func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// LocalAddr returns the mock local address.
func (m *MockUDPSocket) LocalAddr() net.Addr {
	return m.LocalAddress
}

// Remaining reports how many packets have not been read yet.
func (m *MockUDPSocket) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Packets) - m.ReadIndex
}

// MockUDPWriter implements UDPWriter for testing.
type MockUDPWriter struct {
	mu sync.Mutex
	// Written holds a copy of every datagram written.
	Written [][]byte
	// WriteError is returned by every Write while set.
	WriteError error
	// Closed indicates whether Close was called.
	Closed bool
	// Remote is returned by RemoteAddr.
	Remote *net.UDPAddr
}

// Write records b.
func (m *MockUDPWriter) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, net.ErrClosed
	}
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.Written = append(m.Written, append([]byte(nil), b...))
	return len(b), nil
}

// Close marks the writer as closed.
func (m *MockUDPWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// RemoteAddr returns Remote.
func (m *MockUDPWriter) RemoteAddr() net.Addr {
	return m.Remote
}

// Datagrams returns a snapshot of the written datagrams.
func (m *MockUDPWriter) Datagrams() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.Written...)
}

// MockUDPSocketFactory implements UDPSocketFactory for testing.
type MockUDPSocketFactory struct {
	// Socket is the socket to return from ListenUDP.
	Socket *MockUDPSocket
	// Writer is returned from DialUDP.
	Writer *MockUDPWriter
	// Error is returned by ListenUDP and DialUDP if set.
	Error error
	// ListenCalls records all ListenUDP calls.
	ListenCalls []MockListenCall
	// DialCalls records all DialUDP calls.
	DialCalls []MockListenCall
}

// MockListenCall records a call to ListenUDP or DialUDP.
type MockListenCall struct {
	Network string
	Addr    *net.UDPAddr
}

// NewMockUDPSocketFactory creates a new MockUDPSocketFactory.
func NewMockUDPSocketFactory(socket *MockUDPSocket) *MockUDPSocketFactory {
	return &MockUDPSocketFactory{Socket: socket, Writer: &MockUDPWriter{}}
}

// ListenUDP returns the configured mock socket.
func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.ListenCalls = append(f.ListenCalls, MockListenCall{Network: network, Addr: laddr})
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Socket, nil
}

// DialUDP returns the configured mock writer.
func (f *MockUDPSocketFactory) DialUDP(network string, raddr *net.UDPAddr) (UDPWriter, error) {
	f.DialCalls = append(f.DialCalls, MockListenCall{Network: network, Addr: raddr})
	if f.Error != nil {
		return nil, f.Error
	}
	if f.Writer.Remote == nil {
		f.Writer.Remote = raddr
	}
	return f.Writer, nil
}

// timeoutError implements net.Error for timeout simulation.
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

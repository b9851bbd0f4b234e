// Package network moves TSL UMD packets over UDP: a listener that decodes
// incoming datagrams, a forwarder that relays them, a sender for one-shot
// transmission and an offline pcap reader.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/tslumd"
	"github.com/banshee-data/tslumd/internal/monitoring"
)

// maxDatagram bounds the receive buffer. Anything longer than a packet is
// rejected by validation but must still be read whole.
const maxDatagram = 2048

// PacketStatsInterface provides packet statistics management
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddInvalid(err error)
	AddDropped()
	LogStats()
}

// Handler receives decoded frames. The frame borrows the listener's receive
// buffer and is only valid for the duration of the call.
type Handler interface {
	HandleFrame(frame tslumd.Frame, src *net.UDPAddr)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(frame tslumd.Frame, src *net.UDPAddr)

// HandleFrame calls f.
func (f HandlerFunc) HandleFrame(frame tslumd.Frame, src *net.UDPAddr) {
	f(frame, src)
}

// UDPListener receives TSL packets on a UDP socket, validates them and hands
// each valid frame to a Handler.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	version     tslumd.Version
	factory     UDPSocketFactory
	conn        UDPSocket
	proc        processor
}

// UDPListenerConfig contains configuration options for the UDP listener
type UDPListenerConfig struct {
	Address       string
	RcvBuf        int
	LogInterval   time.Duration
	Version       tslumd.Version
	Stats         PacketStatsInterface
	Forwarder     *PacketForwarder
	Handler       Handler
	SocketFactory UDPSocketFactory
}

// NewUDPListener creates a new UDP listener with the provided configuration
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	stats := config.Stats
	if stats == nil {
		stats = &noopStats{}
	}

	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	factory := config.SocketFactory
	if factory == nil {
		factory = NewRealUDPSocketFactory()
	}

	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		version:     config.Version,
		factory:     factory,
		proc: processor{
			version:   config.Version,
			stats:     stats,
			forwarder: config.Forwarder,
			handler:   config.Handler,
		},
	}
}

// noopStats is used when no stats collector is supplied.
type noopStats struct{}

func (n *noopStats) AddPacket(bytes int) {}
func (n *noopStats) AddInvalid(error)    {}
func (n *noopStats) AddDropped()         {}
func (n *noopStats) LogStats()           {}

// Start listens until ctx is cancelled. Malformed datagrams are counted and
// logged; they never stop the listener.
func (l *UDPListener) Start(ctx context.Context) error {
	if _, err := tslumd.PacketLength(l.version); err != nil {
		return err
	}

	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := l.factory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.conn = conn
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("Warning: Failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}

	monitoring.Logf("Listening on %s for TSL %s packets", conn.LocalAddr(), l.version)

	if l.proc.forwarder != nil {
		l.proc.forwarder.Start(ctx)
	}

	go l.startStatsLogging(ctx)

	buffer := make([]byte, maxDatagram)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("UDP listener stopping due to context cancellation")
			return ctx.Err()
		default:
		}

		// A short deadline lets the loop notice cancellation.
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, src, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			monitoring.Logf("UDP read error: %v", err)
			continue
		}

		if err := l.proc.process(buffer[:n], src); err != nil {
			monitoring.Logf("Dropped %d byte datagram from %v: %v", n, src, err)
		}
	}
}

func (l *UDPListener) startStatsLogging(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.proc.stats.LogStats()
		}
	}
}

// Close closes the socket, unblocking Start.
func (l *UDPListener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}

// processor is the per-datagram path shared by the live listener and pcap
// replay.
type processor struct {
	version   tslumd.Version
	stats     PacketStatsInterface
	forwarder *PacketForwarder
	handler   Handler
}

func (p *processor) process(datagram []byte, src *net.UDPAddr) error {
	frame, err := tslumd.Decode(p.version, datagram)
	if err != nil {
		p.stats.AddInvalid(err)
		return err
	}
	p.stats.AddPacket(len(datagram))

	if p.forwarder != nil {
		p.forwarder.ForwardAsync(datagram)
	}
	if p.handler != nil {
		p.handler.HandleFrame(frame, src)
	}
	return nil
}

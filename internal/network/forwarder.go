package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/tslumd/internal/monitoring"
)

// PacketStats interface for packet statistics tracking
type PacketStats interface {
	AddDropped()
}

// PacketForwarder relays packets to another address without blocking the
// receive loop. Packets that cannot be queued or written are dropped and
// counted.
type PacketForwarder struct {
	conn        UDPWriter
	channel     chan []byte
	stats       PacketStats
	logInterval time.Duration
	address     string
	done        chan struct{}
}

// NewPacketForwarder creates a forwarder sending to address (host:port).
// factory may be nil to use real sockets.
func NewPacketForwarder(address string, stats PacketStats, logInterval time.Duration, factory UDPSocketFactory) (*PacketForwarder, error) {
	if factory == nil {
		factory = NewRealUDPSocketFactory()
	}
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	forwardUDPAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}

	conn, err := factory.DialUDP("udp", forwardUDPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}

	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, 1000),
		stats:       stats,
		logInterval: logInterval,
		address:     forwardUDPAddr.String(),
		done:        make(chan struct{}),
	}, nil
}

// Start runs the forwarding goroutine until ctx is cancelled. Write errors
// are summarised once per log interval.
func (f *PacketForwarder) Start(ctx context.Context) {
	go func() {
		defer close(f.done)
		droppedCount := 0
		var lastError error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case packet, ok := <-f.channel:
				if !ok {
					return
				}
				if _, err := f.conn.Write(packet); err != nil {
					droppedCount++
					lastError = err
					if f.stats != nil {
						f.stats.AddDropped()
					}
				}
			case <-ticker.C:
				if droppedCount > 0 && lastError != nil {
					monitoring.Logf("Dropped %d forwarded packets due to errors (latest: %v)", droppedCount, lastError)
					droppedCount = 0
					lastError = nil
				}
			}
		}
	}()

	monitoring.Logf("Forwarding packets to %s", f.address)
}

// ForwardAsync queues a copy of packet. If the queue is full the packet is
// dropped.
func (f *PacketForwarder) ForwardAsync(packet []byte) {
	packetCopy := make([]byte, len(packet))
	copy(packetCopy, packet)

	select {
	case f.channel <- packetCopy:
	default:
		if f.stats != nil {
			f.stats.AddDropped()
		}
	}
}

// Address returns the resolved destination.
func (f *PacketForwarder) Address() string {
	return f.address
}

// Close stops accepting packets and closes the connection. Call it after
// the producer has stopped calling ForwardAsync.
func (f *PacketForwarder) Close() error {
	close(f.channel)
	return f.conn.Close()
}

package monitoring

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/tslumd"
	"github.com/banshee-data/tslumd/v31"
)

// Invalid packet reasons used as the "reason" label.
const (
	ReasonLength        = "length"
	ReasonAddressMarker = "address_marker"
	ReasonDisplayByte   = "display_byte"
	ReasonVersion       = "unsupported_version"
	ReasonOther         = "other"
)

// InvalidReason classifies a decode error for the invalid packet counter.
func InvalidReason(err error) string {
	var lerr *v31.LengthError
	var derr *v31.DisplayByteError
	switch {
	case errors.As(err, &lerr):
		return ReasonLength
	case errors.Is(err, v31.ErrInvalidAddressMarker):
		return ReasonAddressMarker
	case errors.As(err, &derr):
		return ReasonDisplayByte
	case errors.Is(err, tslumd.ErrUnsupportedVersion):
		return ReasonVersion
	}
	return ReasonOther
}

// PacketStats counts received, rejected, dropped and sent packets. Totals go
// to Prometheus; the interval counters feed LogStats. Safe for concurrent use.
type PacketStats struct {
	registry *prometheus.Registry

	received prometheus.Counter
	bytes    prometheus.Counter
	invalid  *prometheus.CounterVec
	dropped  prometheus.Counter
	sent     prometheus.Counter

	mu           sync.Mutex
	packetCount  int64
	byteCount    int64
	invalidCount int64
	droppedCount int64
	lastReset    time.Time
}

// NewPacketStats creates counters registered on a fresh registry, so several
// instances can coexist in one process.
func NewPacketStats() *PacketStats {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &PacketStats{
		registry: reg,
		received: factory.NewCounter(prometheus.CounterOpts{
			Name: "tslumd_packets_received_total",
			Help: "Total number of valid tally packets received",
		}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "tslumd_bytes_received_total",
			Help: "Total number of bytes in valid tally packets",
		}),
		invalid: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tslumd_packets_invalid_total",
			Help: "Total number of datagrams rejected by validation",
		}, []string{"reason"}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tslumd_packets_dropped_total",
			Help: "Total number of packets dropped by the forwarder",
		}),
		sent: factory.NewCounter(prometheus.CounterOpts{
			Name: "tslumd_packets_sent_total",
			Help: "Total number of packets transmitted",
		}),
		lastReset: time.Now(),
	}
}

// AddPacket records a valid packet of the given size.
func (ps *PacketStats) AddPacket(bytes int) {
	ps.received.Inc()
	ps.bytes.Add(float64(bytes))
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
}

// AddInvalid records a datagram that failed to decode.
func (ps *PacketStats) AddInvalid(err error) {
	ps.invalid.WithLabelValues(InvalidReason(err)).Inc()
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.invalidCount++
}

// AddDropped records a packet the forwarder could not queue or write.
func (ps *PacketStats) AddDropped() {
	ps.dropped.Inc()
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.droppedCount++
}

// AddSent records a transmitted packet.
func (ps *PacketStats) AddSent() {
	ps.sent.Inc()
}

// GetAndReset returns the interval counters and starts a new interval.
func (ps *PacketStats) GetAndReset() (packets, bytes, invalid, dropped int64, duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	duration = now.Sub(ps.lastReset)
	packets, bytes, invalid, dropped = ps.packetCount, ps.byteCount, ps.invalidCount, ps.droppedCount

	ps.packetCount = 0
	ps.byteCount = 0
	ps.invalidCount = 0
	ps.droppedCount = 0
	ps.lastReset = now
	return
}

// LogStats logs packet rates for the interval since the last call. Quiet
// intervals are not logged.
func (ps *PacketStats) LogStats() {
	packets, bytes, invalid, dropped, duration := ps.GetAndReset()
	if packets == 0 && invalid == 0 && dropped == 0 {
		return
	}
	secs := duration.Seconds()
	msg := fmt.Sprintf("Tally stats (/sec): %.1f packets, %.1f bytes", float64(packets)/secs, float64(bytes)/secs)
	if invalid > 0 {
		msg += fmt.Sprintf(", %d invalid", invalid)
	}
	if dropped > 0 {
		msg += fmt.Sprintf(", %d dropped on forward", dropped)
	}
	Logf("%s", msg)
}

// Registry exposes the Prometheus registry holding the counters.
func (ps *PacketStats) Registry() *prometheus.Registry {
	return ps.registry
}

// Handler serves the counters in the Prometheus exposition format.
func (ps *PacketStats) Handler() http.Handler {
	return promhttp.HandlerFor(ps.registry, promhttp.HandlerOpts{})
}

package network

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/tslumd"
	"github.com/banshee-data/tslumd/internal/monitoring"
	"github.com/banshee-data/tslumd/internal/timeutil"
)

// pcapng section header block type, stored byte-order independent.
var pcapngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// PCAPSource is the subset of pcapgo readers used for replay.
type PCAPSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// OpenPCAP returns a reader for a classic pcap or pcapng stream.
func OpenPCAP(r io.Reader) (PCAPSource, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}
	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to open pcapng stream: %w", err)
		}
		return ng, nil
	}
	rd, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap stream: %w", err)
	}
	return rd, nil
}

// ReplayConfig configures ReadPCAPFile.
type ReplayConfig struct {
	// Port filters UDP datagrams by destination port. Zero accepts all.
	Port      int
	Version   tslumd.Version
	Stats     PacketStatsInterface
	Forwarder *PacketForwarder
	Handler   Handler
	// SpeedMultiplier paces replay against capture timestamps (1.0 is real
	// time, 2.0 twice as fast). Zero replays as fast as possible.
	SpeedMultiplier float64
	// Clock is used for pacing. Defaults to the wall clock.
	Clock timeutil.Clock
}

// ReplaySummary reports what a replay saw.
type ReplaySummary struct {
	Datagrams int
	Valid     int
	Invalid   int
	Elapsed   time.Duration
}

// ReadPCAPFile decodes the TSL datagrams in a capture file as if they had
// arrived on a live listener.
func ReadPCAPFile(ctx context.Context, pcapFile string, cfg ReplayConfig) (ReplaySummary, error) {
	f, err := os.Open(pcapFile)
	if err != nil {
		return ReplaySummary{}, fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer f.Close()

	src, err := OpenPCAP(f)
	if err != nil {
		return ReplaySummary{}, fmt.Errorf("%s: %w", pcapFile, err)
	}
	return Replay(ctx, src, cfg)
}

// Replay decodes every matching UDP payload from src.
func Replay(ctx context.Context, src PCAPSource, cfg ReplayConfig) (ReplaySummary, error) {
	if _, err := tslumd.PacketLength(cfg.Version); err != nil {
		return ReplaySummary{}, err
	}
	stats := cfg.Stats
	if stats == nil {
		stats = &noopStats{}
	}
	proc := processor{
		version:   cfg.Version,
		stats:     stats,
		forwarder: cfg.Forwarder,
		handler:   cfg.Handler,
	}

	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.SpeedMultiplier < 0 {
		return ReplaySummary{}, fmt.Errorf("invalid speed multiplier %v", cfg.SpeedMultiplier)
	}

	var summary ReplaySummary
	var lastCapture time.Time
	startTime := clock.Now()
	packetSource := gopacket.NewPacketSource(src, src.LinkType())
	packetSource.DecodeOptions = gopacket.DecodeOptions{Lazy: true}

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("PCAP reader stopping due to context cancellation (processed %d datagrams)", summary.Datagrams)
			summary.Elapsed = clock.Now().Sub(startTime)
			return summary, ctx.Err()
		default:
		}

		packet, err := packetSource.NextPacket()
		if errors.Is(err, io.EOF) {
			summary.Elapsed = clock.Now().Sub(startTime)
			monitoring.Logf("PCAP file reading complete: %d datagrams (%d valid, %d invalid) in %v",
				summary.Datagrams, summary.Valid, summary.Invalid, summary.Elapsed)
			return summary, nil
		}
		if err != nil {
			summary.Elapsed = clock.Now().Sub(startTime)
			return summary, fmt.Errorf("failed to read capture: %w", err)
		}

		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok {
			continue
		}
		if cfg.Port != 0 && int(udp.DstPort) != cfg.Port {
			continue
		}

		if cfg.SpeedMultiplier > 0 {
			captured := packet.Metadata().Timestamp
			if !lastCapture.IsZero() {
				delay := time.Duration(float64(captured.Sub(lastCapture)) / cfg.SpeedMultiplier)
				if err := timeutil.Wait(ctx, clock, delay); err != nil {
					summary.Elapsed = clock.Now().Sub(startTime)
					return summary, err
				}
			}
			lastCapture = captured
		}

		summary.Datagrams++
		if err := proc.process(udp.Payload, sourceAddr(packet, udp)); err != nil {
			summary.Invalid++
			monitoring.Logf("PCAP datagram %d: %v", summary.Datagrams, err)
			continue
		}
		summary.Valid++
	}
}

func sourceAddr(packet gopacket.Packet, udp *layers.UDP) *net.UDPAddr {
	addr := &net.UDPAddr{Port: int(udp.SrcPort)}
	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		addr.IP = ip.SrcIP
	case *layers.IPv6:
		addr.IP = ip.SrcIP
	}
	return addr
}

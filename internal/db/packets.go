package db

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/tslumd"
	"github.com/banshee-data/tslumd/internal/monitoring"
	"github.com/banshee-data/tslumd/internal/timeutil"
	"github.com/banshee-data/tslumd/v31"
)

// PacketRecord is one row of the packet log. Tally holds the four channel
// bits and Brightness the two-bit wire code, as they appear on the wire.
type PacketRecord struct {
	ID         int64     `json:"id"`
	CaptureID  string    `json:"capture_id"`
	ReceivedAt time.Time `json:"received_at"`
	Source     string    `json:"source,omitempty"`
	Version    string    `json:"version"`
	Address    uint8     `json:"address"`
	Tally      uint8     `json:"tally"`
	Brightness uint8     `json:"brightness"`
	Display    string    `json:"display"`
	Raw        []byte    `json:"raw"`
}

// NewPacketRecord builds a record from a decoded frame, copying its bytes.
func NewPacketRecord(frame tslumd.Frame, version tslumd.Version, src net.Addr, at time.Time) PacketRecord {
	rec := PacketRecord{
		ReceivedAt: at,
		Version:    version.String(),
		Address:    frame.Address(),
		Raw:        append([]byte(nil), frame.Bytes()...),
	}
	if src != nil {
		rec.Source = src.String()
	}
	if p, ok := frame.(v31.Packet); ok {
		rec.Tally = p.Tally().Bits()
		rec.Brightness = p.Brightness().WireCode()
		rec.Display = p.DisplayText()
	}
	return rec
}

// TallyState expands the stored tally bits.
func (r PacketRecord) TallyState() v31.Tally {
	return v31.TallyFromBits(r.Tally)
}

// BrightnessLevel expands the stored brightness code.
func (r PacketRecord) BrightnessLevel() v31.Brightness {
	return v31.BrightnessFromWireCode(r.Brightness)
}

// CaptureInfo describes one run of a receiver.
type CaptureInfo struct {
	ID         string
	StartedAt  time.Time
	ListenAddr string
	Version    string
	SourceKind string
}

// StartCapture records the start of a run under the handle's capture id.
func (db *DB) StartCapture(ctx context.Context, listenAddr string, version tslumd.Version, sourceKind string) error {
	if sourceKind == "" {
		sourceKind = "udp"
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO captures (capture_id, started_unix_nanos, listen_addr, version, source_kind)
		 VALUES (?, ?, ?, ?, ?)`,
		db.captureID, time.Now().UnixNano(), listenAddr, version.String(), sourceKind,
	)
	if err != nil {
		return fmt.Errorf("failed to record capture: %w", err)
	}
	return nil
}

// Captures lists recorded runs, newest first.
func (db *DB) Captures(ctx context.Context) ([]CaptureInfo, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT capture_id, started_unix_nanos, listen_addr, version, source_kind
		 FROM captures ORDER BY started_unix_nanos DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaptureInfo
	for rows.Next() {
		var c CaptureInfo
		var started int64
		if err := rows.Scan(&c.ID, &started, &c.ListenAddr, &c.Version, &c.SourceKind); err != nil {
			return nil, err
		}
		c.StartedAt = time.Unix(0, started).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordPacket appends rec to the log under this handle's capture id and
// returns the row id.
func (db *DB) RecordPacket(ctx context.Context, rec PacketRecord) (int64, error) {
	if rec.CaptureID == "" {
		rec.CaptureID = db.captureID
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now()
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO packets (
			capture_id, received_unix_nanos, source, version, address,
			tally, brightness, display, raw
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CaptureID, rec.ReceivedAt.UnixNano(), rec.Source, rec.Version, int64(rec.Address),
		int64(rec.Tally), int64(rec.Brightness), rec.Display, rec.Raw,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record packet: %w", err)
	}
	return res.LastInsertId()
}

const selectPackets = `SELECT packet_id, capture_id, received_unix_nanos, source, version,
	address, tally, brightness, display, raw FROM packets`

// RecentPackets returns up to limit packets, newest first.
func (db *DB) RecentPackets(ctx context.Context, limit int) ([]PacketRecord, error) {
	return db.queryPackets(ctx, selectPackets+` ORDER BY received_unix_nanos DESC, packet_id DESC LIMIT ?`, limit)
}

// PacketsForAddress returns up to limit packets sent to one display
// address, newest first.
func (db *DB) PacketsForAddress(ctx context.Context, address uint8, limit int) ([]PacketRecord, error) {
	return db.queryPackets(ctx,
		selectPackets+` WHERE address = ? ORDER BY received_unix_nanos DESC, packet_id DESC LIMIT ?`,
		int64(address), limit)
}

// CountPackets returns the number of logged packets.
func (db *DB) CountPackets(ctx context.Context) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packets`).Scan(&n)
	return n, err
}

func (db *DB) queryPackets(ctx context.Context, query string, args ...any) ([]PacketRecord, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PacketRecord
	for rows.Next() {
		var r PacketRecord
		var received, address, tally, brightness int64
		if err := rows.Scan(&r.ID, &r.CaptureID, &received, &r.Source, &r.Version,
			&address, &tally, &brightness, &r.Display, &r.Raw); err != nil {
			return nil, err
		}
		r.ReceivedAt = time.Unix(0, received).UTC()
		r.Address = uint8(address)
		r.Tally = uint8(tally)
		r.Brightness = uint8(brightness)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Recorder logs every handled frame. It satisfies network.Handler.
type Recorder struct {
	ctx     context.Context
	db      *DB
	version tslumd.Version
	clock   timeutil.Clock
}

// NewRecorder returns a Recorder writing under ctx. A nil clock uses the
// wall clock.
func (db *DB) NewRecorder(ctx context.Context, version tslumd.Version, clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{ctx: ctx, db: db, version: version, clock: clock}
}

// HandleFrame records frame. Failures are logged and do not stop the
// receive loop.
func (r *Recorder) HandleFrame(frame tslumd.Frame, src *net.UDPAddr) {
	var addr net.Addr
	if src != nil {
		addr = src
	}
	if _, err := r.db.RecordPacket(r.ctx, NewPacketRecord(frame, r.version, addr, r.clock.Now())); err != nil {
		monitoring.Logf("Failed to log packet: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/tslumd"
	"github.com/banshee-data/tslumd/internal/db"
	"github.com/banshee-data/tslumd/internal/monitoring"
	"github.com/banshee-data/tslumd/internal/network"
)

type replayOptions struct {
	PCAP    string
	Port    int
	Version tslumd.Version
	Speed   float64
	DBPath  string
	Verbose bool
}

func parseReplayFlags(args []string, stderr io.Writer) (replayOptions, error) {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	pcapFile := fs.String("pcap", "", "Capture file to decode (pcap or pcapng, required)")
	port := fs.Int("port", 1234, "UDP destination port to decode (0 for any)")
	versionName := fs.String("version", tslumd.V31.String(), "TSL protocol version")
	speed := fs.Float64("speed", 0, "Replay speed relative to capture timestamps (1 is real time, 0 is as fast as possible)")
	dbPath := fs.String("db", "", "Record decoded packets to this SQLite database")
	verbose := fs.Bool("v", false, "Also print the raw bytes of each packet")
	if err := fs.Parse(args); err != nil {
		return replayOptions{}, err
	}
	if *pcapFile == "" {
		return replayOptions{}, fmt.Errorf("-pcap is required")
	}
	if *port < 0 || *port > 65535 {
		return replayOptions{}, fmt.Errorf("-port must be between 0 and 65535, got %d", *port)
	}
	if *speed < 0 {
		return replayOptions{}, fmt.Errorf("-speed must not be negative, got %v", *speed)
	}
	version, err := tslumd.ParseVersion(*versionName)
	if err != nil {
		return replayOptions{}, err
	}
	return replayOptions{
		PCAP:    *pcapFile,
		Port:    *port,
		Version: version,
		Speed:   *speed,
		DBPath:  *dbPath,
		Verbose: *verbose,
	}, nil
}

func runReplay(ctx context.Context, opts replayOptions, stdout io.Writer) error {
	stats := monitoring.NewPacketStats()
	handlers := multiHandler{&packetPrinter{w: stdout, verbose: opts.Verbose}}

	if opts.DBPath != "" {
		database, err := db.NewDB(opts.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open packet log: %w", err)
		}
		defer database.Close()
		if err := database.StartCapture(ctx, opts.PCAP, opts.Version, "pcap"); err != nil {
			return err
		}
		handlers = append(handlers, database.NewRecorder(ctx, opts.Version, nil))
	}

	summary, err := network.ReadPCAPFile(ctx, opts.PCAP, network.ReplayConfig{
		Port:            opts.Port,
		Version:         opts.Version,
		Stats:           stats,
		Handler:         handlers,
		SpeedMultiplier: opts.Speed,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "replayed %d datagrams: %d valid, %d invalid\n", summary.Datagrams, summary.Valid, summary.Invalid)
	return nil
}

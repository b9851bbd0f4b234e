package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/tslumd"
	"github.com/banshee-data/tslumd/internal/config"
	"github.com/banshee-data/tslumd/internal/db"
	"github.com/banshee-data/tslumd/internal/monitoring"
	"github.com/banshee-data/tslumd/internal/network"
	"github.com/banshee-data/tslumd/internal/packetmux"
)

type listenOptions struct {
	Bind        string
	Port        int
	Version     tslumd.Version
	RcvBuf      int
	LogInterval time.Duration
	Forward     string
	DBPath      string
	DebugListen string
	Verbose     bool
}

// pick returns the flag value when the flag was given, otherwise the config
// value.
func pick[T any](set bool, flagValue, configValue T) T {
	if set {
		return flagValue
	}
	return configValue
}

// loadConfig returns an empty config when path is empty so the Get* defaults
// apply.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func parseListenFlags(args []string, stderr io.Writer) (listenOptions, error) {
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "JSON config file; flags override its values")
	bind := fs.String("bind", config.DefaultBind, "IP address to listen on")
	port := fs.Int("port", config.DefaultPort, "UDP port to listen on")
	versionName := fs.String("version", tslumd.V31.String(), "TSL protocol version (v3.1, v4, v5)")
	rcvBuf := fs.Int("rcvbuf", config.DefaultRcvBuf, "UDP receive buffer size in bytes (0 keeps the OS default)")
	logInterval := fs.Duration("log-interval", config.DefaultLogInterval, "Interval between packet statistics log lines")
	forward := fs.String("forward", "", "Relay valid packets to host:port")
	dbPath := fs.String("db", "", "Append packets to this SQLite database")
	debugListen := fs.String("debug-listen", "", "Serve debug pages and /metrics on this address")
	verbose := fs.Bool("v", false, "Also print the raw bytes of each packet")
	if err := fs.Parse(args); err != nil {
		return listenOptions{}, err
	}
	if fs.NArg() > 0 {
		return listenOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return listenOptions{}, err
	}
	set := visited(fs)

	opts := listenOptions{
		Bind:        pick(set["bind"], *bind, cfg.GetBind()),
		Port:        pick(set["port"], *port, cfg.GetPort()),
		RcvBuf:      pick(set["rcvbuf"], *rcvBuf, cfg.GetRcvBuf()),
		LogInterval: pick(set["log-interval"], *logInterval, cfg.GetLogInterval()),
		Forward:     pick(set["forward"], *forward, cfg.GetForward()),
		DBPath:      pick(set["db"], *dbPath, cfg.GetDBPath()),
		DebugListen: pick(set["debug-listen"], *debugListen, cfg.GetDebugListen()),
		Verbose:     *verbose,
		Version:     cfg.GetVersion(),
	}
	if set["version"] {
		if opts.Version, err = tslumd.ParseVersion(*versionName); err != nil {
			return listenOptions{}, err
		}
	}

	if net.ParseIP(opts.Bind) == nil {
		return listenOptions{}, fmt.Errorf("-bind must be an IP address, got %q", opts.Bind)
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return listenOptions{}, fmt.Errorf("-port must be between 1 and 65535, got %d", opts.Port)
	}
	if opts.LogInterval <= 0 {
		return listenOptions{}, fmt.Errorf("-log-interval must be positive, got %v", opts.LogInterval)
	}
	if opts.RcvBuf < 0 {
		return listenOptions{}, fmt.Errorf("-rcvbuf must not be negative, got %d", opts.RcvBuf)
	}
	return opts, nil
}

func (o listenOptions) address() string {
	return net.JoinHostPort(o.Bind, strconv.Itoa(o.Port))
}

func runListen(ctx context.Context, opts listenOptions, stdout io.Writer) error {
	return listen(ctx, opts, stdout, nil)
}

// listen runs the receiver until ctx is cancelled. factory may be nil to
// use real sockets.
func listen(ctx context.Context, opts listenOptions, stdout io.Writer, factory network.UDPSocketFactory) error {
	if _, err := tslumd.PacketLength(opts.Version); err != nil {
		return err
	}

	stats := monitoring.NewPacketStats()
	handlers := multiHandler{&packetPrinter{w: stdout, verbose: opts.Verbose}}

	var forwarder *network.PacketForwarder
	if opts.Forward != "" {
		var err error
		forwarder, err = network.NewPacketForwarder(opts.Forward, stats, opts.LogInterval, factory)
		if err != nil {
			return err
		}
		defer forwarder.Close()
	}

	var database *db.DB
	if opts.DBPath != "" {
		var err error
		database, err = db.NewDB(opts.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open packet log: %w", err)
		}
		defer database.Close()
		if err := database.StartCapture(ctx, opts.address(), opts.Version, "udp"); err != nil {
			return err
		}
		monitoring.Logf("Logging packets to %s (capture %s)", opts.DBPath, database.CaptureID())
		handlers = append(handlers, database.NewRecorder(ctx, opts.Version, nil))
	}

	// Create a wait group for the listener and debug server routines
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.DebugListen != "" {
		pmux := packetmux.NewPacketMux(opts.Version, packetmux.DefaultHistory)
		defer pmux.Close()
		handlers = append(handlers, pmux)

		mux, err := newDebugMux(stats, pmux, database)
		if err != nil {
			return err
		}
		server := &http.Server{
			Addr:              opts.DebugListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveDebug(ctx, server)
		}()
	}

	listener := network.NewUDPListener(network.UDPListenerConfig{
		Address:       opts.address(),
		RcvBuf:        opts.RcvBuf,
		LogInterval:   opts.LogInterval,
		Version:       opts.Version,
		Stats:         stats,
		Forwarder:     forwarder,
		Handler:       handlers,
		SocketFactory: factory,
	})

	fmt.Fprintf(stdout, "listening on %s for tsl %s packets\n", opts.address(), opts.Version)
	err := listener.Start(ctx)
	cancel()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newDebugMux mounts tsweb debug pages, the packet tail, the SQL console
// when a database is open, and Prometheus metrics.
func newDebugMux(stats *monitoring.PacketStats, pmux *packetmux.PacketMux, database *db.DB) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	debug := tsweb.Debugger(mux)
	debug.Handle("prometheus", "Packet counters in Prometheus format", stats.Handler())
	mux.Handle("/metrics", stats.Handler())

	pmux.AttachAdminRoutes(mux)
	if database != nil {
		if err := database.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func serveDebug(ctx context.Context, server *http.Server) {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("Debug server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		monitoring.Logf("debug server failed: %v", err)
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("failed to shut down debug server: %v", err)
	}
}

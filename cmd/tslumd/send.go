package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/banshee-data/tslumd"
	"github.com/banshee-data/tslumd/internal/network"
	"github.com/banshee-data/tslumd/internal/serialport"
	"github.com/banshee-data/tslumd/v31"
)

type sendOptions struct {
	IP         string
	Port       int
	Address    int
	Tally      v31.Tally
	Brightness v31.Brightness
	Display    string
	Serial     string
	SerialOpts serialport.PortOptions
	Version    tslumd.Version
}

func parseSendFlags(args []string, stderr io.Writer) (sendOptions, error) {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "JSON config file for serial line settings")
	ip := fs.String("ip", "127.0.0.1", "Destination IP address")
	port := fs.Int("port", 1234, "Destination UDP port")
	addr := fs.Int("addr", -1, "Display address (0-126, required)")
	tally := fs.String("tally", "", "Comma separated tally channels to turn on, e.g. 1,4")
	brightness := fs.String("brightness", "full", "Brightness: off, seventh, half or full")
	display := fs.String("display", "", "Display text, up to 16 printable ASCII characters")
	serialPath := fs.String("serial", "", "Write to this serial device instead of UDP")
	versionName := fs.String("version", tslumd.V31.String(), "TSL protocol version")
	if err := fs.Parse(args); err != nil {
		return sendOptions{}, err
	}
	if fs.NArg() > 0 {
		return sendOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	opts := sendOptions{
		IP:      *ip,
		Port:    *port,
		Address: *addr,
		Display: *display,
		Serial:  *serialPath,
	}

	var err error
	if opts.Version, err = tslumd.ParseVersion(*versionName); err != nil {
		return sendOptions{}, err
	}
	if opts.Version != tslumd.V31 {
		return sendOptions{}, fmt.Errorf("%w: %s", tslumd.ErrUnsupportedVersion, opts.Version)
	}
	if opts.Address < 0 || opts.Address > v31.MaxAddress {
		return sendOptions{}, fmt.Errorf("-addr must be between 0 and %d, got %d", v31.MaxAddress, opts.Address)
	}
	if opts.Tally, err = parseTally(*tally); err != nil {
		return sendOptions{}, err
	}
	if opts.Brightness, err = v31.ParseBrightness(*brightness); err != nil {
		return sendOptions{}, err
	}

	if opts.Serial == "" {
		if net.ParseIP(opts.IP) == nil {
			return sendOptions{}, fmt.Errorf("-ip must be an IP address, got %q", opts.IP)
		}
		if opts.Port < 1 || opts.Port > 65535 {
			return sendOptions{}, fmt.Errorf("-port must be between 1 and 65535, got %d", opts.Port)
		}
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return sendOptions{}, err
	}
	opts.SerialOpts = cfg.GetSerial()
	return opts, nil
}

// parseTally turns "1,4" into a tally with channels 1 and 4 on.
func parseTally(s string) (v31.Tally, error) {
	var channels []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		ch, err := strconv.Atoi(field)
		if err != nil {
			return v31.Tally{}, fmt.Errorf("bad tally channel %q", field)
		}
		channels = append(channels, ch)
	}
	return v31.TallyFromChannels(channels...)
}

// buildPacket fills a zeroed buffer. The display region stays null unless
// display text was given.
func buildPacket(opts sendOptions) (v31.Buffer, error) {
	var buf v31.Buffer
	p := buf.Packet()
	if err := p.SetAddress(uint8(opts.Address)); err != nil {
		return buf, err
	}
	p.SetTally(opts.Tally)
	p.SetBrightness(opts.Brightness)
	if opts.Display != "" {
		if err := p.SetDisplayText(opts.Display); err != nil {
			return buf, err
		}
	}
	return buf, nil
}

// runSend transmits one packet. factory and opener may be nil to use real
// sockets and serial ports.
func runSend(opts sendOptions, stdout io.Writer, factory network.UDPSocketFactory, opener serialport.Opener) error {
	buf, err := buildPacket(opts)
	if err != nil {
		return err
	}
	p := buf.Packet().ReadOnly()

	if opts.Serial != "" {
		w, err := serialport.Open(opts.Serial, opts.SerialOpts, opener)
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.WritePacket(p.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "sent packet %s to %s\n", p, opts.Serial)
		return nil
	}

	sender, err := network.NewSender(net.JoinHostPort(opts.IP, strconv.Itoa(opts.Port)), factory, nil)
	if err != nil {
		return err
	}
	defer sender.Close()
	if err := sender.Send(p); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "sent packet %s to %s\n", p, sender.Address())
	return nil
}

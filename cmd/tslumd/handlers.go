package main

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/banshee-data/tslumd"
	"github.com/banshee-data/tslumd/internal/network"
)

// packetPrinter writes one line per valid packet.
type packetPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

func (p *packetPrinter) HandleFrame(frame tslumd.Frame, src *net.UDPAddr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	from := "capture"
	if src != nil {
		from = src.String()
	}
	if p.verbose {
		fmt.Fprintf(p.w, "got %d bytes from %s\n% x\n", len(frame.Bytes()), from, frame.Bytes())
	}
	fmt.Fprintf(p.w, "got packet %s from %s\n", frame, from)
}

// multiHandler passes each frame to every handler in order.
type multiHandler []network.Handler

func (m multiHandler) HandleFrame(frame tslumd.Frame, src *net.UDPAddr) {
	for _, h := range m {
		h.HandleFrame(frame, src)
	}
}

package network

import (
	"fmt"
	"io"
	"net"

	"github.com/banshee-data/tslumd"
)

// SentStats counts transmitted packets.
type SentStats interface {
	AddSent()
}

// Sender transmits frames to one destination, one datagram per frame.
type Sender struct {
	conn    UDPWriter
	stats   SentStats
	address string
}

// NewSender connects to address (host:port). factory and stats may be nil.
func NewSender(address string, factory UDPSocketFactory, stats SentStats) (*Sender, error) {
	if factory == nil {
		factory = NewRealUDPSocketFactory()
	}
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve destination: %w", err)
	}
	conn, err := factory.DialUDP("udp", raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create send connection: %w", err)
	}
	return &Sender{conn: conn, stats: stats, address: raddr.String()}, nil
}

// Send validates frame and writes it as a single datagram.
func (s *Sender) Send(frame tslumd.Frame) error {
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("refusing to send invalid packet: %w", err)
	}
	buf := frame.Bytes()
	n, err := s.conn.Write(buf)
	if err != nil {
		return fmt.Errorf("failed to send to %s: %w", s.address, err)
	}
	if n != len(buf) {
		return fmt.Errorf("failed to send to %s: %w", s.address, io.ErrShortWrite)
	}
	if s.stats != nil {
		s.stats.AddSent()
	}
	return nil
}

// Address returns the resolved destination.
func (s *Sender) Address() string {
	return s.address
}

// Close closes the connection.
func (s *Sender) Close() error {
	return s.conn.Close()
}

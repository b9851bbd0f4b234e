package packetmux

import (
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/tslumd"
	"github.com/banshee-data/tslumd/v31"
)

// Event is one received packet. Raw is owned by the event, so it stays valid
// after the receive buffer is reused.
type Event struct {
	Time    time.Time
	Source  string
	Version tslumd.Version
	Raw     []byte
}

// NewEvent copies frame's bytes into a new Event.
func NewEvent(frame tslumd.Frame, version tslumd.Version, src net.Addr, at time.Time) Event {
	e := Event{
		Time:    at,
		Version: version,
		Raw:     append([]byte(nil), frame.Bytes()...),
	}
	if src != nil {
		e.Source = src.String()
	}
	return e
}

// Frame decodes the event's bytes again.
func (e Event) Frame() (tslumd.Frame, error) {
	return tslumd.Decode(e.Version, e.Raw)
}

// Packet returns a v3.1 view over the event's copy of the packet.
func (e Event) Packet() (v31.Packet, error) {
	if e.Version != tslumd.V31 {
		return v31.Packet{}, fmt.Errorf("%w: %s", tslumd.ErrUnsupportedVersion, e.Version)
	}
	return v31.NewPacket(e.Raw)
}

// Summary is the JSON shape used by the debug pages.
type Summary struct {
	Time       time.Time `json:"time"`
	Source     string    `json:"source,omitempty"`
	Version    string    `json:"version"`
	Address    uint8     `json:"address"`
	Tally      []int     `json:"tally"`
	Brightness string    `json:"brightness,omitempty"`
	Display    string    `json:"display"`
	Hex        string    `json:"hex"`
}

// Summary flattens the event for display. Fields that the event's version
// does not carry are left empty.
func (e Event) Summary() Summary {
	s := Summary{
		Time:    e.Time,
		Source:  e.Source,
		Version: e.Version.String(),
		Tally:   []int{},
		Hex:     hex.EncodeToString(e.Raw),
	}
	p, err := e.Packet()
	if err != nil {
		if f, ferr := e.Frame(); ferr == nil {
			s.Address = f.Address()
		}
		return s
	}
	s.Address = p.Address()
	if ch := p.Tally().Channels(); ch != nil {
		s.Tally = ch
	}
	s.Brightness = p.Brightness().String()
	s.Display = p.DisplayText()
	return s
}

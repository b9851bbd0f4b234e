// Package tslumd decodes and encodes TSL UMD tally packets.
//
// TSL UMD is a family of protocols used to drive on-air and preview tally
// lights on multiviewers and under-monitor displays. It started out on
// serial lines and is now mostly sent as one UDP datagram per update.
//
// Each protocol version has its own codec package; v3.1 lives in the v31
// package. This package selects a codec by Version so callers that accept a
// version on the command line or in config can stay version agnostic.
package tslumd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/tslumd/v31"
)

// ErrUnsupportedVersion is returned for protocol versions without a codec.
var ErrUnsupportedVersion = errors.New("tslumd: unsupported protocol version")

// Version selects a TSL UMD packet format.
type Version int

const (
	V31 Version = iota
	V40
	V50
)

func (v Version) String() string {
	switch v {
	case V31:
		return "v3.1"
	case V40:
		return "v4.0"
	case V50:
		return "v5.0"
	}
	return fmt.Sprintf("Version(%d)", int(v))
}

// ParseVersion parses names such as "v3", "3.1", "v4" or "V5.0".
func ParseVersion(s string) (Version, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "v") {
	case "3", "3.1", "31":
		return V31, nil
	case "4", "4.0", "40":
		return V40, nil
	case "5", "5.0", "50":
		return V50, nil
	}
	return 0, fmt.Errorf("unknown TSL version %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Frame is the version independent view of a decoded packet.
type Frame interface {
	fmt.Stringer
	// Address is the display address the packet is aimed at.
	Address() uint8
	// Bytes returns the buffer the frame was decoded from.
	Bytes() []byte
	// Validate re-runs the version's validation over the buffer.
	Validate() error
}

var _ Frame = v31.Packet{}

// Decode validates buf as a packet of version v. The returned frame borrows
// buf.
func Decode(v Version, buf []byte) (Frame, error) {
	switch v {
	case V31:
		p, err := v31.NewPacket(buf)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
}

// PacketLength returns the fixed packet size of version v.
func PacketLength(v Version) (int, error) {
	switch v {
	case V31:
		return v31.PacketLength, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
}

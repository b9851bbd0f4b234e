package v31

import (
	"bytes"
	"fmt"
)

const (
	// PacketLength is the size of every v3.1 packet.
	PacketLength = 18
	// DisplayLength is the size of the display text region.
	DisplayLength = 16
	// MaxAddress is the highest display address SetAddress accepts.
	MaxAddress = 0x7E

	addressByte   = 0
	controlByte   = 1
	displayOffset = 2

	addressMarker  = 0x80
	addressMask    = 0x7F
	tallyMask      = 0x0F
	brightnessBits = 4
	brightnessMask = 0b11 << brightnessBits
)

// Tally holds the on/off state of tally channels 1-4. Index i is channel i+1.
type Tally [4]bool

// TallyFromChannels builds a Tally from 1-based channel numbers.
func TallyFromChannels(channels ...int) (Tally, error) {
	var t Tally
	for _, ch := range channels {
		if ch < 1 || ch > len(t) {
			return Tally{}, fmt.Errorf("tally channel %d out of range 1-%d", ch, len(t))
		}
		t[ch-1] = true
	}
	return t, nil
}

// TallyFromBits decodes the low nibble of a control byte.
func TallyFromBits(bits uint8) Tally {
	var t Tally
	for i := range t {
		t[i] = bits&(1<<i) != 0
	}
	return t
}

// Bits encodes t as the low nibble of a control byte.
func (t Tally) Bits() uint8 {
	var bits uint8
	for i, on := range t {
		if on {
			bits |= 1 << i
		}
	}
	return bits
}

// Channels returns the 1-based numbers of the channels that are on.
func (t Tally) Channels() []int {
	var chs []int
	for i, on := range t {
		if on {
			chs = append(chs, i+1)
		}
	}
	return chs
}

// Packet is a read-only view over a v3.1 packet buffer.
type Packet struct {
	buf []byte
}

// NewPacketUnchecked wraps buf without validating it. buf must be at least
// PacketLength bytes long; the accessors index into it directly.
func NewPacketUnchecked(buf []byte) Packet {
	return Packet{buf: buf}
}

// NewPacket validates buf and wraps it. On failure the returned Packet is the
// zero value and must not be used.
func NewPacket(buf []byte) (Packet, error) {
	if err := Validate(buf); err != nil {
		return Packet{}, err
	}
	return Packet{buf: buf}, nil
}

// Validate checks, in order, the buffer length, the address marker bit and
// every display byte. It stops at the first problem and never modifies buf.
func Validate(buf []byte) error {
	if len(buf) != PacketLength {
		return &LengthError{Expected: PacketLength, Actual: len(buf)}
	}
	if buf[addressByte]&addressMarker == 0 {
		return ErrInvalidAddressMarker
	}
	for i, b := range buf[displayOffset:] {
		// Null is outside the protocol's character set but some
		// producers pad with it.
		if !isDisplayByte(b) && b != 0 {
			return &DisplayByteError{Offset: i}
		}
	}
	return nil
}

func isDisplayByte(b byte) bool {
	return b >= 0x20 && b <= 0x7F
}

// Validate runs Validate over the wrapped buffer.
func (p Packet) Validate() error {
	return Validate(p.buf)
}

// Bytes returns the wrapped buffer. The view should not be used afterwards.
func (p Packet) Bytes() []byte {
	return p.buf
}

// Address returns the display address, 0-126.
func (p Packet) Address() uint8 {
	return p.buf[addressByte] & addressMask
}

// Tally returns the four tally channel states.
func (p Packet) Tally() Tally {
	return TallyFromBits(p.buf[controlByte] & tallyMask)
}

// Brightness returns the tally brightness level.
func (p Packet) Brightness() Brightness {
	return BrightnessFromWireCode(p.buf[controlByte] >> brightnessBits)
}

// DisplayBytes returns the display text as a sub-slice of the buffer: the
// region up to the first null, or all of it, with trailing spaces removed.
func (p Packet) DisplayBytes() []byte {
	region := p.buf[displayOffset : displayOffset+DisplayLength]
	if i := bytes.IndexByte(region, 0); i >= 0 {
		region = region[:i]
	}
	return bytes.TrimRight(region, " ")
}

// DisplayText returns DisplayBytes as a string.
func (p Packet) DisplayText() string {
	return string(p.DisplayBytes())
}

func (p Packet) String() string {
	t := p.Tally()
	return fmt.Sprintf("addr=%d, 1=%t, 2=%t, 3=%t, 4=%t, brightness=%s, display=%s",
		p.Address(), t[0], t[1], t[2], t[3], p.Brightness(), p.DisplayBytes())
}

// MutablePacket is a read-write view over a v3.1 packet buffer.
type MutablePacket struct {
	Packet
}

// NewMutablePacketUnchecked wraps buf for writing without validating it. It
// is the usual way to build a packet from a zeroed buffer.
func NewMutablePacketUnchecked(buf []byte) MutablePacket {
	return MutablePacket{Packet{buf: buf}}
}

// NewMutablePacket validates buf and wraps it for writing.
func NewMutablePacket(buf []byte) (MutablePacket, error) {
	p, err := NewPacket(buf)
	if err != nil {
		return MutablePacket{}, err
	}
	return MutablePacket{p}, nil
}

// ReadOnly drops the write capability.
func (p MutablePacket) ReadOnly() Packet {
	return p.Packet
}

// SetAddress writes the display address and the address marker bit.
func (p MutablePacket) SetAddress(addr uint8) error {
	if addr > MaxAddress {
		return &AddressRangeError{Address: addr}
	}
	p.buf[addressByte] = addr | addressMarker
	return nil
}

// SetTally writes the tally channel states, leaving the brightness bits alone.
func (p MutablePacket) SetTally(t Tally) {
	p.buf[controlByte] = p.buf[controlByte]&^tallyMask | t.Bits()
}

// SetBrightness writes the brightness code, leaving the tally bits alone.
func (p MutablePacket) SetBrightness(b Brightness) {
	p.buf[controlByte] = p.buf[controlByte]&^brightnessMask | b.WireCode()<<brightnessBits
}

// SetDisplayText writes s into the display region and pads the remainder with
// spaces, so text from an earlier, longer write never leaks through. s must be
// at most DisplayLength bytes of printable ASCII.
func (p MutablePacket) SetDisplayText(s string) error {
	if len(s) > DisplayLength {
		return &DisplayLengthError{Length: len(s)}
	}
	for i := 0; i < len(s); i++ {
		if !isDisplayByte(s[i]) {
			return &DisplayByteError{Offset: i}
		}
	}
	region := p.buf[displayOffset : displayOffset+DisplayLength]
	n := copy(region, s)
	for i := n; i < len(region); i++ {
		region[i] = ' '
	}
	return nil
}

// Buffer is owned storage for one packet.
type Buffer [PacketLength]byte

// Packet returns a writable view over b.
func (b *Buffer) Packet() MutablePacket {
	return NewMutablePacketUnchecked(b[:])
}

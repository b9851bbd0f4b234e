package v31

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validRaw = [PacketLength]byte{
	0x80 + 0x69,
	0b00011001,
	'h', 'e', 'l', 'l', 'o', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ',
}

func TestNewPacket_Parse(t *testing.T) {
	raw := validRaw
	p, err := NewPacket(raw[:])
	require.NoError(t, err)

	assert.Equal(t, uint8(0x69), p.Address())
	assert.Equal(t, Tally{true, false, false, true}, p.Tally())
	assert.Equal(t, BrightnessOneSeventh, p.Brightness())
	assert.Equal(t, "hello", p.DisplayText())
}

func TestNewPacket_BadLength(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", []byte{}},
		{"nil", nil},
		{"one short", make([]byte, PacketLength-1)},
		{"one long", make([]byte, PacketLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPacket(tt.buf)
			var lerr *LengthError
			require.ErrorAs(t, err, &lerr)
			if diff := cmp.Diff(&LengthError{Expected: PacketLength, Actual: len(tt.buf)}, lerr); diff != "" {
				t.Errorf("LengthError mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewPacket_BadAddress(t *testing.T) {
	raw := validRaw
	raw[0] = 0x13
	_, err := NewPacket(raw[:])
	assert.ErrorIs(t, err, ErrInvalidAddressMarker)

	// The marker check comes before the display scan.
	raw[5] = 0xF0
	_, err = NewPacket(raw[:])
	assert.ErrorIs(t, err, ErrInvalidAddressMarker)
}

func TestNewPacket_BadDisplay(t *testing.T) {
	t.Run("utf8 text", func(t *testing.T) {
		raw := validRaw
		ohno := []byte("oh no 🤔")
		copy(raw[2:], ohno)
		_, err := NewPacket(raw[:])
		var derr *DisplayByteError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, 6, derr.Offset)
	})

	t.Run("first offender wins", func(t *testing.T) {
		raw := validRaw
		raw[6] = 0xF0
		raw[10] = 0x01
		raw[17] = 0xFF
		_, err := NewPacket(raw[:])
		var derr *DisplayByteError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, 4, derr.Offset)
	})

	t.Run("control character", func(t *testing.T) {
		raw := validRaw
		raw[2] = '\n'
		_, err := NewPacket(raw[:])
		var derr *DisplayByteError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, 0, derr.Offset)
	})
}

func TestNewPacket_NullPadding(t *testing.T) {
	raw := [PacketLength]byte{0x8D, 0x19, 'h', 'e', 'l', 'l', 'o'}
	p, err := NewPacket(raw[:])
	require.NoError(t, err)
	assert.Equal(t, uint8(13), p.Address())
	assert.Equal(t, "hello", p.DisplayText())
	assert.True(t, p.Tally()[0])
}

func TestDisplayText_IgnoresBytesAfterNull(t *testing.T) {
	raw := validRaw
	copy(raw[2:], "hello\x00")
	raw[9] = 0xF0
	raw[12] = 0x99

	// Validation still rejects the stray bytes; decoding an unchecked view
	// stops at the null.
	p := NewPacketUnchecked(raw[:])
	assert.Equal(t, "hello", p.DisplayText())
	assert.Equal(t, []byte("hello"), p.DisplayBytes())
}

func TestDisplayText_NullAfterTrailingSpaces(t *testing.T) {
	raw := validRaw
	copy(raw[2:], "ab  \x00zzz")
	p, err := NewPacket(raw[:])
	require.NoError(t, err)
	assert.Equal(t, "ab", p.DisplayText())
}

func TestDisplayText_FullRegion(t *testing.T) {
	raw := validRaw
	copy(raw[2:], "0123456789ABCDEF")
	p, err := NewPacket(raw[:])
	require.NoError(t, err)
	assert.Equal(t, "0123456789ABCDEF", p.DisplayText())
}

func TestDisplayText_ZeroControlByte(t *testing.T) {
	raw := validRaw
	raw[1] = 0
	p, err := NewPacket(raw[:])
	require.NoError(t, err)
	assert.Equal(t, "hello", p.DisplayText())
	assert.Equal(t, Tally{}, p.Tally())
	assert.Equal(t, BrightnessZero, p.Brightness())
}

func TestValidate_Idempotent(t *testing.T) {
	bufs := [][]byte{
		validRaw[:],
		{0x13},
		append([]byte{0x13}, validRaw[1:]...),
	}
	for _, buf := range bufs {
		before := bytes.Clone(buf)
		first := Validate(buf)
		second := Validate(buf)
		assert.Equal(t, first, second)
		assert.Equal(t, before, buf)
	}
}

func TestValidate_ReservedBitsIgnored(t *testing.T) {
	raw := validRaw
	raw[1] |= 0xC0
	p, err := NewPacket(raw[:])
	require.NoError(t, err)
	assert.Equal(t, BrightnessOneSeventh, p.Brightness())
	assert.Equal(t, Tally{true, false, false, true}, p.Tally())
}

func TestMutablePacket_Build(t *testing.T) {
	buf := make([]byte, PacketLength)
	p := NewMutablePacketUnchecked(buf)
	require.NoError(t, p.SetAddress(13))
	p.SetTally(Tally{true, false, false, false})
	p.SetBrightness(BrightnessFull)
	require.NoError(t, p.SetDisplayText("hello"))

	got, err := NewPacket(p.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint8(13), got.Address())
	assert.Equal(t, Tally{true, false, false, false}, got.Tally())
	assert.Equal(t, BrightnessFull, got.Brightness())
	assert.Equal(t, "hello", got.DisplayText())
	assert.Equal(t, byte(0x8D), buf[0])
	assert.Equal(t, byte(0b00110001), buf[1])
}

func TestMutablePacket_SetAddressRange(t *testing.T) {
	var b Buffer
	p := b.Packet()
	require.NoError(t, p.SetAddress(0))
	require.NoError(t, p.SetAddress(MaxAddress))
	assert.Equal(t, byte(0xFE), b[0])

	for _, addr := range []uint8{0x7F, 0x80, 0xFF} {
		err := p.SetAddress(addr)
		var aerr *AddressRangeError
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, addr, aerr.Address)
	}
	// Rejected writes leave the buffer alone.
	assert.Equal(t, byte(0xFE), b[0])
}

func TestMutablePacket_TallyPreservesBrightness(t *testing.T) {
	var b Buffer
	p := b.Packet()
	p.SetBrightness(BrightnessOneHalf)
	p.SetTally(Tally{false, true, true, false})
	assert.Equal(t, BrightnessOneHalf, p.Brightness())
	assert.Equal(t, Tally{false, true, true, false}, p.Tally())

	p.SetTally(Tally{})
	assert.Equal(t, BrightnessOneHalf, p.Brightness())
	assert.Equal(t, byte(0b00100000), b[1])
}

func TestMutablePacket_BrightnessPreservesTally(t *testing.T) {
	var b Buffer
	b[1] = 0xC0 // reserved bits
	p := b.Packet()
	p.SetTally(Tally{true, true, true, true})
	for _, br := range []Brightness{BrightnessFull, BrightnessZero, BrightnessOneSeventh, BrightnessOneHalf} {
		p.SetBrightness(br)
		assert.Equal(t, br, p.Brightness())
		assert.Equal(t, Tally{true, true, true, true}, p.Tally())
		assert.Equal(t, byte(0xC0), b[1]&0xC0)
	}
}

func TestMutablePacket_SetDisplayTextErrors(t *testing.T) {
	var b Buffer
	p := b.Packet()
	require.NoError(t, p.SetDisplayText("keep"))

	err := p.SetDisplayText(strings.Repeat("x", DisplayLength+1))
	var lerr *DisplayLengthError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, DisplayLength+1, lerr.Length)

	err = p.SetDisplayText("café")
	var derr *DisplayByteError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 3, derr.Offset)

	err = p.SetDisplayText("a\x00b")
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 1, derr.Offset)

	assert.Equal(t, "keep", p.DisplayText())
}

func TestMutablePacket_ShrinkingTextClearsRemainder(t *testing.T) {
	var b Buffer
	p := b.Packet()
	require.NoError(t, p.SetAddress(1))
	require.NoError(t, p.SetDisplayText("hello world"))
	require.NoError(t, p.SetDisplayText("hi"))

	assert.Equal(t, "hi", p.DisplayText())
	assert.Equal(t, []byte("hi              "), b[2:])
	require.NoError(t, p.Validate())
}

func TestNewMutablePacket_Checked(t *testing.T) {
	raw := validRaw
	p, err := NewMutablePacket(raw[:])
	require.NoError(t, err)
	require.NoError(t, p.SetAddress(2))
	assert.Equal(t, uint8(2), p.ReadOnly().Address())
	assert.Equal(t, byte(0x82), raw[0])

	raw[0] = 0x02
	_, err = NewMutablePacket(raw[:])
	assert.True(t, errors.Is(err, ErrInvalidAddressMarker))
}

func TestRoundTrip(t *testing.T) {
	texts := []string{"", "a", "hello", "  lead", "trail   ", "~!@#$%^&*()_+{}|", "0123456789ABCDEF", "\x7F"}
	brightnesses := []Brightness{BrightnessZero, BrightnessOneSeventh, BrightnessOneHalf, BrightnessFull}

	var b Buffer
	for addr := 0; addr <= MaxAddress; addr++ {
		for bits := uint8(0); bits < 16; bits++ {
			tally := TallyFromBits(bits)
			for _, br := range brightnesses {
				for _, text := range texts {
					p := b.Packet()
					require.NoError(t, p.SetAddress(uint8(addr)))
					p.SetTally(tally)
					p.SetBrightness(br)
					require.NoError(t, p.SetDisplayText(text))

					got, err := NewPacket(b[:])
					require.NoError(t, err)
					if got.Address() != uint8(addr) || got.Tally() != tally || got.Brightness() != br {
						t.Fatalf("round trip addr=%d tally=%v brightness=%v: got %s", addr, tally, br, got)
					}
					if want := strings.TrimRight(text, " "); got.DisplayText() != want {
						t.Fatalf("display = %q, want %q", got.DisplayText(), want)
					}
				}
			}
		}
	}
}

func TestPacket_String(t *testing.T) {
	raw := validRaw
	p, err := NewPacket(raw[:])
	require.NoError(t, err)
	assert.Equal(t, "addr=105, 1=true, 2=false, 3=false, 4=true, brightness=1/7, display=hello", p.String())

	var b Buffer
	mp := b.Packet()
	require.NoError(t, mp.SetAddress(0))
	mp.SetBrightness(BrightnessFull)
	assert.Equal(t, "addr=0, 1=false, 2=false, 3=false, 4=false, brightness=1, display=", mp.String())
}

func TestTallyHelpers(t *testing.T) {
	tally, err := TallyFromChannels(1, 4)
	require.NoError(t, err)
	assert.Equal(t, Tally{true, false, false, true}, tally)
	assert.Equal(t, uint8(0b1001), tally.Bits())
	assert.Equal(t, []int{1, 4}, tally.Channels())
	assert.Nil(t, Tally{}.Channels())

	_, err = TallyFromChannels(0)
	assert.Error(t, err)
	_, err = TallyFromChannels(5)
	assert.Error(t, err)

	for bits := uint8(0); bits < 16; bits++ {
		assert.Equal(t, bits, TallyFromBits(bits).Bits())
	}
	assert.Equal(t, TallyFromBits(0x0F), TallyFromBits(0xFF))
}

func TestValidate_NoAllocations(t *testing.T) {
	raw := validRaw
	allocs := testing.AllocsPerRun(100, func() {
		p, err := NewMutablePacket(raw[:])
		if err != nil {
			t.Fatal(err)
		}
		_ = p.Address()
		_ = p.Tally()
		_ = p.Brightness()
		_ = p.DisplayBytes()
		p.SetTally(Tally{true})
		p.SetBrightness(BrightnessFull)
		_ = p.SetAddress(7)
		_ = p.SetDisplayText("cam 7")
	})
	assert.Zero(t, allocs)
}

package v31

import (
	"fmt"
	"strings"
)

// Brightness is the tally lamp intensity carried in bits 4-5 of the control
// byte.
type Brightness uint8

const (
	BrightnessZero Brightness = iota
	BrightnessOneSeventh
	BrightnessOneHalf
	BrightnessFull
)

// Approximate 8-bit intensities used by producers that emulate continuous
// dimming. These are not wire values.
const (
	analogZero       uint8 = 0
	analogOneSeventh uint8 = 36
	analogOneHalf    uint8 = 128
	analogFull       uint8 = 255
)

// WireCode returns the 2-bit code written into the control byte.
func (b Brightness) WireCode() uint8 {
	switch b {
	case BrightnessOneSeventh:
		return 0b01
	case BrightnessOneHalf:
		return 0b10
	case BrightnessFull:
		return 0b11
	default:
		return 0b00
	}
}

// BrightnessFromWireCode decodes a 2-bit brightness code. Bits above the low
// two are ignored.
func BrightnessFromWireCode(code uint8) Brightness {
	switch code & 0b11 {
	case 0b01:
		return BrightnessOneSeventh
	case 0b10:
		return BrightnessOneHalf
	case 0b11:
		return BrightnessFull
	}
	return BrightnessZero
}

// AnalogLevel returns the approximate 8-bit intensity for b.
func (b Brightness) AnalogLevel() uint8 {
	switch b {
	case BrightnessOneSeventh:
		return analogOneSeventh
	case BrightnessOneHalf:
		return analogOneHalf
	case BrightnessFull:
		return analogFull
	default:
		return analogZero
	}
}

// BrightnessFromAnalogLevel maps an 8-bit intensity to the nearest level.
// Ties round up.
func BrightnessFromAnalogLevel(v uint8) Brightness {
	best := BrightnessZero
	bestDist := 256
	for _, b := range []Brightness{BrightnessZero, BrightnessOneSeventh, BrightnessOneHalf, BrightnessFull} {
		d := int(v) - int(b.AnalogLevel())
		if d < 0 {
			d = -d
		}
		if d <= bestDist {
			best, bestDist = b, d
		}
	}
	return best
}

// String renders the level as a fraction of full brightness.
func (b Brightness) String() string {
	switch b {
	case BrightnessOneSeventh:
		return "1/7"
	case BrightnessOneHalf:
		return "1/2"
	case BrightnessFull:
		return "1"
	default:
		return "0"
	}
}

// ParseBrightness accepts the command line names (off, seventh, half, full)
// as well as the fractions produced by String.
func ParseBrightness(s string) (Brightness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "zero", "0":
		return BrightnessZero, nil
	case "seventh", "1/7":
		return BrightnessOneSeventh, nil
	case "half", "1/2":
		return BrightnessOneHalf, nil
	case "full", "1":
		return BrightnessFull, nil
	}
	return BrightnessZero, fmt.Errorf("unknown brightness %q: expected off, seventh, half or full", s)
}

// MarshalText implements encoding.TextMarshaler.
func (b Brightness) MarshalText() ([]byte, error) {
	switch b {
	case BrightnessOneSeventh:
		return []byte("seventh"), nil
	case BrightnessOneHalf:
		return []byte("half"), nil
	case BrightnessFull:
		return []byte("full"), nil
	default:
		return []byte("off"), nil
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Brightness) UnmarshalText(text []byte) error {
	v, err := ParseBrightness(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

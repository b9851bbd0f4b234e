package v31

import (
	"errors"
	"fmt"
)

// ErrInvalidAddressMarker is returned when bit 7 of the address byte is clear.
var ErrInvalidAddressMarker = errors.New("v31: address marker bit not set")

// LengthError reports a buffer that is not exactly PacketLength bytes.
type LengthError struct {
	Expected int
	Actual   int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("v31: bad length: expected %d, got %d", e.Expected, e.Actual)
}

// DisplayByteError reports a display byte that is neither printable ASCII nor
// null. Offset is relative to the start of the display region, so offset 0 is
// buffer byte 2.
type DisplayByteError struct {
	Offset int
}

func (e *DisplayByteError) Error() string {
	return fmt.Sprintf("v31: bad display data at position %d", e.Offset)
}

// AddressRangeError is returned by SetAddress for values above MaxAddress.
type AddressRangeError struct {
	Address uint8
}

func (e *AddressRangeError) Error() string {
	return fmt.Sprintf("v31: address %d out of range (max %d)", e.Address, MaxAddress)
}

// DisplayLengthError is returned by SetDisplayText for text longer than the
// display region.
type DisplayLengthError struct {
	Length int
}

func (e *DisplayLengthError) Error() string {
	return fmt.Sprintf("v31: display text is %d bytes (max %d)", e.Length, DisplayLength)
}

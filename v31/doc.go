// Package v31 implements the TSL UMD version 3.1 packet format.
//
// A v3.1 packet is a fixed 18 byte record:
//
//	offset 0      0x80 | display address (0..126)
//	offset 1      bits 0-3 tally channels 1-4, bits 4-5 brightness
//	offset 2..17  16 bytes of printable ASCII display text
//
// Packet and MutablePacket are views over a caller owned buffer. They never
// copy the buffer and hold no state beyond the slice header, so a view can
// be created per datagram and thrown away. Packet only exposes the read path;
// MutablePacket adds the setters. Use NewPacket or NewMutablePacket for bytes
// received from the network and the Unchecked constructors when building a
// fresh packet field by field.
//
//	var b v31.Buffer
//	p := b.Packet()
//	_ = p.SetAddress(13)
//	p.SetTally(v31.Tally{true, false, false, false})
//	p.SetBrightness(v31.BrightnessFull)
//	_ = p.SetDisplayText("CAM 1")
//	conn.Write(p.Bytes())
package v31

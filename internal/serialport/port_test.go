package serialport

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/banshee-data/tslumd/v31"
)

func testPacket(t *testing.T, addr uint8) []byte {
	t.Helper()
	var b v31.Buffer
	p := b.Packet()
	require.NoError(t, p.SetAddress(addr))
	p.SetTally(v31.Tally{true})
	p.SetBrightness(v31.BrightnessFull)
	require.NoError(t, p.SetDisplayText("CAM"))
	return b[:]
}

func TestOpen_UsesOpener(t *testing.T) {
	port := &TestablePort{}
	opener := &MockOpener{Port: port}

	w, err := Open("/dev/ttyUSB0", PortOptions{BaudRate: 9600}, opener.Open)
	require.NoError(t, err)
	require.Len(t, opener.Calls, 1)
	assert.Equal(t, "/dev/ttyUSB0", opener.Calls[0].Path)
	assert.Equal(t, 9600, opener.Calls[0].Mode.BaudRate)
	assert.Equal(t, serial.EvenParity, opener.Calls[0].Mode.Parity)

	require.NoError(t, w.Close())
	assert.True(t, port.Closed)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("/dev/null", PortOptions{DataBits: 2}, (&MockOpener{}).Open)
	assert.Error(t, err)

	boom := errors.New("no such device")
	_, err = Open("/dev/ttyS9", PortOptions{}, (&MockOpener{Error: boom}).Open)
	assert.ErrorIs(t, err, boom)
}

func TestPacketWriter_WritePacket(t *testing.T) {
	port := &TestablePort{}
	w := NewPacketWriter(port, "mock")

	pkt := testPacket(t, 5)
	require.NoError(t, w.WritePacket(pkt))
	assert.Equal(t, pkt, port.Written())

	port.ShortWrite = true
	assert.ErrorIs(t, w.WritePacket(pkt), ErrWriteFailed)

	port.ShortWrite = false
	port.WriteError = errors.New("line fault")
	assert.Error(t, w.WritePacket(pkt))
}

func TestPacketWriter_ConcurrentWritesDoNotInterleave(t *testing.T) {
	port := &TestablePort{}
	w := NewPacketWriter(port, "mock")

	packets := make([][]byte, 8)
	for i := range packets {
		packets[i] = testPacket(t, uint8(i))
	}

	var wg sync.WaitGroup
	for _, pkt := range packets {
		wg.Add(1)
		go func(pkt []byte) {
			defer wg.Done()
			assert.NoError(t, w.WritePacket(pkt))
		}(pkt)
	}
	wg.Wait()

	written := port.Written()
	require.Len(t, written, 8*v31.PacketLength)
	for off := 0; off < len(written); off += v31.PacketLength {
		_, err := v31.NewPacket(written[off : off+v31.PacketLength])
		assert.NoError(t, err)
	}
}

package serialport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptions_Normalise_Defaults(t *testing.T) {
	got, err := PortOptions{}.Normalise()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 38400, DataBits: 8, StopBits: 1, Parity: "E"}, got)
}

func TestPortOptions_Normalise(t *testing.T) {
	tests := []struct {
		name    string
		opts    PortOptions
		want    PortOptions
		wantErr bool
	}{
		{
			name: "explicit values",
			opts: PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "o"},
			want: PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "O"},
		},
		{
			name: "negative baud rate uses default",
			opts: PortOptions{BaudRate: -5},
			want: PortOptions{BaudRate: 38400, DataBits: 8, StopBits: 1, Parity: "E"},
		},
		{
			name: "long parity names",
			opts: PortOptions{Parity: " none "},
			want: PortOptions{BaudRate: 38400, DataBits: 8, StopBits: 1, Parity: "N"},
		},
		{name: "data bits too small", opts: PortOptions{DataBits: 4}, wantErr: true},
		{name: "data bits too large", opts: PortOptions{DataBits: 9}, wantErr: true},
		{name: "bad stop bits", opts: PortOptions{StopBits: 3}, wantErr: true},
		{name: "bad parity", opts: PortOptions{Parity: "mark"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.Normalise()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{
		BaudRate: 38400,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}, mode)

	mode, err = PortOptions{StopBits: 2, Parity: "N"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	_, err = PortOptions{Parity: "X"}.SerialMode()
	assert.Error(t, err)
}

func TestPortOptions_String(t *testing.T) {
	assert.Equal(t, "38400 8E1", PortOptions{}.String())
	assert.Contains(t, PortOptions{DataBits: 12}.String(), "invalid")
}

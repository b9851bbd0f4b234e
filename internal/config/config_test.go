package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tslumd"
	"github.com/banshee-data/tslumd/internal/serialport"
)

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0", cfg.GetBind())
	assert.Equal(t, 1234, cfg.GetPort())
	assert.Equal(t, tslumd.V31, cfg.GetVersion())
	assert.Equal(t, 1<<20, cfg.GetRcvBuf())
	assert.Equal(t, time.Minute, cfg.GetLogInterval())
	assert.Empty(t, cfg.GetForward())
	assert.Empty(t, cfg.GetDBPath())
	assert.Empty(t, cfg.GetDebugListen())
	assert.Equal(t, serialport.PortOptions{BaudRate: 38400, DataBits: 8, StopBits: 1, Parity: "E"}, cfg.GetSerial())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "tslumd.json", `{
  "bind": "127.0.0.1",
  "port": 8900,
  "version": "v3.1",
  "rcv_buf": 4096,
  "log_interval": "30s",
  "forward": "10.0.0.5:8900",
  "db_path": "tally.db",
  "debug_listen": ":8080",
  "serial": {"baud_rate": 9600, "parity": "N"}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.GetBind())
	assert.Equal(t, 8900, cfg.GetPort())
	assert.Equal(t, tslumd.V31, cfg.GetVersion())
	assert.Equal(t, 4096, cfg.GetRcvBuf())
	assert.Equal(t, 30*time.Second, cfg.GetLogInterval())
	assert.Equal(t, "10.0.0.5:8900", cfg.GetForward())
	assert.Equal(t, "tally.db", cfg.GetDBPath())
	assert.Equal(t, ":8080", cfg.GetDebugListen())
	assert.Equal(t, serialport.PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}, cfg.GetSerial())
}

func TestLoad_Partial(t *testing.T) {
	cfg, err := Load(writeConfig(t, "partial.json", `{"port": 5000}`))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.GetPort())
	assert.Equal(t, DefaultBind, cfg.GetBind())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "config.yaml", `{}`},
		{"invalid json", "bad.json", `{"port": "x"`},
		{"invalid value", "range.json", `{"port": 70000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load("/nonexistent/path/to/config.json")
	assert.Error(t, err)
}

func TestLoad_TooLarge(t *testing.T) {
	body := `{"bind": "127.0.0.1", "pad": "` + strings.Repeat("x", 1<<20) + `"}`
	_, err := Load(writeConfig(t, "big.json", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"empty config is valid", &Config{}, false},
		{"port zero", &Config{Port: ptrInt(0)}, true},
		{"bind hostname", &Config{Bind: ptrString("localhost")}, true},
		{"unknown version", &Config{Version: ptrString("v9")}, true},
		{"v5 parses", &Config{Version: ptrString("v5")}, false},
		{"negative rcv_buf", &Config{RcvBuf: ptrInt(-1)}, true},
		{"bad log interval", &Config{LogInterval: ptrString("soon")}, true},
		{"zero log interval", &Config{LogInterval: ptrString("0s")}, true},
		{"forward without port", &Config{Forward: ptrString("10.0.0.1")}, true},
		{"bad serial", &Config{Serial: &serialport.PortOptions{StopBits: 5}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetLogInterval_FallsBack(t *testing.T) {
	assert.Equal(t, DefaultLogInterval, (&Config{LogInterval: ptrString("")}).GetLogInterval())
	assert.Equal(t, DefaultLogInterval, (&Config{LogInterval: ptrString("nope")}).GetLogInterval())
	assert.Equal(t, 2*time.Second, (&Config{LogInterval: ptrString("2s")}).GetLogInterval())
}

func TestGetVersion_FallsBack(t *testing.T) {
	assert.Equal(t, tslumd.V31, (&Config{Version: ptrString("bogus")}).GetVersion())
	assert.Equal(t, tslumd.V40, (&Config{Version: ptrString("4")}).GetVersion())
}

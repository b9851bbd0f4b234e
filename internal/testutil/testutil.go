// Package testutil provides shared test fixtures for tally packets and the
// debug HTTP routes.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tslumd/v31"
)

// LocalRequest builds a request that tsweb's debug handlers accept as coming
// from the local machine.
func LocalRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// Serve runs a local request through h and returns the recorded response.
func Serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, LocalRequest(method, path, nil))
	return rec
}

// Packet encodes a v3.1 packet, failing the test on an invalid address or
// display text.
func Packet(t testing.TB, addr uint8, tally v31.Tally, b v31.Brightness, text string) v31.Packet {
	t.Helper()
	var buf v31.Buffer
	p := buf.Packet()
	require.NoError(t, p.SetAddress(addr))
	p.SetTally(tally)
	p.SetBrightness(b)
	require.NoError(t, p.SetDisplayText(text))
	return p.ReadOnly()
}

package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...any) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("packet from %s", "10.0.0.1:1234")
	assert.Equal(t, []string{"packet from 10.0.0.1:1234"}, got)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("muted %d", 1) })
	assert.Len(t, got, 1)
}

func TestLogf_Default(t *testing.T) {
	assert.NotNil(t, Logf)
}

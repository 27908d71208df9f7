package dbgclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionsVerify(t *testing.T) {
	cases := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"valid", Options{Port: 5039}, nil},
		{"zero port", Options{Port: 0}, ErrInvalidParameter},
		{"negative port", Options{Port: -1}, ErrInvalidParameter},
		{"port too large", Options{Port: 70000}, ErrInvalidParameter},
		{"negative verbosity", Options{Port: 1, Verbosity: -1}, ErrInvalidParameter},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.wantErr, c.opts.Verify())
		})
	}
}

func TestConfigVerifyRequiresBackend(t *testing.T) {
	cfg := Config{Options: Options{Port: 5039}}
	assert.Equal(t, ErrInvalidParameter, cfg.Verify())
}

package dbgclient

import (
	"fmt"
	"net"

	"github.com/GoAethereal/cancel"

	"github.com/GoAethereal/dbgclient/internal/backend"
	"github.com/GoAethereal/dbgclient/internal/logging"
	"github.com/GoAethereal/dbgclient/internal/wire"
)

// Config derives the session controller's internal collaborators from
// Options: a listener and a wire.Codec, plus the PlatformBackend and
// Logger. It is built once by the caller (cmd/dbgserver or a test) rather
// than re-derived per request.
type Config struct {
	Options
	Backend backend.PlatformBackend
	Logger  *logging.Logger
}

// Verify validates the embedded Options and requires a Backend.
func (cfg Config) Verify() error {
	if err := cfg.Options.Verify(); err != nil {
		return err
	}
	if cfg.Backend == nil {
		return ErrInvalidParameter
	}
	return nil
}

// codec builds the wire.Codec this Config's Ceiling implies.
func (cfg Config) codec() wire.Codec {
	return wire.Codec{Ceiling: cfg.Ceiling}
}

func (cfg Config) logger() *logging.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return logging.Default()
}

// listen binds to the configured port and returns an accept function that
// blocks until the next peer connects. A watchdog goroutine closes the
// listener when ctx is done, so Accept returns promptly on teardown.
func (cfg Config) listen(ctx cancel.Context) (accept func() (Transport, error), err error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	return func() (Transport, error) {
		conn, err := l.Accept()
		if err != nil {
			return nil, err
		}
		return newNetTransport(conn), nil
	}, nil
}

package dbgclient

import (
	"sync"

	"github.com/GoAethereal/cancel"
)

// Server accepts exactly one peer connection and runs it to completion on
// the accepting goroutine. A debug session is single-threaded and
// single-peer for its whole lifetime: spawning a handler goroutine per
// accepted connection would invite a second peer racing the first against
// the same backend.PlatformBackend and breakpoint.Manager.
type Server struct {
	mu sync.Mutex
}

// Serve binds Config's listener, waits for the one peer it will ever
// serve, and runs the session Controller to completion. It returns nil
// on a clean peer disconnect, matching the CLI's exit-code-0 semantics,
// or the first unrecoverable error otherwise.
func (s *Server) Serve(ctx cancel.Context, cfg Config) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := cfg.Verify(); err != nil {
		return err
	}
	accept, err := cfg.listen(ctx)
	if err != nil {
		return err
	}

	log := cfg.logger()
	log.Infof("listening on port %d", cfg.Port)

	t, err := accept()
	if err != nil {
		select {
		case <-ctx.Done():
			return nil
		default:
			return err
		}
	}
	defer t.Close()

	log.Info("peer connected")
	c := newController(ctx, cfg, t)
	return c.Run()
}

package dbgclient

// Options configures a dbgclient Server: a plain struct the caller fills
// in, verified once and then turned into the internal Config.
type Options struct {
	// Port the server listens on.
	Port int
	// Verbosity selects -v/-vv style logging detail: 0 is Info, 1+ is
	// Debug.
	Verbosity int
	// LogFile, when non-empty, additionally writes log output to this
	// path.
	LogFile string
	// TargetPath, when non-empty, fixes the debuggee to start, skipping
	// the peer-driven LIST_PROCESSES/LIST_FILES/SELECT_PROCESS/SELECT_FILE
	// target-selection flow entirely.
	TargetPath string
	// TargetArgv is passed to backend.Start alongside TargetPath.
	TargetArgv []string
	// Ceiling bounds a single wire argument's declared length (default
	// 16 MiB via wire.DefaultCeiling when zero).
	Ceiling uint32
}

// Verify validates Options, returning ErrInvalidParameter for anything a
// Config cannot be derived from.
func (o Options) Verify() error {
	if o.Port <= 0 || o.Port > 65535 {
		return ErrInvalidParameter
	}
	if o.Verbosity < 0 {
		return ErrInvalidParameter
	}
	return nil
}

// Package dbgclient implements the session controller: the host-side
// debug client that accepts a single peer
// connection from a reverse-engineering frontend, authenticates it with a
// fixed handshake, dispatches its wire-protocol commands to a
// backend.PlatformBackend (directly or through internal/breakpoint's
// three-class breakpoint manager), and drains asynchronous debug events
// back to the peer between commands.
//
// The wire codec lives in internal/wire, the breakpoint manager and
// condition-tree evaluator in internal/breakpoint and internal/condition,
// and the one shipped PlatformBackend in internal/backend. This package
// is the glue: Options/Config (caller-facing configuration), Server
// (accept-one-peer loop) and Controller (the lifecycle state machine,
// command dispatch table, event drain, handshake, and memory reload
// ring).
package dbgclient

// Package engine defines the boundary between the bridge and the middleware
// engine that owns the network session and the callback schedule.
//
// The engine never holds a pointer to bridge state. It is given a SessionID
// when Run starts and passes it back unchanged on every Dispatcher call; the
// bridge resolves it through its registry.
package engine

import (
	"context"
	"errors"

	"moos-bridge/internal/message"
)

// SessionID identifies one running session. Zero is never issued.
type SessionID uint64

var (
	ErrNotRunning = errors.New("engine not running")
	ErrEmptyName  = errors.New("message name must not be empty")
	// ErrUnknownSession means a session id did not resolve. Engines treat it
	// as fatal and return from Run.
	ErrUnknownSession = errors.New("unknown session")
)

// Dispatcher is the set of entry points the engine calls. The engine calls
// them sequentially from its own run loop and never concurrently.
type Dispatcher interface {
	OnStartup(ctx context.Context, id SessionID) error
	OnSessionEstablished(ctx context.Context, id SessionID) error
	OnMailReceived(ctx context.Context, id SessionID, mail message.Batch) error
	OnTick(ctx context.Context, id SessionID) error
	// OnReportRequested returns the status text. The engine may only rely on
	// the returned text until its next call into the Dispatcher.
	OnReportRequested(ctx context.Context, id SessionID) (string, error)
}

// RunSpec describes the session handed to Run.
type RunSpec struct {
	AppName string
	// Mission is an opaque configuration locator; the bridge never reads it.
	Mission string
	Session SessionID
}

// Engine is the set of primitives the bridge consumes.
type Engine interface {
	// Notify publishes a named value.
	Notify(name string, v message.Value) error
	// Register subscribes to a named value. interval is the minimum number of
	// seconds between deliveries; 0 delivers as fast as values arrive.
	Register(name string, interval float64) error
	// Run blocks the caller and drives the Dispatcher until ctx is done or a
	// fatal error occurs.
	Run(ctx context.Context, spec RunSpec, d Dispatcher) error
}

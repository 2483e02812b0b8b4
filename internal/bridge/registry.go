package bridge

import (
	"fmt"
	"sync"

	"moos-bridge/internal/engine"
)

// ErrUnknownSession is returned by every Dispatcher entry point whose id does not resolve.
var ErrUnknownSession = engine.ErrUnknownSession

// Registry maps the session ids handed to the engine back to their hosts.
type Registry struct {
	mu    sync.RWMutex
	next  engine.SessionID
	hosts map[engine.SessionID]*Host
}

func NewRegistry() *Registry {
	return &Registry{hosts: make(map[engine.SessionID]*Host)}
}

var defaultRegistry = NewRegistry()

func (r *Registry) attach(h *Host) engine.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.hosts[r.next] = h
	return r.next
}

func (r *Registry) release(id engine.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hosts[id]; !ok {
		return false
	}
	delete(r.hosts, id)
	return true
}

// Resolve returns the host registered under id.
func (r *Registry) Resolve(id engine.SessionID) (*Host, error) {
	r.mu.RLock()
	h, ok := r.hosts[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %d: %w", id, ErrUnknownSession)
	}
	return h, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hosts)
}

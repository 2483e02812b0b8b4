// Package mailbox holds the named values exchanged between application logic
// and the engine callbacks. Both collections are guarded by one mutex that is
// only held for a map swap or copy.
package mailbox

import (
	"sync"

	"moos-bridge/internal/message"
)

// Mailbox stores outgoing publications and the latest inbound mail batch.
type Mailbox struct {
	mu       sync.RWMutex
	outgoing message.Batch
	inbound  message.Batch
}

func New() *Mailbox {
	return &Mailbox{
		outgoing: make(message.Batch),
		inbound:  make(message.Batch),
	}
}

// RecordOutgoing inserts or overwrites the named outgoing value.
func (m *Mailbox) RecordOutgoing(name string, v message.Value) {
	m.mu.Lock()
	m.outgoing[name] = v
	m.mu.Unlock()
}

// DrainOutgoing swaps the outgoing collection for an empty one and returns
// the previous contents. Writes that happen after the swap land in the next drain.
func (m *Mailbox) DrainOutgoing() message.Batch {
	fresh := make(message.Batch)
	m.mu.Lock()
	out := m.outgoing
	m.outgoing = fresh
	m.mu.Unlock()
	return out
}

// PendingOutgoing reports how many names are waiting for the next drain.
func (m *Mailbox) PendingOutgoing() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.outgoing)
}

// DeliverInbound replaces the inbound collection wholesale. The batch is
// copied so later mutation by the caller cannot leak in.
func (m *Mailbox) DeliverInbound(batch message.Batch) {
	next := batch.Clone()
	m.mu.Lock()
	m.inbound = next
	m.mu.Unlock()
}

// ReadInbound returns a copy of the latest inbound batch.
func (m *Mailbox) ReadInbound() message.Batch {
	m.mu.RLock()
	cur := m.inbound
	m.mu.RUnlock()
	// cur is never mutated after publication, so copying outside the lock is safe.
	return cur.Clone()
}

// Inbound returns a single inbound value.
func (m *Mailbox) Inbound(name string) (message.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.inbound[name]
	return v, ok
}

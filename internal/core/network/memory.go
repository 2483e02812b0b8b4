package network

import (
	"errors"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("pubsub closed")

const memoryBuffer = 64

// MemoryPubSub is a process-local transport for single-process communities and tests.
type MemoryPubSub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Message
	closed bool

	online atomic.Bool
}

func NewMemoryPubSub() *MemoryPubSub {
	m := &MemoryPubSub{subs: make(map[string]map[int]chan Message)}
	m.online.Store(true)
	return m
}

// SetOnline simulates losing or regaining the community. While offline,
// Publish fails and nothing is delivered.
func (m *MemoryPubSub) SetOnline(up bool) {
	m.online.Store(up)
}

func (m *MemoryPubSub) Online() bool {
	return m.online.Load()
}

func (m *MemoryPubSub) Publish(topic string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	if !m.online.Load() {
		return ErrOffline
	}
	for _, ch := range m.subs[topic] {
		msg := Message{Topic: topic, Payload: append([]byte(nil), payload...), From: "memory"}
		select {
		case ch <- msg:
		default:
			// Non-blocking send to avoid one slow subscriber stalling all publishers.
		}
	}
	return nil
}

func (m *MemoryPubSub) Subscribe(topic string) (<-chan Message, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, ErrClosed
	}
	if _, ok := m.subs[topic]; !ok {
		m.subs[topic] = make(map[int]chan Message)
	}
	id := m.nextID
	m.nextID++
	ch := make(chan Message, memoryBuffer)
	m.subs[topic][id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if subsByTopic, ok := m.subs[topic]; ok {
			if sub, exists := subsByTopic[id]; exists {
				delete(subsByTopic, id)
				close(sub)
			}
			if len(subsByTopic) == 0 {
				delete(m.subs, topic)
			}
		}
	}
	return ch, cancel, nil
}

// Close closes every subscriber channel.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for topic, subsByTopic := range m.subs {
		for id, ch := range subsByTopic {
			close(ch)
			delete(subsByTopic, id)
		}
		delete(m.subs, topic)
	}
	return nil
}

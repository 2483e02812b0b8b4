package network

import "errors"

// ErrOffline is returned by Publish while the node has no community.
var ErrOffline = errors.New("pubsub offline")

// Message is the transport envelope delivered to subscribers.
type Message struct {
	Topic   string
	Payload []byte
	// From identifies the publishing node when the transport knows it.
	From string
}

// PubSub is a minimal interface for broadcast-style communication.
type PubSub interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}

// Connectivity is implemented by transports that can tell whether the node
// currently reaches the rest of the community.
type Connectivity interface {
	Online() bool
}

// IsOnline reports ps as online unless it implements Connectivity and says otherwise.
func IsOnline(ps PubSub) bool {
	if c, ok := ps.(Connectivity); ok {
		return c.Online()
	}
	return true
}

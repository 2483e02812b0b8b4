package bridge

import (
	"context"

	"moos-bridge/internal/mailbox"
	"moos-bridge/internal/message"
)

// PeriodicExecutor is driven by the host's worker goroutine in an unbounded
// loop. Tick may block to pace itself and should return once ctx is done.
type PeriodicExecutor interface {
	Tick(ctx context.Context) error
}

// Communicator exchanges named values with the engine once per engine tick.
// Both methods run on the engine's goroutine and stall it while they run.
type Communicator interface {
	// DrainForSend returns the values to notify this tick.
	DrainForSend() message.Batch
	// Deliver receives the full inbound batch for this tick, possibly empty.
	Deliver(mail message.Batch)
}

// TickHook is an optional Communicator extension run at the start of every
// engine tick, before DrainForSend.
type TickHook interface {
	OnEngineTick()
}

// Reporter builds the human-readable status. It must be fast and free of side effects.
type Reporter interface {
	Status() string
}

// Application is the single user object that plays all three roles. State it
// shares between Tick and the Communicator/Reporter methods must be
// synchronized by the implementation.
type Application interface {
	PeriodicExecutor
	Communicator
	Reporter
}

// MailboxCommunicator implements Communicator over a shared Mailbox. Embed it
// in an Application to get drain-on-send and last-batch-wins inbound mail.
type MailboxCommunicator struct {
	Mailbox *mailbox.Mailbox
}

func (c MailboxCommunicator) DrainForSend() message.Batch {
	return c.Mailbox.DrainOutgoing()
}

func (c MailboxCommunicator) Deliver(mail message.Batch) {
	c.Mailbox.DeliverInbound(mail)
}

// Package simpleapp is the example application: it counts "Double" upward by
// one every pace interval, starting from zero when nothing has been received.
package simpleapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"moos-bridge/internal/bridge"
	"moos-bridge/internal/mailbox"
	"moos-bridge/internal/message"
)

const (
	DoubleName  = "Double"
	StringName  = "String"
	DefaultPace = 5 * time.Second
)

// App implements bridge.Application over a shared mailbox.
type App struct {
	bridge.MailboxCommunicator

	pace   time.Duration
	logger zerolog.Logger

	mu     sync.Mutex
	report report
}

type report struct {
	ticks         uint64
	published     uint64
	variantErrors uint64
	lastDouble    float64
	lastString    string
}

func New(mb *mailbox.Mailbox, pace time.Duration, logger zerolog.Logger) *App {
	if pace <= 0 {
		pace = DefaultPace
	}
	return &App{
		MailboxCommunicator: bridge.MailboxCommunicator{Mailbox: mb},
		pace:                pace,
		logger:              logger,
	}
}

// Tick waits one pace interval, then publishes the next Double.
func (a *App) Tick(ctx context.Context) error {
	timer := time.NewTimer(a.pace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return a.step()
}

func (a *App) step() error {
	inbound := a.Mailbox.ReadInbound()

	next := 0.0
	d, ok, err := inbound.NumericOf(DoubleName)
	var ve *message.VariantError
	switch {
	case errors.As(err, &ve):
		a.mu.Lock()
		a.report.ticks++
		a.report.variantErrors++
		a.mu.Unlock()
		return fmt.Errorf("read inbound: %w", err)
	case err != nil:
		return err
	case ok:
		next = d + 1
	}
	text, _, textErr := inbound.TextualOf(StringName)
	if textErr != nil {
		a.logger.Warn().Err(textErr).Msg("ignoring inbound String")
	}

	a.Mailbox.RecordOutgoing(DoubleName, message.Numeric(next))
	a.logger.Debug().Float64("double", next).Msg("queued")

	a.mu.Lock()
	a.report.ticks++
	a.report.published++
	a.report.lastDouble = next
	switch {
	case textErr != nil:
		a.report.variantErrors++
	case text != "":
		a.report.lastString = text
	}
	a.mu.Unlock()
	return nil
}

// Status renders the report under the app lock so it never shows a half-updated state.
func (a *App) Status() string {
	a.mu.Lock()
	r := a.report
	a.mu.Unlock()
	return fmt.Sprintf("ticks=%d published=%d variant_errors=%d double=%g string=%q",
		r.ticks, r.published, r.variantErrors, r.lastDouble, r.lastString)
}

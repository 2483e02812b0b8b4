package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"moos-bridge/internal/engine"
	"moos-bridge/internal/message"
	"moos-bridge/internal/metrics"
)

// Dispatcher implements engine.Dispatcher by resolving every call's session
// id through a Registry and forwarding to that host's capabilities. No lock
// is held while user code or the engine runs.
type Dispatcher struct {
	registry *Registry
	logger   zerolog.Logger
}

func NewDispatcher(r *Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: r, logger: logger}
}

var _ engine.Dispatcher = (*Dispatcher)(nil)

func (d *Dispatcher) resolve(id engine.SessionID) (*Host, error) {
	h, err := d.registry.Resolve(id)
	if err != nil {
		d.logger.Error().Err(err).Uint64("session", uint64(id)).Msg("dispatcher could not resolve session")
		return nil, err
	}
	return h, nil
}

func (d *Dispatcher) OnStartup(_ context.Context, id engine.SessionID) error {
	h, err := d.resolve(id)
	if err != nil {
		return err
	}
	h.logger.Info().Str("mission", h.mission).Msg("engine startup")
	return nil
}

// OnSessionEstablished registers every subscription, on every (re)connection.
func (d *Dispatcher) OnSessionEstablished(_ context.Context, id engine.SessionID) error {
	h, err := d.resolve(id)
	if err != nil {
		return err
	}
	metrics.SessionsEstablishedTotal.WithLabelValues(h.name).Inc()

	var errs []error
	for _, name := range h.subscriptions {
		regErr := h.engine.Register(name, h.refreshInterval)
		metrics.RecordRegister(h.name, regErr)
		if regErr != nil {
			errs = append(errs, fmt.Errorf("register %q: %w", name, regErr))
		}
	}
	if err := errors.Join(errs...); err != nil {
		h.logger.Warn().Err(err).Msg("subscription failed")
		return err
	}
	h.logger.Info().Strs("subscriptions", h.subscriptions).Float64("interval", h.refreshInterval).Msg("session established")
	return nil
}

func (d *Dispatcher) OnMailReceived(_ context.Context, id engine.SessionID, mail message.Batch) error {
	h, err := d.resolve(id)
	if err != nil {
		return err
	}
	h.app.Deliver(mail)
	metrics.RecordMail(h.name, len(mail))
	return nil
}

// OnTick runs the optional hook, drains the application and notifies every
// drained value. Failed notifications are joined into the returned error.
func (d *Dispatcher) OnTick(_ context.Context, id engine.SessionID) error {
	h, err := d.resolve(id)
	if err != nil {
		return err
	}
	if hook, ok := h.app.(TickHook); ok {
		hook.OnEngineTick()
	}

	batch := h.app.DrainForSend()
	metrics.RecordTick(h.name, len(batch))

	var errs []error
	for _, name := range batch.Names() {
		notifyErr := h.engine.Notify(name, batch[name])
		metrics.RecordNotify(h.name, notifyErr)
		if notifyErr != nil {
			errs = append(errs, fmt.Errorf("notify %q: %w", name, notifyErr))
		}
	}
	return errors.Join(errs...)
}

// OnReportRequested keeps the returned text in the host's report slot until
// the next request or Close.
func (d *Dispatcher) OnReportRequested(_ context.Context, id engine.SessionID) (string, error) {
	h, err := d.resolve(id)
	if err != nil {
		return "", err
	}
	status := h.app.Status()
	h.report.Store(&status)
	// Close may have run since resolve; it sets closed before clearing the slot.
	if h.closed.Load() {
		h.report.CompareAndSwap(&status, nil)
		return "", fmt.Errorf("session %d closed: %w", id, ErrUnknownSession)
	}
	metrics.ReportsTotal.WithLabelValues(h.name).Inc()
	return status, nil
}

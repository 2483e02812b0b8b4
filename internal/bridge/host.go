// Package bridge lets an Application take part in an engine-driven session
// without knowing the engine's calling convention.
//
// A Host owns one session. Start spawns a single worker goroutine that calls
// Application.Tick in a loop, then hands the calling goroutine to the
// engine's Run. From then on the engine calls the Dispatcher, which resolves
// the session id back to the Host and forwards to the Application.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"moos-bridge/internal/engine"
	"moos-bridge/internal/mailbox"
	"moos-bridge/internal/metrics"
)

var (
	ErrAlreadyStarted = errors.New("host already started")
	ErrClosed         = errors.New("host closed")
)

// Options configures a Host.
type Options struct {
	Name    string
	Mission string
	// Subscriptions are registered, in order, on every session establishment.
	Subscriptions []string
	// RefreshInterval is passed to every Register call. Zero means as fast as available.
	RefreshInterval float64
	// Mailbox is the application's mailbox, exposed through Host.Mailbox. Optional.
	Mailbox *mailbox.Mailbox
	// Registry defaults to the package registry.
	Registry *Registry
	Logger   *zerolog.Logger
}

// Host composes an engine, an application and the worker goroutine.
type Host struct {
	name            string
	mission         string
	subscriptions   []string
	refreshInterval float64

	app      Application
	engine   engine.Engine
	mailbox  *mailbox.Mailbox
	registry *Registry
	id       engine.SessionID
	logger   zerolog.Logger

	report  atomic.Pointer[string]
	started atomic.Bool
	closed  atomic.Bool
}

// New validates opts and registers the host under a fresh session id.
func New(eng engine.Engine, app Application, opts Options) (*Host, error) {
	if eng == nil {
		return nil, errors.New("bridge: engine is required")
	}
	if app == nil {
		return nil, errors.New("bridge: application is required")
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, errors.New("bridge: application name is required")
	}
	if opts.RefreshInterval < 0 {
		return nil, fmt.Errorf("bridge: refresh interval must be >= 0, got %v", opts.RefreshInterval)
	}
	subs := make([]string, 0, len(opts.Subscriptions))
	for _, s := range opts.Subscriptions {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("bridge: %w", engine.ErrEmptyName)
		}
		subs = append(subs, s)
	}

	registry := opts.Registry
	if registry == nil {
		registry = defaultRegistry
	}
	var logger zerolog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = zerolog.Nop()
	}

	h := &Host{
		name:            name,
		mission:         opts.Mission,
		subscriptions:   subs,
		refreshInterval: opts.RefreshInterval,
		app:             app,
		engine:          eng,
		mailbox:         opts.Mailbox,
		registry:        registry,
	}
	h.id = registry.attach(h)
	h.logger = logger.With().Str("app", name).Uint64("session", uint64(h.id)).Logger()
	return h, nil
}

func (h *Host) Name() string { return h.name }

func (h *Host) Session() engine.SessionID { return h.id }

// Subscriptions returns a copy of the subscription list.
func (h *Host) Subscriptions() []string {
	return append([]string(nil), h.subscriptions...)
}

// Mailbox returns the mailbox passed in Options, or nil.
func (h *Host) Mailbox() *mailbox.Mailbox { return h.mailbox }

// LastReport returns the most recent status text handed to the engine.
func (h *Host) LastReport() (string, bool) {
	p := h.report.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// Start runs the worker and then the engine on the calling goroutine. It
// returns when the engine's Run returns; the worker is then cancelled and
// waited for.
func (h *Host) Start(ctx context.Context) error {
	if h.closed.Load() {
		return ErrClosed
	}
	if !h.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		h.work(ctx)
	}()

	h.logger.Info().Str("mission", h.mission).Msg("host starting")
	err := h.engine.Run(ctx, engine.RunSpec{
		AppName: h.name,
		Mission: h.mission,
		Session: h.id,
	}, NewDispatcher(h.registry, h.logger))

	cancel()
	<-workerDone
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Error().Err(err).Msg("engine stopped")
		return err
	}
	h.logger.Info().Msg("host stopped")
	return nil
}

// work calls Tick until ctx is done. The host adds no delay between ticks.
func (h *Host) work(ctx context.Context) {
	for ctx.Err() == nil {
		err := h.app.Tick(ctx)
		metrics.RecordWorkerIteration(h.name, err)
		if err != nil && ctx.Err() == nil {
			h.logger.Warn().Err(err).Msg("worker tick failed")
		}
	}
}

// Close ends the session: the id stops resolving and the retained report is dropped.
func (h *Host) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.registry.release(h.id)
	h.report.Store(nil)
	return nil
}

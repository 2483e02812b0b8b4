// Package community is an engine that drives a bridge session over a
// network.PubSub transport. Each notified value is published as a CBOR
// envelope on the topic "<prefix><name>"; registered names are collected
// between ticks and delivered as one batch at the start of the next tick.
package community

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"moos-bridge/internal/core/network"
	"moos-bridge/internal/engine"
	"moos-bridge/internal/message"
	"moos-bridge/internal/metrics"
)

const (
	DefaultAppTick     = 4.0
	DefaultReportEvery = 4
	DefaultTopicPrefix = "moos."
)

// maxInterval is the largest register interval, in seconds, a time.Duration can hold.
const maxInterval = float64(math.MaxInt64) / float64(time.Second)

var ErrAlreadyRunning = errors.New("community engine already running")

// Options configures an Engine.
type Options struct {
	Transport network.PubSub
	// AppTick is the tick frequency in Hz.
	AppTick float64
	// ReportEvery requests a status report every N ticks. Negative disables reports.
	ReportEvery int
	TopicPrefix string
	Logger      zerolog.Logger
}

// Engine implements engine.Engine. Dispatcher calls all happen on the
// goroutine that called Run.
type Engine struct {
	transport   network.PubSub
	period      time.Duration
	reportEvery int
	prefix      string
	logger      zerolog.Logger
	now         func() time.Time

	mu         sync.Mutex
	running    bool
	appName    string
	subs       map[string]*subscription
	pending    message.Batch
	lastReport string

	// pumps tracks subscription goroutines so Run can wait for them.
	pumps sync.WaitGroup
}

type subscription struct {
	name     string
	interval time.Duration
	last     time.Time
	cancel   func()
}

func New(opts Options) (*Engine, error) {
	if opts.Transport == nil {
		return nil, errors.New("community: transport is required")
	}
	hz := opts.AppTick
	if hz == 0 {
		hz = DefaultAppTick
	}
	if hz < 0 {
		return nil, fmt.Errorf("community: app tick must be > 0, got %v", opts.AppTick)
	}
	reportEvery := opts.ReportEvery
	if reportEvery == 0 {
		reportEvery = DefaultReportEvery
	}
	prefix := opts.TopicPrefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Engine{
		transport:   opts.Transport,
		period:      time.Duration(float64(time.Second) / hz),
		reportEvery: reportEvery,
		prefix:      prefix,
		logger:      opts.Logger,
		now:         time.Now,
		subs:        make(map[string]*subscription),
		pending:     make(message.Batch),
	}, nil
}

func (e *Engine) topic(name string) string {
	return e.prefix + name
}

// StatusTopicName is the message name reports are published under.
func StatusTopicName(app string) string {
	return app + "_STATUS"
}

// Notify publishes v under name.
func (e *Engine) Notify(name string, v message.Value) error {
	if name == "" {
		return engine.ErrEmptyName
	}
	e.mu.Lock()
	running, app := e.running, e.appName
	e.mu.Unlock()
	if !running {
		return engine.ErrNotRunning
	}

	payload, err := message.Encode(app, name, v, e.now())
	if err != nil {
		return err
	}
	if err := e.transport.Publish(e.topic(name), payload); err != nil {
		return fmt.Errorf("publish %q: %w", name, err)
	}
	return nil
}

// Register subscribes to name. Registering an existing name only updates its interval.
func (e *Engine) Register(name string, interval float64) error {
	if name == "" {
		return engine.ErrEmptyName
	}
	if math.IsNaN(interval) || interval < 0 || interval >= maxInterval {
		return fmt.Errorf("register %q: interval must be in [0, %g) seconds, got %v", name, maxInterval, interval)
	}
	d := time.Duration(interval * float64(time.Second))

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return engine.ErrNotRunning
	}
	if sub, ok := e.subs[name]; ok {
		sub.interval = d
		return nil
	}

	ch, cancel, err := e.transport.Subscribe(e.topic(name))
	if err != nil {
		return fmt.Errorf("subscribe %q: %w", name, err)
	}
	e.subs[name] = &subscription{name: name, interval: d, cancel: cancel}
	e.pumps.Add(1)
	go func() {
		defer e.pumps.Done()
		e.pump(name, ch)
	}()
	return nil
}

func (e *Engine) pump(name string, ch <-chan network.Message) {
	for msg := range ch {
		env, v, err := message.Decode(msg.Payload)
		if err != nil {
			metrics.DecodeErrorsTotal.WithLabelValues(e.app()).Inc()
			e.logger.Warn().Err(err).Str("topic", msg.Topic).Str("from", msg.From).Msg("dropping undecodable payload")
			continue
		}
		if env.Name != name {
			e.logger.Warn().Str("topic", msg.Topic).Str("name", env.Name).Msg("envelope name does not match topic")
			continue
		}
		e.collect(name, v)
	}
}

// collect stores v for the next tick unless the subscription's interval has
// not elapsed since the last accepted value.
func (e *Engine) collect(name string, v message.Value) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	sub, ok := e.subs[name]
	if !ok {
		return
	}
	if sub.interval > 0 && !sub.last.IsZero() && now.Sub(sub.last) < sub.interval {
		return
	}
	sub.last = now
	e.pending[name] = v
}

func (e *Engine) takePending() message.Batch {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.pending
	e.pending = make(message.Batch)
	return out
}

func (e *Engine) app() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.appName
}

// Registered returns the currently registered names.
func (e *Engine) Registered() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.subs))
	for name := range e.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LastReport returns the last status text published by the engine.
func (e *Engine) LastReport() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastReport
}

// dropSubscriptions forgets every registration, as a server does when a client disconnects.
func (e *Engine) dropSubscriptions() {
	e.mu.Lock()
	subs := e.subs
	e.subs = make(map[string]*subscription)
	e.pending = make(message.Batch)
	e.mu.Unlock()
	for _, sub := range subs {
		sub.cancel()
	}
}

// Run drives d until ctx is done or a dispatcher call fails to resolve the session.
func (e *Engine) Run(ctx context.Context, spec engine.RunSpec, d engine.Dispatcher) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.appName = spec.AppName
	e.mu.Unlock()

	logger := e.logger.With().Str("app", spec.AppName).Uint64("session", uint64(spec.Session)).Logger()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		e.dropSubscriptions()
		e.pumps.Wait()
		metrics.SetConnected(spec.AppName, false)
	}()

	logger.Info().Str("mission", spec.Mission).Dur("period", e.period).Msg("community engine running")
	if err := d.OnStartup(ctx, spec.Session); err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	loop := &runLoop{engine: e, spec: spec, d: d, logger: logger}
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()
	for {
		if err := loop.iterate(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type runLoop struct {
	engine    *Engine
	spec      engine.RunSpec
	d         engine.Dispatcher
	logger    zerolog.Logger
	connected bool
	ticks     int
}

// check returns err when it is fatal and logs it otherwise.
func (l *runLoop) check(step string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrUnknownSession) {
		return fmt.Errorf("%s: %w", step, err)
	}
	l.logger.Warn().Err(err).Str("step", step).Msg("dispatcher call failed")
	return nil
}

// iterate runs one tick: connection transitions, mail when any arrived, tick,
// then report.
func (l *runLoop) iterate(ctx context.Context) error {
	e := l.engine
	online := network.IsOnline(e.transport)
	switch {
	case online && !l.connected:
		l.connected = true
		metrics.SetConnected(l.spec.AppName, true)
		l.logger.Info().Msg("connected to community")
		if err := l.check("session established", l.d.OnSessionEstablished(ctx, l.spec.Session)); err != nil {
			return err
		}
	case !online && l.connected:
		l.connected = false
		metrics.SetConnected(l.spec.AppName, false)
		l.logger.Warn().Msg("lost community connection")
		e.dropSubscriptions()
	}

	if mail := e.takePending(); len(mail) > 0 {
		if err := l.check("mail", l.d.OnMailReceived(ctx, l.spec.Session, mail)); err != nil {
			return err
		}
	}
	if err := l.check("tick", l.d.OnTick(ctx, l.spec.Session)); err != nil {
		return err
	}

	l.ticks++
	if e.reportEvery > 0 && l.ticks%e.reportEvery == 0 {
		return l.report(ctx)
	}
	return nil
}

func (l *runLoop) report(ctx context.Context) error {
	e := l.engine
	text, err := l.d.OnReportRequested(ctx, l.spec.Session)
	if err != nil {
		return l.check("report", err)
	}
	e.mu.Lock()
	e.lastReport = text
	e.mu.Unlock()
	if !l.connected {
		return nil
	}
	if err := e.Notify(StatusTopicName(l.spec.AppName), message.Textual(text)); err != nil {
		l.logger.Warn().Err(err).Msg("publish report failed")
	}
	return nil
}

package component

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcf-go/mcf/mcfsched"
	"github.com/mcf-go/mcf/trigger"
	"github.com/mcf-go/mcf/value"
	"github.com/mcf-go/mcf/valuestore"
)

// HandlerFunc is a plain trigger handler: work executed unconditionally on
// every worker wake, tracked by name in Component statistics (spec.md
// §4.3 worker main loop, "execute every registered trigger handler").
type HandlerFunc func() error

// PortHandler is satisfied by *ports.PortTriggerHandler: Dispatch resets
// the handler's flag (if active) and invokes its callback. Declared here
// as an interface, not a concrete type, so the worker's dispatch loop
// depends only on Dispatch and accepts any handler implementation.
type PortHandler interface {
	Dispatch()
}

// Hooks are optional lifecycle callbacks invoked at well-defined points in
// the worker main loop (spec.md §4.3: "After startup() hook... On stop
// request, call shutdown()").
type Hooks struct {
	Startup  func() error
	Shutdown func() error
}

// Component is spec.md §4.3's unit of execution: a named owner of a
// worker thread, a trigger, a set of handlers, a scheduling policy and a
// lifecycle state.
type Component struct {
	name   string
	store  *valuestore.Store
	ids    *value.IDGenerator
	logger zerolog.Logger
	hooks  Hooks

	caps mcfsched.Capabilities
	warn mcfsched.Warner

	mu          sync.Mutex
	state       State
	schedParams mcfsched.Params

	handlersMu      sync.Mutex
	triggerHandlers []namedHandler
	portHandlers    []namedPortHandler

	trig *trigger.Trigger

	stopCh       chan struct{}
	runCh        chan struct{}
	rescheduleCh chan mcfsched.Params
	wg           sync.WaitGroup

	stats *statsTable

	configBridge *configBridge
	statsBridge  *statsBridge
	statsWindow  time.Duration
	lastStats    time.Time
}

type namedHandler struct {
	name string
	fn   HandlerFunc
}

type namedPortHandler struct {
	name string
	h    PortHandler
}

// Option configures a Component at construction time.
type Option func(*Component)

// WithLogger sets the component's zerolog.Logger (spec.md §9 DESIGN NOTES:
// "the current component logger" carried as an explicit field, not
// package-level state).
func WithLogger(l zerolog.Logger) Option { return func(c *Component) { c.logger = l } }

// WithHooks sets the Startup/Shutdown lifecycle callbacks.
func WithHooks(h Hooks) Option { return func(c *Component) { c.hooks = h } }

// WithScheduling sets the initial scheduling policy/priority, applied at
// Start (spec.md §5: "before the thread exists it is stored and applied
// at startup").
func WithScheduling(p mcfsched.Params) Option { return func(c *Component) { c.schedParams = p } }

// WithCapabilities injects the mcfsched.Capabilities probe and Warner used
// to apply scheduling and emit the one-time RT-unavailable warning.
// Defaults to mcfsched.NewCapabilities() and the component's own logger.
func WithCapabilities(caps mcfsched.Capabilities, warn mcfsched.Warner) Option {
	return func(c *Component) { c.caps = caps; c.warn = warn }
}

// WithStatsWindow sets the republish interval for PublishStats calls made
// automatically from the worker's dispatch loop. Defaults to one second
// (spec.md §4.4's RecorderStatus cadence is documented explicitly as
// "once per second"; component stats follow the same default).
func WithStatsWindow(d time.Duration) Option { return func(c *Component) { c.statsWindow = d } }

// WithProcessID seeds the component's IDGenerator's upper 32 bits
// (spec.md §3: "the upper 32 bits typically encode the process
// identifier").
func WithProcessID(pid uint32) Option { return func(c *Component) { c.ids = value.NewIDGenerator(pid) } }

// New returns a Component named name, owned by store, in StateInit.
func New(name string, store *valuestore.Store, opts ...Option) *Component {
	c := &Component{
		name:  name,
		store: store,
		ids:   value.NewIDGenerator(0),
		trig:  trigger.New(),
		stats: newStatsTable(),
		statsWindow: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.caps == nil {
		c.caps = mcfsched.NewCapabilities()
	}
	if c.warn == nil {
		c.warn = mcflogWarner{c.logger}
	}
	return c
}

// mcflogWarner adapts a zerolog.Logger to mcfsched.Warner without an
// import cycle on mcflog.Logger (component already depends on zerolog
// directly).
type mcflogWarner struct{ l zerolog.Logger }

func (w mcflogWarner) Warn(msg string, fields map[string]any) {
	ev := w.l.Warn()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// Name returns the component's stable name.
func (c *Component) Name() string { return c.name }

// Store returns the Value Store this component publishes/subscribes
// through.
func (c *Component) Store() *valuestore.Store { return c.store }

// IDs returns the component's IDGenerator, the ports.IDSource every
// SenderPort it owns should be constructed with.
func (c *Component) IDs() *value.IDGenerator { return c.ids }

// Logger returns the component's scoped logger.
func (c *Component) Logger() zerolog.Logger { return c.logger }

// Trigger returns the component's wakeup Trigger. Ports do not subscribe
// to it themselves: the caller subscribes a port's EventFlag or
// ValueQueue (or a PortTriggerHandler's flag) to this Trigger so the
// worker wakes on the relevant publications.
func (c *Component) Trigger() *trigger.Trigger { return c.trig }

// State returns the component's current lifecycle state.
func (c *Component) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Component) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// RegisterTriggerHandler adds fn to the set of handlers executed
// unconditionally on every worker wake, tracked under name in statistics.
func (c *Component) RegisterTriggerHandler(name string, fn HandlerFunc) {
	c.handlersMu.Lock()
	c.triggerHandlers = append(c.triggerHandlers, namedHandler{name: name, fn: fn})
	c.handlersMu.Unlock()
}

// RegisterPortHandler adds h to the set of port trigger handlers polled on
// every worker wake, tracked under name in statistics.
func (c *Component) RegisterPortHandler(name string, h PortHandler) {
	c.handlersMu.Lock()
	c.portHandlers = append(c.portHandlers, namedPortHandler{name: name, h: h})
	c.handlersMu.Unlock()
}

// Configure transitions INIT→INIT, running fn (if non-nil) to register the
// component's ports, then binding the config-in/config-out bridge ports to
// "<config-prefix>/<name>" and the stats-out port to
// "<stats-prefix>/<name>" (spec.md §4.3 "Configuration bridge",
// "Statistics").
func (c *Component) Configure(configPrefix, statsPrefix string, fn func(*Component) error) error {
	if c.State() != StateInit {
		return fmt.Errorf("component %s: Configure requires state INIT, got %s", c.name, c.State())
	}
	if fn != nil {
		if err := fn(c); err != nil {
			return fmt.Errorf("component %s: configure: %w", c.name, err)
		}
	}
	c.configBridge = newConfigBridge(c, configPrefix)
	c.statsBridge = newStatsBridge(c, statsPrefix)
	return nil
}

// Start transitions INIT/STOPPED → STARTING_UP, applies the component's
// scheduling parameters and spawns the worker thread, which runs
// Hooks.Startup and then blocks in STARTED until Run is called. start and
// run are distinct so every component in a graph can reach STARTED before
// any begins its main loop (spec.md §4.3).
func (c *Component) Start() error {
	st := c.State()
	if st != StateInit && st != StateStopped {
		return fmt.Errorf("component %s: Start requires state INIT or STOPPED, got %s", c.name, st)
	}
	c.setState(StateStartingUp)
	c.stopCh = make(chan struct{})
	c.rescheduleCh = make(chan mcfsched.Params, 1)

	runCh := make(chan struct{})
	c.runCh = runCh

	c.wg.Add(1)
	go c.workerMain(runCh)
	return nil
}

// Run transitions STARTED→RUNNING, releasing the worker thread into its
// main dispatch loop.
func (c *Component) Run() error {
	if c.State() != StateStarted {
		return fmt.Errorf("component %s: Run requires state STARTED, got %s", c.name, c.State())
	}
	c.setState(StateRunning)
	close(c.runCh)
	return nil
}

// Stop transitions any live state to SHUTTING_DOWN then WAIT_STOP, wakes
// the worker, runs Hooks.Shutdown, joins the worker thread, and leaves the
// component in STOPPED. Stop is also reachable directly from STARTED
// (never having been Run). Safe to call once per Start.
func (c *Component) Stop() error {
	st := c.State()
	if !st.alive() {
		return nil
	}
	c.setState(StateShuttingDown)
	close(c.stopCh)
	c.trig.Fire()
	c.wg.Wait()
	c.setState(StateStopped)
	return nil
}

// workerMain is the per-component worker thread: it waits for Run, then
// loops "wait on trigger, dispatch handlers" until Stop requests exit
// (spec.md §4.3 "Worker main loop").
func (c *Component) workerMain(runCh chan struct{}) {
	defer c.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if _, err := mcfsched.ApplyWithFallback(c.caps, c.schedParams, c.warn); err != nil {
		c.logger.Error().Err(err).Msg("failed to apply initial scheduling parameters")
	}

	if c.hooks.Startup != nil {
		if err := c.hooks.Startup(); err != nil {
			c.logger.Error().Err(err).Msg("startup hook failed")
		}
	}
	c.setState(StateStarted)

	select {
	case <-runCh:
	case <-c.stopCh:
		c.runShutdown()
		return
	}

	for {
		select {
		case <-c.stopCh:
			c.runShutdown()
			return
		case p := <-c.rescheduleCh:
			if _, err := mcfsched.ApplyWithFallback(c.caps, p, c.warn); err != nil {
				c.logger.Error().Err(err).Msg("failed to apply updated scheduling parameters")
			}
			continue
		default:
		}

		c.trig.Wait()

		select {
		case <-c.stopCh:
			c.runShutdown()
			return
		default:
		}

		c.dispatchOnce()
	}
}

func (c *Component) runShutdown() {
	c.setState(StateWaitStop)
	if c.hooks.Shutdown != nil {
		if err := c.hooks.Shutdown(); err != nil {
			c.logger.Error().Err(err).Msg("shutdown hook failed")
		}
	}
}

// dispatchOnce executes every registered trigger handler, recording
// per-handler statistics, then dispatches every port trigger handler
// whose flag is active (spec.md §4.3 "Worker main loop").
func (c *Component) dispatchOnce() {
	c.handlersMu.Lock()
	triggerHandlers := append([]namedHandler(nil), c.triggerHandlers...)
	portHandlers := append([]namedPortHandler(nil), c.portHandlers...)
	c.handlersMu.Unlock()

	for _, h := range triggerHandlers {
		start := time.Now()
		if err := h.fn(); err != nil {
			c.logger.Error().Err(err).Str("handler", h.name).Msg("trigger handler returned an error")
		}
		c.stats.record(h.name, time.Since(start))
	}
	for _, ph := range portHandlers {
		start := time.Now()
		ph.h.Dispatch()
		c.stats.record(ph.name, time.Since(start))
	}

	if c.statsBridge != nil && time.Since(c.lastStats) >= c.statsWindow {
		c.lastStats = time.Now()
		if err := c.PublishStats(); err != nil {
			c.logger.Error().Err(err).Msg("failed to publish stats")
		}
	}
}

// Snapshot returns a point-in-time view of handler statistics (spec.md
// §4.3 "Statistics").
func (c *Component) Snapshot() map[string]Snapshot { return c.stats.snapshotAll() }

// SetScheduling sets the component's scheduling parameters. Scheduling
// class changes must be applied on the worker's own OS thread (Go
// goroutines are not threads; only the worker, which has pinned itself
// with runtime.LockOSThread, may call SetThreadScheduling for itself), so
// if the worker is already running, SetScheduling hands the new params to
// it over a channel and, when forceNow is true, fires the component's
// Trigger so the worker picks them up without waiting for its next
// natural wake (spec.md §5: "Changing a component's scheduling parameters
// while its thread runs takes effect immediately"). Before Start, the
// parameters are simply stored and applied at startup.
func (c *Component) SetScheduling(p mcfsched.Params, forceNow bool) {
	c.mu.Lock()
	c.schedParams = p
	alive := c.state.alive()
	c.mu.Unlock()
	if !alive {
		return
	}
	select {
	case c.rescheduleCh <- p:
	default:
	}
	if forceNow {
		c.trig.Fire()
	}
}

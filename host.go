package subsys

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for lifecycle spans
const TracerName = "github.com/axondata/go-subsys"

// Result reported by the host when a phase does not follow from a
// subsystem's state
const (
	CodeInvalidTransition = "subsys.transition"
	KeyInvalidTransition  = "subsys.err.invalidTransition"
)

// Host holds a set of subsystems and drives them through their lifecycle:
// configure all in registration order, start all in registration order,
// stop in reverse start order. Lifecycle calls on one host are serialized.
type Host struct {
	// StopTimeout bounds each subsystem's Stop; zero means no deadline
	StopTimeout time.Duration

	nameServer NameServer
	props      Properties
	log        Log
	tracer     trace.Tracer
	registerer prometheus.Registerer
	metrics    *hostMetrics

	// opMu serializes Start and Stop
	opMu sync.Mutex

	// mu protects the fields below
	mu      sync.Mutex
	entries []*entry
	started []*entry
	running bool
}

type entry struct {
	sub   Subsystem
	state State
	last  Result
}

// Info describes a registered subsystem
type Info struct {
	// Name is the subsystem name
	Name string
	// ID is the subsystem ID
	ID uuid.UUID
	// State is the lifecycle state as seen by the host
	State State
	// Last is the Result of the most recent lifecycle call
	Last Result
}

// HostOption configures a Host
type HostOption func(*Host)

// WithLog sets the logger the host itself writes to
func WithLog(l Log) HostOption {
	return func(h *Host) {
		h.log = l
	}
}

// WithStopTimeout sets the per-subsystem stop deadline
func WithStopTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		h.StopTimeout = d
	}
}

// WithRegisterer enables lifecycle metrics on reg
func WithRegisterer(reg prometheus.Registerer) HostOption {
	return func(h *Host) {
		h.registerer = reg
	}
}

// WithTracer sets the tracer used for lifecycle spans
func WithTracer(t trace.Tracer) HostOption {
	return func(h *Host) {
		h.tracer = t
	}
}

// NewHost creates a Host that configures subsystems with ns and props
func NewHost(ns NameServer, props Properties, opts ...HostOption) *Host {
	h := &Host{
		nameServer: ns,
		props:      props.Clone(),
		log:        NopLog(),
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.tracer == nil {
		h.tracer = otel.Tracer(TracerName)
	}
	if h.registerer != nil {
		h.metrics = newHostMetrics(h.registerer)
	}

	return h
}

// Register adds s to the host. Registration order is start order.
func (h *Host) Register(s Subsystem) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHostStarted
	}
	if s.Name() == "" {
		return fmt.Errorf("subsys: subsystem %s has an empty name", s.ID())
	}

	for _, e := range h.entries {
		if e.sub.Name() == s.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateName, s.Name())
		}
		if e.sub.ID() == s.ID() {
			return fmt.Errorf("%w: %s (%s and %s)", ErrDuplicateID, s.ID(), e.sub.Name(), s.Name())
		}
	}

	h.entries = append(h.entries, &entry{sub: s, state: StateUnconfigured})
	h.metrics.setState(s.Name(), StateUnconfigured)
	return nil
}

// Start configures and then starts every registered subsystem. The first
// NOT_OK Result halts the sequence: everything already started (including a
// subsystem whose start failed part way) is stopped in reverse order and an
// *OpError is returned.
func (h *Host) Start(ctx context.Context) error {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHostStarted
	}
	h.running = true
	entries := slices.Clone(h.entries)
	h.mu.Unlock()

	h.log.Info("configuring subsystems", "count", len(entries))
	for _, e := range entries {
		cfg := Config{NameServer: h.nameServer, Properties: h.props.Clone()}
		res := h.invoke(ctx, e, PhaseConfigure, func(ctx context.Context) Result {
			return e.sub.Configure(ctx, cfg)
		})
		if res.IsNotOK() {
			h.log.Error("subsystem configuration failed", "subsystem", e.sub.Name(), "code", res.Code(), "key", res.MessageKey())
			return &OpError{Op: PhaseConfigure, Subsystem: e.sub.Name(), Err: res.Err()}
		}
	}

	h.log.Info("starting subsystems", "count", len(entries))
	for _, e := range entries {
		res := h.invoke(ctx, e, PhaseStart, e.sub.Start)

		h.mu.Lock()
		h.started = append(h.started, e)
		h.mu.Unlock()

		if res.IsNotOK() {
			h.log.Error("subsystem start failed", "subsystem", e.sub.Name(), "code", res.Code(), "key", res.MessageKey())
			if err := h.stopStarted(context.WithoutCancel(ctx)); err != nil {
				h.log.Warn("cleanup after failed start", "error", err)
			}
			return &OpError{Op: PhaseStart, Subsystem: e.sub.Name(), Err: res.Err()}
		}
	}

	h.log.Info("subsystems started", "count", len(entries))
	return nil
}

// Stop stops started subsystems in reverse start order. Every subsystem is
// attempted; failures are collected into a *MultiError. Nothing is retried.
func (h *Host) Stop(ctx context.Context) error {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	return h.stopStarted(ctx)
}

// Run starts the host, blocks until ctx is done and then stops it.
// Stop runs with a context that is not cancelled along with ctx.
func (h *Host) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	h.log.Info("shutting down subsystems")
	return h.Stop(context.WithoutCancel(ctx))
}

func (h *Host) stopStarted(ctx context.Context) error {
	h.mu.Lock()
	started := h.started
	h.started = nil
	h.mu.Unlock()

	merr := &MultiError{}
	for i := len(started) - 1; i >= 0; i-- {
		e := started[i]

		stopCtx, cancel := ctx, context.CancelFunc(func() {})
		if h.StopTimeout > 0 {
			stopCtx, cancel = context.WithTimeout(ctx, h.StopTimeout)
		}
		res := h.invoke(stopCtx, e, PhaseStop, e.sub.Stop)
		cancel()

		if res.IsNotOK() {
			h.log.Error("subsystem stop failed", "subsystem", e.sub.Name(), "code", res.Code(), "key", res.MessageKey())
			merr.Add(&OpError{Op: PhaseStop, Subsystem: e.sub.Name(), Err: res.Err()})
		}
	}
	return merr.Err()
}

// invoke runs one lifecycle call with tracing and metrics and records its outcome
func (h *Host) invoke(ctx context.Context, e *entry, phase Phase, fn func(context.Context) Result) Result {
	name := e.sub.Name()

	h.mu.Lock()
	from := e.state
	h.mu.Unlock()
	if !CanTransition(from, phase) {
		h.log.Warn("lifecycle call out of order", "subsystem", name, "phase", phase, "state", from)
		return NotOK(CodeInvalidTransition, KeyInvalidTransition)
	}

	ctx, span := h.tracer.Start(ctx, "subsys."+phase.String(), trace.WithAttributes(
		attribute.String("subsys.name", name),
		attribute.String("subsys.id", e.sub.ID().String()),
	))
	defer span.End()

	begin := time.Now()
	res := fn(ctx)
	h.metrics.observe(name, phase, res, time.Since(begin))

	span.SetAttributes(attribute.String("subsys.status", res.Status().String()))
	if res.IsNotOK() {
		span.SetAttributes(attribute.String("subsys.code", res.Code()))
		span.SetStatus(codes.Error, res.String())
	}

	h.mu.Lock()
	e.last = res
	switch {
	case phase == PhaseConfigure && res.IsOK():
		e.state = StateConfigured
	case phase == PhaseStart && res.IsOK():
		e.state = StateStarted
	case phase == PhaseStop && e.state == StateStarted:
		e.state = StateStopped
	}
	state := e.state
	h.mu.Unlock()

	h.metrics.setState(name, state)
	return res
}

// Subsystems returns a snapshot of every registered subsystem in registration order
func (h *Host) Subsystems() []Info {
	h.mu.Lock()
	defer h.mu.Unlock()

	infos := make([]Info, 0, len(h.entries))
	for _, e := range h.entries {
		infos = append(infos, Info{
			Name:  e.sub.Name(),
			ID:    e.sub.ID(),
			State: e.state,
			Last:  e.last,
		})
	}
	return infos
}

// State returns the host's view of the named subsystem's state
func (h *Host) State(name string) (State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.entries {
		if e.sub.Name() == name {
			return e.state, true
		}
	}
	return StateUnconfigured, false
}

// Healthy returns nil when every registered subsystem is started
func (h *Host) Healthy() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.entries {
		if e.state != StateStarted {
			return fmt.Errorf("%w: %s is %s", ErrNotStarted, e.sub.Name(), e.state)
		}
	}
	return nil
}

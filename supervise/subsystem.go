package supervise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	subsys "github.com/axondata/go-subsys"
)

// Identity of the supervise subsystem
const (
	ID   = "3c2f6f0e-9a51-4d8e-b7a4-5e0b9d1c7a21"
	Name = "subsys.supervise"
)

// PropStopTimeout bounds Stop; zero or absent waits until the context ends
const PropStopTimeout = "supervise.stop.timeout"

// Result codes and message keys
const (
	CodeConfigure         = "supervise.configure"
	CodeConfigLoad        = "supervise.configload"
	CodeStart             = "supervise.start"
	CodeFrameworkNotFound = "supervise.frameworknotfound"
	CodeStop              = "supervise.stop"

	KeyConfigure         = "supervise.err.onConfig"
	KeyConfigLoad        = "supervise.err.onConfigLoad"
	KeyConfigInvalid     = "supervise.err.configInvalid"
	KeyNotConfigured     = "supervise.err.notConfigured"
	KeyFrameworkNotFound = "supervise.err.frameworkNotFound"
	KeyStart             = "supervise.err.onStart"
	KeyStop              = "supervise.err.onStop"
)

var identity = subsys.MustIdentity(ID, Name)

// Subsystem runs a supervision tree inside a subsys host. It resolves its
// configuration from the bundled defaults overlaid by host properties,
// starts the first framework its Discovery offers and installs the units
// the properties declare.
//
// Lifecycle calls must be serialized by the caller.
type Subsystem struct {
	discovery    Discovery
	resources    fs.FS
	resourceName string
	diag         io.Writer
	stopTimeout  time.Duration
	attrs        subsys.Attributes

	log        subsys.Log
	configured bool
	input      subsys.Properties
	props      subsys.Properties
	framework  Framework
}

// SubsystemOption configures a Subsystem
type SubsystemOption func(*Subsystem)

// WithDiscovery replaces DefaultDiscovery
func WithDiscovery(d Discovery) SubsystemOption {
	return func(s *Subsystem) {
		s.discovery = d
	}
}

// WithResources replaces the bundled default configuration resource
func WithResources(fsys fs.FS, name string) SubsystemOption {
	return func(s *Subsystem) {
		s.resources = fsys
		s.resourceName = name
	}
}

// WithDiagnostics sets where failure detail is written; os.Stderr by default
func WithDiagnostics(w io.Writer) SubsystemOption {
	return func(s *Subsystem) {
		s.diag = w
	}
}

// WithStopTimeout sets the stop deadline used when the properties set none
func WithStopTimeout(d time.Duration) SubsystemOption {
	return func(s *Subsystem) {
		s.stopTimeout = d
	}
}

// New creates an unconfigured supervise subsystem
func New(opts ...SubsystemOption) *Subsystem {
	s := &Subsystem{
		discovery:    DefaultDiscovery(),
		resources:    defaultResources,
		resourceName: DefaultResource,
		diag:         os.Stderr,
		log:          subsys.NopLog(),
		attrs: subsys.NewAttributes(identity, map[string]any{
			"framework": "supervision-tree",
		}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns "subsys.supervise"
func (s *Subsystem) Name() string {
	return identity.Name
}

// ID returns the subsystem UUID
func (s *Subsystem) ID() uuid.UUID {
	return identity.ID
}

// Attributes returns the UUID and NAME attributes plus the framework kind
func (s *Subsystem) Attributes() subsys.Attributes {
	return s.attrs
}

// Configured reports whether Configure succeeded
func (s *Subsystem) Configured() bool {
	return s.configured
}

// Properties returns a copy of the resolved configuration, nil before Configure
func (s *Subsystem) Properties() subsys.Properties {
	if s.props == nil {
		return nil
	}
	return s.props.Clone()
}

// Framework returns the live framework handle, nil when none is held
func (s *Subsystem) Framework() Framework {
	return s.framework
}

// Configure looks up the LogServer and resolves the configuration.
// It panics with a *subsys.PreconditionError when cfg has no NameServer.
// On failure nothing is retained.
func (s *Subsystem) Configure(_ context.Context, cfg subsys.Config) subsys.Result {
	cfg.MustValidate(identity.Name)

	logs, err := subsys.Lookup[subsys.LogServer](cfg.NameServer, subsys.LogServerName)
	if err != nil {
		s.diagnose(subsys.PhaseConfigure, err)
		return subsys.NotOK(CodeConfigure, KeyConfigure)
	}
	log := logs.Log(identity)

	input := cfg.Properties.Clone()
	props, err := subsys.ResolveProperties(s.resources, s.resourceName, input)
	if err != nil {
		log.Error("loading default configuration", "resource", s.resourceName, "error", err)
		s.diagnose(subsys.PhaseConfigure, err)
		return subsys.NotOK(CodeConfigLoad, KeyConfigLoad)
	}

	stopTimeout, err := props.GetDuration(PropStopTimeout, s.stopTimeout)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		s.diagnose(subsys.PhaseConfigure, err)
		return subsys.NotOK(CodeConfigLoad, KeyConfigInvalid)
	}

	s.log = log
	s.input = input
	s.props = props
	s.stopTimeout = stopTimeout
	s.configured = true

	log.Info("configuration resolved", "properties", map[string]string(props), "overrides", input.Keys())
	return subsys.OK()
}

// Start creates a framework from the first discovered factory, runs
// auto-processing and starts it. A framework that fails part way is kept so
// Stop can clean it up.
func (s *Subsystem) Start(ctx context.Context) (res subsys.Result) {
	if !s.configured {
		s.diagnose(subsys.PhaseStart, ErrNotConfigured)
		return subsys.NotOK(CodeStart, KeyNotConfigured)
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("framework start panicked", "panic", r)
			s.diagnosePanic(subsys.PhaseStart, r)
			res = subsys.NotOK(CodeStart, KeyStart)
		}
	}()

	if s.framework != nil {
		return s.startFailed("start", fmt.Errorf("%w: already started", ErrFrameworkState))
	}

	factories := s.discovery.Factories()
	if len(factories) == 0 {
		s.log.Error("no framework factory available")
		s.diagnose(subsys.PhaseStart, ErrFrameworkNotFound)
		return subsys.NotOK(CodeFrameworkNotFound, KeyFrameworkNotFound)
	}

	factory := factories[0]
	s.log.Info("starting framework", "factory", factory.Name(), "candidates", len(factories))

	fw, err := factory.NewFramework(s.props)
	if err != nil {
		return s.startFailed("create", err)
	}
	s.framework = fw

	if err := fw.Init(ctx); err != nil {
		return s.startFailed("init", err)
	}
	if err := AutoProcess(s.props, fw.Context()); err != nil {
		return s.startFailed("auto-process", err)
	}
	if err := fw.Start(ctx); err != nil {
		return s.startFailed("start", err)
	}

	s.log.Info("framework started", "factory", factory.Name(), "units", len(fw.Context().Units()))
	return subsys.OK()
}

func (s *Subsystem) startFailed(stage string, err error) subsys.Result {
	s.log.Error("framework start failed", "stage", stage, "error", err)
	s.diagnose(subsys.PhaseStart, fmt.Errorf("%s: %w", stage, err))
	return subsys.NotOK(CodeStart, KeyStart)
}

// Stop stops the framework and waits for it to finish. Without a framework
// it returns OK and does nothing. The handle is released even on failure.
func (s *Subsystem) Stop(ctx context.Context) (res subsys.Result) {
	fw := s.framework
	if fw == nil {
		return subsys.OK()
	}
	s.framework = nil

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("framework stop panicked", "panic", r)
			s.diagnosePanic(subsys.PhaseStop, r)
			res = subsys.NotOK(CodeStop, KeyStop)
		}
	}()

	if s.stopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.stopTimeout)
		defer cancel()
	}

	s.log.Info("stopping framework", "state", fw.State())

	merr := &subsys.MultiError{}
	merr.Add(fw.Stop(ctx))
	merr.Add(fw.WaitForStop(ctx))
	if err := merr.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.log.Error("framework stop interrupted", "error", err)
		} else {
			s.log.Error("framework stop failed", "error", err)
		}
		s.diagnose(subsys.PhaseStop, err)
		return subsys.NotOK(CodeStop, KeyStop)
	}

	s.log.Info("framework stopped")
	return subsys.OK()
}

// diagnose writes err and every error it wraps to the diagnostics writer
func (s *Subsystem) diagnose(phase subsys.Phase, err error) {
	if s.diag == nil {
		return
	}
	_, _ = fmt.Fprintf(s.diag, "%s %s: %v\n", identity.Name, phase, err)
	for _, cause := range causes(err) {
		_, _ = fmt.Fprintf(s.diag, "\tcaused by: %T: %v\n", cause, cause)
	}
}

func (s *Subsystem) diagnosePanic(phase subsys.Phase, r any) {
	if s.diag == nil {
		return
	}
	_, _ = fmt.Fprintf(s.diag, "%s %s: panic: %v\n%s", identity.Name, phase, r, debug.Stack())
}

// causes flattens the wrapped errors below err, depth first
func causes(err error) []error {
	var out []error
	var walk func(error)
	walk = func(e error) {
		switch x := e.(type) {
		case interface{ Unwrap() error }:
			if inner := x.Unwrap(); inner != nil {
				out = append(out, inner)
				walk(inner)
			}
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				out = append(out, inner)
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}

// Ensure Subsystem implements subsys.Subsystem
var _ subsys.Subsystem = (*Subsystem)(nil)

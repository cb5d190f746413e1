package subsys

import (
	"context"

	"github.com/google/uuid"
)

// Subsystem is a pluggable unit hosted in the process. Implementations keep
// a constant identity and move through configure, start and stop exactly
// once each, driven by a single goroutine of the host.
//
// Lifecycle methods never panic or return errors for ordinary failures; they
// report through Result. The one exception is Configure, which panics with a
// *PreconditionError when handed a Config without a NameServer.
type Subsystem interface {
	// Name is stable, non-empty and unique within a host
	Name() string
	// ID is stable and unique
	ID() uuid.UUID
	// Attributes is available before Configure and never changes
	Attributes() Attributes

	// Configure resolves dependencies through cfg.NameServer and merges
	// configuration layers. It must be called once, before Start.
	Configure(ctx context.Context, cfg Config) Result
	// Start launches whatever the subsystem drives
	Start(ctx context.Context) Result
	// Stop releases what Start acquired. Stop is safe to call in any state
	// and returns OK without side effects when nothing was started.
	Stop(ctx context.Context) Result
}

// State is the lifecycle position of a subsystem
type State int

const (
	// StateUnconfigured is the state of a newly constructed subsystem
	StateUnconfigured State = iota
	// StateConfigured follows a successful Configure
	StateConfigured
	// StateStarted follows a successful Start
	StateStarted
	// StateStopped follows Stop of a started subsystem
	StateStopped
)

// State string constants
const (
	stateUnconfiguredStr = "unconfigured"
	stateConfiguredStr   = "configured"
	stateStartedStr      = "started"
	stateStoppedStr      = "stopped"
	stateUnknownStr      = "unknown"
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return stateUnconfiguredStr
	case StateConfigured:
		return stateConfiguredStr
	case StateStarted:
		return stateStartedStr
	case StateStopped:
		return stateStoppedStr
	default:
		return stateUnknownStr
	}
}

// CanTransition reports whether phase may run in state from.
// Stop is accepted everywhere and is a no-op before a successful Start.
func CanTransition(from State, phase Phase) bool {
	switch phase {
	case PhaseConfigure:
		return from == StateUnconfigured
	case PhaseStart:
		return from == StateConfigured
	case PhaseStop:
		return true
	default:
		return false
	}
}

// Phase identifies a lifecycle operation
type Phase int

const (
	// PhaseUnknown represents an unknown phase
	PhaseUnknown Phase = iota
	// PhaseConfigure is the configure operation
	PhaseConfigure
	// PhaseStart is the start operation
	PhaseStart
	// PhaseStop is the stop operation
	PhaseStop
)

// Phase string constants
const (
	phaseUnknownStr   = "unknown"
	phaseConfigureStr = "configure"
	phaseStartStr     = "start"
	phaseStopStr      = "stop"
)

// String returns the string representation of a Phase
func (p Phase) String() string {
	switch p {
	case PhaseConfigure:
		return phaseConfigureStr
	case PhaseStart:
		return phaseStartStr
	case PhaseStop:
		return phaseStopStr
	default:
		return phaseUnknownStr
	}
}

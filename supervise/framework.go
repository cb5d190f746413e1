package supervise

import (
	"context"
	"os/exec"

	subsys "github.com/axondata/go-subsys"
)

// FrameworkState is the lifecycle position of a Framework
type FrameworkState int

const (
	// FrameworkInstalled is the state of a newly created framework
	FrameworkInstalled FrameworkState = iota
	// FrameworkResolved follows Init
	FrameworkResolved
	// FrameworkActive follows Start
	FrameworkActive
	// FrameworkStopping is entered by Stop
	FrameworkStopping
	// FrameworkStopped follows WaitForStop
	FrameworkStopped
)

var frameworkStateNames = [...]string{
	FrameworkInstalled: "installed",
	FrameworkResolved:  "resolved",
	FrameworkActive:    "active",
	FrameworkStopping:  "stopping",
	FrameworkStopped:   "stopped",
}

// String returns the string representation of the state
func (s FrameworkState) String() string {
	if s < 0 || int(s) >= len(frameworkStateNames) {
		return "unknown"
	}
	return frameworkStateNames[s]
}

// Framework is the engine a supervise subsystem drives. Calls arrive in the
// order Init, Start, Stop, WaitForStop, with auto-processing between Init
// and Start.
type Framework interface {
	// Init prepares the framework; units may be installed afterwards
	Init(ctx context.Context) error
	// Context gives access to unit installation
	Context() FrameworkContext
	// Start brings the framework and every start-marked unit up
	Start(ctx context.Context) error
	// Stop begins shutdown and returns without waiting for it
	Stop(ctx context.Context) error
	// WaitForStop blocks until shutdown completes or ctx ends
	WaitForStop(ctx context.Context) error
	// State reports the lifecycle position
	State() FrameworkState
}

// FrameworkContext installs units into a framework
type FrameworkContext interface {
	// Install writes unit into the framework
	Install(unit Unit) error
	// MarkStart schedules an installed unit to be started at level.
	// Lower levels start first and stop last.
	MarkStart(name string, level int) error
	// Units lists installed unit names in installation order
	Units() []string
}

// FrameworkFactory creates frameworks
type FrameworkFactory interface {
	// Name identifies the factory in logs
	Name() string
	// NewFramework creates a framework configured by props
	NewFramework(props subsys.Properties) (Framework, error)
}

// Discovery enumerates the framework factories available to the process
type Discovery interface {
	// Factories returns the available factories in preference order
	Factories() []FrameworkFactory
}

// Factories is a fixed Discovery
type Factories []FrameworkFactory

// Factories returns f
func (f Factories) Factories() []FrameworkFactory {
	return f
}

// DiscoveryFunc adapts a function to Discovery
type DiscoveryFunc func() []FrameworkFactory

// Factories calls fn
func (fn DiscoveryFunc) Factories() []FrameworkFactory {
	return fn()
}

// LookPath is the binary lookup used by DetectDiscovery
var LookPath = exec.LookPath

// DetectDiscovery offers one tree factory per backend whose scanner binary
// is installed, in the order given
func DetectDiscovery(backends ...Backend) Discovery {
	return DiscoveryFunc(func() []FrameworkFactory {
		var found []FrameworkFactory
		for _, b := range backends {
			if _, err := LookPath(b.ScannerPath()); err == nil {
				found = append(found, NewTreeFactory(b))
			}
		}
		return found
	})
}

// DefaultDiscovery prefers runit and falls back to daemontools
func DefaultDiscovery() Discovery {
	return DetectDiscovery(BackendRunit, BackendDaemontools)
}

package supervise

import (
	"fmt"
	"strings"
	"syscall"
)

// Backend identifies the supervision suite that owns a tree
type Backend int

const (
	// BackendUnknown represents an unknown supervision suite
	BackendUnknown Backend = iota
	// BackendRunit is runit: runsvdir scanning runsv supervisors
	BackendRunit
	// BackendDaemontools is daemontools: svscan scanning supervise processes
	BackendDaemontools
)

// Backend string constants
const (
	backendUnknownStr     = "unknown"
	backendRunitStr       = "runit"
	backendDaemontoolsStr = "daemontools"
)

// String returns the string representation of a Backend
func (b Backend) String() string {
	switch b {
	case BackendRunit:
		return backendRunitStr
	case BackendDaemontools:
		return backendDaemontoolsStr
	default:
		return backendUnknownStr
	}
}

// ParseBackend returns the Backend named s
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case backendRunitStr:
		return BackendRunit, nil
	case backendDaemontoolsStr:
		return BackendDaemontools, nil
	default:
		return BackendUnknown, fmt.Errorf("supervise: unknown backend %q", s)
	}
}

// ScannerPath is the default binary that supervises every unit of a tree
func (b Backend) ScannerPath() string {
	switch b {
	case BackendRunit:
		return "runsvdir"
	case BackendDaemontools:
		return "svscan"
	default:
		return ""
	}
}

// ScannerStopSignal makes the scanner take its supervisors down with it.
// runsvdir forwards SIGHUP as SIGTERM to every runsv before exiting.
func (b Backend) ScannerStopSignal() syscall.Signal {
	if b == BackendRunit {
		return syscall.SIGHUP
	}
	return syscall.SIGTERM
}

// LoggerPath is the default log processor run by a unit's log/run script
func (b Backend) LoggerPath() string {
	switch b {
	case BackendRunit:
		return "svlogd"
	case BackendDaemontools:
		return "multilog"
	default:
		return ""
	}
}

// EnvDirCommand is the command prefix that loads a unit's env/ directory
func (b Backend) EnvDirCommand() []string {
	switch b {
	case BackendRunit:
		return []string{"chpst", "-e", "./env"}
	case BackendDaemontools:
		return []string{"envdir", "./env"}
	default:
		return nil
	}
}

// LoggerArgs are the logger flags written into log/run ahead of the log directory
func (b Backend) LoggerArgs() []string {
	switch b {
	case BackendRunit:
		return []string{"-tt"}
	case BackendDaemontools:
		return []string{"t"}
	default:
		return nil
	}
}

// StatusSize is the exact size of the backend's binary status record
func (b Backend) StatusSize() int {
	switch b {
	case BackendRunit:
		return RunitStatusSize
	case BackendDaemontools:
		return DaemontoolsStatusSize
	default:
		return 0
	}
}

// Supports reports whether the backend's supervise process understands op
func (b Backend) Supports(op Operation) bool {
	if b == BackendUnknown || op.Byte() == 0 {
		return false
	}
	if b == BackendDaemontools {
		// daemontools supervise has no 'o' or 'q' command
		return op != OpOnce && op != OpQuit
	}
	return true
}

package supervise

import (
	"time"
)

// Supervise directory and file names shared by runit and daemontools
const (
	// SuperviseDir is the subdirectory holding a unit's control and status files
	SuperviseDir = "supervise"

	// ControlFile is the control socket/FIFO file name
	ControlFile = "control"

	// StatusFile is the binary status file name
	StatusFile = "status"
)

// Client defaults
const (
	// DefaultWatchDebounce is the default debounce time for status file watching
	DefaultWatchDebounce = 25 * time.Millisecond

	// DefaultDialTimeout is the default timeout for control socket connections
	DefaultDialTimeout = 2 * time.Second

	// DefaultWriteTimeout is the default timeout for control write operations
	DefaultWriteTimeout = 1 * time.Second

	// DefaultBackoffMin is the minimum backoff duration for retries
	DefaultBackoffMin = 10 * time.Millisecond

	// DefaultBackoffMax is the maximum backoff duration for retries
	DefaultBackoffMax = 1 * time.Second

	// DefaultMaxAttempts is the default maximum number of control attempts
	DefaultMaxAttempts = 10
)

// File modes used when writing unit directories
const (
	DirMode  = 0o755
	FileMode = 0o644
	ExecMode = 0o755
)

// Operation is a control command understood by a supervise process
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpUp starts the service (want up)
	OpUp
	// OpOnce starts the service once
	OpOnce
	// OpDown stops the service (want down)
	OpDown
	// OpTerm sends SIGTERM to the service
	OpTerm
	// OpInterrupt sends SIGINT to the service
	OpInterrupt
	// OpHUP sends SIGHUP to the service
	OpHUP
	// OpAlarm sends SIGALRM to the service
	OpAlarm
	// OpQuit sends SIGQUIT to the service
	OpQuit
	// OpKill sends SIGKILL to the service
	OpKill
	// OpPause sends SIGSTOP to the service
	OpPause
	// OpCont sends SIGCONT to the service
	OpCont
	// OpExit terminates the supervise process
	OpExit
	// OpStatus is a status read
	OpStatus
	// OpInstall writes a unit directory
	OpInstall
)

var operationNames = [...]string{
	OpUnknown:   "unknown",
	OpUp:        "up",
	OpOnce:      "once",
	OpDown:      "down",
	OpTerm:      "term",
	OpInterrupt: "interrupt",
	OpHUP:       "hup",
	OpAlarm:     "alarm",
	OpQuit:      "quit",
	OpKill:      "kill",
	OpPause:     "pause",
	OpCont:      "cont",
	OpExit:      "exit",
	OpStatus:    "status",
	OpInstall:   "install",
}

// String returns the string representation of an Operation
func (op Operation) String() string {
	if op < 0 || int(op) >= len(operationNames) {
		return operationNames[OpUnknown]
	}
	return operationNames[op]
}

// Byte returns the control byte for this operation, 0 if it has none
func (op Operation) Byte() byte {
	switch op {
	case OpUp:
		return 'u'
	case OpOnce:
		return 'o'
	case OpDown:
		return 'd'
	case OpTerm:
		return 't'
	case OpInterrupt:
		return 'i'
	case OpHUP:
		return 'h'
	case OpAlarm:
		return 'a'
	case OpQuit:
		return 'q'
	case OpKill:
		return 'k'
	case OpPause:
		return 'p'
	case OpCont:
		return 'c'
	case OpExit:
		return 'x'
	default:
		return 0
	}
}

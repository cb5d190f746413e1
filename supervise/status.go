package supervise

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Runit status record layout (20 bytes)
const (
	RunitStatusSize = 20

	RunitTAI64Start = 0 // TAI64 seconds (8 bytes, big-endian)
	RunitTAI64End   = 8
	RunitNanoStart  = 8 // Nanoseconds (4 bytes, big-endian)
	RunitNanoEnd    = 12
	RunitPIDStart   = 12 // PID (4 bytes, little-endian)
	RunitPIDEnd     = 16
	RunitPausedFlag = 16
	RunitWantFlag   = 17 // 'u' or 'd'
	RunitTermFlag   = 18 // SIGTERM already sent
	RunitRunFlag    = 19 // 0 no process, 1 run, 2 finish
)

// Daemontools status record layout (18 bytes)
const (
	DaemontoolsStatusSize = 18

	DaemontoolsTAI64Start = 0
	DaemontoolsTAI64End   = 8
	DaemontoolsNanoStart  = 8
	DaemontoolsNanoEnd    = 12
	DaemontoolsPIDStart   = 12 // PID (4 bytes, little-endian)
	DaemontoolsPIDEnd     = 16
	DaemontoolsPausedFlag = 16
	DaemontoolsWantFlag   = 17
)

// TAI64Offset is the TAI64 label of the Unix epoch: 2^62 plus the 10 seconds
// TAI ran ahead of UTC in 1970
const TAI64Offset = uint64(1<<62) + 10

// maxUnixSec rejects timestamps past the year 9999
const maxUnixSec = 253402300800

// State is the decoded state of a supervised unit
type State int

const (
	// StateUnknown indicates the state could not be determined
	StateUnknown State = iota
	// StateDown indicates no process and want down
	StateDown
	// StateStarting indicates want up but no process yet
	StateStarting
	// StateRunning indicates a process and want up
	StateRunning
	// StatePaused indicates the process is stopped with SIGSTOP
	StatePaused
	// StateStopping indicates a process that is wanted down
	StateStopping
	// StateFinishing indicates the finish script is executing
	StateFinishing
)

// State string constants
const (
	stateUnknownStr   = "unknown"
	stateDownStr      = "down"
	stateStartingStr  = "starting"
	stateRunningStr   = "running"
	statePausedStr    = "paused"
	stateStoppingStr  = "stopping"
	stateFinishingStr = "finishing"
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateDown:
		return stateDownStr
	case StateStarting:
		return stateStartingStr
	case StateRunning:
		return stateRunningStr
	case StatePaused:
		return statePausedStr
	case StateStopping:
		return stateStoppingStr
	case StateFinishing:
		return stateFinishingStr
	default:
		return stateUnknownStr
	}
}

// Flags holds the want flags of a status record
type Flags struct {
	// WantUp indicates the supervisor wants the unit up
	WantUp bool
	// WantDown indicates the supervisor wants the unit down
	WantDown bool
}

// Status is a decoded status record
type Status struct {
	// State is the inferred unit state
	State State
	// PID is the process ID of the unit (0 if not running)
	PID int
	// Since is when the unit entered its current state
	Since time.Time
	// Uptime is time.Since(Since) at the moment of decoding
	Uptime time.Duration
	// Flags contains the want flags
	Flags Flags
	// Raw is the record as read from disk
	Raw []byte
}

// DecodeStatus decodes a status record written by b's supervise process
func DecodeStatus(b Backend, data []byte) (Status, error) {
	switch b {
	case BackendRunit:
		return decodeRunit(data)
	case BackendDaemontools:
		return decodeDaemontools(data)
	default:
		return Status{}, fmt.Errorf("%w: unknown backend %v", ErrDecode, b)
	}
}

func decodeRunit(data []byte) (Status, error) {
	if len(data) != RunitStatusSize {
		return Status{}, fmt.Errorf("%w: runit record is %d bytes, expected %d", ErrDecode, len(data), RunitStatusSize)
	}

	st := Status{Raw: append([]byte(nil), data...)}
	decodeTAI64N(&st, data[RunitTAI64Start:RunitNanoEnd])
	st.PID = int(binary.LittleEndian.Uint32(data[RunitPIDStart:RunitPIDEnd]))

	want := data[RunitWantFlag]
	st.Flags.WantUp = want == 'u'
	st.Flags.WantDown = want == 'd'

	hasProcess := data[RunitRunFlag] != 0
	paused := data[RunitPausedFlag] != 0
	finishing := data[RunitRunFlag] == 2

	switch {
	case !hasProcess && want == 'd':
		st.State = StateDown
	case !hasProcess && want == 'u':
		st.State = StateStarting
	case finishing:
		st.State = StateFinishing
	case hasProcess && paused:
		st.State = StatePaused
	case hasProcess && want == 'u':
		st.State = StateRunning
	case hasProcess && want == 'd':
		st.State = StateStopping
	default:
		st.State = StateUnknown
	}

	return st, nil
}

func decodeDaemontools(data []byte) (Status, error) {
	if len(data) != DaemontoolsStatusSize {
		return Status{}, fmt.Errorf("%w: daemontools record is %d bytes, expected %d", ErrDecode, len(data), DaemontoolsStatusSize)
	}

	st := Status{Raw: append([]byte(nil), data...)}
	decodeTAI64N(&st, data[DaemontoolsTAI64Start:DaemontoolsNanoEnd])
	st.PID = int(binary.LittleEndian.Uint32(data[DaemontoolsPIDStart:DaemontoolsPIDEnd]))

	want := data[DaemontoolsWantFlag]
	st.Flags.WantUp = want == 'u'
	st.Flags.WantDown = want == 'd'

	switch {
	case st.PID > 0 && data[DaemontoolsPausedFlag] != 0:
		st.State = StatePaused
	case st.PID > 0 && st.Flags.WantUp:
		st.State = StateRunning
	case st.PID > 0:
		st.State = StateStopping
	case st.Flags.WantUp:
		st.State = StateStarting
	default:
		st.State = StateDown
	}

	return st, nil
}

// decodeTAI64N fills Since and Uptime from a 12-byte TAI64N label
func decodeTAI64N(st *Status, label []byte) {
	sec := binary.BigEndian.Uint64(label[0:8])
	nano := binary.BigEndian.Uint32(label[8:12])
	if sec <= TAI64Offset {
		return
	}

	unixSec := int64(sec - TAI64Offset)
	if unixSec <= 0 || unixSec >= maxUnixSec {
		return
	}

	st.Since = time.Unix(unixSec, int64(nano))
	if uptime := time.Since(st.Since); uptime > 0 {
		st.Uptime = uptime
	}
}

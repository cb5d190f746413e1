package supervise

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/renameio/v2"
)

// mockSupervisor fakes the supervise directory of one unit: a regular file
// stands in for the control FIFO and the status record is written by hand
type mockSupervisor struct {
	dir     string
	backend Backend
}

func newMockSupervisor(t testing.TB, serviceDir string, backend Backend) *mockSupervisor {
	t.Helper()

	m := &mockSupervisor{dir: serviceDir, backend: backend}
	if err := os.MkdirAll(filepath.Join(serviceDir, SuperviseDir), DirMode); err != nil {
		t.Fatalf("creating supervise dir: %v", err)
	}
	if err := os.WriteFile(m.controlPath(), nil, FileMode); err != nil {
		t.Fatalf("creating control file: %v", err)
	}
	m.setStatus(t, 0, 'd')
	return m
}

func (m *mockSupervisor) controlPath() string {
	return filepath.Join(m.dir, SuperviseDir, ControlFile)
}

// setStatus writes a record for pid with want flag 'u' or 'd'
func (m *mockSupervisor) setStatus(t testing.TB, pid int, want byte) {
	t.Helper()

	data := statusRecord(m.backend, time.Now(), pid, want)
	if err := renameio.WriteFile(filepath.Join(m.dir, SuperviseDir, StatusFile), data, FileMode); err != nil {
		t.Fatalf("writing status: %v", err)
	}
}

// control returns what clients wrote to the control file
func (m *mockSupervisor) control(t testing.TB) string {
	t.Helper()

	data, err := os.ReadFile(m.controlPath())
	if err != nil {
		t.Fatalf("reading control: %v", err)
	}
	return string(data)
}

func statusRecord(b Backend, since time.Time, pid int, want byte) []byte {
	data := make([]byte, b.StatusSize())
	binary.BigEndian.PutUint64(data[0:8], uint64(since.Unix())+TAI64Offset)
	binary.BigEndian.PutUint32(data[8:12], uint32(since.Nanosecond()))
	binary.LittleEndian.PutUint32(data[12:16], uint32(pid))

	switch b {
	case BackendRunit:
		data[RunitWantFlag] = want
		if pid > 0 {
			data[RunitRunFlag] = 1
		}
	case BackendDaemontools:
		data[DaemontoolsWantFlag] = want
	}
	return data
}

package supervise

import (
	"syscall"
	"testing"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"runit", BackendRunit, false},
		{" Daemontools ", BackendDaemontools, false},
		{"s6", BackendUnknown, true},
		{"", BackendUnknown, true},
	}

	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBackend(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseBackend(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBackendTooling(t *testing.T) {
	if got := BackendRunit.ScannerPath(); got != "runsvdir" {
		t.Errorf("runit scanner = %q", got)
	}
	if got := BackendDaemontools.ScannerPath(); got != "svscan" {
		t.Errorf("daemontools scanner = %q", got)
	}
	if got := BackendRunit.ScannerStopSignal(); got != syscall.SIGHUP {
		t.Errorf("runit stop signal = %v", got)
	}
	if got := BackendDaemontools.ScannerStopSignal(); got != syscall.SIGTERM {
		t.Errorf("daemontools stop signal = %v", got)
	}
	if got := BackendUnknown.StatusSize(); got != 0 {
		t.Errorf("unknown status size = %d", got)
	}
}

func TestBackendSupports(t *testing.T) {
	tests := []struct {
		backend Backend
		op      Operation
		want    bool
	}{
		{BackendRunit, OpUp, true},
		{BackendRunit, OpOnce, true},
		{BackendRunit, OpQuit, true},
		{BackendRunit, OpExit, true},
		{BackendRunit, OpStatus, false},
		{BackendRunit, OpInstall, false},
		{BackendDaemontools, OpDown, true},
		{BackendDaemontools, OpOnce, false},
		{BackendDaemontools, OpQuit, false},
		{BackendUnknown, OpUp, false},
	}

	for _, tt := range tests {
		if got := tt.backend.Supports(tt.op); got != tt.want {
			t.Errorf("%v.Supports(%v) = %v, want %v", tt.backend, tt.op, got, tt.want)
		}
	}
}

func TestOperationString(t *testing.T) {
	if got := OpCont.String(); got != "cont" {
		t.Errorf("got %q", got)
	}
	if got := Operation(-1).String(); got != "unknown" {
		t.Errorf("got %q", got)
	}
	if got := OpCont.Byte(); got != 'c' {
		t.Errorf("got %q", got)
	}
}

package supervise

import (
	"errors"
	"os/exec"
	"testing"
)

func TestDetectDiscovery(t *testing.T) {
	orig := LookPath
	defer func() { LookPath = orig }()

	installed := map[string]bool{"svscan": true}
	LookPath = func(file string) (string, error) {
		if installed[file] {
			return "/usr/bin/" + file, nil
		}
		return "", exec.ErrNotFound
	}

	factories := DefaultDiscovery().Factories()
	if len(factories) != 1 || factories[0].Name() != "tree/daemontools" {
		t.Fatalf("factories = %v, want only tree/daemontools", factories)
	}

	installed["runsvdir"] = true
	factories = DefaultDiscovery().Factories()
	if len(factories) != 2 || factories[0].Name() != "tree/runit" {
		t.Fatalf("factories = %v, want runit first", factories)
	}

	installed = map[string]bool{}
	if got := DetectDiscovery(BackendRunit).Factories(); len(got) != 0 {
		t.Errorf("factories = %v, want none", got)
	}
}

func TestFactoriesDiscovery(t *testing.T) {
	d := Factories{NewTreeFactory(BackendRunit)}
	if got := d.Factories(); len(got) != 1 {
		t.Errorf("got %d factories", len(got))
	}
}

func TestFrameworkStateString(t *testing.T) {
	if got := FrameworkStopping.String(); got != "stopping" {
		t.Errorf("got %q", got)
	}
	if got := FrameworkState(42).String(); got != "unknown" {
		t.Errorf("got %q", got)
	}
}

func TestOpErrorUnwrap(t *testing.T) {
	err := &OpError{Op: OpDown, Path: "/srv/web/supervise/control", Err: ErrControlNotReady}
	if !errors.Is(err, ErrControlNotReady) {
		t.Error("OpError does not unwrap")
	}
	want := `supervise down "/srv/web/supervise/control": supervise: control not accepting connections`
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

package subsys

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogServerTagsSubsystem(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	server := NewLogServer(zap.New(core))

	id := MustIdentity("0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0", "subsys.test")
	server.Log(id).Info("configured", "port", 8080)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	e := entries[0]
	if e.LoggerName != "subsys.test" {
		t.Errorf("logger name = %q, want %q", e.LoggerName, "subsys.test")
	}
	fields := e.ContextMap()
	if fields["subsystem_id"] != id.ID.String() {
		t.Errorf("subsystem_id = %v, want %v", fields["subsystem_id"], id.ID)
	}
	if fields["port"] != int64(8080) {
		t.Errorf("port = %v (%T), want 8080", fields["port"], fields["port"])
	}
}

func TestLogServerNamed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	server := NewLogServer(zap.New(core))

	l := server.Named("host")
	l.Info("dropped")
	l.Error("kept", "error", "boom")

	if logs.Len() != 1 {
		t.Fatalf("got %d entries, want 1", logs.Len())
	}
	if got := logs.All()[0].LoggerName; got != "host" {
		t.Errorf("logger name = %q, want %q", got, "host")
	}
}

func TestNilRootDiscards(t *testing.T) {
	NewLogServer(nil).Named("x").Error("nothing happens")
	NopLog().Info("nothing happens")
}

func TestNewZapLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewZapLogger("DEBUG", format)
		if err != nil {
			t.Fatalf("NewZapLogger(%s): %v", format, err)
		}
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("%s logger does not enable debug", format)
		}
	}

	if _, err := NewZapLogger("loud", "json"); err == nil {
		t.Error("NewZapLogger accepted an unknown level")
	}
}

package subsys

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogServerName is the name under which hosts bind their LogServer
const LogServerName = "subsys.LogServer"

// Log is the leveled logger handed to a subsystem.
// Arguments after msg are alternating keys and values.
type Log interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// LogServer hands out per-subsystem loggers
type LogServer interface {
	Log(id Identity) Log
}

// zapLog adapts a zap SugaredLogger to Log
type zapLog struct {
	s *zap.SugaredLogger
}

func (l zapLog) Debug(msg string, keysAndValues ...any) { l.s.Debugw(msg, keysAndValues...) }
func (l zapLog) Info(msg string, keysAndValues ...any)  { l.s.Infow(msg, keysAndValues...) }
func (l zapLog) Warn(msg string, keysAndValues ...any)  { l.s.Warnw(msg, keysAndValues...) }
func (l zapLog) Error(msg string, keysAndValues ...any) { l.s.Errorw(msg, keysAndValues...) }

// ZapLogServer is a LogServer backed by a zap root logger
type ZapLogServer struct {
	root *zap.Logger
}

// NewLogServer returns a LogServer whose loggers are children of root.
// A nil root produces loggers that discard everything.
func NewLogServer(root *zap.Logger) *ZapLogServer {
	if root == nil {
		root = zap.NewNop()
	}
	return &ZapLogServer{root: root}
}

// Log returns a logger named after the subsystem and tagged with its ID
func (s *ZapLogServer) Log(id Identity) Log {
	return zapLog{s: s.root.Named(id.Name).With(zap.String("subsystem_id", id.ID.String())).Sugar()}
}

// Named returns a logger for host-side components that have no Identity
func (s *ZapLogServer) Named(name string) Log {
	return zapLog{s: s.root.Named(name).Sugar()}
}

// Ensure ZapLogServer implements LogServer
var _ LogServer = (*ZapLogServer)(nil)

// NopLog returns a Log that discards everything
func NopLog() Log {
	return zapLog{s: zap.NewNop().Sugar()}
}

// NewZapLogger builds a root logger writing to stderr.
// level is one of DEBUG, INFO, WARN, ERROR; format is "json" or "console".
func NewZapLogger(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if strings.ToLower(format) != "json" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

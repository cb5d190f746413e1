package supervise

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// DownFile makes a supervisor leave a unit down until it is told "up"
const DownFile = "down"

// DefaultUmask is the umask written into run scripts
var DefaultUmask fs.FileMode = 0o022

// Unit declares one supervised service
type Unit struct {
	// Name is the directory name of the unit inside the tree
	Name string
	// Cmd is the command and arguments to execute
	Cmd []string
	// Cwd is the working directory of the command
	Cwd string
	// Finish is the command run after the process exits
	Finish []string
	// Log adds a log/ subservice fed by the unit's stdout
	Log bool
	// Env holds variables exported through an env/ directory
	Env map[string]string
}

// Validate reports an ErrInvalidUnit error for declarations that cannot be built
func (u Unit) Validate() error {
	switch {
	case u.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidUnit)
	case strings.ContainsAny(u.Name, "/\x00") || u.Name == "." || u.Name == "..":
		return fmt.Errorf("%w: bad name %q", ErrInvalidUnit, u.Name)
	case len(u.Cmd) == 0:
		return fmt.Errorf("%w: %s has no command", ErrInvalidUnit, u.Name)
	}
	return nil
}

// UnitBuilder writes unit directories into a tree. Every file is replaced
// atomically so a scanner never sees a half-written script.
type UnitBuilder struct {
	// Dir is the tree directory
	Dir string
	// Backend selects the env and logger tooling used in scripts
	Backend Backend
	// Umask is written into run scripts when non-zero
	Umask fs.FileMode
	// LoggerPath overrides the backend's log processor
	LoggerPath string
}

// NewUnitBuilder returns a builder writing into dir for backend
func NewUnitBuilder(dir string, backend Backend) *UnitBuilder {
	return &UnitBuilder{
		Dir:        dir,
		Backend:    backend,
		Umask:      DefaultUmask,
		LoggerPath: backend.LoggerPath(),
	}
}

// Build writes u below Dir and returns the unit directory.
// The unit is created with a down file, so a scanner supervises it
// without starting it.
func (b *UnitBuilder) Build(u Unit) (string, error) {
	if b.Dir == "" {
		return "", fmt.Errorf("%w: tree directory not specified", ErrInvalidUnit)
	}
	if err := u.Validate(); err != nil {
		return "", err
	}

	serviceDir := filepath.Join(b.Dir, u.Name)
	if err := os.MkdirAll(serviceDir, DirMode); err != nil {
		return "", fmt.Errorf("creating unit directory: %w", err)
	}

	if err := renameio.WriteFile(filepath.Join(serviceDir, DownFile), nil, FileMode); err != nil {
		return "", fmt.Errorf("writing down file: %w", err)
	}

	if len(u.Env) > 0 {
		envDir := filepath.Join(serviceDir, "env")
		if err := os.MkdirAll(envDir, DirMode); err != nil {
			return "", fmt.Errorf("creating env directory: %w", err)
		}
		for key, value := range u.Env {
			if err := renameio.WriteFile(filepath.Join(envDir, key), []byte(value), FileMode); err != nil {
				return "", fmt.Errorf("writing env file %s: %w", key, err)
			}
		}
	}

	if err := renameio.WriteFile(filepath.Join(serviceDir, "run"), []byte(b.runScript(u)), ExecMode); err != nil {
		return "", fmt.Errorf("writing run script: %w", err)
	}

	if len(u.Finish) > 0 {
		if err := renameio.WriteFile(filepath.Join(serviceDir, "finish"), []byte(execScript(nil, u.Finish)), ExecMode); err != nil {
			return "", fmt.Errorf("writing finish script: %w", err)
		}
	}

	if u.Log {
		logDir := filepath.Join(serviceDir, "log")
		if err := os.MkdirAll(filepath.Join(logDir, "main"), DirMode); err != nil {
			return "", fmt.Errorf("creating log directory: %w", err)
		}

		logCmd := append([]string{b.LoggerPath}, b.Backend.LoggerArgs()...)
		logCmd = append(logCmd, "./main")
		if err := renameio.WriteFile(filepath.Join(logDir, "run"), []byte(execScript(nil, logCmd)), ExecMode); err != nil {
			return "", fmt.Errorf("writing log/run script: %w", err)
		}
	}

	return serviceDir, nil
}

func (b *UnitBuilder) runScript(u Unit) string {
	preamble := []string{"exec 2>&1"}
	if b.Umask != 0 {
		preamble = append(preamble, fmt.Sprintf("umask %04o", b.Umask))
	}
	if u.Cwd != "" {
		preamble = append(preamble, "cd "+shellQuote(u.Cwd))
	}

	cmd := u.Cmd
	if len(u.Env) > 0 {
		cmd = append(b.Backend.EnvDirCommand(), u.Cmd...)
	}
	return execScript(preamble, cmd)
}

// execScript renders a /bin/sh script that runs preamble then execs cmd
func execScript(preamble, cmd []string) string {
	lines := make([]string, 0, len(preamble)+2)
	lines = append(lines, "#!/bin/sh")
	lines = append(lines, preamble...)

	parts := make([]string, 0, len(cmd))
	for _, part := range cmd {
		parts = append(parts, shellQuote(part))
	}
	lines = append(lines, "exec "+strings.Join(parts, " "))

	return strings.Join(lines, "\n") + "\n"
}

// shellQuote escapes a string for safe use in shell scripts
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`!*?[](){}<>|&;~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

package supervise

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestUnitBuilderRunit(t *testing.T) {
	b := NewUnitBuilder(t.TempDir(), BackendRunit)

	dir, err := b.Build(Unit{
		Name:   "web",
		Cmd:    []string{"/usr/bin/web", "--greeting", "hello world"},
		Cwd:    "/srv/web",
		Finish: []string{"/usr/bin/cleanup"},
		Log:    true,
		Env:    map[string]string{"PORT": "8080"},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(b.Dir, "web"), dir)

	assert.Equal(t, "#!/bin/sh\nexec 2>&1\numask 0022\ncd /srv/web\nexec chpst -e ./env /usr/bin/web --greeting 'hello world'\n",
		readFile(t, filepath.Join(dir, "run")))
	assert.Equal(t, "#!/bin/sh\nexec /usr/bin/cleanup\n", readFile(t, filepath.Join(dir, "finish")))
	assert.Equal(t, "#!/bin/sh\nexec svlogd -tt ./main\n", readFile(t, filepath.Join(dir, "log", "run")))
	assert.Equal(t, "8080", readFile(t, filepath.Join(dir, "env", "PORT")))
	assert.DirExists(t, filepath.Join(dir, "log", "main"))
	assert.FileExists(t, filepath.Join(dir, DownFile))

	info, err := os.Stat(filepath.Join(dir, "run"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(ExecMode), info.Mode().Perm())
}

func TestUnitBuilderDaemontools(t *testing.T) {
	b := NewUnitBuilder(t.TempDir(), BackendDaemontools)
	b.Umask = 0

	dir, err := b.Build(Unit{
		Name: "db",
		Cmd:  []string{"/usr/bin/db"},
		Log:  true,
		Env:  map[string]string{"MODE": "fast"},
	})
	require.NoError(t, err)

	assert.Equal(t, "#!/bin/sh\nexec 2>&1\nexec envdir ./env /usr/bin/db\n", readFile(t, filepath.Join(dir, "run")))
	assert.Equal(t, "#!/bin/sh\nexec multilog t ./main\n", readFile(t, filepath.Join(dir, "log", "run")))
	assert.NoFileExists(t, filepath.Join(dir, "finish"))
}

func TestUnitBuilderRebuildReplacesScripts(t *testing.T) {
	b := NewUnitBuilder(t.TempDir(), BackendRunit)

	_, err := b.Build(Unit{Name: "web", Cmd: []string{"/bin/old"}})
	require.NoError(t, err)
	dir, err := b.Build(Unit{Name: "web", Cmd: []string{"/bin/new"}})
	require.NoError(t, err)

	assert.Contains(t, readFile(t, filepath.Join(dir, "run")), "exec /bin/new\n")
}

func TestUnitValidate(t *testing.T) {
	tests := []struct {
		name string
		unit Unit
	}{
		{"empty name", Unit{Cmd: []string{"x"}}},
		{"slash", Unit{Name: "a/b", Cmd: []string{"x"}}},
		{"dot dot", Unit{Name: "..", Cmd: []string{"x"}}},
		{"no command", Unit{Name: "web"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.unit.Validate()
			assert.True(t, errors.Is(err, ErrInvalidUnit), "err = %v", err)
		})
	}

	_, err := (&UnitBuilder{Backend: BackendRunit}).Build(Unit{Name: "web", Cmd: []string{"x"}})
	assert.ErrorIs(t, err, ErrInvalidUnit)
}

func TestShellQuote(t *testing.T) {
	tests := map[string]string{
		"":          "''",
		"plain":     "plain",
		"two words": "'two words'",
		"it's":      `'it'\''s'`,
		"$HOME":     "'$HOME'",
	}
	for in, want := range tests {
		if got := shellQuote(in); got != want {
			t.Errorf("shellQuote(%q) = %q, want %q", in, got, want)
		}
	}
}

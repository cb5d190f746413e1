package supervise

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"vawter.tech/stopper"

	subsys "github.com/axondata/go-subsys"
)

// Property keys read by tree frameworks
const (
	// PropTreeDir is the directory the scanner watches
	PropTreeDir = "supervise.tree.dir"
	// PropScanner is the scanner binary; ScannerNone leaves scanning to someone else
	PropScanner = "supervise.scanner"
	// PropReadyTimeout bounds the wait for a unit's supervise directory
	PropReadyTimeout = "supervise.ready.timeout"
	// PropBackoffMin is the first retry delay for control and readiness
	PropBackoffMin = "supervise.backoff.min"
	// PropBackoffMax caps the retry delay
	PropBackoffMax = "supervise.backoff.max"
)

// ScannerNone marks a tree that is already scanned by an external process
const ScannerNone = "none"

// Tree defaults used when properties are absent
const (
	DefaultTreeDir      = "/run/subsysd/service"
	DefaultReadyTimeout = 10 * time.Second
)

// TreeFactory creates Tree frameworks for one backend
type TreeFactory struct {
	Backend Backend
}

// NewTreeFactory returns a factory for backend
func NewTreeFactory(backend Backend) *TreeFactory {
	return &TreeFactory{Backend: backend}
}

// Name returns "tree/<backend>"
func (f *TreeFactory) Name() string {
	return "tree/" + f.Backend.String()
}

// NewFramework creates a Tree configured by props
func (f *TreeFactory) NewFramework(props subsys.Properties) (Framework, error) {
	return NewTree(f.Backend, props)
}

// Ensure TreeFactory implements FrameworkFactory
var _ FrameworkFactory = (*TreeFactory)(nil)

// Tree is a Framework that runs a supervision tree: a directory of units
// watched by a scanner process (runsvdir or svscan).
type Tree struct {
	backend      Backend
	dir          string
	scanner      string
	readyTimeout time.Duration
	backoffMin   time.Duration
	backoffMax   time.Duration
	builder      *UnitBuilder

	mu      sync.Mutex
	state   FrameworkState
	units   []string
	levels  map[string]int
	started []string

	cmd         *exec.Cmd
	sctx        *stopper.Context
	scannerDone chan struct{}
	scannerErr  error
}

// NewTree creates a Tree for backend from props
func NewTree(backend Backend, props subsys.Properties) (*Tree, error) {
	if backend == BackendUnknown {
		return nil, fmt.Errorf("supervise: tree needs a backend")
	}

	t := &Tree{
		backend: backend,
		dir:     props.GetString(PropTreeDir, DefaultTreeDir),
		scanner: props.GetString(PropScanner, ""),
		levels:  make(map[string]int),
	}
	if t.scanner == "" {
		t.scanner = backend.ScannerPath()
	}

	var err error
	if t.dir, err = filepath.Abs(t.dir); err != nil {
		return nil, fmt.Errorf("resolving tree dir: %w", err)
	}
	if t.readyTimeout, err = props.GetDuration(PropReadyTimeout, DefaultReadyTimeout); err != nil {
		return nil, err
	}
	if t.backoffMin, err = props.GetDuration(PropBackoffMin, DefaultBackoffMin); err != nil {
		return nil, err
	}
	if t.backoffMax, err = props.GetDuration(PropBackoffMax, DefaultBackoffMax); err != nil {
		return nil, err
	}
	if t.backoffMax < t.backoffMin {
		t.backoffMax = t.backoffMin
	}

	t.builder = NewUnitBuilder(t.dir, backend)
	return t, nil
}

// Dir returns the tree directory
func (t *Tree) Dir() string {
	return t.dir
}

// Backend returns the tree's supervision backend
func (t *Tree) Backend() Backend {
	return t.backend
}

// State reports the lifecycle position
func (t *Tree) State() FrameworkState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Context returns the tree itself
func (t *Tree) Context() FrameworkContext {
	return t
}

// Init creates the tree directory
func (t *Tree) Init(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != FrameworkInstalled {
		return fmt.Errorf("%w: init in %s", ErrFrameworkState, t.state)
	}
	if err := os.MkdirAll(t.dir, DirMode); err != nil {
		return &OpError{Op: OpInstall, Path: t.dir, Err: err}
	}

	t.state = FrameworkResolved
	return nil
}

// Install writes unit into the tree. Reinstalling a name rewrites its files.
func (t *Tree) Install(unit Unit) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != FrameworkResolved {
		return fmt.Errorf("%w: install in %s", ErrFrameworkState, t.state)
	}

	if _, err := t.builder.Build(unit); err != nil {
		return &OpError{Op: OpInstall, Path: filepath.Join(t.dir, unit.Name), Err: err}
	}

	if !slices.Contains(t.units, unit.Name) {
		t.units = append(t.units, unit.Name)
	}
	return nil
}

// MarkStart schedules an installed unit to start at level
func (t *Tree) MarkStart(name string, level int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !slices.Contains(t.units, name) {
		return fmt.Errorf("%w: %s is not installed", ErrUnknownUnit, name)
	}
	t.levels[name] = level
	return nil
}

// Units lists installed unit names in installation order
func (t *Tree) Units() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.units)
}

// startOrder returns start-marked units by ascending level, ties in
// installation order
func (t *Tree) startOrder() []string {
	var order []string
	for _, name := range t.units {
		if _, ok := t.levels[name]; ok {
			order = append(order, name)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return t.levels[order[i]] < t.levels[order[j]]
	})
	return order
}

// Start launches the scanner and brings every start-marked unit up
func (t *Tree) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != FrameworkResolved {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("%w: start in %s", ErrFrameworkState, state)
	}
	order := t.startOrder()
	t.state = FrameworkActive
	t.mu.Unlock()

	if err := t.spawnScanner(); err != nil {
		return err
	}

	for _, name := range order {
		client, err := t.awaitSupervised(ctx, name)
		if err != nil {
			return err
		}
		if err := client.Up(ctx); err != nil {
			return err
		}

		t.mu.Lock()
		t.started = append(t.started, name)
		t.mu.Unlock()
	}
	return nil
}

func (t *Tree) spawnScanner() error {
	if t.scanner == ScannerNone {
		return nil
	}

	path, err := LookPath(t.scanner)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNoScanner, t.scanner, err)
	}

	cmd := exec.Command(path, t.dir)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", t.scanner, err)
	}

	done := make(chan struct{})
	sctx := stopper.WithContext(context.Background())
	sctx.Go(func(*stopper.Context) error {
		err := cmd.Wait()
		t.mu.Lock()
		t.scannerErr = err
		t.mu.Unlock()
		close(done)
		return nil
	})

	t.mu.Lock()
	t.cmd = cmd
	t.sctx = sctx
	t.scannerDone = done
	t.mu.Unlock()
	return nil
}

// awaitSupervised retries until the scanner has created the unit's
// supervise directory or the ready timeout expires
func (t *Tree) awaitSupervised(ctx context.Context, name string) (*Client, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.backoffMin
	eb.MaxInterval = t.backoffMax
	eb.MaxElapsedTime = t.readyTimeout

	var client *Client
	err := backoff.Retry(func() error {
		c, err := t.client(name)
		if err != nil {
			if errors.Is(err, ErrNotSupervised) {
				return err
			}
			return backoff.Permanent(err)
		}
		client = c
		return nil
	}, backoff.WithContext(eb, ctx))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (t *Tree) client(name string) (*Client, error) {
	return NewClient(filepath.Join(t.dir, name), t.backend, WithBackoff(t.backoffMin, t.backoffMax))
}

// Stop sends "down" to started units in reverse start order. It does not
// wait; WaitForStop does.
func (t *Tree) Stop(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case FrameworkStopping, FrameworkStopped:
		t.mu.Unlock()
		return nil
	}
	t.state = FrameworkStopping
	started := slices.Clone(t.started)
	t.mu.Unlock()

	merr := &subsys.MultiError{}
	for i := len(started) - 1; i >= 0; i-- {
		client, err := t.client(started[i])
		if err != nil {
			merr.Add(err)
			continue
		}
		merr.Add(client.Down(ctx))
	}
	return merr.Err()
}

// WaitForStop waits for every started unit to be down, then stops the
// scanner and waits for it to exit. Outside runit every supervise process
// is told to exit before the scanner is signalled. The tree is stopped
// afterwards even when ctx ends first.
func (t *Tree) WaitForStop(ctx context.Context) error {
	t.mu.Lock()
	if t.state != FrameworkStopping && t.state != FrameworkStopped {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("%w: wait for stop in %s", ErrFrameworkState, state)
	}
	dirs := make([]string, 0, len(t.started))
	for _, name := range t.started {
		dirs = append(dirs, filepath.Join(t.dir, name))
	}
	cmd, sctx, done := t.cmd, t.sctx, t.scannerDone
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.state = FrameworkStopped
		t.mu.Unlock()
	}()

	mgr := NewManager(t.backend, WithTimeout(0), WithClientOptions(WithBackoff(t.backoffMin, t.backoffMax)))
	if err := mgr.Wait(ctx, []State{StateDown}, dirs...); err != nil {
		if ctx.Err() != nil {
			t.killScanner(cmd)
			return ctx.Err()
		}
		return err
	}

	if cmd == nil {
		return nil
	}

	var exitErr error
	if t.backend != BackendRunit {
		exitErr = t.exitSupervisors(ctx)
	}

	_ = cmd.Process.Signal(t.backend.ScannerStopSignal())
	select {
	case <-done:
	case <-ctx.Done():
		t.killScanner(cmd)
		return ctx.Err()
	}

	sctx.Stop(time.Second)
	if err := sctx.Wait(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	var procErr *exec.ExitError
	if t.scannerErr != nil && !errors.As(t.scannerErr, &procErr) {
		return fmt.Errorf("waiting for %s: %w", t.scanner, t.scannerErr)
	}
	return exitErr
}

// exitSupervisors tells every supervise process in the tree, log
// supervisors included, to exit. Only runsvdir takes its supervisors down
// when signalled; svscan dies alone and leaves them running.
func (t *Tree) exitSupervisors(ctx context.Context) error {
	var units, logs []string
	for _, name := range t.Units() {
		dir := filepath.Join(t.dir, name)
		if supervised(dir) {
			units = append(units, dir)
		}
		if logDir := filepath.Join(dir, "log"); supervised(logDir) {
			logs = append(logs, logDir)
		}
	}

	mgr := NewManager(t.backend, WithTimeout(0), WithClientOptions(WithBackoff(t.backoffMin, t.backoffMax)))
	merr := &subsys.MultiError{}
	merr.Add(mgr.Down(ctx, logs...))
	merr.Add(mgr.Exit(ctx, append(units, logs...)...))
	return merr.Err()
}

// supervised reports whether dir has a supervise directory
func supervised(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, SuperviseDir))
	return err == nil && info.IsDir()
}

func (t *Tree) killScanner(cmd *exec.Cmd) {
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// Status reads the status of every installed unit, keyed by unit name
func (t *Tree) Status(ctx context.Context) (map[string]Status, error) {
	units := t.Units()
	dirs := make([]string, 0, len(units))
	for _, name := range units {
		dirs = append(dirs, filepath.Join(t.dir, name))
	}

	byDir, err := NewManager(t.backend).Status(ctx, dirs...)
	out := make(map[string]Status, len(byDir))
	for dir, st := range byDir {
		out[filepath.Base(dir)] = st
	}
	return out, err
}

// Ensure Tree implements Framework and FrameworkContext
var (
	_ Framework        = (*Tree)(nil)
	_ FrameworkContext = (*Tree)(nil)
)

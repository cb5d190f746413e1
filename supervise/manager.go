package supervise

import (
	"context"
	"sync"
	"time"

	subsys "github.com/axondata/go-subsys"
)

// Manager runs one operation over many units concurrently with a bounded
// number of goroutines and a per-unit timeout
type Manager struct {
	// Backend is the status format of every managed unit
	Backend Backend
	// Concurrency is the maximum number of concurrent operations
	Concurrency int
	// Timeout is the per-unit timeout; zero means none
	Timeout time.Duration
	// ClientOptions are applied to every client the manager creates
	ClientOptions []Option
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithConcurrency sets the maximum number of concurrent operations
func WithConcurrency(n int) ManagerOption {
	return func(m *Manager) {
		m.Concurrency = n
	}
}

// WithTimeout sets the per-unit timeout
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.Timeout = d
	}
}

// WithClientOptions sets options for the clients the manager creates
func WithClientOptions(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.ClientOptions = opts
	}
}

// NewManager creates a Manager for units of backend
func NewManager(backend Backend, opts ...ManagerOption) *Manager {
	m := &Manager{
		Backend:     backend,
		Concurrency: 10,
		Timeout:     5 * time.Second,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.Concurrency < 1 {
		m.Concurrency = 1
	}

	return m
}

// execute runs op once per unit directory and collects failures
func (m *Manager) execute(ctx context.Context, dirs []string, op func(context.Context, string, ServiceClient) error) error {
	if len(dirs) == 0 {
		return nil
	}

	sem := make(chan struct{}, m.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	merr := &subsys.MultiError{}

	fail := func(err error) {
		mu.Lock()
		merr.Add(err)
		mu.Unlock()
	}

	for _, dir := range dirs {
		wg.Add(1)
		go func(dir string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				fail(&OpError{Op: OpUnknown, Path: dir, Err: ctx.Err()})
				return
			}

			client, err := NewClient(dir, m.Backend, m.ClientOptions...)
			if err != nil {
				fail(err)
				return
			}

			opCtx := ctx
			if m.Timeout > 0 {
				var cancel context.CancelFunc
				opCtx, cancel = context.WithTimeout(ctx, m.Timeout)
				defer cancel()
			}

			if err := op(opCtx, dir, client); err != nil {
				fail(err)
			}
		}(dir)
	}

	wg.Wait()
	return merr.Err()
}

// Up starts the units in dirs
func (m *Manager) Up(ctx context.Context, dirs ...string) error {
	return m.execute(ctx, dirs, func(ctx context.Context, _ string, c ServiceClient) error {
		return c.Up(ctx)
	})
}

// Down stops the units in dirs
func (m *Manager) Down(ctx context.Context, dirs ...string) error {
	return m.execute(ctx, dirs, func(ctx context.Context, _ string, c ServiceClient) error {
		return c.Down(ctx)
	})
}

// Exit makes the supervise process of every unit in dirs exit once its
// unit is down
func (m *Manager) Exit(ctx context.Context, dirs ...string) error {
	return m.execute(ctx, dirs, func(ctx context.Context, _ string, c ServiceClient) error {
		return c.ExitSupervise(ctx)
	})
}

// Wait blocks until every unit in dirs reaches one of states
func (m *Manager) Wait(ctx context.Context, states []State, dirs ...string) error {
	return m.execute(ctx, dirs, func(ctx context.Context, dir string, c ServiceClient) error {
		if _, err := c.Wait(ctx, states); err != nil {
			return &OpError{Op: OpStatus, Path: dir, Err: err}
		}
		return nil
	})
}

// Status reads the status of every unit in dirs, keyed by directory.
// Units that fail are missing from the map and reported in the error.
func (m *Manager) Status(ctx context.Context, dirs ...string) (map[string]Status, error) {
	var mu sync.Mutex
	results := make(map[string]Status, len(dirs))

	err := m.execute(ctx, dirs, func(ctx context.Context, dir string, c ServiceClient) error {
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		results[dir] = st
		mu.Unlock()
		return nil
	})
	return results, err
}

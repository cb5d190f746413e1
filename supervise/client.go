package supervise

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/axondata/go-subsys/internal/unix"
)

// ServiceClient controls and observes one supervised unit
type ServiceClient interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	ExitSupervise(ctx context.Context) error
	Status(ctx context.Context) (Status, error)

	// Watch streams status changes until the cleanup func is called or ctx ends
	Watch(ctx context.Context) (<-chan WatchEvent, WatchCleanupFunc, error)

	// Wait blocks until the unit reaches one of states.
	// With no states it waits for any change.
	Wait(ctx context.Context, states []State) (Status, error)
}

// Client talks to a unit's supervise process through its control
// socket/FIFO and status file, without shelling out to sv or svc.
type Client struct {
	// ServiceDir is the absolute path of the unit directory
	ServiceDir string

	// Backend selects the status record format and the accepted commands
	Backend Backend

	// DialTimeout is the timeout for establishing control socket connections
	DialTimeout time.Duration

	// WriteTimeout is the timeout for writing control commands
	WriteTimeout time.Duration

	// BackoffMin is the first delay between control attempts
	BackoffMin time.Duration

	// BackoffMax caps the delay between control attempts
	BackoffMax time.Duration

	// MaxAttempts bounds control attempts; 0 retries until ctx ends
	MaxAttempts int

	// WatchDebounce coalesces bursts of status file events
	WatchDebounce time.Duration

	// mu serializes control writes
	mu sync.Mutex
}

// Option configures a Client
type Option func(*Client)

// WithDialTimeout sets the timeout for control socket connections
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.DialTimeout = d
	}
}

// WithWriteTimeout sets the timeout for control write operations
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.WriteTimeout = d
	}
}

// WithBackoff sets the minimum and maximum delays between control attempts
func WithBackoff(minBackoff, maxBackoff time.Duration) Option {
	return func(c *Client) {
		c.BackoffMin = minBackoff
		c.BackoffMax = maxBackoff
	}
}

// WithMaxAttempts sets the maximum number of control attempts
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.MaxAttempts = n
	}
}

// WithWatchDebounce sets the debounce duration for watch events
func WithWatchDebounce(d time.Duration) Option {
	return func(c *Client) {
		c.WatchDebounce = d
	}
}

// NewClient creates a Client for the unit in serviceDir.
// The unit must already have a supervise directory.
func NewClient(serviceDir string, backend Backend, opts ...Option) (*Client, error) {
	absPath, err := filepath.Abs(serviceDir)
	if err != nil {
		return nil, fmt.Errorf("resolving service dir: %w", err)
	}

	c := &Client{
		ServiceDir:    absPath,
		Backend:       backend,
		DialTimeout:   DefaultDialTimeout,
		WriteTimeout:  DefaultWriteTimeout,
		BackoffMin:    DefaultBackoffMin,
		BackoffMax:    DefaultBackoffMax,
		MaxAttempts:   DefaultMaxAttempts,
		WatchDebounce: DefaultWatchDebounce,
	}

	for _, opt := range opts {
		opt(c)
	}

	superviseDir := filepath.Join(c.ServiceDir, SuperviseDir)
	if _, err := os.Stat(superviseDir); errors.Is(err, os.ErrNotExist) {
		return nil, &OpError{Op: OpUnknown, Path: superviseDir, Err: ErrNotSupervised}
	}

	return c, nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.BackoffMin
	eb.MaxInterval = c.BackoffMax
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if c.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(c.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// send writes a single control byte, retrying with exponential backoff
// while the control endpoint is not ready
func (c *Client) send(ctx context.Context, op Operation) error {
	controlPath := filepath.Join(c.ServiceDir, SuperviseDir, ControlFile)
	if !c.Backend.Supports(op) {
		return &OpError{Op: op, Path: controlPath, Err: ErrUnsupported}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cmd := []byte{op.Byte()}
	err := backoff.Retry(func() error {
		return c.write(controlPath, cmd)
	}, c.newBackOff(ctx))
	if err != nil {
		return &OpError{Op: op, Path: controlPath, Err: err}
	}
	return nil
}

// write makes one attempt: runit may expose a socket, otherwise the
// endpoint is a FIFO opened non-blocking so a missing reader fails fast
func (c *Client) write(controlPath string, cmd []byte) error {
	conn, err := net.DialTimeout("unix", controlPath, c.DialTimeout)
	if err == nil {
		defer func() { _ = conn.Close() }()

		if c.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
		}
		_, err = conn.Write(cmd)
		return err
	}

	file, err := os.OpenFile(controlPath, os.O_WRONLY|unix.ONonblock, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrControlNotReady, err)
		}
		return err
	}
	defer func() { _ = file.Close() }()

	_, err = file.Write(cmd)
	return err
}

// Up starts the unit (want up)
func (c *Client) Up(ctx context.Context) error {
	return c.send(ctx, OpUp)
}

// Once starts the unit without restarting it when it exits
func (c *Client) Once(ctx context.Context) error {
	return c.send(ctx, OpOnce)
}

// Down stops the unit (want down)
func (c *Client) Down(ctx context.Context) error {
	return c.send(ctx, OpDown)
}

// Term sends SIGTERM to the unit process
func (c *Client) Term(ctx context.Context) error {
	return c.send(ctx, OpTerm)
}

// Interrupt sends SIGINT to the unit process
func (c *Client) Interrupt(ctx context.Context) error {
	return c.send(ctx, OpInterrupt)
}

// HUP sends SIGHUP to the unit process
func (c *Client) HUP(ctx context.Context) error {
	return c.send(ctx, OpHUP)
}

// Alarm sends SIGALRM to the unit process
func (c *Client) Alarm(ctx context.Context) error {
	return c.send(ctx, OpAlarm)
}

// Quit sends SIGQUIT to the unit process
func (c *Client) Quit(ctx context.Context) error {
	return c.send(ctx, OpQuit)
}

// Kill sends SIGKILL to the unit process
func (c *Client) Kill(ctx context.Context) error {
	return c.send(ctx, OpKill)
}

// Pause sends SIGSTOP to the unit process
func (c *Client) Pause(ctx context.Context) error {
	return c.send(ctx, OpPause)
}

// Continue sends SIGCONT to the unit process
func (c *Client) Continue(ctx context.Context) error {
	return c.send(ctx, OpCont)
}

// ExitSupervise makes the supervise process exit once the unit is down
func (c *Client) ExitSupervise(ctx context.Context) error {
	return c.send(ctx, OpExit)
}

// Restart brings the unit down, waits for it to be down and brings it up
func (c *Client) Restart(ctx context.Context) error {
	if err := c.Down(ctx); err != nil {
		return err
	}
	if _, err := c.Wait(ctx, []State{StateDown}); err != nil {
		return err
	}
	return c.Up(ctx)
}

// Status reads and decodes the unit's status file
func (c *Client) Status(_ context.Context) (Status, error) {
	statusPath := filepath.Join(c.ServiceDir, SuperviseDir, StatusFile)

	data, err := os.ReadFile(statusPath)
	if err != nil {
		return Status{}, &OpError{Op: OpStatus, Path: statusPath, Err: err}
	}

	st, err := DecodeStatus(c.Backend, data)
	if err != nil {
		return Status{}, &OpError{Op: OpStatus, Path: statusPath, Err: err}
	}
	return st, nil
}

// Ensure Client implements ServiceClient
var _ ServiceClient = (*Client)(nil)

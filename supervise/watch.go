//go:build linux || darwin

package supervise

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// WatchEvent is a status change or a watch error
type WatchEvent struct {
	Status Status
	Err    error
}

// WatchCleanupFunc stops a watch and waits for its goroutines to exit
type WatchCleanupFunc func() error

// spinWindow is how long a burst of unchanged status events may last
// before the watcher slows its debounce to spinBackoff
const (
	spinWindow  = 5 * time.Second
	spinBackoff = time.Second
)

type watchState struct {
	mu        sync.Mutex
	lastRaw   []byte
	debouncer *time.Timer
	spinStart time.Time
	slow      bool
	// closed is set once the event channel is closed
	closed bool
}

// Watch monitors the unit's status file. The first event carries the
// current status; later events are sent only when the record changes.
func (c *Client) Watch(ctx context.Context) (<-chan WatchEvent, WatchCleanupFunc, error) {
	superviseDir := filepath.Join(c.ServiceDir, SuperviseDir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, &OpError{Op: OpStatus, Path: superviseDir, Err: err}
	}
	if err := watcher.Add(superviseDir); err != nil {
		_ = watcher.Close()
		return nil, nil, &OpError{Op: OpStatus, Path: superviseDir, Err: err}
	}

	ch := make(chan WatchEvent, 10)
	state := &watchState{}
	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()

		state.mu.Lock()
		defer state.mu.Unlock()
		state.closed = true
		close(ch)
	})

	debounce := c.WatchDebounce
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	// emit sends under state.mu; the channel is closed under the same lock
	emit := func(ev WatchEvent) {
		state.mu.Lock()
		defer state.mu.Unlock()

		if state.closed || sctx.IsStopping() {
			return
		}
		select {
		case ch <- ev:
		case <-sctx.Stopping():
		}
	}

	readAndSend := func() {
		if sctx.IsStopping() {
			return
		}

		status, err := c.Status(ctx)
		if err != nil {
			emit(WatchEvent{Err: err})
			return
		}

		state.mu.Lock()
		changed := state.lastRaw == nil || !bytes.Equal(state.lastRaw, status.Raw)
		if changed {
			state.lastRaw = status.Raw
			state.spinStart = time.Time{}
			state.slow = false
		} else {
			now := time.Now()
			if state.spinStart.IsZero() {
				state.spinStart = now
			} else if now.Sub(state.spinStart) >= spinWindow {
				state.slow = true
			}
		}
		state.mu.Unlock()

		if changed {
			emit(WatchEvent{Status: status})
		}
	}

	readAndSend()

	sctx.Go(func(sctx *stopper.Context) error {
		sctx.Defer(func() {
			state.mu.Lock()
			if state.debouncer != nil {
				state.debouncer.Stop()
			}
			state.mu.Unlock()
		})

		for {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(event.Name) != StatusFile {
					continue
				}

				state.mu.Lock()
				delay := debounce
				if state.slow {
					delay = spinBackoff
				}
				if state.debouncer != nil {
					state.debouncer.Stop()
				}
				state.debouncer = time.AfterFunc(delay, readAndSend)
				state.mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil {
					emit(WatchEvent{Err: err})
				}
			}
		}
	})

	return ch, cleanup, nil
}

// Wait blocks until the unit reaches one of states or ctx ends.
// With no states it returns the first change after the current status.
func (c *Client) Wait(ctx context.Context, states []State) (Status, error) {
	if len(states) > 0 {
		status, err := c.Status(ctx)
		if err != nil {
			return Status{}, err
		}
		if stateIn(status.State, states) {
			return status, nil
		}
	}

	events, cleanup, err := c.Watch(ctx)
	if err != nil {
		return Status{}, err
	}
	defer func() { _ = cleanup() }()

	first := true
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return Status{}, ctx.Err()
			}
			if event.Err != nil {
				return Status{}, event.Err
			}
			if len(states) == 0 {
				// the first event replays the current status
				if first {
					first = false
					continue
				}
				return event.Status, nil
			}
			if stateIn(event.Status.State, states) {
				return event.Status, nil
			}
		case <-ctx.Done():
			return Status{}, ctx.Err()
		}
	}
}

func stateIn(s State, states []State) bool {
	for _, want := range states {
		if s == want {
			return true
		}
	}
	return false
}

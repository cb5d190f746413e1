//go:build !linux && !darwin

package supervise

import (
	"context"
	"errors"
)

// WatchEvent is a status change or a watch error
type WatchEvent struct {
	Status Status
	Err    error
}

// WatchCleanupFunc stops a watch and waits for its goroutines to exit
type WatchCleanupFunc func() error

var errWatchUnsupported = errors.New("supervise: watch not supported on this platform")

// Watch is not supported on this platform
func (c *Client) Watch(context.Context) (<-chan WatchEvent, WatchCleanupFunc, error) {
	return nil, nil, errWatchUnsupported
}

// Wait is not supported on this platform
func (c *Client) Wait(context.Context, []State) (Status, error) {
	return Status{}, errWatchUnsupported
}

// Package framehub distributes the latest annotated frame to any number of
// viewers. Only the newest frame is retained: slow viewers skip frames and
// never hold up the publisher.
package framehub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"facewatch/internal/models"
)

// ErrClosed is returned to waiters once the hub has been shut down.
var ErrClosed = errors.New("frame hub closed")

// Broadcaster is a latest-value broadcast primitive.
type Broadcaster interface {
	Publish(data []byte, width, height int) uint64
	AwaitNext(ctx context.Context, lastSeen uint64) (models.Frame, error)
	Latest() models.Frame
	Close()
}

// Hub holds exactly one frame. Publishing closes the current wake channel,
// releasing every waiter at once, and installs a fresh one.
type Hub struct {
	mu      sync.Mutex
	frame   models.Frame
	changed chan struct{}
	closed  bool

	viewers atomic.Int64
}

var _ Broadcaster = (*Hub)(nil)

func New() *Hub {
	return &Hub{changed: make(chan struct{})}
}

// Publish replaces the stored frame and wakes every waiter. It never blocks
// beyond the swap and returns the version assigned to the frame, or 0 once
// the hub is closed.
func (h *Hub) Publish(data []byte, width, height int) uint64 {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0
	}
	h.frame = models.Frame{
		Data:       data,
		Version:    h.frame.Version + 1,
		Width:      width,
		Height:     height,
		CapturedAt: time.Now(),
	}
	version := h.frame.Version
	wake := h.changed
	h.changed = make(chan struct{})
	h.mu.Unlock()

	close(wake)
	return version
}

// AwaitNext blocks until the stored version exceeds lastSeen and returns that
// frame. It returns ErrClosed after Close and ctx.Err() when ctx ends first.
func (h *Hub) AwaitNext(ctx context.Context, lastSeen uint64) (models.Frame, error) {
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return models.Frame{}, ErrClosed
		}
		if h.frame.Version > lastSeen {
			frame := h.frame
			h.mu.Unlock()
			return frame, nil
		}
		wait := h.changed
		h.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return models.Frame{}, ctx.Err()
		}
	}
}

// Latest returns the current frame without waiting. Version 0 means nothing
// has been published yet.
func (h *Hub) Latest() models.Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame
}

// Close releases all waiters with ErrClosed. Later calls to Publish are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	wake := h.changed
	h.mu.Unlock()

	close(wake)
}

// Attach registers a viewer for the status counters. The returned function
// must be called when the viewer goes away.
func (h *Hub) Attach() (detach func()) {
	h.viewers.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { h.viewers.Add(-1) })
	}
}

// Viewers returns the number of attached viewers.
func (h *Hub) Viewers() int {
	return int(h.viewers.Load())
}

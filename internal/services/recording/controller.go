// Package recording records video while a subject is in front of the camera.
//
// The Controller is a two-state machine (Idle, Recording) driven once per
// captured frame. It owns at most one sink at a time. Sink failures are
// logged and push the controller back to Idle so the next frame with a
// subject present starts a fresh session.
package recording

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/models"
)

// State of the controller.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Sink accepts sequential frame writes for one recording session.
type Sink interface {
	Write(frame models.RawFrame) error
	Close() error
}

// SinkOpener allocates sinks. Open receives the frame dimensions and the
// target frame rate of the session.
type SinkOpener interface {
	Open(path string, size image.Point, fps float64) (Sink, error)
}

// SessionStore persists session metadata. Failures are logged only.
type SessionStore interface {
	StartSession(rec *models.Recording) (int64, error)
	FinishSession(id int64, endedAt time.Time, frames int64, status string) error
}

// Session is the active recording.
type Session struct {
	ID        int64
	Path      string
	StartedAt time.Time
	Frames    int64
	sink      Sink
}

// Status is a snapshot of the controller for the status API.
type Status struct {
	State     string    `json:"state"`
	File      string    `json:"file,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Frames    int64     `json:"frames,omitempty"`
	Sessions  int64     `json:"sessions"`
	Failures  int64     `json:"failures"`
}

type Controller struct {
	dir    string
	fps    float64
	opener SinkOpener
	store  SessionStore
	logger *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	session  *Session
	sessions int64
	failures int64
}

// Option customizes a Controller.
type Option func(*Controller)

// WithStore persists session metadata to store.
func WithStore(store SessionStore) Option {
	return func(c *Controller) { c.store = store }
}

// WithClock replaces time.Now, used for session naming.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller writing sessions into dir.
func NewController(dir string, fps float64, opener SinkOpener, log *logger.Logger, opts ...Option) (*Controller, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}

	c := &Controller{
		dir:    dir,
		fps:    fps,
		opener: opener,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SessionName returns the file name of a session started at t.
func SessionName(t time.Time) string {
	return fmt.Sprintf("recording_%s_%03d.avi", t.Format("20060102-150405"), t.Nanosecond()/int(time.Millisecond))
}

// ParseSessionName recovers the start time encoded by SessionName. The time
// is interpreted in loc.
func ParseSessionName(name string, loc *time.Location) (time.Time, error) {
	stem, ok := strings.CutPrefix(name, "recording_")
	if !ok {
		return time.Time{}, fmt.Errorf("not a session file: %s", name)
	}
	stem, ok = strings.CutSuffix(stem, ".avi")
	if !ok {
		return time.Time{}, fmt.Errorf("not a session file: %s", name)
	}

	stamp, millis, ok := strings.Cut(stem, "_")
	if !ok {
		return time.Time{}, fmt.Errorf("invalid session timestamp in %s", name)
	}
	t, err := time.ParseInLocation("20060102-150405", stamp, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid session timestamp in %s: %w", name, err)
	}
	ms, err := strconv.Atoi(millis)
	if err != nil || ms < 0 || ms > 999 {
		return time.Time{}, fmt.Errorf("invalid session milliseconds in %s", name)
	}
	return t.Add(time.Duration(ms) * time.Millisecond), nil
}

// Observe drives the state machine with the presence outcome of one frame
// and, while recording, appends the frame to the active sink.
func (c *Controller) Observe(present bool, frame models.RawFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !present {
		if c.state == Recording {
			c.finishLocked(models.RecordingFinished)
			c.logger.Info("⏹️  Stopped recording")
		}
		return
	}

	if c.state == Idle {
		if err := c.startLocked(frame.Size()); err != nil {
			c.failures++
			c.logger.Error("Failed to start recording: %v", err)
			return
		}
	}

	if err := c.session.sink.Write(frame); err != nil {
		c.failures++
		c.logger.Error("Failed to write frame to %s: %v", filepath.Base(c.session.Path), err)
		c.finishLocked(models.RecordingFailed)
		return
	}
	c.session.Frames++
}

func (c *Controller) startLocked(size image.Point) error {
	startedAt := c.now()
	path := filepath.Join(c.dir, SessionName(startedAt))

	sink, err := c.opener.Open(path, size, c.fps)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}

	session := &Session{Path: path, StartedAt: startedAt, sink: sink}
	if c.store != nil {
		id, err := c.store.StartSession(&models.Recording{
			Filename:  filepath.Base(path),
			FilePath:  path,
			StartedAt: startedAt,
			Status:    models.RecordingActive,
		})
		if err != nil {
			c.logger.Warning("Failed to store recording session: %v", err)
		}
		session.ID = id
	}

	c.session = session
	c.state = Recording
	c.sessions++
	c.logger.Info("⏺️  Started recording %s", filepath.Base(path))
	return nil
}

// finishLocked releases the sink and returns to Idle regardless of errors.
func (c *Controller) finishLocked(status string) {
	session := c.session
	c.session = nil
	c.state = Idle
	if session == nil {
		return
	}

	if err := session.sink.Close(); err != nil {
		c.logger.Error("Failed to close %s: %v", filepath.Base(session.Path), err)
		status = models.RecordingFailed
	}

	if c.store != nil && session.ID != 0 {
		if err := c.store.FinishSession(session.ID, c.now(), session.Frames, status); err != nil {
			c.logger.Warning("Failed to update recording session: %v", err)
		}
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		State:    c.state.String(),
		Sessions: c.sessions,
		Failures: c.failures,
	}
	if c.session != nil {
		status.File = filepath.Base(c.session.Path)
		status.StartedAt = c.session.StartedAt
		status.Frames = c.session.Frames
	}
	return status
}

// Close finalizes an open session.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Recording {
		c.finishLocked(models.RecordingFinished)
		c.logger.Info("⏹️  Recording finalized on shutdown")
	}
}

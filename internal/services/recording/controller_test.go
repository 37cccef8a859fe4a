package recording

import (
	"errors"
	"image"
	"image/color"
	"io"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/models"
)

// ========================================
// Test fakes
// ========================================

type fakeFrame struct {
	id int
}

func (f *fakeFrame) Size() image.Point { return image.Pt(640, 480) }
func (f *fakeFrame) DrawRegion(image.Rectangle, color.RGBA, string) error { return nil }
func (f *fakeFrame) EncodeJPEG() ([]byte, error) { return []byte{byte(f.id)}, nil }
func (f *fakeFrame) Close() error { return nil }

type fakeSink struct {
	path     string
	size     image.Point
	fps      float64
	frames   []int
	closed   bool
	writeErr error
}

func (s *fakeSink) Write(frame models.RawFrame) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.frames = append(s.frames, frame.(*fakeFrame).id)
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

type fakeOpener struct {
	sinks    []*fakeSink
	failNext int // number of upcoming Open calls that fail
	writeErr error
}

func (o *fakeOpener) Open(path string, size image.Point, fps float64) (Sink, error) {
	if o.failNext > 0 {
		o.failNext--
		return nil, errors.New("disk full")
	}
	sink := &fakeSink{path: path, size: size, fps: fps, writeErr: o.writeErr}
	o.sinks = append(o.sinks, sink)
	return sink, nil
}

type fakeStore struct {
	mu       sync.Mutex
	started  []*models.Recording
	finished map[int64]string
	frames   map[int64]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{finished: map[int64]string{}, frames: map[int64]int64{}}
}

func (s *fakeStore) StartSession(rec *models.Recording) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, rec)
	return int64(len(s.started)), nil
}

func (s *fakeStore) FinishSession(id int64, endedAt time.Time, frames int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished[id] = status
	s.frames[id] = frames
	return nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(t.TempDir(), io.Discard, io.Discard)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func steppingClock() func() time.Time {
	current := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(1500 * time.Millisecond)
		return current
	}
}

func newTestController(t *testing.T, opener SinkOpener, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithClock(steppingClock())}, opts...)
	c, err := NewController(t.TempDir(), 20, opener, newTestLogger(t), opts...)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	return c
}

// ========================================
// State machine
// ========================================

func TestController_SessionsFollowPresenceTransitions(t *testing.T) {
	opener := &fakeOpener{}
	c := newTestController(t, opener)

	presence := []bool{true, true, false, true}
	for i, present := range presence {
		c.Observe(present, &fakeFrame{id: i + 1})
	}

	if len(opener.sinks) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(opener.sinks))
	}

	first := opener.sinks[0]
	if !first.closed {
		t.Error("First session should be closed")
	}
	if len(first.frames) != 2 || first.frames[0] != 1 || first.frames[1] != 2 {
		t.Errorf("First session frames = %v, expected [1 2]", first.frames)
	}
	if first.size != image.Pt(640, 480) || first.fps != 20 {
		t.Errorf("First session opened with %v @ %v fps", first.size, first.fps)
	}

	second := opener.sinks[1]
	if second.closed {
		t.Error("Second session should still be open")
	}
	if c.State() != Recording {
		t.Errorf("Expected Recording state, got %v", c.State())
	}

	c.Close()
	if !second.closed {
		t.Error("Close should finalize the open session")
	}
	if c.State() != Idle {
		t.Errorf("Expected Idle after Close, got %v", c.State())
	}
}

func TestController_SessionCountMatchesRisingEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		opener := &fakeOpener{}
		c := newTestController(t, opener)

		n := 1 + rng.Intn(40)
		previous := false
		rising := 0
		var expected [][]int
		for i := 0; i < n; i++ {
			present := rng.Intn(2) == 1
			if present && !previous {
				rising++
				expected = append(expected, nil)
			}
			if present {
				expected[len(expected)-1] = append(expected[len(expected)-1], i)
			}
			c.Observe(present, &fakeFrame{id: i})
			previous = present
		}

		if len(opener.sinks) != rising {
			t.Fatalf("Run %d: expected %d sessions, got %d", run, rising, len(opener.sinks))
		}
		for s, sink := range opener.sinks {
			if len(sink.frames) != len(expected[s]) {
				t.Fatalf("Run %d session %d: frames %v, expected %v", run, s, sink.frames, expected[s])
			}
			for i := range sink.frames {
				if sink.frames[i] != expected[s][i] {
					t.Fatalf("Run %d session %d: frames %v, expected %v", run, s, sink.frames, expected[s])
				}
			}
		}
	}
}

func TestController_AbsentWhileIdleDoesNothing(t *testing.T) {
	opener := &fakeOpener{}
	c := newTestController(t, opener)

	for i := 0; i < 5; i++ {
		c.Observe(false, &fakeFrame{id: i})
	}

	if len(opener.sinks) != 0 {
		t.Errorf("Expected no sessions, got %d", len(opener.sinks))
	}
	if c.State() != Idle {
		t.Errorf("Expected Idle, got %v", c.State())
	}
}

// ========================================
// Failure handling
// ========================================

func TestController_OpenFailureLeavesIdleAndRetries(t *testing.T) {
	opener := &fakeOpener{failNext: 1}
	c := newTestController(t, opener)

	c.Observe(true, &fakeFrame{id: 1})
	if c.State() != Idle {
		t.Fatalf("Expected Idle after open failure, got %v", c.State())
	}

	c.Observe(true, &fakeFrame{id: 2})
	if c.State() != Recording {
		t.Fatalf("Expected Recording after retry, got %v", c.State())
	}
	if len(opener.sinks) != 1 || len(opener.sinks[0].frames) != 1 || opener.sinks[0].frames[0] != 2 {
		t.Errorf("Retry session should contain frame 2 only")
	}

	status := c.Status()
	if status.Failures != 1 || status.Sessions != 1 {
		t.Errorf("Expected 1 failure and 1 session, got %+v", status)
	}
}

func TestController_WriteFailureDiscardsSession(t *testing.T) {
	opener := &fakeOpener{writeErr: errors.New("io error")}
	store := newFakeStore()
	c := newTestController(t, opener, WithStore(store))

	c.Observe(true, &fakeFrame{id: 1})

	if c.State() != Idle {
		t.Fatalf("Expected Idle after write failure, got %v", c.State())
	}
	if !opener.sinks[0].closed {
		t.Error("Broken sink should be closed")
	}
	if store.finished[1] != models.RecordingFailed {
		t.Errorf("Expected failed status, got %q", store.finished[1])
	}

	// A healthy sink on the next present frame starts a new session.
	opener.writeErr = nil
	c.Observe(true, &fakeFrame{id: 2})
	if c.State() != Recording || len(opener.sinks) != 2 {
		t.Errorf("Expected a new session after failure, state %v sinks %d", c.State(), len(opener.sinks))
	}
}

// ========================================
// Persistence and naming
// ========================================

func TestController_StoresSessionMetadata(t *testing.T) {
	opener := &fakeOpener{}
	store := newFakeStore()
	c := newTestController(t, opener, WithStore(store))

	c.Observe(true, &fakeFrame{id: 1})
	c.Observe(true, &fakeFrame{id: 2})
	c.Observe(true, &fakeFrame{id: 3})
	c.Observe(false, &fakeFrame{id: 4})

	if len(store.started) != 1 {
		t.Fatalf("Expected 1 stored session, got %d", len(store.started))
	}
	rec := store.started[0]
	if rec.Status != models.RecordingActive {
		t.Errorf("Expected active status at start, got %q", rec.Status)
	}
	if rec.Filename != filepath.Base(opener.sinks[0].path) {
		t.Errorf("Stored filename %q does not match sink path %q", rec.Filename, opener.sinks[0].path)
	}
	if store.finished[1] != models.RecordingFinished || store.frames[1] != 3 {
		t.Errorf("Expected finished with 3 frames, got %q with %d", store.finished[1], store.frames[1])
	}
}

func TestSessionName(t *testing.T) {
	ts := time.Date(2025, 1, 4, 14, 30, 5, 250*int(time.Millisecond), time.UTC)
	name := SessionName(ts)

	if name != "recording_20250104-143005_250.avi" {
		t.Errorf("Unexpected session name %q", name)
	}
	if !strings.HasPrefix(name, "recording_") {
		t.Errorf("Session name should start with recording_")
	}
}

func TestController_StatusWhileRecording(t *testing.T) {
	opener := &fakeOpener{}
	c := newTestController(t, opener)

	c.Observe(true, &fakeFrame{id: 1})
	c.Observe(true, &fakeFrame{id: 2})

	status := c.Status()
	if status.State != "recording" {
		t.Errorf("Expected recording state, got %q", status.State)
	}
	if status.Frames != 2 {
		t.Errorf("Expected 2 frames, got %d", status.Frames)
	}
	if status.File != filepath.Base(opener.sinks[0].path) {
		t.Errorf("Unexpected file %q", status.File)
	}
}

func TestParseSessionName(t *testing.T) {
	ts := time.Date(2025, 1, 4, 14, 30, 5, 250*int(time.Millisecond), time.UTC)

	got, err := ParseSessionName(SessionName(ts), time.UTC)
	if err != nil {
		t.Fatalf("ParseSessionName failed: %v", err)
	}
	if !got.Equal(ts) {
		t.Errorf("Expected %v, got %v", ts, got)
	}

	for _, bad := range []string{
		"clip.avi",
		"recording_20250104-143005_250.mp4",
		"recording_20250104-143005.avi",
		"recording_2025-01-04_250.avi",
		"recording_20250104-143005_abc.avi",
	} {
		if _, err := ParseSessionName(bad, time.UTC); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

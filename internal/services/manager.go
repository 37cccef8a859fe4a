package services

import (
	"context"
	"errors"
	"fmt"
	"image/color"

	"facewatch/internal/logger"
	"facewatch/internal/models"
)

// ErrCameraClosed is returned by a Camera that can deliver no more frames.
var ErrCameraClosed = errors.New("camera closed")

// Camera acquires one raw frame per call, blocking for the frame interval.
type Camera interface {
	Capture() (models.RawFrame, error)
}

// Detector finds faces in a frame and attaches an authorization verdict to
// each of them. Any color conversion it needs happens internally.
type Detector interface {
	Detect(frame models.RawFrame) ([]models.Region, error)
}

type Notifier interface {
	Notify(subject, message string)
}

// Recorder is fed the presence outcome of every frame.
type Recorder interface {
	Observe(present bool, frame models.RawFrame)
}

type Publisher interface {
	Publish(data []byte, width, height int) uint64
}

var (
	authorizedColor   = color.RGBA{0, 255, 0, 0}
	unauthorizedColor = color.RGBA{255, 0, 0, 0}
)

// Manager is the capture loop: it is the only goroutine that touches the
// camera, the detector and the recorder.
type Manager struct {
	camera    Camera
	detector  Detector
	notifier  Notifier
	recorder  Recorder
	publisher Publisher
	logger    *logger.Logger

	frames uint64
}

func NewManager(camera Camera, detector Detector, notifier Notifier, recorder Recorder, publisher Publisher, logger *logger.Logger) *Manager {
	return &Manager{
		camera:    camera,
		detector:  detector,
		notifier:  notifier,
		recorder:  recorder,
		publisher: publisher,
		logger:    logger,
	}
}

// Run captures frames until ctx is cancelled, which returns nil. Camera and
// detector failures end the loop with an error.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("🎬 Capture loop started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("🛑 Capture loop stopped after %d frame(s)", m.frames)
			return nil
		default:
		}

		if err := m.step(); err != nil {
			return err
		}
	}
}

// step runs one capture iteration.
func (m *Manager) step() error {
	frame, err := m.camera.Capture()
	if err != nil {
		return fmt.Errorf("failed to capture frame: %w", err)
	}
	defer frame.Close()

	regions, err := m.detector.Detect(frame)
	if err != nil {
		return fmt.Errorf("failed to detect faces: %w", err)
	}

	for _, region := range regions {
		m.annotate(frame, region)
		m.notifier.Notify(
			fmt.Sprintf("%s access detected", region.Verdict),
			fmt.Sprintf("%s person has accessed the device.", region.Verdict),
		)
	}

	m.recorder.Observe(len(regions) > 0, frame)

	data, err := frame.EncodeJPEG()
	if err != nil {
		m.logger.Error("Failed to encode frame: %v", err)
		return nil
	}

	size := frame.Size()
	m.publisher.Publish(data, size.X, size.Y)
	m.frames++
	return nil
}

func (m *Manager) annotate(frame models.RawFrame, region models.Region) {
	c, label := unauthorizedColor, region.Verdict.String()
	if region.Verdict == models.Authorized {
		c = authorizedColor
		if region.Name != "" {
			label = region.Name
		}
	}

	if err := frame.DrawRegion(region.Box, c, label); err != nil {
		m.logger.Warning("Failed to draw region: %v", err)
	}
}

// Frames returns the number of frames published so far. Only safe to call
// after Run has returned.
func (m *Manager) Frames() uint64 {
	return m.frames
}

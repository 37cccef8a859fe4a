// Package camera binds the capture loop to OpenCV: device capture,
// Mat-backed frames and the video files recordings are written to.
package camera

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/services"

	"gocv.io/x/gocv"
)

// MatFrame is a RawFrame backed by a BGR gocv.Mat.
type MatFrame struct {
	mat gocv.Mat
}

// NewMatFrame takes ownership of mat.
func NewMatFrame(mat gocv.Mat) *MatFrame {
	return &MatFrame{mat: mat}
}

// Mat exposes the underlying image to other OpenCV collaborators.
func (f *MatFrame) Mat() gocv.Mat {
	return f.mat
}

func (f *MatFrame) Size() image.Point {
	return image.Pt(f.mat.Cols(), f.mat.Rows())
}

// DrawRegion draws a box with its label just above it.
func (f *MatFrame) DrawRegion(box image.Rectangle, c color.RGBA, label string) error {
	if err := gocv.Rectangle(&f.mat, box, c, 2); err != nil {
		return fmt.Errorf("failed to draw rectangle: %w", err)
	}
	if label == "" {
		return nil
	}

	y := box.Min.Y - 8
	if y < 12 {
		y = box.Max.Y + 18
	}
	if err := gocv.PutText(&f.mat, label, image.Pt(box.Min.X, y), gocv.FontHersheySimplex, 0.6, c, 2); err != nil {
		return fmt.Errorf("failed to draw text: %w", err)
	}
	return nil
}

// EncodeJPEG returns a copy of the frame encoded as JPEG.
func (f *MatFrame) EncodeJPEG() ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

func (f *MatFrame) Close() error {
	return f.mat.Close()
}

// Camera reads frames from a local device or a stream URL.
type Camera struct {
	capture *gocv.VideoCapture
	device  string
	logger  *logger.Logger
}

// Open opens the configured device. A numeric device is a local camera
// index, anything else is handed to OpenCV as a file or stream URL.
func Open(cfg *config.Config, logger *logger.Logger) (*Camera, error) {
	var source interface{} = cfg.CameraDevice
	if index, err := strconv.Atoi(cfg.CameraDevice); err == nil {
		source = index
	}

	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %s: %w", cfg.CameraDevice, err)
	}

	if cfg.FrameWidth > 0 && cfg.FrameHeight > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.FrameWidth))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.FrameHeight))
	}

	logger.Info("📷 Camera %s opened (%dx%d requested)", cfg.CameraDevice, cfg.FrameWidth, cfg.FrameHeight)
	return &Camera{capture: capture, device: cfg.CameraDevice, logger: logger}, nil
}

// Capture blocks until the next frame is available.
func (c *Camera) Capture() (models.RawFrame, error) {
	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("%w: device %s", services.ErrCameraClosed, c.device)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("empty frame from device %s", c.device)
	}
	return NewMatFrame(mat), nil
}

func (c *Camera) Close() error {
	return c.capture.Close()
}

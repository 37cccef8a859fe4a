// Package ai detects faces with a Haar cascade and authorizes them against a
// reference set using an LBPH recognizer.
package ai

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"facewatch/internal/config"
	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/services/camera"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// faceSize is the side of the square patch fed to the recognizer.
const faceSize = 100

var referenceExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// DetectorService implements services.Detector for MatFrames.
type DetectorService struct {
	classifier gocv.CascadeClassifier
	recognizer *contrib.LBPHFaceRecognizer
	names      []string
	threshold  float64
	logger     *logger.Logger

	mu sync.Mutex
}

// NewDetectorService loads the cascade and trains the recognizer from the
// reference images in the admins directory. A missing cascade is fatal, a
// missing or empty admins directory only means no face is authorized.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) (*DetectorService, error) {
	if _, err := os.Stat(cfg.CascadePath); err != nil {
		return nil, fmt.Errorf("cascade file not found: %s", cfg.CascadePath)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade %s", cfg.CascadePath)
	}

	s := &DetectorService{
		classifier: classifier,
		threshold:  cfg.RecognitionThreshold,
		logger:     logger,
	}

	if err := s.loadReferences(cfg.AdminsDirectory); err != nil {
		logger.Warning("Could not load reference faces: %v", err)
	}
	logger.Info("🙂 Loaded %d admin face(s)", len(s.names))
	return s, nil
}

// loadReferences produces at most one face per image; the file stem is the
// reference name.
func (s *DetectorService) loadReferences(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var faces []gocv.Mat
	var labels []int
	defer func() {
		for i := range faces {
			faces[i].Close()
		}
	}()

	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || !referenceExtensions[ext] {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		face, err := s.referenceFace(path)
		if err != nil {
			s.logger.Warning("Skipping reference image %s: %v", entry.Name(), err)
			continue
		}

		faces = append(faces, face)
		labels = append(labels, len(s.names))
		s.names = append(s.names, strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
	}

	if len(faces) == 0 {
		return nil
	}

	s.recognizer = contrib.NewLBPHFaceRecognizer()
	s.recognizer.Train(faces, labels)
	return nil
}

// referenceFace returns the normalized patch of the largest face in path.
func (s *DetectorService) referenceFace(path string) (gocv.Mat, error) {
	gray := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer gray.Close()
	if gray.Empty() {
		return gocv.Mat{}, fmt.Errorf("unreadable image")
	}

	rects := s.classifier.DetectMultiScale(gray)
	if len(rects) == 0 {
		return gocv.Mat{}, fmt.Errorf("no face found")
	}

	largest := rects[0]
	for _, r := range rects[1:] {
		if r.Dx()*r.Dy() > largest.Dx()*largest.Dy() {
			largest = r
		}
	}
	return normalizeFace(gray, largest), nil
}

func normalizeFace(gray gocv.Mat, box image.Rectangle) gocv.Mat {
	region := gray.Region(box)
	defer region.Close()

	face := gocv.NewMat()
	gocv.Resize(region, &face, image.Pt(faceSize, faceSize), 0, 0, gocv.InterpolationLinear)
	return face
}

// Detect converts the frame to grayscale, finds faces and authorizes each
// one. An empty reference set authorizes nobody.
func (s *DetectorService) Detect(frame models.RawFrame) ([]models.Region, error) {
	mf, ok := frame.(*camera.MatFrame)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(mf.Mat(), &gray, gocv.ColorBGRToGray); err != nil {
		return nil, fmt.Errorf("failed to convert image to grayscale: %w", err)
	}

	rects := s.classifier.DetectMultiScale(gray)
	regions := make([]models.Region, 0, len(rects))
	for _, r := range rects {
		regions = append(regions, s.authorize(gray, r))
	}
	return regions, nil
}

func (s *DetectorService) authorize(gray gocv.Mat, box image.Rectangle) models.Region {
	region := models.Region{Box: box, Verdict: models.Unauthorized}
	if s.recognizer == nil {
		return region
	}

	face := normalizeFace(gray, box)
	defer face.Close()

	resp := s.recognizer.PredictExtendedResponse(face)
	region.Distance = float64(resp.Confidence)

	label := int(resp.Label)
	if label >= 0 && label < len(s.names) && region.Distance <= s.threshold {
		region.Verdict = models.Authorized
		region.Name = s.names[label]
	}
	return region
}

// References returns the names of the loaded reference faces.
func (s *DetectorService) References() []string {
	return append([]string(nil), s.names...)
}

func (s *DetectorService) Close() {
	s.classifier.Close()
}

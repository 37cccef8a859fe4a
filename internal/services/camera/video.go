package camera

import (
	"fmt"
	"image"

	"facewatch/internal/models"
	"facewatch/internal/services/recording"

	"gocv.io/x/gocv"
)

// VideoSinkOpener creates recording sinks as OpenCV video files.
type VideoSinkOpener struct {
	Codec string // FourCC, e.g. "XVID"
}

func (o VideoSinkOpener) Open(path string, size image.Point, fps float64) (recording.Sink, error) {
	writer, err := gocv.VideoWriterFile(path, o.Codec, fps, size.X, size.Y, true)
	if err != nil {
		return nil, err
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("video writer for %s did not open", path)
	}
	return &videoSink{writer: writer}, nil
}

type videoSink struct {
	writer *gocv.VideoWriter
}

func (s *videoSink) Write(frame models.RawFrame) error {
	mf, ok := frame.(*MatFrame)
	if !ok {
		return fmt.Errorf("unsupported frame type %T", frame)
	}
	return s.writer.Write(mf.mat)
}

func (s *videoSink) Close() error {
	return s.writer.Close()
}

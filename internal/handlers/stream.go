package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/services/framehub"
)

// StreamBoundary separates JPEG parts in the MJPEG response.
const StreamBoundary = "FRAME"

// FrameSource is the viewer side of the frame hub.
type FrameSource interface {
	AwaitNext(ctx context.Context, lastSeen uint64) (models.Frame, error)
	Attach() (detach func())
}

// StreamHandler serves the live view as multipart/x-mixed-replace. Each
// connection waits on the hub for a newer frame than the one it sent last,
// so a slow client skips frames instead of holding anything up. A write
// failure or timeout ends only this connection.
func StreamHandler(frames FrameSource, writeTimeout time.Duration, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)

		h := w.Header()
		h.Set("Age", "0")
		h.Set("Cache-Control", "no-cache, private")
		h.Set("Pragma", "no-cache")
		h.Set("Content-Type", "multipart/x-mixed-replace; boundary="+StreamBoundary)
		w.WriteHeader(http.StatusOK)
		rc.Flush()

		detach := frames.Attach()
		defer detach()

		client := r.RemoteAddr
		logger.Info("📺 Streaming client connected: %s", client)

		var lastSeen uint64
		for {
			frame, err := frames.AwaitNext(r.Context(), lastSeen)
			if err != nil {
				if errors.Is(err, framehub.ErrClosed) {
					logger.Info("Stream closed for %s: server shutting down", client)
				} else {
					logger.Info("Streaming client %s went away", client)
				}
				return
			}

			if writeTimeout > 0 {
				rc.SetWriteDeadline(time.Now().Add(writeTimeout))
			}
			if err := writePart(w, frame.Data); err != nil {
				logger.Warning("Removed streaming client %s: %v", client, err)
				return
			}
			if err := rc.Flush(); err != nil {
				logger.Warning("Removed streaming client %s: %v", client, err)
				return
			}
			lastSeen = frame.Version
		}
	}
}

func writePart(w io.Writer, data []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", StreamBoundary, len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

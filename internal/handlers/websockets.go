package handlers

import (
	"context"
	"net/http"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/services/websocket"

	gorilla "github.com/gorilla/websocket"
)

var Upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler sends every new frame as a binary JPEG message. It
// follows the same per-connection loop as the MJPEG stream.
func ViewWebsocketHandler(frames FrameSource, writeTimeout time.Duration, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warning("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()

		detach := frames.Attach()
		defer detach()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// The read side only detects the viewer going away.
		go func() {
			defer cancel()
			connection.SetReadLimit(512)
			for {
				if _, _, err := connection.ReadMessage(); err != nil {
					return
				}
			}
		}()

		logger.Info("Viewer connected: %s", r.RemoteAddr)

		var lastSeen uint64
		for {
			frame, err := frames.AwaitNext(ctx, lastSeen)
			if err != nil {
				logger.Info("Viewer disconnected: %s", r.RemoteAddr)
				return
			}
			if writeTimeout > 0 {
				connection.SetWriteDeadline(time.Now().Add(writeTimeout))
			}
			if err := connection.WriteMessage(gorilla.BinaryMessage, frame.Data); err != nil {
				logger.Warning("Removed viewer %s: %v", r.RemoteAddr, err)
				return
			}
			lastSeen = frame.Version
		}
	}
}

// AlertsWebsocketHandler subscribes the client to the live alert feed.
func AlertsWebsocketHandler(hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warning("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)

		if err := hub.Register(connection); err != nil {
			connection.Close()
			return
		}
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				return
			}
		}
	}
}

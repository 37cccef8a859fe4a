package routes

import (
	"net/http"
	"time"

	"facewatch/internal/config"
	"facewatch/internal/handlers"
	"facewatch/internal/logger"
	"facewatch/internal/middleware"
	"facewatch/internal/repository"
	"facewatch/internal/services/websocket"
)

// Dependencies groups what the HTTP surface reads from the pipeline.
type Dependencies struct {
	Config     *config.Config
	Logger     *logger.Logger
	Frames     handlers.FrameSource
	AlertHub   *websocket.HubService
	Recordings repository.RecordingRepository
	Alerts     repository.AlertRepository
	Status     func() handlers.PipelineStatus
}

// SetupRoutes registers the landing page, the live views, recordings, API
// and log endpoints, and wraps the mux with the authentication middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	cfg, log := deps.Config, deps.Logger
	mux := http.NewServeMux()

	// Landing page and live stream
	mux.HandleFunc("/", handlers.RootHandler)
	mux.HandleFunc("/index.html", handlers.IndexHandler)
	mux.HandleFunc("/stream.mjpg", handlers.StreamHandler(deps.Frames, cfg.StreamWriteTimeout, log))

	// Recordings
	mux.HandleFunc("/recordings", handlers.RecordingsHandler(cfg.RecordingsDirectory, log))
	mux.HandleFunc("/recordings/", handlers.RecordingsHandler(cfg.RecordingsDirectory, log))

	// API endpoints
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(deps.Frames, cfg.StreamWriteTimeout, log))
	mux.HandleFunc("/api/status", handlers.StatusHandler(deps.Status, log))
	if deps.AlertHub != nil {
		mux.HandleFunc("/api/alerts/live", handlers.AlertsWebsocketHandler(deps.AlertHub, log))
	}
	if deps.Alerts != nil {
		mux.HandleFunc("/api/alerts", handlers.AlertsHandler(deps.Alerts, log))
	}
	if deps.Recordings != nil {
		mux.HandleFunc("/api/recordings", handlers.RecordingsAPIHandler(deps.Recordings, log))
		mux.HandleFunc("DELETE /api/recordings/{name}", handlers.DeleteRecordingHandler(cfg.RecordingsDirectory, deps.Recordings, log))
	}

	// Log endpoints
	for _, level := range []string{"info", "warning", "error"} {
		file := level + ".log"
		mux.HandleFunc("/logs/"+level, handlers.ShowLogsHandler(log, file))
		mux.HandleFunc("/logs/"+level+"/clear", handlers.ClearLogsHandler(log, file))
	}

	// Auth endpoints
	mux.HandleFunc("/login", handlers.LoginPageHandler)
	mux.HandleFunc("/auth/login", handlers.LoginHandler(cfg, log))
	mux.HandleFunc("/auth/logout", handlers.LogoutHandler)

	return middleware.AuthMiddleware(cfg.Password)(mux)
}

// NewServer builds the HTTP server for the configured address. WriteTimeout
// stays unset: streams set a write deadline per frame.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

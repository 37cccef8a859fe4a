package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"facewatch/internal/config"
	"facewatch/internal/handlers"
	"facewatch/internal/logger"
	"facewatch/internal/repository/sqlite"
	"facewatch/internal/routes"
	"facewatch/internal/services"
	"facewatch/internal/services/ai"
	"facewatch/internal/services/camera"
	"facewatch/internal/services/framehub"
	"facewatch/internal/services/notify"
	"facewatch/internal/services/recording"
	"facewatch/internal/services/websocket"
)

const shutdownTimeout = 5 * time.Second

// App owns every pipeline component. There is no global state: handlers
// and the capture loop only see what is passed to them here.
type App struct {
	config *config.Config
	logger *logger.Logger

	db         *sqlite.DB
	frames     *framehub.Hub
	recorder   *recording.Controller
	alertHub   *websocket.HubService
	mqtt       *notify.MQTTTransport
	dispatcher *notify.Dispatcher
	camera     *camera.Camera
	detector   *ai.DetectorService
	manager    *services.Manager
	server     *http.Server

	startedAt time.Time
}

// NewApp opens the database, the camera and the detector and wires them
// into the capture loop and the HTTP server. Nothing runs until Run.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{config: cfg, logger: log, startedAt: time.Now()}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	recordings := sqlite.NewRecordingRepository(db)
	alerts := sqlite.NewAlertRepository(db)

	a.frames = framehub.New()

	recorder, err := recording.NewController(cfg.RecordingsDirectory, cfg.RecordingFPS,
		camera.VideoSinkOpener{Codec: cfg.RecordingCodec}, log, recording.WithStore(recordings))
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to create recording controller: %w", err)
	}
	a.recorder = recorder

	a.alertHub = websocket.NewHubService(log)
	a.dispatcher = notify.NewDispatcher(cfg.NotifyWorkers, cfg.NotifyQueueSize, cfg.NotifyTimeout, log,
		a.transports(alerts)...)

	cam, err := camera.Open(cfg, log)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.camera = cam

	detector, err := ai.NewDetectorService(cfg, log)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to load detector: %w", err)
	}
	a.detector = detector

	a.manager = services.NewManager(cam, detector, a.dispatcher, recorder, a.frames, log)

	router := routes.SetupRoutes(routes.Dependencies{
		Config:     cfg,
		Logger:     log,
		Frames:     a.frames,
		AlertHub:   a.alertHub,
		Recordings: recordings,
		Alerts:     alerts,
		Status:     a.Status,
	})
	a.server = routes.NewServer(fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port), router)

	return a, nil
}

// transports always includes the audit log and the dashboard hub; email and
// MQTT are added when configured. An unreachable broker is logged and skipped.
func (a *App) transports(alerts notify.AlertStore) []notify.Transport {
	transports := []notify.Transport{
		notify.NewAuditTransport(alerts),
		a.alertHub,
	}

	if a.config.Email.Enabled() {
		transports = append(transports, notify.NewEmailTransport(a.config.Email))
	} else {
		a.logger.Info("Email transport disabled (SMTP_HOST, EMAIL_ADDRESS and TO_ADDRESS required)")
	}

	if a.config.MQTT.Broker != "" {
		client, err := notify.DialMQTT(a.config.MQTT, a.logger)
		if err != nil {
			a.logger.Error("MQTT transport disabled: %v", err)
		} else {
			a.mqtt = notify.NewMQTTTransport(client, a.config.MQTT.Topic)
			transports = append(transports, a.mqtt)
		}
	}

	return transports
}

// Run serves HTTP and runs the capture loop until ctx is cancelled or one of
// them fails, then tears the pipeline down. A cancelled ctx returns nil.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.alertHub.Run(hubCtx)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	loopErr := make(chan error, 1)
	go func() {
		loopErr <- a.manager.Run(loopCtx)
	}()

	a.logger.Info("🚀 FaceWatch server listening on %s", a.server.Addr)
	a.logger.Info("📁 Recordings: %s", a.config.RecordingsDirectory)
	a.logger.Info("🙂 Admin faces: %v", a.detector.References())
	if a.config.Password == "" {
		a.logger.Warning("PASSWORD not set - recordings, API and logs are not protected")
	}

	var runErr error
	select {
	case runErr = <-loopErr:
		// the loop already returned
	case err := <-serverErr:
		runErr = fmt.Errorf("http server failed: %w", err)
		stopLoop()
		<-loopErr
	case <-ctx.Done():
		<-loopErr
	}
	if runErr != nil {
		a.logger.Error("Pipeline stopped: %v", runErr)
	}

	a.shutdown(stopHub)
	return runErr
}

// shutdown runs after the capture loop has returned, so nothing else
// touches the recorder or the camera.
func (a *App) shutdown(stopHub context.CancelFunc) {
	a.logger.Info("🛑 Shutting down")

	a.frames.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}

	a.recorder.Close()
	a.dispatcher.Stop()
	stopHub()

	a.closeResources()
}

func (a *App) closeResources() {
	if a.detector != nil {
		a.detector.Close()
	}
	if a.camera != nil {
		if err := a.camera.Close(); err != nil {
			a.logger.Warning("Failed to close camera: %v", err)
		}
	}
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warning("Failed to close database: %v", err)
		}
	}
}

// Status is the snapshot served on /api/status.
func (a *App) Status() handlers.PipelineStatus {
	latest := a.frames.Latest()
	var published int64
	if a.mqtt != nil {
		published = a.mqtt.Published()
	}
	return handlers.PipelineStatus{
		Recording:     a.recorder.Status(),
		FrameVersion:  latest.Version,
		LastFrameAt:   latest.CapturedAt,
		Viewers:       a.frames.Viewers(),
		Notifications: a.dispatcher.Stats(),
		MQTTPublished: published,
		References:    a.detector.References(),
		Uptime:        time.Since(a.startedAt).Round(time.Second).String(),
	}
}

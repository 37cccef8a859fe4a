package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/models"
	"facewatch/internal/repository"
	"facewatch/internal/services/notify"
	"facewatch/internal/services/recording"
)

// PipelineStatus is the payload of /api/status.
type PipelineStatus struct {
	Recording     recording.Status `json:"recording"`
	FrameVersion  uint64           `json:"frame_version"`
	LastFrameAt   time.Time        `json:"last_frame_at"`
	Viewers       int              `json:"viewers"`
	Notifications notify.Stats     `json:"notifications"`
	MQTTPublished int64            `json:"mqtt_published"`
	References    []string         `json:"references"`
	Uptime        string           `json:"uptime"`
}

// RecordingsData is a paginated list of recording sessions.
type RecordingsData struct {
	Recordings  []models.Recording `json:"recordings"`
	Length      int                `json:"length"`
	TotalPages  int                `json:"totalPages"`
	CurrentPage int                `json:"currentPage"`
	Limit       int                `json:"pageSize"`
}

// AlertsData holds the most recent alerts and the audit log counters.
type AlertsData struct {
	Alerts []models.Alert     `json:"alerts"`
	Stats  *models.AlertStats `json:"stats"`
}

// StatusHandler reports the live state of the pipeline.
func StatusHandler(status func() PipelineStatus, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status(), logger)
	}
}

// RecordingsAPIHandler returns stored recording sessions, newest first.
// Supports page, limit and status query parameters.
func RecordingsAPIHandler(repo repository.RecordingRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &models.RecordingFilter{
			Status: q.Get("status"),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		recordings, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying recordings: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		total, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting recordings: %v", err)
			total = len(recordings)
		}

		writeJSON(w, RecordingsData{
			Recordings:  recordings,
			Length:      total,
			TotalPages:  (total + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}, logger)
	}
}

// AlertsHandler returns the most recent alerts from the audit log.
func AlertsHandler(repo repository.AlertRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), 50)

		alerts, err := repo.GetRecent(limit)
		if err != nil {
			logger.Error("Error querying alerts: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		stats, err := repo.GetStats()
		if err != nil {
			logger.Error("Error reading alert stats: %v", err)
		}

		writeJSON(w, AlertsData{Alerts: alerts, Stats: stats}, logger)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

package repository

import (
	"time"

	"facewatch/internal/models"
)

// RecordingRepository defines the interface for recording session metadata.
type RecordingRepository interface {
	// Session lifecycle, driven by the recording controller
	StartSession(rec *models.Recording) (int64, error)
	FinishSession(id int64, endedAt time.Time, frames int64, status string) error

	// Create operations
	Insert(rec *models.Recording) (int64, error)

	// Read operations
	GetByFilename(filename string) (*models.Recording, error)
	GetAll(filter *models.RecordingFilter) ([]models.Recording, error)
	GetTotalCount(filter *models.RecordingFilter) (int, error)
	Exists(filename string) (bool, error)

	// Delete operations
	DeleteByFilename(filename string) error
}

// AlertRepository defines the interface for the alert audit log.
type AlertRepository interface {
	Insert(alert *models.Alert) error
	GetRecent(limit int) ([]models.Alert, error)
	GetStats() (*models.AlertStats, error)
	DeleteAll() error
}

package sqlite

import (
	"fmt"

	"facewatch/internal/models"
)

// AlertRepository implements repository.AlertRepository for SQLite.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new SQLite alert repository.
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Insert adds an alert to the audit log.
func (r *AlertRepository) Insert(alert *models.Alert) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO alerts (id, subject, message, created_at)
		VALUES (?, ?, ?, ?)
	`, alert.ID, alert.Subject, alert.Message, alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetRecent returns up to limit alerts, newest first.
func (r *AlertRepository) GetRecent(limit int) ([]models.Alert, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Conn().Query(`
		SELECT id, subject, message, created_at
		FROM alerts ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.Subject, &a.Message, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// GetStats returns statistics about stored alerts.
func (r *AlertRepository) GetStats() (*models.AlertStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.AlertStats{
		PerSubject: make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&stats.TotalAlerts); err != nil {
		return nil, err
	}

	rows, err := r.db.Conn().Query(`SELECT subject, COUNT(*) FROM alerts GROUP BY subject`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var subject string
		var count int
		if err := rows.Scan(&subject, &count); err != nil {
			return nil, err
		}
		stats.PerSubject[subject] = count
	}

	return stats, rows.Err()
}

// DeleteAll clears the audit log.
func (r *AlertRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM alerts`); err != nil {
		return fmt.Errorf("failed to delete alerts: %w", err)
	}
	return nil
}

package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"facewatch/internal/models"
)

// RecordingRepository implements repository.RecordingRepository for SQLite.
type RecordingRepository struct {
	db *DB
}

// NewRecordingRepository creates a new SQLite recording repository.
func NewRecordingRepository(db *DB) *RecordingRepository {
	return &RecordingRepository{db: db}
}

const recordingColumns = `id, filename, filepath, started_at, ended_at, frames, status, filesize`

// StartSession stores a new active session and returns its ID.
func (r *RecordingRepository) StartSession(rec *models.Recording) (int64, error) {
	if rec.Status == "" {
		rec.Status = models.RecordingActive
	}
	return r.Insert(rec)
}

// FinishSession closes a session and records the size of its file.
func (r *RecordingRepository) FinishSession(id int64, endedAt time.Time, frames int64, status string) error {
	r.db.Lock()
	defer r.db.Unlock()

	var path string
	err := r.db.Conn().QueryRow(`SELECT filepath FROM recordings WHERE id = ?`, id).Scan(&path)
	if err == sql.ErrNoRows {
		return fmt.Errorf("recording %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to get recording: %w", err)
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	if _, err := r.db.Conn().Exec(`
		UPDATE recordings SET ended_at = ?, frames = ?, status = ?, filesize = ?
		WHERE id = ?
	`, endedAt, frames, status, size, id); err != nil {
		return fmt.Errorf("failed to finish recording: %w", err)
	}
	return nil
}

// Insert adds a new recording record to the database.
func (r *RecordingRepository) Insert(rec *models.Recording) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO recordings (filename, filepath, started_at, ended_at, frames, status, filesize)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Filename, rec.FilePath, rec.StartedAt, rec.EndedAt, rec.Frames, rec.Status, rec.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert recording: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecording(row rowScanner) (*models.Recording, error) {
	var rec models.Recording
	var endedAt sql.NullTime
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.FilePath, &rec.StartedAt, &endedAt, &rec.Frames, &rec.Status, &rec.FileSize); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		rec.EndedAt = &t
	}
	return &rec, nil
}

// GetByFilename retrieves a recording by its filename.
func (r *RecordingRepository) GetByFilename(filename string) (*models.Recording, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+recordingColumns+` FROM recordings WHERE filename = ?`, filename)
	rec, err := scanRecording(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	return rec, nil
}

func applyRecordingFilter(query string, filter *models.RecordingFilter) (string, []interface{}) {
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	if !filter.StartDate.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, filter.StartDate)
	}

	if !filter.EndDate.IsZero() {
		query += " AND started_at <= ?"
		args = append(args, filter.EndDate)
	}

	return query, args
}

// GetAll retrieves recordings based on filter criteria, newest first.
func (r *RecordingRepository) GetAll(filter *models.RecordingFilter) ([]models.Recording, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applyRecordingFilter(`SELECT `+recordingColumns+` FROM recordings WHERE 1=1`, filter)
	query += " ORDER BY started_at DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}
	defer rows.Close()

	recordings := []models.Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		recordings = append(recordings, *rec)
	}

	return recordings, rows.Err()
}

// GetTotalCount returns the number of recordings matching the filter.
func (r *RecordingRepository) GetTotalCount(filter *models.RecordingFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applyRecordingFilter(`SELECT COUNT(*) FROM recordings WHERE 1=1`, filter)

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recordings: %w", err)
	}
	return count, nil
}

// Exists checks if a recording with the given filename exists.
func (r *RecordingRepository) Exists(filename string) (bool, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM recordings WHERE filename = ?`, filename).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recording existence: %w", err)
	}
	return count > 0, nil
}

// DeleteByFilename removes a recording by its filename.
func (r *RecordingRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM recordings WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete recording: %w", err)
	}
	return nil
}

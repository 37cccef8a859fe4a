package models

import "time"

// Recording status values stored with each session.
const (
	RecordingActive   = "recording"
	RecordingFinished = "finished"
	RecordingFailed   = "failed"
)

// Recording represents a persisted recording session.
type Recording struct {
	ID        int64      `json:"id"`
	Filename  string     `json:"filename"`
	FilePath  string     `json:"filepath"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Frames    int64      `json:"frames"`
	Status    string     `json:"status"`
	FileSize  int64      `json:"filesize"`
}

// RecordingFilter contains filtering options for querying recordings.
type RecordingFilter struct {
	Status    string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

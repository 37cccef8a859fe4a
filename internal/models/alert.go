package models

import "time"

// Alert is a single notification produced for one detected region.
type Alert struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// AlertStats contains counters about stored alerts.
type AlertStats struct {
	TotalAlerts int            `json:"total_alerts"`
	PerSubject  map[string]int `json:"per_subject"`
}

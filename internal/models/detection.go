package models

import "image"

// Verdict is the authorization outcome attached to one detected region.
type Verdict int

const (
	Unauthorized Verdict = iota
	Authorized
)

func (v Verdict) String() string {
	if v == Authorized {
		return "Authorized"
	}
	return "Unauthorized"
}

// Region represents one detected face in a frame.
type Region struct {
	Box     image.Rectangle `json:"box"`
	Verdict Verdict         `json:"verdict"`
	Name    string          `json:"name,omitempty"` // reference name when authorized
	// Distance is the recognizer score for the closest reference (lower is closer).
	Distance float64 `json:"distance"`
}

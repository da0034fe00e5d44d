package core

import "time"

// Checkpoint records how far a named dispatcher has advanced through its
// source.
type Checkpoint struct {
	Name      string    `json:"name"`
	Index     int       `json:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

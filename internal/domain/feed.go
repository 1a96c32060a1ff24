package domain

import "time"

// FeedStatus describes the upstream connection supervisor's current state.
// It is read by the health handler and the ops notifier.
type FeedStatus struct {
	Connected bool      `json:"connected"`
	Attempts  int       `json:"reconnect_attempts"`
	Fatal     bool      `json:"fatal"`
	LastError string    `json:"last_error,omitempty"`
	Since     time.Time `json:"since"`
}

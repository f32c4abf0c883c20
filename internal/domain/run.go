package domain

import "time"

// SyncRun status constants.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// SyncRun is one attempt record of fetch→reconcile for a binding.
// Append-only; never mutated after finish.
type SyncRun struct {
	ID             string     `db:"id"              json:"id"`
	BindingID      string     `db:"binding_id"      json:"binding_id"`
	Status         string     `db:"status"          json:"status"`
	Strategy       string     `db:"strategy"        json:"strategy"`
	Attempts       int        `db:"attempts"        json:"attempts"`
	NewCount       int        `db:"new_count"       json:"new_count"`
	UpdatedCount   int        `db:"updated_count"   json:"updated_count"`
	UnchangedCount int        `db:"unchanged_count" json:"unchanged_count"`
	StartedAt      time.Time  `db:"started_at"      json:"started_at"`
	FinishedAt     *time.Time `db:"finished_at"     json:"finished_at,omitempty"`
	ErrorMessage   *string    `db:"error_message"   json:"error_message,omitempty"`
}

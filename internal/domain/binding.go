package domain

import "time"

// Binding associates one event with one source and the URL to poll for it.
// Mutated exclusively by the sync orchestrator after each run.
type Binding struct {
	ID             string     `db:"id"               json:"id"`
	EventID        string     `db:"event_id"         json:"event_id"`
	SourceID       string     `db:"source_id"        json:"source_id"`
	URL            string     `db:"url"              json:"url"`
	IsPrimary      bool       `db:"is_primary"       json:"is_primary"`
	LastHash       *string    `db:"last_hash"        json:"last_hash,omitempty"`
	LastHTTPStatus *int       `db:"last_http_status" json:"last_http_status,omitempty"`
	LastError      *string    `db:"last_error"       json:"last_error,omitempty"`
	LastCheckedAt  *time.Time `db:"last_checked_at"  json:"last_checked_at,omitempty"`
	NextCheckAt    *time.Time `db:"next_check_at"    json:"next_check_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"       json:"updated_at"`
}

// Due reports whether the binding is due for a check at the given instant.
// A binding with no next_check_at has never been checked and is always due.
func (b *Binding) Due(now time.Time) bool {
	return b.NextCheckAt == nil || !b.NextCheckAt.After(now)
}

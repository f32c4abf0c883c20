package domain

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RawCrawlEntry status constants.
const (
	EntryStatusPending     = "pending"
	EntryStatusNeedsReview = "needs_review"
	EntryStatusProcessed   = "processed"
	EntryStatusIgnored     = "ignored"
)

// RawCrawlEntry is one persisted snapshot of fetched content plus its
// review lifecycle status. Content is immutable once written; only the
// status and processed timestamp change.
type RawCrawlEntry struct {
	ID          string         `db:"id"           json:"id"`
	BindingID   string         `db:"binding_id"   json:"binding_id"`
	SourceID    string         `db:"source_id"    json:"source_id"`
	URL         string         `db:"url"          json:"url"`
	Content     string         `db:"content"      json:"content"`
	ContentHash string         `db:"content_hash" json:"content_hash"`
	HTTPStatus  int            `db:"http_status"  json:"http_status"`
	ContentType string         `db:"content_type" json:"content_type"`
	Extraction  ExtractionMeta `db:"extraction"   json:"extraction"`
	Status      string         `db:"status"       json:"status"`
	FetchedAt   time.Time      `db:"fetched_at"   json:"fetched_at"`
	ProcessedAt *time.Time     `db:"processed_at" json:"processed_at,omitempty"`
}

// ExtractionMeta records how field candidates were produced from the content.
type ExtractionMeta struct {
	Method     string           `json:"method,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	Candidates []FieldCandidate `json:"candidates,omitempty"`
}

// Scan implements the sql.Scanner interface for JSONB columns.
func (m *ExtractionMeta) Scan(value any) error {
	if value == nil {
		*m = ExtractionMeta{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for ExtractionMeta")
	}

	if len(data) == 0 {
		*m = ExtractionMeta{}
		return nil
	}

	return json.Unmarshal(data, m)
}

// Value implements the driver.Valuer interface.
func (m ExtractionMeta) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// HashContent computes the content hash used for fetch deduplication.
func HashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// entryTransitions lists the allowed review lifecycle transitions.
// processed and ignored are terminal.
var entryTransitions = map[string][]string{
	EntryStatusPending:     {EntryStatusNeedsReview, EntryStatusProcessed},
	EntryStatusNeedsReview: {EntryStatusProcessed, EntryStatusIgnored},
	EntryStatusProcessed:   {},
	EntryStatusIgnored:     {},
}

// ValidateEntryTransition checks if a review lifecycle transition is valid.
func ValidateEntryTransition(from, to string) error {
	allowed, exists := entryTransitions[from]
	if !exists {
		return fmt.Errorf("unknown entry status: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid entry transition from %s to %s", from, to)
}

// IsTerminalEntryStatus reports whether no further transitions are allowed.
func IsTerminalEntryStatus(status string) bool {
	return status == EntryStatusProcessed || status == EntryStatusIgnored
}

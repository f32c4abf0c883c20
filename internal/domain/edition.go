package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Canonical edition field names.
const (
	FieldRaceDate           = "race_date"
	FieldRegistrationStatus = "registration_status"
	FieldRegistrationURL    = "registration_url"
	FieldRegistrationOpens  = "registration_opens"
	FieldRegistrationCloses = "registration_closes"
)

// Manual resolution provenance marker. Automated candidates can never match
// its priority, so a manually resolved field is only replaced by another
// manual resolution.
const (
	ManualSourceID = "manual"
	ManualPriority = math.MaxInt32
)

// DateLayout is the canonical layout for date-valued fields.
const DateLayout = "2006-01-02"

// EditionFields lists every reconcilable field name.
var EditionFields = []string{
	FieldRaceDate,
	FieldRegistrationStatus,
	FieldRegistrationURL,
	FieldRegistrationOpens,
	FieldRegistrationCloses,
}

// IsEditionField reports whether the name is a known reconcilable field.
func IsEditionField(name string) bool {
	for _, f := range EditionFields {
		if f == name {
			return true
		}
	}
	return false
}

// Edition is the canonical record for one event-year.
type Edition struct {
	ID                 string        `db:"id"                  json:"id"`
	EventID            string        `db:"event_id"            json:"event_id"`
	Year               int           `db:"year"                json:"year"`
	RaceDate           *string       `db:"race_date"           json:"race_date,omitempty"`
	RegistrationStatus *string       `db:"registration_status" json:"registration_status,omitempty"`
	RegistrationURL    *string       `db:"registration_url"    json:"registration_url,omitempty"`
	RegistrationOpens  *string       `db:"registration_opens"  json:"registration_opens,omitempty"`
	RegistrationCloses *string       `db:"registration_closes" json:"registration_closes,omitempty"`
	Provenance         ProvenanceMap `db:"provenance"          json:"provenance"`
	CreatedAt          time.Time     `db:"created_at"          json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at"          json:"updated_at"`
}

// FieldValue returns the current value of a field by name.
func (e *Edition) FieldValue(field string) *string {
	switch field {
	case FieldRaceDate:
		return e.RaceDate
	case FieldRegistrationStatus:
		return e.RegistrationStatus
	case FieldRegistrationURL:
		return e.RegistrationURL
	case FieldRegistrationOpens:
		return e.RegistrationOpens
	case FieldRegistrationCloses:
		return e.RegistrationCloses
	default:
		return nil
	}
}

// SetFieldValue sets a field by name. Returns an error for unknown fields.
func (e *Edition) SetFieldValue(field, value string) error {
	v := value
	switch field {
	case FieldRaceDate:
		e.RaceDate = &v
	case FieldRegistrationStatus:
		e.RegistrationStatus = &v
	case FieldRegistrationURL:
		e.RegistrationURL = &v
	case FieldRegistrationOpens:
		e.RegistrationOpens = &v
	case FieldRegistrationCloses:
		e.RegistrationCloses = &v
	default:
		return fmt.Errorf("unknown edition field: %s", field)
	}
	return nil
}

// Provenance records which source, at what priority and rank, supplied a
// field's current value and when it was applied.
type Provenance struct {
	SourceID  string    `json:"source_id"`
	Priority  int       `json:"priority"`
	Rank      int       `json:"rank"`
	Manual    bool      `json:"manual,omitempty"`
	AppliedAt time.Time `json:"applied_at"`
}

// ManualProvenance builds the provenance stamped on operator-resolved fields.
func ManualProvenance(appliedAt time.Time) Provenance {
	return Provenance{
		SourceID:  ManualSourceID,
		Priority:  ManualPriority,
		Rank:      0,
		Manual:    true,
		AppliedAt: appliedAt,
	}
}

// ProvenanceMap maps field name to the provenance of its current value.
type ProvenanceMap map[string]Provenance

// Scan implements the sql.Scanner interface for JSONB columns.
func (p *ProvenanceMap) Scan(value any) error {
	if value == nil {
		*p = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for ProvenanceMap")
	}

	if len(data) == 0 {
		*p = ProvenanceMap{}
		return nil
	}

	return json.Unmarshal(data, p)
}

// Value implements the driver.Valuer interface.
func (p ProvenanceMap) Value() (driver.Value, error) {
	if len(p) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Fetch strategy identifiers.
const (
	StrategyHTML = "html"
	StrategyJSON = "json"
)

// StrategyConfigVersion is the current config schema version.
const StrategyConfigVersion = 1

// IsKnownStrategy reports whether the strategy tag is recognised.
func IsKnownStrategy(strategy string) bool {
	return strategy == StrategyHTML || strategy == StrategyJSON
}

// HTTPOptions tunes the outgoing request for a source.
type HTTPOptions struct {
	UserAgent string            `json:"user_agent,omitempty" mapstructure:"user_agent"`
	Headers   map[string]string `json:"headers,omitempty"    mapstructure:"headers"`
}

// SelectorOptions holds per-field CSS selectors for the HTML extractor.
type SelectorOptions struct {
	RaceDate           string `json:"race_date,omitempty"           mapstructure:"race_date"`
	RegistrationStatus string `json:"registration_status,omitempty" mapstructure:"registration_status"`
	RegistrationURL    string `json:"registration_url,omitempty"    mapstructure:"registration_url"`
	RegistrationOpens  string `json:"registration_opens,omitempty"  mapstructure:"registration_opens"`
	RegistrationCloses string `json:"registration_closes,omitempty" mapstructure:"registration_closes"`
}

// StrategyConfig is the typed, versioned per-source configuration that was
// previously an opaque JSON blob. Unknown versions and malformed payloads
// fail validation instead of flowing downstream.
type StrategyConfig struct {
	Version   int              `json:"version"             mapstructure:"version"`
	HTTP      *HTTPOptions     `json:"http,omitempty"      mapstructure:"http"`
	Selectors *SelectorOptions `json:"selectors,omitempty" mapstructure:"selectors"`
}

// DecodeStrategyConfig converts a free-form map (API payload, YAML config)
// into a typed StrategyConfig. Unknown keys are rejected.
func DecodeStrategyConfig(raw map[string]any) (StrategyConfig, error) {
	var cfg StrategyConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return cfg, fmt.Errorf("build decoder: %w", err)
	}
	if decodeErr := decoder.Decode(raw); decodeErr != nil {
		return cfg, fmt.Errorf("decode strategy config: %w", decodeErr)
	}
	return cfg, nil
}

// Validate checks the config against the given strategy tag.
func (c *StrategyConfig) Validate(strategy string) error {
	if c.Version == 0 {
		return errors.New("strategy config version is required")
	}
	if c.Version != StrategyConfigVersion {
		return fmt.Errorf("unsupported strategy config version %d", c.Version)
	}
	if strategy == StrategyHTML && c.Selectors == nil {
		return errors.New("html strategy requires selectors")
	}
	return nil
}

// Scan implements the sql.Scanner interface for JSONB columns.
func (c *StrategyConfig) Scan(value any) error {
	if value == nil {
		*c = StrategyConfig{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for StrategyConfig")
	}

	if len(data) == 0 {
		*c = StrategyConfig{}
		return nil
	}

	return json.Unmarshal(data, c)
}

// Value implements the driver.Valuer interface.
func (c StrategyConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

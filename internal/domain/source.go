// Package domain provides domain models used across the application.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Default source settings applied when a source is created without them.
const (
	SourceDefaultRetryMax           = 3
	SourceDefaultBackoffBaseSeconds = 5
	SourceDefaultRequestTimeoutMs   = 15000
	SourceDefaultMinIntervalSeconds = 86400
	SourceDefaultPriority           = 5
)

// Source represents one external data provider configuration.
type Source struct {
	ID                 string         `db:"id"                   json:"id"`
	Name               string         `db:"name"                 json:"name"`
	Active             bool           `db:"active"               json:"active"`
	Priority           int            `db:"priority"             json:"priority"`
	Strategy           string         `db:"strategy"             json:"strategy"`
	RetryMax           int            `db:"retry_max"            json:"retry_max"`
	BackoffBaseSeconds int            `db:"backoff_base_seconds" json:"backoff_base_seconds"`
	RequestTimeoutMs   int            `db:"request_timeout_ms"   json:"request_timeout_ms"`
	MinIntervalSeconds int            `db:"min_interval_seconds" json:"min_interval_seconds"`
	StrategyConfig     StrategyConfig `db:"strategy_config"      json:"strategy_config"`
	CreatedAt          time.Time      `db:"created_at"           json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"           json:"updated_at"`
}

// RequestTimeout returns the per-request timeout as a duration.
func (s *Source) RequestTimeout() time.Duration {
	if s.RequestTimeoutMs <= 0 {
		return time.Duration(SourceDefaultRequestTimeoutMs) * time.Millisecond
	}
	return time.Duration(s.RequestTimeoutMs) * time.Millisecond
}

// BackoffBase returns the retry backoff base as a duration.
func (s *Source) BackoffBase() time.Duration {
	if s.BackoffBaseSeconds <= 0 {
		return time.Duration(SourceDefaultBackoffBaseSeconds) * time.Second
	}
	return time.Duration(s.BackoffBaseSeconds) * time.Second
}

// MinInterval returns the minimum re-check interval as a duration.
func (s *Source) MinInterval() time.Duration {
	if s.MinIntervalSeconds <= 0 {
		return time.Duration(SourceDefaultMinIntervalSeconds) * time.Second
	}
	return time.Duration(s.MinIntervalSeconds) * time.Second
}

// SetDefaults fills zero-valued tuning knobs with defaults.
func (s *Source) SetDefaults() {
	if s.RetryMax <= 0 {
		s.RetryMax = SourceDefaultRetryMax
	}
	if s.BackoffBaseSeconds <= 0 {
		s.BackoffBaseSeconds = SourceDefaultBackoffBaseSeconds
	}
	if s.RequestTimeoutMs <= 0 {
		s.RequestTimeoutMs = SourceDefaultRequestTimeoutMs
	}
	if s.MinIntervalSeconds <= 0 {
		s.MinIntervalSeconds = SourceDefaultMinIntervalSeconds
	}
	if s.Priority <= 0 {
		s.Priority = SourceDefaultPriority
	}
}

// Validate checks the source configuration for operator errors.
func (s *Source) Validate() error {
	if s.Name == "" {
		return errors.New("source name is required")
	}
	// ManualPriority is reserved for operator resolutions.
	if s.Priority >= ManualPriority {
		return fmt.Errorf("source priority must be below %d", ManualPriority)
	}
	if !IsKnownStrategy(s.Strategy) {
		return fmt.Errorf("unknown strategy %q", s.Strategy)
	}
	if err := s.StrategyConfig.Validate(s.Strategy); err != nil {
		return fmt.Errorf("strategy config: %w", err)
	}
	return nil
}

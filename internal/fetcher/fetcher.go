// Package fetcher retrieves raw content from external sources.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/racesync/internal/domain"
)

// Request describes one fetch of a binding's URL.
type Request struct {
	URL      string
	Strategy string
	Config   domain.StrategyConfig
	Timeout  time.Duration
}

// Result is the raw outcome of a successful fetch.
type Result struct {
	Status      int
	ContentType string
	Body        []byte
}

// Interface is the narrow contract the sync orchestrator depends on.
type Interface interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
}

// Error is a classified fetch failure. Transient errors are retried with
// backoff; permanent errors fail the run immediately.
type Error struct {
	Status    int
	Transient bool
	Message   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch failed: status %d: %s", e.Status, e.Message)
	}
	return "fetch failed: " + e.Message
}

// IsTransient reports whether the error is worth retrying.
func IsTransient(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Transient
	}
	return false
}

// StatusOf returns the HTTP-like status carried by a fetch error, or 0.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

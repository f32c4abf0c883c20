// Package extractor turns raw fetched content into structured field candidates.
package extractor

import (
	"context"

	"github.com/jonesrussell/racesync/internal/domain"
)

// Extraction method tags recorded on raw crawl entries.
const (
	MethodSelectors = "selectors"
	MethodJSONBody  = "json_body"
)

// Interface is the contract the sync orchestrator extracts through.
// Implementations return zero or more candidates; ambiguity is expressed
// with low confidence, never with an error.
type Interface interface {
	Extract(ctx context.Context, body []byte, contentType string, cfg domain.StrategyConfig) ([]domain.FieldCandidate, error)
}

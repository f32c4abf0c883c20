package extractor

import (
	"strings"
	"time"

	"github.com/jonesrussell/racesync/internal/domain"
)

// dateLayouts lists the formats race sites commonly publish dates in.
var dateLayouts = []string{
	domain.DateLayout,
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	time.RFC3339,
}

// ParseDate attempts to parse free-form date text, returning the canonical
// YYYY-MM-DD form. Ambiguous day/month orderings resolve to whichever
// layout parses first; sites that need the other order should publish
// unambiguous text or be routed through review.
func ParseDate(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(domain.DateLayout), true
		}
	}
	return "", false
}

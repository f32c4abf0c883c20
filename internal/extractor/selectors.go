package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/racesync/internal/domain"
)

// Candidate confidence levels. A parsed, normalised value is trustworthy;
// raw text that could not be normalised needs a human eye.
const (
	confidenceParsed = 0.9
	confidenceRaw    = 0.4
)

// SelectorExtractor reads field candidates out of HTML using the per-source
// CSS selectors, or out of a flat JSON document keyed by field name.
type SelectorExtractor struct{}

// NewSelectorExtractor creates a new selector-based extractor.
func NewSelectorExtractor() *SelectorExtractor {
	return &SelectorExtractor{}
}

// Extract parses the body and returns candidates for every field the
// source's config maps. Fields whose value cannot be normalised are still
// returned, at low confidence, so they reach the review queue instead of
// being dropped.
func (e *SelectorExtractor) Extract(
	_ context.Context,
	body []byte,
	contentType string,
	cfg domain.StrategyConfig,
) ([]domain.FieldCandidate, error) {
	if strings.Contains(contentType, "json") {
		return e.extractJSON(body)
	}
	return e.extractHTML(body, cfg)
}

func (e *SelectorExtractor) extractHTML(body []byte, cfg domain.StrategyConfig) ([]domain.FieldCandidate, error) {
	if cfg.Selectors == nil {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	selectors := map[string]string{
		domain.FieldRaceDate:           cfg.Selectors.RaceDate,
		domain.FieldRegistrationStatus: cfg.Selectors.RegistrationStatus,
		domain.FieldRegistrationURL:    cfg.Selectors.RegistrationURL,
		domain.FieldRegistrationOpens:  cfg.Selectors.RegistrationOpens,
		domain.FieldRegistrationCloses: cfg.Selectors.RegistrationCloses,
	}

	var candidates []domain.FieldCandidate
	for _, field := range domain.EditionFields {
		selector := selectors[field]
		if selector == "" {
			continue
		}

		sel := doc.Find(selector)
		rank := 0
		sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if field == domain.FieldRegistrationURL {
				if href, exists := s.Attr("href"); exists {
					text = strings.TrimSpace(href)
				}
			}
			if text == "" {
				return true
			}
			candidates = append(candidates, normalize(field, text, MethodSelectors, rank))
			rank++
			return rank < maxCandidatesPerField
		})
	}

	return candidates, nil
}

// maxCandidatesPerField bounds how many matches one selector contributes.
const maxCandidatesPerField = 3

func (e *SelectorExtractor) extractJSON(body []byte) ([]domain.FieldCandidate, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	var candidates []domain.FieldCandidate
	for _, field := range domain.EditionFields {
		raw, exists := payload[field]
		if !exists {
			continue
		}
		text, ok := raw.(string)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		candidates = append(candidates, normalize(field, strings.TrimSpace(text), MethodJSONBody, 0))
	}

	return candidates, nil
}

// normalize builds a candidate, normalising date fields to the canonical
// layout and registration status to its known vocabulary.
func normalize(field, text, method string, rank int) domain.FieldCandidate {
	c := domain.FieldCandidate{
		Field:      field,
		Value:      text,
		Confidence: confidenceRaw,
		Method:     method,
		Rank:       rank,
	}

	switch field {
	case domain.FieldRaceDate, domain.FieldRegistrationOpens, domain.FieldRegistrationCloses:
		if date, ok := ParseDate(text); ok {
			c.Value = date
			c.Confidence = confidenceParsed
		}
	case domain.FieldRegistrationStatus:
		if status, ok := normalizeStatus(text); ok {
			c.Value = status
			c.Confidence = confidenceParsed
		}
	case domain.FieldRegistrationURL:
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			c.Confidence = confidenceParsed
		}
	}

	return c
}

// normalizeStatus maps free-form registration wording to open/closed.
func normalizeStatus(text string) (string, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "sold out"), strings.Contains(lower, "closed"), strings.Contains(lower, "full"):
		return "closed", true
	case strings.Contains(lower, "open"), strings.Contains(lower, "register now"):
		return "open", true
	default:
		return "", false
	}
}

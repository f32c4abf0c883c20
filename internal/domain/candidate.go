package domain

// FieldCandidate is one structured value the extractor read out of raw
// content. Rank orders candidates within a single source's output; lower
// rank means more specific/preferred.
type FieldCandidate struct {
	Field      string  `json:"field"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	Rank       int     `json:"rank"`
}

package analysis

import "context"

// Suggestion is the analyzer's output for a single product image:
// structured attribute suggestions plus an ordered set of label suggestions.
type Suggestion struct {
	// Fields maps attribute names (e.g. "color", "material", "style") to
	// suggested values.
	Fields map[string]string

	// Labels is an ordered list of suggested tags, most relevant first.
	Labels []string
}

// Analyzer defines the interface for analyzing product images.
type Analyzer interface {
	// Analyze inspects the image behind imageRef and returns suggested
	// fields and labels. Errors are classified per errors.go: transient
	// failures may be retried by the caller, terminal failures may not.
	Analyze(ctx context.Context, imageRef string) (*Suggestion, error)
}

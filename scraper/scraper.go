package scraper

import (
	"context"

	"github.com/debugsito/scrap-sunat/models"
)

// Searcher is the entry point used by the API, the batch runner and the queue processor
type Searcher interface {
	// Search validates the request, then runs it against the portal with bounded retries.
	// The error is non-nil only for a *models.ValidationError.
	Search(ctx context.Context, req models.SearchRequest, opts SearchOptions) (models.Outcome, error)
}

// SearchOptions are per-call overrides
type SearchOptions struct {
	// Debug launches a visible browser with slow motion
	Debug bool
}

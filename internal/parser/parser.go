package parser

import (
	"github.com/educatorstribe/tribenews/internal/types"
)

// Extractor turns a fetched source page into candidate article links.
type Extractor interface {
	// Extract returns candidates in page order, deduplicated by canonical
	// URL and capped at the extractor's limit.
	Extract(resp *types.Response) ([]*types.Candidate, error)
}

var (
	_ Extractor = (*LinkExtractor)(nil)
	_ Extractor = (*FeedExtractor)(nil)
)

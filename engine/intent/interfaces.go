// Package intent turns a free-text vehicle query into structured search
// intent plus a query embedding. Extraction and embedding are capability
// contracts implemented by external services; the pipeline fails fast
// when either is unavailable because every downstream stage depends on
// their output.
package intent

import (
	"context"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
)

// Extractor extracts structured intent from a natural-language query.
// Implementations must be safe for concurrent use.
type Extractor interface {
	// ExtractIntent returns the filters mentioned in the query. Fields
	// the query does not mention are left nil, never fabricated.
	ExtractIntent(ctx context.Context, query string) (domain.Intent, error)
}

// Embedder generates fixed-dimensionality embeddings from text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns a domain.EmbeddingDim-length vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

package retrieval

import (
	"context"

	"github.com/kailas-cloud/bioscope/internal/domain"
)

// Embedder vectorizes questions. Model must match the model the index was built with.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	Model() string
}

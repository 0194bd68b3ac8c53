package indexing

import (
	"context"

	"github.com/kailas-cloud/bioscope/internal/domain"
)

// Embedder vectorizes document chunks. Model identifies the resulting vector space.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	Model() string
}

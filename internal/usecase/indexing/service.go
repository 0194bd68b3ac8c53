// Package indexing embeds chunks and builds the in-memory similarity index.
package indexing

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/bioscope/internal/domain"
	"github.com/kailas-cloud/bioscope/internal/domain/index"
)

// Service builds indexes. It never publishes them; a failed build leaves no partial index.
type Service struct {
	embedder Embedder
}

// New creates an index builder.
func New(embedder Embedder) *Service {
	return &Service{embedder: embedder}
}

// Build embeds every chunk in order and returns an index tagged with the embedding model.
func (s *Service) Build(ctx context.Context, chunks []string) (*index.Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to index: %w", domain.ErrNoExtractableText)
	}

	res, err := domain.EmbedBatch(ctx, s.embedder, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = index.Entry{Text: c, Vector: res.Embeddings[i]}
	}

	idx, err := index.New(s.embedder.Model(), entries)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return idx, nil
}

// Package retrieval finds the chunks most similar to a question.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/bioscope/internal/domain"
	"github.com/kailas-cloud/bioscope/internal/domain/index"
)

// Service runs similarity search over a session index.
type Service struct {
	embedder Embedder
	topK     int
}

// New creates a retriever returning index.DefaultTopK chunks.
func New(embedder Embedder) *Service {
	return &Service{embedder: embedder, topK: index.DefaultTopK}
}

// WithTopK sets the number of chunks returned.
func (s *Service) WithTopK(k int) *Service {
	if k > 0 {
		s.topK = k
	}
	return s
}

// TopK returns the configured number of chunks.
func (s *Service) TopK() int { return s.topK }

// Retrieve returns at most TopK hits, best first. A nil index reports domain.ErrNoIndex.
func (s *Service) Retrieve(ctx context.Context, idx *index.Index, question string) ([]index.Hit, error) {
	if idx == nil {
		return nil, domain.ErrNoIndex
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if idx.Model() != s.embedder.Model() {
		return nil, fmt.Errorf(
			"index built with %q, query embedder is %q: %w",
			idx.Model(), s.embedder.Model(), domain.ErrEmbeddingModelMismatch,
		)
	}

	res, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := idx.Search(res.Embedding, s.topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return hits, nil
}

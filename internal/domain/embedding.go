package domain

import (
	"context"
	"fmt"
)

// Embedder turns text into a vector. Model names the embedding model; an index
// remembers it so queries are never compared against vectors from another model.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
	Model() string
}

// BatchEmbedder is implemented by embedders with a native multi-text call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector plus the tokens it cost.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds Embeddings[i] for the i-th input text and the
// summed token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

func (r *BatchEmbeddingResult) add(res EmbeddingResult) {
	r.Embeddings = append(r.Embeddings, res.Embedding)
	r.PromptTokens += res.PromptTokens
	r.TotalTokens += res.TotalTokens
}

// BatchFallback embeds texts one at a time, in order, stopping at the first
// failure or cancellation.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	out := BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return BatchEmbeddingResult{}, err
		}
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed text %d of %d: %w", i+1, len(texts), err)
		}
		out.add(res)
	}
	return out, nil
}

// EmbedBatch embeds texts through the native batch call when e has one. Either
// way the result holds exactly one vector per text, or an error matching
// ErrEmbeddingProviderError.
func EmbedBatch(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	be, ok := e.(BatchEmbedder)
	if !ok {
		return BatchFallback(ctx, e, texts)
	}

	res, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return BatchEmbeddingResult{}, fmt.Errorf(
			"provider returned %d vectors for %d texts: %w",
			len(res.Embeddings), len(texts), ErrEmbeddingProviderError,
		)
	}
	return res, nil
}

// InstructionEmbedder prefixes every text with a task instruction, e.g.
// "passage: " for document chunks and "query: " for questions.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder wraps inner. An empty instruction passes texts through.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Model returns the inner embedder's model.
func (e *InstructionEmbedder) Model() string { return e.inner.Model() }

// Embed embeds the instructed text.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.instruct(text))
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return result, nil
}

// BatchEmbed embeds the instructed texts, in order.
func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	instructed := texts
	if e.instruction != "" {
		instructed = make([]string, len(texts))
		for i, t := range texts {
			instructed[i] = e.instruct(t)
		}
	}

	res, err := EmbedBatch(ctx, e.inner, instructed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("instruction batch embed: %w", err)
	}
	return res, nil
}

func (e *InstructionEmbedder) instruct(text string) string {
	return e.instruction + text
}

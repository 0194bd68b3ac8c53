// Package answer synthesizes an answer from retrieved chunks in a single
// generation call ("stuff" mode: every chunk goes into one prompt).
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bioscope/internal/domain"
	"github.com/kailas-cloud/bioscope/internal/logger"
)

const promptTemplate = "Use the following pieces of context to answer the question at the end. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n" +
	"%s\n\nQuestion: %s\nHelpful Answer:"

// BuildPrompt joins chunks with a blank line and appends the question.
func BuildPrompt(question string, chunks []string) string {
	return fmt.Sprintf(promptTemplate, strings.Join(chunks, "\n\n"), question)
}

// Service answers questions over supplied context.
type Service struct {
	gen         Generator
	temperature *float32
}

// New creates an answer synthesizer using the provider's default temperature.
func New(gen Generator) *Service {
	return &Service{gen: gen}
}

// WithTemperature fixes the sampling temperature.
func (s *Service) WithTemperature(t float32) *Service {
	s.temperature = &t
	return s
}

// Answer returns the model's reply verbatim. Provider failures always wrap
// domain.ErrGenerationProviderError and never come back as answer text.
func (s *Service) Answer(ctx context.Context, question string, chunks []string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", domain.ErrEmptyQuestion
	}

	res, err := s.gen.Generate(ctx, domain.GenerationRequest{
		Parts:       []domain.Part{domain.TextPart(BuildPrompt(question, chunks))},
		Temperature: s.temperature,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrGenerationProviderError) {
			err = fmt.Errorf("%w: %w", domain.ErrGenerationProviderError, err)
		}
		return "", fmt.Errorf("generate answer: %w", err)
	}

	domain.UsageFromContext(ctx).AddGenerationTokens(res.TotalTokens)
	logger.FromContext(ctx).Debug("answer generated",
		zap.Int("chunks", len(chunks)),
		zap.Int("tokens", res.TotalTokens),
	)
	return res.Text, nil
}

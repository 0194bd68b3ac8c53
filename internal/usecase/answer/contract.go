package answer

import (
	"context"

	"github.com/kailas-cloud/bioscope/internal/domain"
)

// Generator produces the model's reply to one prompt.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}

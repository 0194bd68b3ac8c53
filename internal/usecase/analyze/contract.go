package analyze

import (
	"context"

	"github.com/kailas-cloud/bioscope/internal/domain"
)

// Generator runs one multimodal generation call.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}

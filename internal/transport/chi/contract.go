package chi

import (
	"context"

	domsess "github.com/kailas-cloud/bioscope/internal/domain/session"
	"github.com/kailas-cloud/bioscope/internal/domain/transcript"
	analyzeuc "github.com/kailas-cloud/bioscope/internal/usecase/analyze"
	"github.com/kailas-cloud/bioscope/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/bioscope/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/bioscope/internal/usecase/session"
)

// SessionService runs the per-session RAG workflow.
type SessionService interface {
	Create(ctx context.Context) (domsess.Snapshot, error)
	Get(ctx context.Context, id string) (domsess.Snapshot, error)
	Delete(ctx context.Context, id string) error
	Transcript(ctx context.Context, id string) ([]transcript.Turn, error)
	Process(ctx context.Context, id string, docs []extract.Document) (sessionuc.IngestReport, error)
	Ask(ctx context.Context, id, question string) (sessionuc.Answer, error)
}

// Analyzer assesses uploaded images.
type Analyzer interface {
	Analyze(ctx context.Context, req analyzeuc.Request) (analyzeuc.Result, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

package session

import (
	"context"

	"github.com/kailas-cloud/bioscope/internal/domain/index"
	"github.com/kailas-cloud/bioscope/internal/usecase/extract"
)

// Extractor turns uploaded documents into one text blob.
type Extractor interface {
	Extract(ctx context.Context, docs []extract.Document) (extract.Result, error)
}

// Chunker splits a text blob into overlapping chunks.
type Chunker interface {
	Split(text string) []string
}

// IndexBuilder embeds chunks into a new index.
type IndexBuilder interface {
	Build(ctx context.Context, chunks []string) (*index.Index, error)
}

// Retriever finds the chunks closest to a question.
type Retriever interface {
	Retrieve(ctx context.Context, idx *index.Index, question string) ([]index.Hit, error)
}

// Synthesizer answers a question from retrieved chunks.
type Synthesizer interface {
	Answer(ctx context.Context, question string, chunks []string) (string, error)
}

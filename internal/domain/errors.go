package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound signals a missing or evicted session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions signals that the session registry is full.
	ErrTooManySessions = errors.New("too many active sessions")
	// ErrNoIndex signals a question asked before any document was processed.
	ErrNoIndex = errors.New("no document index: process a document first")
	// ErrEmptyQuestion signals a blank question.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrNoDocuments signals an ingestion request without documents.
	ErrNoDocuments = errors.New("no documents uploaded")
	// ErrUnsupportedDocument signals a document type the extractor cannot read.
	ErrUnsupportedDocument = errors.New("unsupported document type")
	// ErrExtractionFailed signals a page or document that yielded no text under the abort policy.
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrNoExtractableText signals a corpus without any text.
	ErrNoExtractableText = errors.New("documents contain no extractable text")
	// ErrInvalidChunking signals invalid chunk size/overlap settings.
	ErrInvalidChunking = errors.New("invalid chunking parameters")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingModelMismatch signals a query embedder that differs from the index's model.
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")
	// ErrInvalidImage signals an image that is not a decodable PNG or JPEG.
	ErrInvalidImage = errors.New("invalid image")
	// ErrInvalidRole signals an unknown analysis audience role.
	ErrInvalidRole = errors.New("invalid role")

	// ErrMissingCredential signals an absent API key.
	ErrMissingCredential = errors.New("missing credential")
	// ErrCredentialRejected signals an API key refused by a provider.
	ErrCredentialRejected = errors.New("credential rejected")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationProviderError signals a text generation provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
)

// PageError identifies a page (or a whole document when Page is 0) that failed extraction.
type PageError struct {
	Document string
	Page     int
	Err      error
}

func (e *PageError) Error() string {
	if e.Page == 0 {
		return fmt.Sprintf("%s: %v", e.Document, e.Err)
	}
	return fmt.Sprintf("%s page %d: %v", e.Document, e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

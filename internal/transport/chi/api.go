package chi

import "time"

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodePayloadTooLarge        ErrorCode = "payload_too_large"
	ErrorCodeSessionNotFound        ErrorCode = "session_not_found"
	ErrorCodeTooManySessions        ErrorCode = "too_many_sessions"
	ErrorCodeIndexNotReady          ErrorCode = "index_not_ready"
	ErrorCodeModelMismatch          ErrorCode = "embedding_model_mismatch"
	ErrorCodeUnsupportedDocument    ErrorCode = "unsupported_document"
	ErrorCodeExtractionFailed       ErrorCode = "extraction_failed"
	ErrorCodeNoExtractableText      ErrorCode = "no_extractable_text"
	ErrorCodeInvalidImage           ErrorCode = "invalid_image"
	ErrorCodeCredentialMissing      ErrorCode = "credential_missing"
	ErrorCodeCredentialRejected     ErrorCode = "credential_rejected"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeGenerationProviderErr  ErrorCode = "generation_provider_error"
	ErrorCodeTimeout                ErrorCode = "timeout"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SessionResponse describes a session.
type SessionResponse struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	State      string    `json:"state"`
	Model      string    `json:"model,omitempty"`
	Dimensions int       `json:"dimensions,omitempty"`
	Chunks     int       `json:"chunks"`
	Sources    []string  `json:"sources"`
	Turns      int       `json:"turns"`
}

// SkippedPage is a page that produced no text under the skip policy.
type SkippedPage struct {
	Document string `json:"document"`
	Page     int    `json:"page,omitempty"`
	Reason   string `json:"reason"`
}

// IngestResponse reports a processed upload.
type IngestResponse struct {
	Documents    int           `json:"documents"`
	Pages        int           `json:"pages"`
	SkippedPages []SkippedPage `json:"skipped_pages"`
	Chars        int           `json:"chars"`
	Chunks       int           `json:"chunks"`
	Model        string        `json:"model"`
	Dimensions   int           `json:"dimensions"`
	Sources      []string      `json:"sources"`
}

// QuestionRequest is the body of POST /sessions/{session}/questions.
type QuestionRequest struct {
	Question string `json:"question"`
}

// SourceChunk is a retrieved chunk behind an answer.
type SourceChunk struct {
	Position int     `json:"position"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// AnswerResponse is the reply to a question.
type AnswerResponse struct {
	Answer  string        `json:"answer"`
	Sources []SourceChunk `json:"sources"`
}

// TurnResponse is one transcript entry.
type TurnResponse struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// TranscriptResponse lists a session's turns in order.
type TranscriptResponse struct {
	Turns []TurnResponse `json:"turns"`
}

// AnalyzeResponse is the image assessment.
type AnalyzeResponse struct {
	Analysis string `json:"analysis"`
	Role     string `json:"role"`
	Prompt   string `json:"prompt"`
}

// HealthResponse aggregates component checks.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

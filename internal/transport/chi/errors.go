package chi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bioscope/internal/domain"
	"github.com/kailas-cloud/bioscope/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// exposedSentinels are matched in order; the first hit becomes the client message.
var exposedSentinels = []error{
	domain.ErrSessionNotFound,
	domain.ErrTooManySessions,
	domain.ErrNoIndex,
	domain.ErrEmptyQuestion,
	domain.ErrNoDocuments,
	domain.ErrUnsupportedDocument,
	domain.ErrExtractionFailed,
	domain.ErrNoExtractableText,
	domain.ErrInvalidChunking,
	domain.ErrEmbeddingModelMismatch,
	domain.ErrInvalidImage,
	domain.ErrInvalidRole,
	domain.ErrMissingCredential,
	domain.ErrCredentialRejected,
	domain.ErrVectorDimMismatch,
	domain.ErrEmbeddingProviderError,
	domain.ErrGenerationProviderError,
	context.DeadlineExceeded,
}

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, ErrorCodeSessionNotFound),
		sentinelHandler(domain.ErrTooManySessions, http.StatusTooManyRequests, ErrorCodeTooManySessions),
		sentinelHandler(domain.ErrNoIndex, http.StatusConflict, ErrorCodeIndexNotReady),
		sentinelHandler(domain.ErrEmbeddingModelMismatch, http.StatusConflict, ErrorCodeModelMismatch),
		sentinelHandler(domain.ErrEmptyQuestion, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNoDocuments, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidRole, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidChunking, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidImage, http.StatusBadRequest, ErrorCodeInvalidImage),
		pageErrorHandler,
		sentinelHandler(domain.ErrUnsupportedDocument, http.StatusUnsupportedMediaType, ErrorCodeUnsupportedDocument),
		sentinelHandler(domain.ErrNoExtractableText, http.StatusUnprocessableEntity, ErrorCodeNoExtractableText),
		sentinelHandler(domain.ErrMissingCredential, http.StatusServiceUnavailable, ErrorCodeCredentialMissing),
		// rejected keys wrap the provider sentinel as well, so they go first
		sentinelHandler(domain.ErrCredentialRejected, http.StatusBadGateway, ErrorCodeCredentialRejected),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrGenerationProviderError, http.StatusBadGateway, ErrorCodeGenerationProviderErr),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, ErrorCodeTimeout),
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range exposedSentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// pageErrorHandler reports which document and page stopped an aborted extraction.
func pageErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrExtractionFailed) {
		return false
	}
	var pe *domain.PageError
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":     ErrorCodeExtractionFailed,
			"message":  msg,
			"document": pe.Document,
			"page":     pe.Page,
		})
		return true
	}
	writeError(w, http.StatusUnprocessableEntity, ErrorCodeExtractionFailed, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

// Package openai adapts OpenAI-compatible endpoints (Gemini's by default) to
// the domain Embedder and Generator contracts.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/bioscope/internal/domain"
)

// ClientConfig holds the provider connection settings shared by the embedder and generator.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates an OpenAI-compatible API client.
// Returns domain.ErrMissingCredential when no API key is configured.
func NewClient(cfg ClientConfig) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key: %w", domain.ErrMissingCredential)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return openai.NewClientWithConfig(clientCfg), nil
}

// healthCheck verifies API availability via ListModels (free endpoint).
func healthCheck(ctx context.Context, client *openai.Client) error {
	if _, err := client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response and wraps
// it with the given provider sentinel. 401/403 additionally wrap domain.ErrCredentialRejected.
func parseAPIError(kind string, err error, wrap error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return statusError(kind, reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(kind, apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("%s request failed: %v: %w", kind, err, wrap)
}

func statusError(kind string, status int, detail string, wrap error) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%s API error %d: %s: %w: %w", kind, status, detail, domain.ErrCredentialRejected, wrap)
	}
	return fmt.Errorf("%s API error %d: %s: %w", kind, status, detail, wrap)
}

// extractDetail pulls a message out of the known JSON error body shapes:
// {"detail": "..."}, {"error": {"message": "..."}} and Gemini's [{"error": {...}}].
func extractDetail(body []byte) string {
	type errBody struct {
		Detail string `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	pick := func(b errBody) string {
		if b.Detail != "" {
			return b.Detail
		}
		return b.Error.Message
	}

	var single errBody
	if json.Unmarshal(body, &single) == nil {
		return pick(single)
	}
	var list []errBody
	if json.Unmarshal(body, &list) == nil && len(list) > 0 {
		return pick(list[0])
	}
	return ""
}

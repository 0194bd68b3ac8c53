package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bioscope/internal/domain"
	"github.com/kailas-cloud/bioscope/internal/metrics"
)

// Generator is a chat completion provider using the OpenAI-compatible API.
type Generator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewGenerator creates an OpenAI-compatible text generation provider.
func NewGenerator(client *openai.Client, model string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, model: model, logger: logger}
}

// Model implements domain.Generator.
func (g *Generator) Model() string { return g.model }

// Generate implements domain.Generator. One blocking call, no retries, no streaming.
func (g *Generator) Generate(ctx context.Context, in domain.GenerationRequest) (domain.GenerationResult, error) {
	req, err := g.buildRequest(in)
	if err != nil {
		return domain.GenerationResult{}, err
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	metrics.GenerationRequestDuration.WithLabelValues(g.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return domain.GenerationResult{}, parseAPIError("generation", err, domain.ErrGenerationProviderError)
	}
	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return domain.GenerationResult{}, fmt.Errorf("empty generation response: %w", domain.ErrGenerationProviderError)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter && choice.Message.Content == "" {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return domain.GenerationResult{}, fmt.Errorf("response blocked by content filter: %w", domain.ErrGenerationProviderError)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "success").Inc()
	metrics.GenerationTokensTotal.WithLabelValues(g.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(g.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	return domain.GenerationResult{
		Text:             choice.Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck implements domain.HealthChecker.
func (g *Generator) HealthCheck(ctx context.Context) error {
	return healthCheck(ctx, g.client)
}

func (g *Generator) buildRequest(in domain.GenerationRequest) (openai.ChatCompletionRequest, error) {
	if len(in.Parts) == 0 {
		return openai.ChatCompletionRequest{}, fmt.Errorf("generation request has no content")
	}

	var messages []openai.ChatCompletionMessage
	if in.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: in.SystemInstruction,
		})
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if text, ok := textOnly(in.Parts); ok {
		user.Content = text
	} else {
		for _, p := range in.Parts {
			switch p.Kind {
			case domain.PartText:
				user.MultiContent = append(user.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: p.Text,
				})
			case domain.PartImage:
				user.MultiContent = append(user.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL(p.MIMEType, p.Data),
						Detail: openai.ImageURLDetailAuto,
					},
				})
			default:
				return openai.ChatCompletionRequest{}, fmt.Errorf("unknown content part kind %q", p.Kind)
			}
		}
	}
	messages = append(messages, user)

	req := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	}
	if in.Temperature != nil {
		// go-openai drops a zero temperature from the payload
		req.Temperature = *in.Temperature
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	return req, nil
}

func textOnly(parts []domain.Part) (string, bool) {
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Kind != domain.PartText {
			return "", false
		}
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n\n"), true
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

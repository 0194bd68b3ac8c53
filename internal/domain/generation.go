package domain

import "context"

// PartKind distinguishes content parts sent to a generation model.
type PartKind string

const (
	// PartText is a plain text part.
	PartText PartKind = "text"
	// PartImage is an inline image part.
	PartImage PartKind = "image"
)

// Part is one ordered piece of user content.
type Part struct {
	Kind     PartKind
	Text     string
	Data     []byte // image bytes for PartImage
	MIMEType string // image/png, image/jpeg
}

// TextPart builds a text part.
func TextPart(text string) Part { return Part{Kind: PartText, Text: text} }

// ImagePart builds an inline image part.
func ImagePart(data []byte, mimeType string) Part {
	return Part{Kind: PartImage, Data: data, MIMEType: mimeType}
}

// GenerationRequest is a single blocking call to a hosted text model.
// Temperature is nil when the provider default should be used.
type GenerationRequest struct {
	SystemInstruction string
	Parts             []Part
	Temperature       *float32
}

// GenerationResult carries the model's free-text reply and token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Generator is the text generation contract between layers.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
	Model() string
}

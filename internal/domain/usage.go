package domain

import "context"

type usageKey struct{}

// RequestUsage collects provider token usage for a single HTTP request.
// The handler puts a pointer into the context; services add to it; the handler
// reports it in response headers.
type RequestUsage struct {
	EmbeddingTokens  int
	GenerationTokens int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(usageKey{}).(*RequestUsage)
	return u
}

// AddEmbeddingTokens records embedding tokens. Safe on a nil receiver.
func (u *RequestUsage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.EmbeddingTokens += n
	}
}

// AddGenerationTokens records generation tokens. Safe on a nil receiver.
func (u *RequestUsage) AddGenerationTokens(n int) {
	if u != nil {
		u.GenerationTokens += n
	}
}

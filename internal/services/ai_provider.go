package services

import (
	"context"
	"errors"
	"fmt"
)

// Provider-agnostic chat surface. Every text-generation feature goes through
// this interface so providers can be swapped at runtime.
type AIProvider interface {
	Name() string
	Generate(ctx context.Context, messages []AIMessage, opts *GenerationOptions) (string, error)
	HealthCheck(ctx context.Context) error
}

// EmbeddingProvider is implemented only by providers that expose an embedding
// model. Callers type-assert from AIProvider.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbeddingDimensions() int
}

type AIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type GenerationOptions struct {
	Temperature *float32
	MaxTokens   int
	TopP        *float32
	TopK        *int
	Stop        []string
}

var (
	ErrNoProviderAvailable  = errors.New("no AI provider available")
	ErrProviderUnknown      = errors.New("unknown AI provider")
	ErrEmbeddingUnsupported = errors.New("provider does not support embeddings")
	ErrEmptyCompletion      = errors.New("provider returned an empty completion")
)

// ProviderError wraps a provider failure with enough detail to decide whether
// the operation can be retried.
type ProviderError struct {
	Provider   string
	Operation  string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Provider, e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func isRetryableStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/utils"
)

const grokProviderName = "grok"

// GrokProvider talks to the xAI API, which follows the OpenAI chat
// completions wire format. It does not expose embeddings.
type grokProvider struct {
	httpClient *http.Client
	log        *logger.Logger
	apiKey     string
	baseURL    string
	model      string
}

func NewGrokProvider(log *logger.Logger) (AIProvider, error) {
	serviceLog := log.With("service", "GrokProvider")
	apiKey := utils.GetEnv("GROK_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("GROK_API_KEY is not set")
	}
	baseURL := utils.GetEnv("GROK_BASE_URL", "https://api.x.ai/v1", log)
	model := utils.GetEnv("GROK_MODEL", "grok-2-latest", log)
	timeoutSec := utils.GetEnvAsInt("GROK_TIMEOUT_SECONDS", 120, log)
	return &grokProvider{
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		log:        serviceLog,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}, nil
}

func (p *grokProvider) Name() string { return grokProviderName }

type grokChatRequest struct {
	Model       string      `json:"model"`
	Messages    []AIMessage `json:"messages"`
	Temperature *float32    `json:"temperature,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	TopP        *float32    `json:"top_p,omitempty"`
	Stop        []string    `json:"stop,omitempty"`
}

type grokChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (p *grokProvider) Generate(ctx context.Context, messages []AIMessage, opts *GenerationOptions) (string, error) {
	if len(messages) == 0 {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Err: fmt.Errorf("messages cannot be empty")}
	}
	reqBody := grokChatRequest{
		Model:    p.model,
		Messages: messages,
	}
	if opts != nil {
		reqBody.Temperature = opts.Temperature
		reqBody.MaxTokens = opts.MaxTokens
		reqBody.TopP = opts.TopP
		reqBody.Stop = opts.Stop
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Retryable: true, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{
			Provider:   p.Name(),
			Operation:  "generate",
			StatusCode: resp.StatusCode,
			Retryable:  isRetryableStatus(resp.StatusCode),
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}

	var parsed grokChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Err: fmt.Errorf("%s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Err: ErrEmptyCompletion}
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Err: ErrEmptyCompletion}
	}
	return text, nil
}

// HealthCheck hits the models listing endpoint, the cheapest authenticated
// call the API offers.
func (p *grokProvider) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("models probe failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("models probe returned http %d", resp.StatusCode)
	}
	return nil
}

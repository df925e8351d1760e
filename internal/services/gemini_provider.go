package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/utils"
)

const geminiProviderName = "gemini"

// GeminiProvider backs both text generation and embeddings through the
// official genai client.
type geminiProvider struct {
	client     *genai.Client
	log        *logger.Logger
	chatModel  string
	embedModel string
	embedDim   int
	timeout    time.Duration
}

func NewGeminiProvider(ctx context.Context, log *logger.Logger) (AIProvider, error) {
	serviceLog := log.With("service", "GeminiProvider")
	apiKey := utils.GetEnv("GEMINI_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	chatModel := utils.GetEnv("GEMINI_CHAT_MODEL", "gemini-2.0-flash", log)
	embedModel := utils.GetEnv("GEMINI_EMBED_MODEL", "gemini-embedding-001", log)
	embedDim := utils.GetEnvAsInt("GEMINI_EMBED_DIMENSIONS", 768, log)
	timeoutSec := utils.GetEnvAsInt("GEMINI_TIMEOUT_SECONDS", 120, log)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to initialize genai client: %w", err)
	}
	return &geminiProvider{
		client:     client,
		log:        serviceLog,
		chatModel:  chatModel,
		embedModel: embedModel,
		embedDim:   embedDim,
		timeout:    time.Duration(timeoutSec) * time.Second,
	}, nil
}

func (p *geminiProvider) Name() string { return geminiProviderName }

func (p *geminiProvider) Generate(ctx context.Context, messages []AIMessage, opts *GenerationOptions) (string, error) {
	if len(messages) == 0 {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Err: fmt.Errorf("messages cannot be empty")}
	}
	contents, systemText := toGeminiContents(messages)
	if len(contents) == 0 {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Err: fmt.Errorf("at least one non-system message is required")}
	}

	config := &genai.GenerateContentConfig{}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	if opts != nil {
		if opts.Temperature != nil {
			config.Temperature = genai.Ptr(*opts.Temperature)
		}
		if opts.MaxTokens > 0 {
			config.MaxOutputTokens = int32(opts.MaxTokens)
		}
		if opts.TopP != nil {
			config.TopP = genai.Ptr(*opts.TopP)
		}
		if opts.TopK != nil {
			config.TopK = genai.Ptr(float32(*opts.TopK))
		}
		if len(opts.Stop) > 0 {
			config.StopSequences = opts.Stop
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Models.GenerateContent(genCtx, p.chatModel, contents, config)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Retryable: true, Err: err}
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					out.WriteString(part.Text)
				}
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", &ProviderError{Provider: p.Name(), Operation: "generate", Err: ErrEmptyCompletion}
	}
	return text, nil
}

func (p *geminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ProviderError{Provider: p.Name(), Operation: "embed", Err: fmt.Errorf("text cannot be empty")}
	}
	dim := int32(p.embedDim)
	embedCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.client.Models.EmbedContent(embedCtx, p.embedModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{OutputDimensionality: &dim})
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Operation: "embed", Retryable: true, Err: err}
	}
	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Operation: "embed", Err: fmt.Errorf("no embedding returned")}
	}
	vec := result.Embeddings[0].Values
	if len(vec) != p.embedDim {
		return nil, &ProviderError{Provider: p.Name(), Operation: "embed", Err: fmt.Errorf("embedding dimension mismatch: expected %d, got %d", p.embedDim, len(vec))}
	}
	return vec, nil
}

func (p *geminiProvider) EmbeddingDimensions() int { return p.embedDim }

func (p *geminiProvider) HealthCheck(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("genai client is not initialized")
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := p.client.Models.GenerateContent(probeCtx, p.chatModel,
		[]*genai.Content{genai.NewContentFromText("ping", genai.RoleUser)},
		&genai.GenerateContentConfig{MaxOutputTokens: 8})
	if err != nil {
		return fmt.Errorf("chat probe failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return fmt.Errorf("chat probe returned no candidates")
	}
	return nil
}

func toGeminiContents(messages []AIMessage) ([]*genai.Content, string) {
	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}
		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}
	return contents, systemText
}

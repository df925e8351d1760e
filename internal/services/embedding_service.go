package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// SimilarTopic pairs a topic with its cosine similarity to a query, in [0,1].
type SimilarTopic struct {
	Topic      *types.Topic `json:"topic"`
	Similarity float64      `json:"similarity"`
}

// EmbeddingService builds and queries pgvector embeddings for topics. The
// active provider must support embeddings; Grok does not, Gemini does.
type EmbeddingService interface {
	BuildForTopic(ctx context.Context, topicID uuid.UUID) (*types.Embedding, error)
	FindSimilarTopics(ctx context.Context, queryText string, limit int, excludeTopicIDs []uuid.UUID) ([]SimilarTopic, error)
}

type embeddingService struct {
	selector      *AISelector
	embeddingRepo repos.EmbeddingRepo
	topicRepo     repos.TopicRepo
	log           *logger.Logger
}

func NewEmbeddingService(selector *AISelector, embeddingRepo repos.EmbeddingRepo, topicRepo repos.TopicRepo, baseLog *logger.Logger) EmbeddingService {
	return &embeddingService{
		selector:      selector,
		embeddingRepo: embeddingRepo,
		topicRepo:     topicRepo,
		log:           baseLog.With("service", "EmbeddingService"),
	}
}

func (s *embeddingService) embeddingProvider(ctx context.Context) (AIProvider, EmbeddingProvider, error) {
	provider, err := s.selector.EnsureAvailable(ctx)
	if err != nil {
		return nil, nil, err
	}
	embedder, ok := provider.(EmbeddingProvider)
	if !ok {
		return nil, nil, fmt.Errorf("provider %s: %w", provider.Name(), ErrEmbeddingUnsupported)
	}
	return provider, embedder, nil
}

// TopicEmbeddingText assembles the text blob an embedding is computed from:
// title and description, then section titles and bodies when an outline
// exists, else the flat topic body.
func TopicEmbeddingText(topic *types.Topic) string {
	var b strings.Builder
	b.WriteString(topic.Title)
	b.WriteString(". ")
	b.WriteString(topic.Description)

	outline, err := topic.DecodeOutline()
	if err == nil && len(outline.Sections) > 0 {
		for _, sec := range outline.Sections {
			b.WriteString(" ")
			b.WriteString(sec.Title)
			b.WriteString(": ")
			b.WriteString(sec.Body)
		}
	} else if topic.Body != "" {
		b.WriteString(" ")
		b.WriteString(topic.Body)
	}
	return strings.TrimSpace(b.String())
}

// BuildForTopic snapshots the topic's current text, embeds it and upserts the
// row so a rebuilt topic replaces its old vector.
func (s *embeddingService) BuildForTopic(ctx context.Context, topicID uuid.UUID) (*types.Embedding, error) {
	topic, err := s.topicRepo.GetByID(ctx, nil, topicID)
	if err != nil {
		return nil, fmt.Errorf("load topic: %w", err)
	}
	if topic == nil {
		return nil, fmt.Errorf("topic %s not found", topicID)
	}

	provider, embedder, err := s.embeddingProvider(ctx)
	if err != nil {
		return nil, err
	}

	text := TopicEmbeddingText(topic)
	if text == "" {
		return nil, fmt.Errorf("topic %s has no text to embed", topicID)
	}

	vector, err := embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed topic text: %w", err)
	}

	metadata, err := json.Marshal(map[string]interface{}{
		"topic_id":    topic.ID.String(),
		"topic_title": topic.Title,
	})
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	embedding := &types.Embedding{
		EntityKind: types.EmbeddingEntityTopic,
		EntityID:   topic.ID,
		SourceText: text,
		Vector:     pgvector.NewVector(vector),
		Model:      provider.Name(),
		Metadata:   datatypes.JSON(metadata),
	}
	saved, err := s.embeddingRepo.Upsert(ctx, nil, embedding)
	if err != nil {
		return nil, fmt.Errorf("persist embedding: %w", err)
	}
	s.log.Info("Topic embedding built", "topic_id", topicID, "dims", len(vector))
	return saved, nil
}

// FindSimilarTopics embeds the query and returns the nearest topics ordered
// by ascending cosine distance, scored with cosine similarity in [0,1].
func (s *embeddingService) FindSimilarTopics(ctx context.Context, queryText string, limit int, excludeTopicIDs []uuid.UUID) ([]SimilarTopic, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, fmt.Errorf("query text required")
	}
	if limit <= 0 {
		limit = 5
	}

	_, embedder, err := s.embeddingProvider(ctx)
	if err != nil {
		return nil, err
	}
	queryVector, err := embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.embeddingRepo.SearchSimilar(ctx, nil, types.EmbeddingEntityTopic, pgvector.NewVector(queryVector), limit, excludeTopicIDs)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	out := make([]SimilarTopic, 0, len(matches))
	for _, match := range matches {
		topic, err := s.topicRepo.GetByID(ctx, nil, match.Embedding.EntityID)
		if err != nil || topic == nil {
			continue
		}
		out = append(out, SimilarTopic{
			Topic:      topic,
			Similarity: CosineSimilarity(queryVector, match.Embedding.Vector.Slice()),
		})
	}
	return out, nil
}

// CosineSimilarity maps the raw cosine value from [-1,1] into [0,1]; zero
// vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}

package pipeline

import (
	"errors"
	"fmt"

	"github.com/aulanet/aulanet-backend/internal/jobs/runtime"
	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// EmbeddingBuildHandler builds the vector for one topic. A provider without
// embedding support succeeds with a skip marker instead of burning retries.
type EmbeddingBuildHandler struct {
	embeddings services.EmbeddingService
	log        *logger.Logger
}

func NewEmbeddingBuildHandler(embeddings services.EmbeddingService, baseLog *logger.Logger) *EmbeddingBuildHandler {
	return &EmbeddingBuildHandler{
		embeddings: embeddings,
		log:        baseLog.With("handler", types.JobTypeEmbeddingBuild),
	}
}

func (h *EmbeddingBuildHandler) Type() string { return types.JobTypeEmbeddingBuild }

func (h *EmbeddingBuildHandler) Run(jc *runtime.Context) error {
	topicID, ok := jc.PayloadUUID("topic_id")
	if !ok {
		return fmt.Errorf("payload missing topic_id")
	}

	jc.Progress(20, "Generando embedding")
	embedding, err := h.embeddings.BuildForTopic(jc.Ctx, topicID)
	if errors.Is(err, services.ErrEmbeddingUnsupported) {
		h.log.Warn("Embedding skipped, provider has no embedding support", "topic_id", topicID)
		jc.Succeed(map[string]any{"topic_id": topicID.String(), "skipped": true})
		return nil
	}
	if err != nil {
		return fmt.Errorf("build embedding: %w", err)
	}

	jc.Succeed(map[string]any{
		"topic_id":     topicID.String(),
		"embedding_id": embedding.ID.String(),
	})
	return nil
}

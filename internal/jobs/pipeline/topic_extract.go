package pipeline

import (
	"fmt"

	"github.com/aulanet/aulanet-backend/internal/jobs/runtime"
	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// TopicExtractHandler extracts topics from a note and chains an embedding
// build per created topic.
type TopicExtractHandler struct {
	topics services.TopicExtractorService
	jobs   services.JobService
	log    *logger.Logger
}

func NewTopicExtractHandler(topics services.TopicExtractorService, jobs services.JobService, baseLog *logger.Logger) *TopicExtractHandler {
	return &TopicExtractHandler{
		topics: topics,
		jobs:   jobs,
		log:    baseLog.With("handler", types.JobTypeTopicExtract),
	}
}

func (h *TopicExtractHandler) Type() string { return types.JobTypeTopicExtract }

func (h *TopicExtractHandler) Run(jc *runtime.Context) error {
	noteID, ok := jc.PayloadUUID("note_id")
	if !ok {
		return fmt.Errorf("payload missing note_id")
	}

	jc.Progress(10, "Extrayendo temas")
	topics, err := h.topics.ExtractFromNote(jc.Ctx, noteID)
	if err != nil {
		return fmt.Errorf("extract topics: %w", err)
	}

	jc.Progress(70, "Encolando embeddings")
	for _, topic := range topics {
		topicID := topic.ID
		_, err := h.jobs.Enqueue(jc.Ctx, nil, jc.Job.OwnerUserID, types.JobTypeEmbeddingBuild, types.EntityTopic, &topicID, map[string]any{
			"topic_id": topic.ID.String(),
		})
		if err != nil {
			h.log.Warn("Failed to enqueue embedding build", "topic_id", topic.ID, "error", err.Error())
		}
	}

	jc.Succeed(map[string]any{
		"note_id": noteID.String(),
		"topics":  len(topics),
	})
	return nil
}

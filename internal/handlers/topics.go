package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type TopicsHandler struct {
	topicSvc     services.TopicExtractorService
	embeddingSvc services.EmbeddingService
	jobSvc       services.JobService
	log          *logger.Logger
}

func NewTopicsHandler(topicSvc services.TopicExtractorService, embeddingSvc services.EmbeddingService, jobSvc services.JobService, baseLog *logger.Logger) *TopicsHandler {
	return &TopicsHandler{
		topicSvc:     topicSvc,
		embeddingSvc: embeddingSvc,
		jobSvc:       jobSvc,
		log:          baseLog.With("handler", "TopicsHandler"),
	}
}

type extractTopicsRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// POST /api/notes/:id/topics enqueues topic extraction for a note.
func (h *TopicsHandler) Extract(c *gin.Context) {
	noteID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	var req extractTopicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	nID := noteID
	job, err := h.jobSvc.Enqueue(c.Request.Context(), nil, req.UserID, types.JobTypeTopicExtract, types.EntityNote, &nID, map[string]any{
		"note_id": noteID.String(),
		"user_id": req.UserID.String(),
	})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	RespondAccepted(c, job)
}

// GET /api/notes/:id/topics
func (h *TopicsHandler) ListByNote(c *gin.Context) {
	noteID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	topics, err := h.topicSvc.ListByNote(c.Request.Context(), noteID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	RespondOK(c, topics)
}

type expandTopicRequest struct {
	Kind services.ExpansionKind `json:"kind" binding:"required"`
}

// POST /api/topics/:id/expand
func (h *TopicsHandler) Expand(c *gin.Context) {
	topicID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	var req expandTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	topic, err := h.topicSvc.ExpandTopic(c.Request.Context(), topicID, req.Kind)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "expansion_failed", err)
		return
	}
	RespondOK(c, topic)
}

type addSectionRequest struct {
	Type  types.SectionType `json:"type" binding:"required"`
	Title string            `json:"title" binding:"required"`
	Body  string            `json:"body" binding:"required"`
}

// POST /api/topics/:id/sections
func (h *TopicsHandler) AddSection(c *gin.Context) {
	topicID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	var req addSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	topic, err := h.topicSvc.AddUserSection(c.Request.Context(), topicID, req.Type, req.Title, req.Body)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "section_failed", err)
		return
	}
	RespondOK(c, topic)
}

type updateTopicRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Depth       *int    `json:"depth,omitempty"`
}

// PATCH /api/topics/:id
func (h *TopicsHandler) Update(c *gin.Context) {
	topicID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	var req updateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	topic, err := h.topicSvc.UpdateTopic(c.Request.Context(), topicID, req.Title, req.Description, req.Depth)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "update_failed", err)
		return
	}
	RespondOK(c, topic)
}

// DELETE /api/topics/:id
func (h *TopicsHandler) Delete(c *gin.Context) {
	topicID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.topicSvc.DeleteTopic(c.Request.Context(), topicID); err != nil {
		RespondError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/topics/:id/embedding enqueues a vector build for one topic.
func (h *TopicsHandler) BuildEmbedding(c *gin.Context) {
	topicID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	var req extractTopicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	tID := topicID
	job, err := h.jobSvc.Enqueue(c.Request.Context(), nil, req.UserID, types.JobTypeEmbeddingBuild, types.EntityTopic, &tID, map[string]any{
		"topic_id": topicID.String(),
	})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	RespondAccepted(c, job)
}

// GET /api/topics/similar?q=...&limit=5
func (h *TopicsHandler) Similar(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		RespondError(c, http.StatusBadRequest, "missing_query", fmt.Errorf("query parameter q is required"))
		return
	}
	limit := 5
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			RespondError(c, http.StatusBadRequest, "invalid_limit", fmt.Errorf("invalid limit: %s", raw))
			return
		}
		limit = parsed
	}
	matches, err := h.embeddingSvc.FindSimilarTopics(c.Request.Context(), query, limit, nil)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}
	RespondOK(c, matches)
}

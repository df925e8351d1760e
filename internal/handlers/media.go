package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type MediaHandler struct {
	mediaRepo repos.MediaAssetRepo
	jobSvc    services.JobService
	log       *logger.Logger
}

func NewMediaHandler(mediaRepo repos.MediaAssetRepo, jobSvc services.JobService, baseLog *logger.Logger) *MediaHandler {
	return &MediaHandler{
		mediaRepo: mediaRepo,
		jobSvc:    jobSvc,
		log:       baseLog.With("handler", "MediaHandler"),
	}
}

type createMediaRequest struct {
	UserID      uuid.UUID       `json:"user_id" binding:"required"`
	Kind        types.MediaKind `json:"kind" binding:"required"`
	StoragePath string          `json:"storage_path" binding:"required"`
}

// POST /api/media
func (h *MediaHandler) Create(c *gin.Context) {
	var req createMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Kind != types.MediaKindVideo && req.Kind != types.MediaKindAudio {
		RespondError(c, http.StatusBadRequest, "invalid_kind", fmt.Errorf("kind must be VIDEO or AUDIO"))
		return
	}
	asset, err := h.mediaRepo.Create(c.Request.Context(), nil, &types.MediaAsset{
		UserID:      req.UserID,
		Kind:        req.Kind,
		StoragePath: req.StoragePath,
		Status:      types.StatusPending,
	})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "create_failed", err)
		return
	}
	RespondCreated(c, asset)
}

// GET /api/media/:id
func (h *MediaHandler) Get(c *gin.Context) {
	id, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	asset, err := h.mediaRepo.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	if asset == nil {
		RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("media asset %s not found", id))
		return
	}
	RespondOK(c, asset)
}

// POST /api/media/:id/process enqueues the pipeline for an uploaded asset.
func (h *MediaHandler) Process(c *gin.Context) {
	id, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	asset, err := h.mediaRepo.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	if asset == nil {
		RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("media asset %s not found", id))
		return
	}
	assetID := asset.ID
	job, err := h.jobSvc.Enqueue(c.Request.Context(), nil, asset.UserID, types.JobTypeMediaProcess, types.EntityMediaAsset, &assetID, map[string]any{
		"media_asset_id": asset.ID.String(),
	})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	RespondAccepted(c, job)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/services"
)

type JobsHandler struct {
	jobSvc services.JobService
	log    *logger.Logger
}

func NewJobsHandler(jobSvc services.JobService, baseLog *logger.Logger) *JobsHandler {
	return &JobsHandler{
		jobSvc: jobSvc,
		log:    baseLog.With("handler", "JobsHandler"),
	}
}

// GET /api/jobs/:id
func (h *JobsHandler) Get(c *gin.Context) {
	jobID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	job, err := h.jobSvc.GetByID(c.Request.Context(), jobID)
	if err != nil {
		RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	RespondOK(c, job)
}

// GET /api/users/:id/jobs?limit=50
func (h *JobsHandler) ListByUser(c *gin.Context) {
	userID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	jobs, err := h.jobSvc.ListByOwner(c.Request.Context(), userID, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	RespondOK(c, jobs)
}

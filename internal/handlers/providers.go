package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/services"
)

type ProvidersHandler struct {
	selector *services.AISelector
	log      *logger.Logger
}

func NewProvidersHandler(selector *services.AISelector, baseLog *logger.Logger) *ProvidersHandler {
	return &ProvidersHandler{
		selector: selector,
		log:      baseLog.With("handler", "ProvidersHandler"),
	}
}

// GET /api/ai/providers lists every registered provider with a live health
// probe.
func (h *ProvidersHandler) List(c *gin.Context) {
	statuses := h.selector.HealthCheckAll(c.Request.Context())
	RespondOK(c, gin.H{
		"current":   h.selector.CurrentName(),
		"providers": statuses,
	})
}

type switchProviderRequest struct {
	Name string `json:"name" binding:"required"`
}

// PUT /api/ai/providers/current switches the active provider; unhealthy
// targets are rejected.
func (h *ProvidersHandler) Switch(c *gin.Context) {
	var req switchProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.selector.Switch(c.Request.Context(), req.Name); err != nil {
		RespondError(c, http.StatusBadRequest, "switch_failed", err)
		return
	}
	RespondOK(c, gin.H{"current": h.selector.CurrentName()})
}

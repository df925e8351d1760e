package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/services"
)

type RecommendationsHandler struct {
	recSvc services.RecommendationService
	log    *logger.Logger
}

func NewRecommendationsHandler(recSvc services.RecommendationService, baseLog *logger.Logger) *RecommendationsHandler {
	return &RecommendationsHandler{
		recSvc: recSvc,
		log:    baseLog.With("handler", "RecommendationsHandler"),
	}
}

// GET /api/users/:id/recommendations
func (h *RecommendationsHandler) ForUser(c *gin.Context) {
	userID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	recs, err := h.recSvc.ForUser(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "recommendations_failed", err)
		return
	}
	RespondOK(c, recs)
}

// GET /api/users/:id/quizzes/:quizId/recommendations
func (h *RecommendationsHandler) ForQuiz(c *gin.Context) {
	userID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	quizID, ok := ParamUUID(c, "quizId")
	if !ok {
		return
	}
	recs, err := h.recSvc.ForQuiz(c.Request.Context(), userID, quizID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "recommendations_failed", err)
		return
	}
	RespondOK(c, recs)
}

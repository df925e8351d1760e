package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type QuizzesHandler struct {
	quizSvc services.QuizGeneratorService
	jobSvc  services.JobService
	log     *logger.Logger
}

func NewQuizzesHandler(quizSvc services.QuizGeneratorService, jobSvc services.JobService, baseLog *logger.Logger) *QuizzesHandler {
	return &QuizzesHandler{
		quizSvc: quizSvc,
		jobSvc:  jobSvc,
		log:     baseLog.With("handler", "QuizzesHandler"),
	}
}

type generateQuizRequest struct {
	UserID     uuid.UUID            `json:"user_id" binding:"required"`
	Kind       types.QuizKind       `json:"kind"`
	Difficulty types.QuizDifficulty `json:"difficulty"`
}

// POST /api/notes/:id/quizzes enqueues quiz generation.
func (h *QuizzesHandler) Generate(c *gin.Context) {
	noteID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	var req generateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Kind == "" {
		req.Kind = types.QuizMixed
	}
	if req.Difficulty == "" {
		req.Difficulty = types.DifficultyMedium
	}
	switch req.Kind {
	case types.QuizMultipleChoice, types.QuizOpenEnded, types.QuizMixed:
	default:
		RespondError(c, http.StatusBadRequest, "invalid_kind", fmt.Errorf("unknown quiz kind %s", req.Kind))
		return
	}
	switch req.Difficulty {
	case types.DifficultyEasy, types.DifficultyMedium, types.DifficultyHard:
	default:
		RespondError(c, http.StatusBadRequest, "invalid_difficulty", fmt.Errorf("unknown difficulty %s", req.Difficulty))
		return
	}

	nID := noteID
	job, err := h.jobSvc.Enqueue(c.Request.Context(), nil, req.UserID, types.JobTypeQuizGenerate, types.EntityNote, &nID, map[string]any{
		"note_id":    noteID.String(),
		"user_id":    req.UserID.String(),
		"kind":       string(req.Kind),
		"difficulty": string(req.Difficulty),
	})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	RespondAccepted(c, job)
}

// GET /api/quizzes/:id
func (h *QuizzesHandler) Get(c *gin.Context) {
	quizID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	quiz, err := h.quizSvc.GetQuiz(c.Request.Context(), quizID)
	if err != nil {
		RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	RespondOK(c, quiz)
}

// GET /api/notes/:id/quizzes
func (h *QuizzesHandler) ListByNote(c *gin.Context) {
	noteID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	quizzes, err := h.quizSvc.ListByNote(c.Request.Context(), noteID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	RespondOK(c, quizzes)
}

// DELETE /api/quizzes/:id
func (h *QuizzesHandler) Delete(c *gin.Context) {
	quizID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.quizSvc.DeleteQuiz(c.Request.Context(), quizID); err != nil {
		RespondError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

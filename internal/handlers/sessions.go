package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/services"
)

var errMissingAnswerIDs = errors.New("user_id, study_session_id and question_id are required")

type SessionsHandler struct {
	sessionSvc services.StudySessionService
	answerSvc  services.AnswerService
	log        *logger.Logger
}

func NewSessionsHandler(sessionSvc services.StudySessionService, answerSvc services.AnswerService, baseLog *logger.Logger) *SessionsHandler {
	return &SessionsHandler{
		sessionSvc: sessionSvc,
		answerSvc:  answerSvc,
		log:        baseLog.With("handler", "SessionsHandler"),
	}
}

type startSessionRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	QuizID uuid.UUID `json:"quiz_id" binding:"required"`
}

// POST /api/sessions
func (h *SessionsHandler) Start(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	session, err := h.sessionSvc.Start(c.Request.Context(), req.UserID, req.QuizID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "start_failed", err)
		return
	}
	RespondCreated(c, session)
}

// GET /api/sessions/:id
func (h *SessionsHandler) Get(c *gin.Context) {
	sessionID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	session, err := h.sessionSvc.Get(c.Request.Context(), sessionID)
	if err != nil {
		RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	RespondOK(c, session)
}

type abandonSessionRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// POST /api/sessions/:id/abandon
func (h *SessionsHandler) Abandon(c *gin.Context) {
	sessionID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	var req abandonSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	session, err := h.sessionSvc.Abandon(c.Request.Context(), req.UserID, sessionID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "abandon_failed", err)
		return
	}
	RespondOK(c, session)
}

// GET /api/sessions/:id/answers
func (h *SessionsHandler) ListAnswers(c *gin.Context) {
	sessionID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	answers, err := h.answerSvc.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	RespondOK(c, answers)
}

// GET /api/users/:id/sessions
func (h *SessionsHandler) ListByUser(c *gin.Context) {
	userID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	sessions, err := h.sessionSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	RespondOK(c, sessions)
}

// POST /api/answers
func (h *SessionsHandler) SubmitAnswer(c *gin.Context) {
	var input services.SubmitAnswerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if input.UserID == uuid.Nil || input.StudySessionID == uuid.Nil || input.QuestionID == uuid.Nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", errMissingAnswerIDs)
		return
	}
	result, err := h.answerSvc.Submit(c.Request.Context(), input)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "submit_failed", err)
		return
	}
	RespondCreated(c, result)
}

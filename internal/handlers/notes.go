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

type NotesHandler struct {
	notesSvc services.NotesGeneratorService
	noteRepo repos.NoteRepo
	jobSvc   services.JobService
	log      *logger.Logger
}

func NewNotesHandler(notesSvc services.NotesGeneratorService, noteRepo repos.NoteRepo, jobSvc services.JobService, baseLog *logger.Logger) *NotesHandler {
	return &NotesHandler{
		notesSvc: notesSvc,
		noteRepo: noteRepo,
		jobSvc:   jobSvc,
		log:      baseLog.With("handler", "NotesHandler"),
	}
}

type generateNotesRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// POST /api/transcripts/:id/notes enqueues note generation.
func (h *NotesHandler) Generate(c *gin.Context) {
	transcriptID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	var req generateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	tID := transcriptID
	job, err := h.jobSvc.Enqueue(c.Request.Context(), nil, req.UserID, types.JobTypeNotesGenerate, types.EntityTranscript, &tID, map[string]any{
		"transcript_id": transcriptID.String(),
		"user_id":       req.UserID.String(),
	})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	RespondAccepted(c, job)
}

// POST /api/transcripts/:id/concept-map generates the concept map note
// synchronously; it is a single completion, not a batch.
func (h *NotesHandler) GenerateConceptMap(c *gin.Context) {
	transcriptID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	var req generateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	note, err := h.notesSvc.GenerateConceptMap(c.Request.Context(), transcriptID, req.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "generation_failed", err)
		return
	}
	RespondCreated(c, note)
}

// GET /api/transcripts/:id/notes
func (h *NotesHandler) ListByTranscript(c *gin.Context) {
	transcriptID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	notes, err := h.noteRepo.ListByTranscript(c.Request.Context(), nil, transcriptID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	RespondOK(c, notes)
}

// GET /api/users/:id/notes
func (h *NotesHandler) ListByUser(c *gin.Context) {
	userID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	notes, err := h.notesSvc.FindByUser(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	RespondOK(c, notes)
}

// GET /api/notes/:id
func (h *NotesHandler) Get(c *gin.Context) {
	noteID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	note, err := h.noteRepo.GetByID(c.Request.Context(), nil, noteID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	if note == nil {
		RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("note %s not found", noteID))
		return
	}
	RespondOK(c, note)
}

package pipeline

import (
	"fmt"

	"github.com/aulanet/aulanet-backend/internal/jobs/runtime"
	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// NotesGenerateHandler runs the notes generator and chains topic extraction
// off the summary note when one completed.
type NotesGenerateHandler struct {
	notes services.NotesGeneratorService
	jobs  services.JobService
	log   *logger.Logger
}

func NewNotesGenerateHandler(notes services.NotesGeneratorService, jobs services.JobService, baseLog *logger.Logger) *NotesGenerateHandler {
	return &NotesGenerateHandler{
		notes: notes,
		jobs:  jobs,
		log:   baseLog.With("handler", types.JobTypeNotesGenerate),
	}
}

func (h *NotesGenerateHandler) Type() string { return types.JobTypeNotesGenerate }

func (h *NotesGenerateHandler) Run(jc *runtime.Context) error {
	transcriptID, ok := jc.PayloadUUID("transcript_id")
	if !ok {
		return fmt.Errorf("payload missing transcript_id")
	}
	userID, ok := jc.PayloadUUID("user_id")
	if !ok {
		userID = jc.Job.OwnerUserID
	}

	jc.Progress(10, "Generando apuntes")
	notes, err := h.notes.GenerateFromTranscript(jc.Ctx, transcriptID, userID)
	if err != nil {
		return fmt.Errorf("generate notes: %w", err)
	}

	var summaryNote *types.Note
	for _, note := range notes {
		if note.Kind == types.NoteKindSummary && note.Status == types.StatusCompleted {
			summaryNote = note
			break
		}
	}
	if summaryNote != nil {
		jc.Progress(80, "Encolando extracción de temas")
		noteID := summaryNote.ID
		_, err = h.jobs.Enqueue(jc.Ctx, nil, userID, types.JobTypeTopicExtract, types.EntityNote, &noteID, map[string]any{
			"note_id": summaryNote.ID.String(),
			"user_id": userID.String(),
		})
		if err != nil {
			return fmt.Errorf("enqueue topic extraction: %w", err)
		}
	}

	jc.Succeed(map[string]any{
		"transcript_id": transcriptID.String(),
		"notes":         len(notes),
	})
	return nil
}

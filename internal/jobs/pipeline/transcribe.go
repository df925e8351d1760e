package pipeline

import (
	"fmt"
	"strings"

	"github.com/aulanet/aulanet-backend/internal/jobs/runtime"
	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// TranscribeHandler runs the speech provider over the normalized WAV and
// fills the transcript row created by the media stage.
type TranscribeHandler struct {
	transcriptRepo repos.TranscriptRepo
	speech         services.SpeechProviderService
	jobs           services.JobService
	log            *logger.Logger
}

func NewTranscribeHandler(transcriptRepo repos.TranscriptRepo, speech services.SpeechProviderService, jobs services.JobService, baseLog *logger.Logger) *TranscribeHandler {
	return &TranscribeHandler{
		transcriptRepo: transcriptRepo,
		speech:         speech,
		jobs:           jobs,
		log:            baseLog.With("handler", types.JobTypeTranscribe),
	}
}

func (h *TranscribeHandler) Type() string { return types.JobTypeTranscribe }

func (h *TranscribeHandler) Run(jc *runtime.Context) error {
	transcriptID, ok := jc.PayloadUUID("transcript_id")
	if !ok {
		return fmt.Errorf("payload missing transcript_id")
	}
	audioPath := jc.PayloadString("audio_path")
	if audioPath == "" {
		return fmt.Errorf("payload missing audio_path")
	}

	transcript, err := h.transcriptRepo.GetByID(jc.Ctx, nil, transcriptID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}
	if transcript == nil {
		return fmt.Errorf("transcript %s not found", transcriptID)
	}

	if err := h.transcriptRepo.UpdateFields(jc.Ctx, nil, transcript.ID, map[string]interface{}{
		"status": types.StatusProcessing,
	}); err != nil {
		return fmt.Errorf("mark transcript processing: %w", err)
	}
	jc.Progress(20, "Transcribiendo audio")

	result, err := h.speech.TranscribeFile(jc.Ctx, audioPath, transcript.Language)
	if err != nil {
		if uErr := h.transcriptRepo.UpdateFields(jc.Ctx, nil, transcript.ID, map[string]interface{}{
			"status": types.StatusError,
		}); uErr != nil {
			h.log.Error("Failed to mark transcript ERROR", "transcript_id", transcript.ID, "error", uErr.Error())
		}
		return fmt.Errorf("transcribe: %w", err)
	}

	duration := estimateDurationSeconds(result.Text)
	updates := map[string]interface{}{
		"text":     result.Text,
		"status":   types.StatusCompleted,
		"language": transcript.Language,
	}
	if transcript.DurationSeconds == nil {
		updates["duration_seconds"] = duration
	}
	if err := h.transcriptRepo.UpdateFields(jc.Ctx, nil, transcript.ID, updates); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	jc.Progress(80, "Encolando generación de apuntes")

	tID := transcript.ID
	_, err = h.jobs.Enqueue(jc.Ctx, nil, jc.Job.OwnerUserID, types.JobTypeNotesGenerate, types.EntityTranscript, &tID, map[string]any{
		"transcript_id": transcript.ID.String(),
		"user_id":       jc.Job.OwnerUserID.String(),
	})
	if err != nil {
		return fmt.Errorf("enqueue notes generation: %w", err)
	}

	jc.Succeed(map[string]any{
		"transcript_id":    transcript.ID.String(),
		"duration_seconds": duration,
	})
	return nil
}

// estimateDurationSeconds derives a rough duration at roughly two words per
// second, never below one second.
func estimateDurationSeconds(text string) int {
	words := len(strings.Fields(text))
	seconds := int(float64(words) * 0.5)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

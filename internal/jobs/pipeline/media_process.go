package pipeline

import (
	"fmt"

	"github.com/aulanet/aulanet-backend/internal/jobs/runtime"
	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// MediaProcessHandler turns an uploaded asset into a normalized mono 16 kHz
// WAV and an empty transcript row, then chains the transcription job.
type MediaProcessHandler struct {
	mediaRepo      repos.MediaAssetRepo
	transcriptRepo repos.TranscriptRepo
	tools          services.MediaToolsService
	jobs           services.JobService
	log            *logger.Logger
}

func NewMediaProcessHandler(mediaRepo repos.MediaAssetRepo, transcriptRepo repos.TranscriptRepo, tools services.MediaToolsService, jobs services.JobService, baseLog *logger.Logger) *MediaProcessHandler {
	return &MediaProcessHandler{
		mediaRepo:      mediaRepo,
		transcriptRepo: transcriptRepo,
		tools:          tools,
		jobs:           jobs,
		log:            baseLog.With("handler", types.JobTypeMediaProcess),
	}
}

func (h *MediaProcessHandler) Type() string { return types.JobTypeMediaProcess }

func (h *MediaProcessHandler) Run(jc *runtime.Context) error {
	assetID, ok := jc.PayloadUUID("media_asset_id")
	if !ok {
		return fmt.Errorf("payload missing media_asset_id")
	}

	asset, err := h.mediaRepo.GetByID(jc.Ctx, nil, assetID)
	if err != nil {
		return fmt.Errorf("load media asset: %w", err)
	}
	if asset == nil {
		return fmt.Errorf("media asset %s not found", assetID)
	}

	if err := h.mediaRepo.UpdateStatus(jc.Ctx, nil, asset.ID, types.StatusProcessing); err != nil {
		return fmt.Errorf("mark asset processing: %w", err)
	}
	jc.Progress(10, "Preparando audio")

	if err := h.process(jc, asset); err != nil {
		if uErr := h.mediaRepo.UpdateStatus(jc.Ctx, nil, asset.ID, types.StatusError); uErr != nil {
			h.log.Error("Failed to mark asset ERROR", "media_asset_id", asset.ID, "error", uErr.Error())
		}
		return err
	}

	if err := h.mediaRepo.UpdateStatus(jc.Ctx, nil, asset.ID, types.StatusCompleted); err != nil {
		return fmt.Errorf("mark asset completed: %w", err)
	}
	jc.Succeed(map[string]any{"media_asset_id": asset.ID.String()})
	return nil
}

func (h *MediaProcessHandler) process(jc *runtime.Context, asset *types.MediaAsset) error {
	if err := h.tools.AssertReady(jc.Ctx); err != nil {
		return fmt.Errorf("media tools unavailable: %w", err)
	}

	audioPath := asset.StoragePath
	if asset.Kind == types.MediaKindVideo {
		extracted := h.tools.WorkPath(asset.ID.String(), "extracted.wav")
		out, err := h.tools.ExtractAudio(jc.Ctx, asset.StoragePath, extracted, services.AudioExtractOptions{
			SampleRateHz: 16000,
			Channels:     1,
			Format:       "wav",
		})
		if err != nil {
			return fmt.Errorf("extract audio: %w", err)
		}
		audioPath = out
	}
	jc.Progress(50, "Normalizando audio")

	normalized, err := h.tools.NormalizeAudio(jc.Ctx, audioPath, h.tools.WorkPath(asset.ID.String(), "normalized.wav"))
	if err != nil {
		return fmt.Errorf("normalize audio: %w", err)
	}

	transcript, err := h.transcriptRepo.Create(jc.Ctx, nil, &types.Transcript{
		MediaAssetID: asset.ID,
		Language:     "es",
		Status:       types.StatusPending,
	})
	if err != nil {
		return fmt.Errorf("create transcript: %w", err)
	}
	jc.Progress(80, "Encolando transcripción")

	transcriptID := transcript.ID
	_, err = h.jobs.Enqueue(jc.Ctx, nil, asset.UserID, types.JobTypeTranscribe, types.EntityTranscript, &transcriptID, map[string]any{
		"transcript_id": transcript.ID.String(),
		"audio_path":    normalized,
	})
	if err != nil {
		return fmt.Errorf("enqueue transcription: %w", err)
	}
	return nil
}

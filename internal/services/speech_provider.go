package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/utils"
)

// SpeechProviderService runs an offline recognizer binary against a mono
// 16 kHz WAV and returns the raw transcript text. The recognizer and its
// acoustic model live on disk; no network access is involved.
type SpeechProviderService interface {
	AssertReady(ctx context.Context) error
	TranscribeFile(ctx context.Context, wavPath string, language string) (*SpeechResult, error)
}

type SpeechResult struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type speechProviderService struct {
	log        *logger.Logger
	binaryPath string
	modelDir   string
	timeout    time.Duration
}

func NewSpeechProviderService(log *logger.Logger) (SpeechProviderService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "SpeechProviderService")
	binaryPath := utils.GetEnv("STT_BINARY", "whisper-cli", log)
	modelDir := utils.GetEnv("STT_MODEL_DIR", "", log)
	if modelDir == "" {
		return nil, fmt.Errorf("STT_MODEL_DIR is not set")
	}
	timeoutSec := utils.GetEnvAsInt("STT_TIMEOUT_SECONDS", 1800, log)
	svc := &speechProviderService{
		log:        slog,
		binaryPath: binaryPath,
		modelDir:   modelDir,
		timeout:    time.Duration(timeoutSec) * time.Second,
	}
	// Fail fast at startup so a missing model surfaces before any job runs.
	if err := svc.AssertReady(context.Background()); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *speechProviderService) AssertReady(ctx context.Context) error {
	if _, err := exec.LookPath(s.binaryPath); err != nil {
		return fmt.Errorf("missing recognizer binary %q in PATH: %w", s.binaryPath, err)
	}
	info, err := os.Stat(s.modelDir)
	if err != nil {
		return fmt.Errorf("speech model dir %q is not accessible: %w", s.modelDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("speech model path %q is not a directory", s.modelDir)
	}
	return nil
}

func (s *speechProviderService) TranscribeFile(ctx context.Context, wavPath string, language string) (*SpeechResult, error) {
	if wavPath == "" {
		return nil, fmt.Errorf("wavPath required")
	}
	if _, err := os.Stat(wavPath); err != nil {
		return nil, fmt.Errorf("audio file %q is not accessible: %w", wavPath, err)
	}
	if language == "" {
		language = "es"
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := []string{
		"--model-dir", s.modelDir,
		"--language", language,
		"--output", "text",
		wavPath,
	}
	cmd := exec.CommandContext(ctx, s.binaryPath, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("recognizer failed: %w; stderr=%s", err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("recognizer failed: %w", err)
	}
	text := strings.TrimSpace(string(out))
	s.log.Info("Transcription finished", "path", wavPath, "chars", len(text))
	return &SpeechResult{Text: text, Language: language}, nil
}

package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/utils"
)

// MediaToolsService wraps ffmpeg. Synchronous and deterministic; call it from
// worker jobs, not request handlers.
type MediaToolsService interface {
	AssertReady(ctx context.Context) error
	ExtractAudio(ctx context.Context, videoPath string, outPath string, opts AudioExtractOptions) (string, error)
	NormalizeAudio(ctx context.Context, audioPath string, outPath string) (string, error)
	WorkPath(id string, suffix string) string
}

type AudioExtractOptions struct {
	SampleRateHz int    // e.g. 16000
	Channels     int    // 1
	Format       string // "wav" or "flac"
}

type mediaToolsService struct {
	log        *logger.Logger
	ffmpegPath string
	workRoot   string

	defaultTimeout time.Duration
}

func NewMediaToolsService(log *logger.Logger) MediaToolsService {
	slog := log.With("service", "MediaToolsService")
	ffmpegPath := utils.GetEnv("FFMPEG_PATH", "ffmpeg", log)
	workRoot := utils.GetEnv("MEDIA_WORK_ROOT", "/tmp/aulanet-media", log)
	return &mediaToolsService{
		log:            slog,
		ffmpegPath:     ffmpegPath,
		workRoot:       workRoot,
		defaultTimeout: 10 * time.Minute,
	}
}

func (m *mediaToolsService) AssertReady(ctx context.Context) error {
	if _, err := exec.LookPath(m.ffmpegPath); err != nil {
		return fmt.Errorf("missing required binary %q in PATH: %w", m.ffmpegPath, err)
	}
	if err := os.MkdirAll(m.workRoot, 0o755); err != nil {
		return fmt.Errorf("create workRoot: %w", err)
	}
	return nil
}

// ExtractAudio drops the video stream and writes mono PCM at the requested
// sample rate.
func (m *mediaToolsService) ExtractAudio(ctx context.Context, videoPath string, outPath string, opts AudioExtractOptions) (string, error) {
	if err := m.AssertReady(ctx); err != nil {
		return "", err
	}
	if videoPath == "" {
		return "", fmt.Errorf("videoPath required")
	}
	if outPath == "" {
		return "", fmt.Errorf("outPath required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir outPath dir: %w", err)
	}

	sr := opts.SampleRateHz
	if sr <= 0 {
		sr = 16000
	}
	ch := opts.Channels
	if ch <= 0 {
		ch = 1
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "wav"
	}
	if format != "wav" && format != "flac" {
		return "", fmt.Errorf("unsupported audio format: %s", format)
	}

	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	// ffmpeg -i in.mp4 -vn -ac 1 -ar 16000 -f wav out.wav
	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", strconv.Itoa(ch),
		"-ar", strconv.Itoa(sr),
		"-f", format,
		outPath,
	}

	cmd := exec.CommandContext(ctx, m.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg extract audio failed: %w; out=%s", err, string(out))
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("audio output missing at %s", outPath)
	}
	return outPath, nil
}

// NormalizeAudio re-encodes any audio input to mono 16 kHz WAV, the format the
// speech recognizer expects.
func (m *mediaToolsService) NormalizeAudio(ctx context.Context, audioPath string, outPath string) (string, error) {
	if err := m.AssertReady(ctx); err != nil {
		return "", err
	}
	if audioPath == "" {
		return "", fmt.Errorf("audioPath required")
	}
	if outPath == "" {
		return "", fmt.Errorf("outPath required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("mkdir outPath dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	args := []string{
		"-y",
		"-i", audioPath,
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outPath,
	}

	cmd := exec.CommandContext(ctx, m.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg normalize audio failed: %w; out=%s", err, string(out))
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("audio output missing at %s", outPath)
	}
	return outPath, nil
}

// WorkPath builds a deterministic output path under the work root.
func (m *mediaToolsService) WorkPath(id string, suffix string) string {
	if !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	return filepath.Join(m.workRoot, id+suffix)
}

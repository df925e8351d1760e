package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// scriptedCompletion is one canned provider response, consumed in order.
type scriptedCompletion struct {
	text string
	err  error
}

type fakeProvider struct {
	name      string
	healthErr error
	script    []scriptedCompletion
	calls     int
}

func (p *fakeProvider) Name() string {
	if p.name == "" {
		return "fake"
	}
	return p.name
}

func (p *fakeProvider) Generate(ctx context.Context, messages []AIMessage, opts *GenerationOptions) (string, error) {
	p.calls++
	if len(p.script) == 0 {
		return "", fmt.Errorf("provider %s has no scripted completion left", p.Name())
	}
	next := p.script[0]
	p.script = p.script[1:]
	return next.text, next.err
}

func (p *fakeProvider) HealthCheck(ctx context.Context) error {
	return p.healthErr
}

func newTestSelector(providers ...AIProvider) *AISelector {
	selector := NewAISelector(logger.Nop())
	for _, p := range providers {
		selector.Register(p)
	}
	return selector
}

// newTestDB opens a private in-memory database per test. The Embedding model
// needs the pgvector extension and is left out; embedding behavior against
// real vectors is covered by pure-function tests.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&types.User{},
		&types.MediaAsset{},
		&types.Transcript{},
		&types.Note{},
		&types.Topic{},
		&types.Quiz{},
		&types.Question{},
		&types.StudySession{},
		&types.Answer{},
		&types.JobRun{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *types.User {
	t.Helper()
	user := &types.User{Name: "Estudiante", Email: uuid.NewString() + "@example.com"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedTranscript(t *testing.T, db *gorm.DB, userID uuid.UUID, text string) *types.Transcript {
	t.Helper()
	asset := &types.MediaAsset{UserID: userID, Kind: types.MediaKindAudio, StoragePath: "/tmp/clase.wav", Status: types.StatusCompleted}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("seed media asset: %v", err)
	}
	transcript := &types.Transcript{MediaAssetID: asset.ID, Text: text, Language: "es", Status: types.StatusCompleted}
	if err := db.Create(transcript).Error; err != nil {
		t.Fatalf("seed transcript: %v", err)
	}
	return transcript
}

func seedNote(t *testing.T, db *gorm.DB, transcriptID, userID uuid.UUID, body string) *types.Note {
	t.Helper()
	note := &types.Note{
		TranscriptID: transcriptID,
		UserID:       userID,
		Kind:         types.NoteKindSummary,
		Title:        "Resumen de la clase",
		Body:         body,
		Status:       types.StatusCompleted,
	}
	if err := db.Create(note).Error; err != nil {
		t.Fatalf("seed note: %v", err)
	}
	return note
}

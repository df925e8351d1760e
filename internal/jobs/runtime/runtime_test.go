package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type stubHandler struct {
	jobType string
}

func (h *stubHandler) Type() string       { return h.jobType }
func (h *stubHandler) Run(*Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
	if err := r.Register(&stubHandler{}); err == nil {
		t.Fatal("expected error for empty job type")
	}
	if err := r.Register(&stubHandler{jobType: types.JobTypeTranscribe}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&stubHandler{jobType: types.JobTypeTranscribe}); err == nil {
		t.Fatal("expected error for duplicate registration")
	}

	if _, ok := r.Get(types.JobTypeTranscribe); !ok {
		t.Fatal("registered handler not found")
	}
	if _, ok := r.Get("nonexistent"); ok {
		t.Fatal("lookup of unknown type succeeded")
	}
}

func TestRetryDelay(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, 60 * time.Second},
		{3, 120 * time.Second},
	}
	for _, tc := range cases {
		if got := RetryDelay(tc.attempts); got != tc.want {
			t.Fatalf("RetryDelay(%d) = %v, want %v", tc.attempts, got, tc.want)
		}
	}
}

func newJobDB(t *testing.T) (*gorm.DB, repos.JobRunRepo) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.JobRun{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, repos.NewJobRunRepo(db, logger.Nop())
}

func seedJob(t *testing.T, db *gorm.DB, repo repos.JobRunRepo, attempts int, payload string) *types.JobRun {
	t.Helper()
	job := &types.JobRun{
		OwnerUserID: uuid.New(),
		JobType:     types.JobTypeTranscribe,
		Status:      types.JobStatusRunning,
		Attempts:    attempts,
		MaxAttempts: 3,
		Payload:     datatypes.JSON(payload),
	}
	created, err := repo.Create(context.Background(), nil, []*types.JobRun{job})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return created[0]
}

func TestContextPayloadHelpers(t *testing.T) {
	db, repo := newJobDB(t)
	id := uuid.New()
	job := seedJob(t, db, repo, 1, fmt.Sprintf(`{"transcript_id": %q, "audio_path": "/tmp/a.wav", "count": 3}`, id))

	c := NewContext(context.Background(), db, job, repo, nil)

	got, ok := c.PayloadUUID("transcript_id")
	if !ok || got != id {
		t.Fatalf("PayloadUUID = (%v, %v), want (%v, true)", got, ok, id)
	}
	if _, ok := c.PayloadUUID("missing"); ok {
		t.Fatal("PayloadUUID found a missing key")
	}
	if _, ok := c.PayloadUUID("audio_path"); ok {
		t.Fatal("PayloadUUID parsed a non-uuid value")
	}
	if got := c.PayloadString("audio_path"); got != "/tmp/a.wav" {
		t.Fatalf("PayloadString = %q", got)
	}
	if got := c.PayloadString("missing"); got != "" {
		t.Fatalf("PayloadString for missing key = %q", got)
	}
}

func TestContextMalformedPayload(t *testing.T) {
	db, repo := newJobDB(t)
	job := seedJob(t, db, repo, 1, `not json`)

	c := NewContext(context.Background(), db, job, repo, nil)
	if c.Payload() == nil {
		t.Fatal("Payload returned nil for malformed payload")
	}
	if len(c.Payload()) != 0 {
		t.Fatalf("malformed payload decoded to %v", c.Payload())
	}
}

func TestContextFailSchedulesRetry(t *testing.T) {
	db, repo := newJobDB(t)
	job := seedJob(t, db, repo, 1, `{}`)

	c := NewContext(context.Background(), db, job, repo, nil)
	before := time.Now()
	c.Fail(errors.New("transcription timed out"))

	stored, err := repo.GetByID(context.Background(), nil, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if stored.Status != types.JobStatusFailed {
		t.Fatalf("status %s, want FAILED", stored.Status)
	}
	if stored.Error != "transcription timed out" {
		t.Fatalf("error %q", stored.Error)
	}
	if stored.RunAfter == nil {
		t.Fatal("run_after not set for a retryable failure")
	}
	earliest := before.Add(RetryDelay(1) - time.Second)
	if stored.RunAfter.Before(earliest) {
		t.Fatalf("run_after %v earlier than expected backoff", stored.RunAfter)
	}
	if stored.LockedAt != nil {
		t.Fatal("lock not cleared on failure")
	}
}

func TestContextFailExhaustedAttempts(t *testing.T) {
	db, repo := newJobDB(t)
	job := seedJob(t, db, repo, 3, `{}`)

	c := NewContext(context.Background(), db, job, repo, nil)
	c.Fail(errors.New("permanent"))

	stored, err := repo.GetByID(context.Background(), nil, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if stored.Status != types.JobStatusFailed {
		t.Fatalf("status %s, want FAILED", stored.Status)
	}
	if stored.RunAfter != nil {
		t.Fatal("run_after set for an exhausted run")
	}
}

func TestContextSucceed(t *testing.T) {
	db, repo := newJobDB(t)
	job := seedJob(t, db, repo, 1, `{}`)

	c := NewContext(context.Background(), db, job, repo, nil)
	c.Progress(40, "halfway")
	c.Succeed(map[string]any{"notes": 7})

	stored, err := repo.GetByID(context.Background(), nil, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if stored.Status != types.JobStatusSucceeded {
		t.Fatalf("status %s, want SUCCEEDED", stored.Status)
	}
	if stored.Progress != 100 {
		t.Fatalf("progress %d, want 100", stored.Progress)
	}
	if len(stored.Result) == 0 {
		t.Fatal("result payload not persisted")
	}
	if stored.LockedAt != nil {
		t.Fatal("lock not cleared on success")
	}
}

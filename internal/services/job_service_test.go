package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type recordingNotifier struct {
	created  []string
	failed   []string
	done     []string
	progress []int
}

func (n *recordingNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	n.created = append(n.created, job.JobType)
}

func (n *recordingNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, progress int, message string) {
	n.progress = append(n.progress, progress)
}

func (n *recordingNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, errorMessage string) {
	n.failed = append(n.failed, errorMessage)
}

func (n *recordingNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	n.done = append(n.done, job.JobType)
}

func TestEnqueue(t *testing.T) {
	db := newTestDB(t)
	log := logger.Nop()
	user := seedUser(t, db)
	notify := &recordingNotifier{}
	svc := NewJobService(db, repos.NewJobRunRepo(db, log), notify, log)

	entityID := uuid.New()
	job, err := svc.Enqueue(context.Background(), nil, user.ID, types.JobTypeTranscribe, types.EntityTranscript, &entityID, map[string]any{
		"transcript_id": entityID.String(),
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.Status != types.JobStatusQueued {
		t.Fatalf("status %s, want QUEUED", job.Status)
	}
	if job.MaxAttempts != 3 {
		t.Fatalf("max attempts %d, want 3", job.MaxAttempts)
	}
	if len(job.Payload) == 0 {
		t.Fatal("payload not persisted")
	}
	if len(notify.created) != 1 || notify.created[0] != types.JobTypeTranscribe {
		t.Fatalf("notifier events %v", notify.created)
	}

	loaded, err := svc.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.JobType != types.JobTypeTranscribe || loaded.EntityType != types.EntityTranscript {
		t.Fatalf("stored job %+v", loaded)
	}

	latest, err := svc.GetLatestForEntity(context.Background(), user.ID, types.EntityTranscript, entityID, types.JobTypeTranscribe)
	if err != nil {
		t.Fatalf("GetLatestForEntity: %v", err)
	}
	if latest == nil || latest.ID != job.ID {
		t.Fatalf("latest job mismatch: %+v", latest)
	}
}

func TestEnqueueValidation(t *testing.T) {
	db := newTestDB(t)
	log := logger.Nop()
	svc := NewJobService(db, repos.NewJobRunRepo(db, log), &recordingNotifier{}, log)

	if _, err := svc.Enqueue(context.Background(), nil, uuid.Nil, types.JobTypeTranscribe, "", nil, nil); err == nil {
		t.Fatal("expected error for missing owner")
	}
	if _, err := svc.Enqueue(context.Background(), nil, uuid.New(), "", "", nil, nil); err == nil {
		t.Fatal("expected error for missing job type")
	}
}

func TestListByOwner(t *testing.T) {
	db := newTestDB(t)
	log := logger.Nop()
	user := seedUser(t, db)
	svc := NewJobService(db, repos.NewJobRunRepo(db, log), &recordingNotifier{}, log)

	for _, jobType := range []string{types.JobTypeMediaProcess, types.JobTypeTranscribe, types.JobTypeNotesGenerate} {
		if _, err := svc.Enqueue(context.Background(), nil, user.ID, jobType, "", nil, nil); err != nil {
			t.Fatalf("enqueue %s: %v", jobType, err)
		}
	}

	jobs, err := svc.ListByOwner(context.Background(), user.ID, 10)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(jobs))
	}

	other, err := svc.ListByOwner(context.Background(), uuid.New(), 10)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("got %d jobs for a different owner", len(other))
	}
}

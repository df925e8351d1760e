package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// JobService enqueues durable pipeline runs. Workers pick rows up by polling;
// enqueue never talks to a worker directly.
type JobService interface {
	Enqueue(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error)
	GetByID(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error)
	GetLatestForEntity(ctx context.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
	ListByOwner(ctx context.Context, ownerUserID uuid.UUID, limit int) ([]*types.JobRun, error)
}

type jobService struct {
	db     *gorm.DB
	repo   repos.JobRunRepo
	notify JobNotifier
	log    *logger.Logger
}

func NewJobService(db *gorm.DB, repo repos.JobRunRepo, notify JobNotifier, baseLog *logger.Logger) JobService {
	return &jobService{
		db:     db,
		repo:   repo,
		notify: notify,
		log:    baseLog.With("service", "JobService"),
	}
}

func (s *jobService) Enqueue(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_user_id")
	}
	if jobType == "" {
		return nil, fmt.Errorf("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	job := &types.JobRun{
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      types.JobStatusQueued,
		MaxAttempts: 3,
		Payload:     datatypes.JSON(payloadJSON),
	}
	created, err := s.repo.Create(ctx, tx, []*types.JobRun{job})
	if err != nil {
		return nil, fmt.Errorf("create job run: %w", err)
	}
	s.log.Info("Job enqueued", "job_id", created[0].ID, "job_type", jobType, "entity_type", entityType)
	if s.notify != nil {
		s.notify.JobCreated(ownerUserID, created[0])
	}
	return created[0], nil
}

func (s *jobService) GetByID(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error) {
	job, err := s.repo.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	return job, nil
}

func (s *jobService) GetLatestForEntity(ctx context.Context, ownerUserID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	return s.repo.GetLatestByEntity(ctx, nil, ownerUserID, entityType, entityID, jobType)
}

func (s *jobService) ListByOwner(ctx context.Context, ownerUserID uuid.UUID, limit int) ([]*types.JobRun, error) {
	return s.repo.ListByOwner(ctx, nil, ownerUserID, limit)
}

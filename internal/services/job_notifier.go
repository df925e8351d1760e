package services

import (
	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/types"
)

// JobNotifier receives pipeline lifecycle events. The default implementation
// logs them; a push transport can replace it without touching the worker.
type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *types.JobRun)
	JobProgress(userID uuid.UUID, job *types.JobRun, progress int, message string)
	JobFailed(userID uuid.UUID, job *types.JobRun, errorMessage string)
	JobDone(userID uuid.UUID, job *types.JobRun)
}

type logJobNotifier struct {
	log *logger.Logger
}

func NewLogJobNotifier(baseLog *logger.Logger) JobNotifier {
	return &logJobNotifier{log: baseLog.With("service", "JobNotifier")}
}

func (n *logJobNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	n.log.Info("Job created", "user_id", userID, "job_id", job.ID, "job_type", job.JobType)
}

func (n *logJobNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, progress int, message string) {
	n.log.Info("Job progress",
		"user_id", userID,
		"job_id", job.ID,
		"job_type", job.JobType,
		"progress", progress,
		"message", message,
	)
}

func (n *logJobNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, errorMessage string) {
	n.log.Error("Job failed",
		"user_id", userID,
		"job_id", job.ID,
		"job_type", job.JobType,
		"attempts", job.Attempts,
		"error", errorMessage,
	)
}

func (n *logJobNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	n.log.Info("Job done", "user_id", userID, "job_id", job.ID, "job_type", job.JobType)
}

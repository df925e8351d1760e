package jobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aulanet/aulanet-backend/internal/jobs/runtime"
	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/utils"
)

const (
	pollInterval = 1 * time.Second
	staleRunning = 10 * time.Minute
)

// Worker polls the job_run table and dispatches claimed rows to registered
// handlers. Concurrency comes from WORKER_CONCURRENCY polling loops sharing
// the SKIP LOCKED claim.
type Worker struct {
	db          *gorm.DB
	repo        repos.JobRunRepo
	registry    *runtime.Registry
	notify      services.JobNotifier
	concurrency int
	log         *logger.Logger
}

func NewWorker(db *gorm.DB, repo repos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, baseLog *logger.Logger) *Worker {
	concurrency := utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, baseLog)
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		db:          db,
		repo:        repo,
		registry:    registry,
		notify:      notify,
		concurrency: concurrency,
		log:         baseLog.With("component", "JobWorker"),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Job worker starting", "concurrency", w.concurrency)
	for i := 0; i < w.concurrency; i++ {
		go w.loop(ctx, i)
	}
}

func (w *Worker) loop(ctx context.Context, slot int) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx, slot)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context, slot int) {
	job, err := w.repo.ClaimNextRunnable(ctx, nil, staleRunning)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "slot", slot, "error", err.Error())
		return
	}
	if job == nil {
		return
	}

	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify)
	handler, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered", "job_type", job.JobType, "job_id", job.ID)
		jc.Fail(fmt.Errorf("no handler registered for job_type=%s", job.JobType))
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic", "job_id", job.ID, "job_type", job.JobType, "panic", fmt.Sprint(r))
				jc.Fail(fmt.Errorf("panic: %v", r))
			}
		}()
		if err := handler.Run(jc); err != nil {
			jc.Fail(err)
		}
	}()
}

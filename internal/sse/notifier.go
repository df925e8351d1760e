package sse

import (
	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/services"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type jobEventPayload struct {
	JobID      uuid.UUID  `json:"job_id"`
	JobType    string     `json:"job_type"`
	EntityType string     `json:"entity_type,omitempty"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty"`
	Status     string     `json:"status"`
	Progress   int        `json:"progress"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func jobPayload(job *types.JobRun) jobEventPayload {
	return jobEventPayload{
		JobID:      job.ID,
		JobType:    job.JobType,
		EntityType: job.EntityType,
		EntityID:   job.EntityID,
		Status:     job.Status,
		Progress:   job.Progress,
	}
}

// Notifier pushes job lifecycle events to the owner's SSE clients and then
// forwards them to the wrapped notifier.
type Notifier struct {
	hub  *Hub
	next services.JobNotifier
}

func NewNotifier(hub *Hub, next services.JobNotifier) *Notifier {
	return &Notifier{hub: hub, next: next}
}

func (n *Notifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	n.hub.Publish(userID, Message{Event: EventJobCreated, Data: jobPayload(job)})
	if n.next != nil {
		n.next.JobCreated(userID, job)
	}
}

func (n *Notifier) JobProgress(userID uuid.UUID, job *types.JobRun, progress int, message string) {
	payload := jobPayload(job)
	payload.Progress = progress
	payload.Message = message
	n.hub.Publish(userID, Message{Event: EventJobProgress, Data: payload})
	if n.next != nil {
		n.next.JobProgress(userID, job, progress, message)
	}
}

func (n *Notifier) JobFailed(userID uuid.UUID, job *types.JobRun, errorMessage string) {
	payload := jobPayload(job)
	payload.Error = errorMessage
	n.hub.Publish(userID, Message{Event: EventJobFailed, Data: payload})
	if n.next != nil {
		n.next.JobFailed(userID, job, errorMessage)
	}
}

func (n *Notifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	n.hub.Publish(userID, Message{Event: EventJobDone, Data: jobPayload(job)})
	if n.next != nil {
		n.next.JobDone(userID, job)
	}
}

package sse

import (
	"testing"

	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/types"
)

func TestPublishReachesOnlyOwner(t *testing.T) {
	hub := NewHub(logger.Nop())
	owner := uuid.New()
	other := uuid.New()

	ownerClient := hub.Subscribe(owner)
	otherClient := hub.Subscribe(other)
	defer hub.Unsubscribe(ownerClient)
	defer hub.Unsubscribe(otherClient)

	hub.Publish(owner, Message{Event: EventJobCreated})

	select {
	case msg := <-ownerClient.Outbound:
		if msg.Event != EventJobCreated {
			t.Fatalf("expected %s, got %s", EventJobCreated, msg.Event)
		}
	default:
		t.Fatal("owner client received nothing")
	}
	select {
	case msg := <-otherClient.Outbound:
		t.Fatalf("unexpected message for other user: %v", msg)
	default:
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(logger.Nop())
	owner := uuid.New()
	client := hub.Subscribe(owner)
	defer hub.Unsubscribe(client)

	for i := 0; i < cap(client.Outbound)+5; i++ {
		hub.Publish(owner, Message{Event: EventJobProgress})
	}
	if got := len(client.Outbound); got != cap(client.Outbound) {
		t.Fatalf("expected buffer full at %d, got %d", cap(client.Outbound), got)
	}
}

func TestUnsubscribeRemovesClient(t *testing.T) {
	hub := NewHub(logger.Nop())
	owner := uuid.New()
	client := hub.Subscribe(owner)
	hub.Unsubscribe(client)

	hub.Publish(owner, Message{Event: EventJobDone})
	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected message after unsubscribe: %v", msg)
	default:
	}
}

type countingNotifier struct {
	created, progress, failed, done int
}

func (n *countingNotifier) JobCreated(uuid.UUID, *types.JobRun) { n.created++ }
func (n *countingNotifier) JobProgress(uuid.UUID, *types.JobRun, int, string) {
	n.progress++
}
func (n *countingNotifier) JobFailed(uuid.UUID, *types.JobRun, string) { n.failed++ }
func (n *countingNotifier) JobDone(uuid.UUID, *types.JobRun)           { n.done++ }

func TestNotifierPublishesAndForwards(t *testing.T) {
	hub := NewHub(logger.Nop())
	owner := uuid.New()
	client := hub.Subscribe(owner)
	defer hub.Unsubscribe(client)

	inner := &countingNotifier{}
	notifier := NewNotifier(hub, inner)
	entityID := uuid.New()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: owner,
		JobType:     types.JobTypeTranscribe,
		EntityType:  types.EntityTranscript,
		EntityID:    &entityID,
		Status:      types.JobStatusRunning,
	}

	notifier.JobCreated(owner, job)
	notifier.JobProgress(owner, job, 40, "transcribiendo")
	notifier.JobFailed(owner, job, "provider timeout")
	notifier.JobDone(owner, job)

	if inner.created != 1 || inner.progress != 1 || inner.failed != 1 || inner.done != 1 {
		t.Fatalf("inner notifier not forwarded to: %+v", inner)
	}
	if got := len(client.Outbound); got != 4 {
		t.Fatalf("expected 4 pushed messages, got %d", got)
	}

	msg := <-client.Outbound
	if msg.Event != EventJobCreated {
		t.Fatalf("expected %s first, got %s", EventJobCreated, msg.Event)
	}
	payload, ok := msg.Data.(jobEventPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", msg.Data)
	}
	if payload.JobID != job.ID || payload.JobType != types.JobTypeTranscribe {
		t.Fatalf("payload mismatch: %+v", payload)
	}

	msg = <-client.Outbound
	payload = msg.Data.(jobEventPayload)
	if msg.Event != EventJobProgress || payload.Progress != 40 || payload.Message != "transcribiendo" {
		t.Fatalf("progress payload mismatch: %+v", payload)
	}
}

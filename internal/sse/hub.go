package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aulanet/aulanet-backend/internal/logger"
)

type Event string

const (
	EventJobCreated  Event = "job.created"
	EventJobProgress Event = "job.progress"
	EventJobFailed   Event = "job.failed"
	EventJobDone     Event = "job.done"
)

// Message is one pushed event. Subscriptions are per user, so the channel is
// the owner's user id.
type Message struct {
	Event Event `json:"event"`
	Data  any   `json:"data,omitempty"`
}

type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Outbound chan Message
	done     chan struct{}
}

// Hub fans pipeline events out to the connected clients of each user. Slow
// consumers lose messages rather than blocking the publisher.
type Hub struct {
	mu      sync.RWMutex
	log     *logger.Logger
	clients map[uuid.UUID]map[*Client]bool
}

func NewHub(baseLog *logger.Logger) *Hub {
	return &Hub{
		log:     baseLog.With("component", "SSEHub"),
		clients: make(map[uuid.UUID]map[*Client]bool),
	}
}

func (h *Hub) Subscribe(userID uuid.UUID) *Client {
	client := &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Outbound: make(chan Message, 16),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	peers, ok := h.clients[userID]
	if !ok {
		peers = make(map[*Client]bool)
		h.clients[userID] = peers
	}
	peers[client] = true
	h.log.Debug("SSE client subscribed", "client_id", client.ID, "user_id", userID)
	return client
}

func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	if peers, ok := h.clients[client.UserID]; ok {
		delete(peers, client)
		if len(peers) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	h.mu.Unlock()
	close(client.done)
	h.log.Debug("SSE client unsubscribed", "client_id", client.ID)
}

// Publish delivers a message to every connected client of one user.
func (h *Hub) Publish(userID uuid.UUID, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.Outbound <- msg:
		default:
			h.log.Warn("Dropping SSE message, outbound buffer full", "client_id", client.ID)
		}
	}
}

// Serve streams the client's events until the request context ends. The
// caller unsubscribes afterwards.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-client.Outbound:
			payload, err := json.Marshal(msg.Data)
			if err != nil {
				h.log.Warn("Could not marshal SSE payload", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, payload)
			flusher.Flush()
		}
	}
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/sse"
)

type EventsHandler struct {
	hub *sse.Hub
	log *logger.Logger
}

func NewEventsHandler(hub *sse.Hub, baseLog *logger.Logger) *EventsHandler {
	return &EventsHandler{
		hub: hub,
		log: baseLog.With("handler", "EventsHandler"),
	}
}

// GET /api/users/:id/events
func (h *EventsHandler) Stream(c *gin.Context) {
	userID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	client := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(client)
	h.hub.Serve(c.Writer, c.Request, client)
}

package handlers

import (
	"net/http"

	"github.com/isdelr/stencil-be/internal/api/respond"
	"github.com/isdelr/stencil-be/internal/auth"
	"github.com/isdelr/stencil-be/internal/services"
)

// EventHandler handles HTTP requests related to the caller's activity log.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get recent activity/events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	events, err := h.service.GetRecentEvents(r.Context(), auth.CallerFromContext(r.Context()), limit)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, events)
}

package handlers

import (
	"net/http"

	"crmhooks/internal/engine/events"
	apierrors "crmhooks/internal/pkg/errors"
	"crmhooks/internal/pkg/validator"
)

// EventHandler lets other CRM services emit events over HTTP.
type EventHandler struct {
	emitter *events.Emitter
}

func NewEventHandler(emitter *events.Emitter) *EventHandler {
	return &EventHandler{emitter: emitter}
}

type emitRequest struct {
	Event string         `json:"event" validate:"required,event_name"`
	Data  map[string]any `json:"data"`
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"events": events.All()})
}

// Emit schedules delivery and answers 202 without waiting for it.
func (h *EventHandler) Emit(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if err := validator.DecodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	h.emitter.Emit(req.Event, req.Data)

	apierrors.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"event":  req.Event,
	})
}

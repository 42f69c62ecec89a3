package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"crmhooks/internal/engine/events"
	"crmhooks/internal/engine/webhooks"
	apierrors "crmhooks/internal/pkg/errors"
	"crmhooks/internal/pkg/validator"
	"crmhooks/internal/platform/models"
	"crmhooks/internal/platform/repositories"
)

func init() {
	validator.RegisterString("event_name", events.IsKnown)
}

const defaultLogPageSize = 20

type WebhookHandler struct {
	hooks       *repositories.WebhookRepository
	logs        *repositories.DeliveryLogRepository
	dispatcher  *webhooks.Dispatcher
	maxPageSize int
}

func NewWebhookHandler(hooks *repositories.WebhookRepository, logs *repositories.DeliveryLogRepository, dispatcher *webhooks.Dispatcher, maxPageSize int) *WebhookHandler {
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &WebhookHandler{hooks: hooks, logs: logs, dispatcher: dispatcher, maxPageSize: maxPageSize}
}

type createWebhookRequest struct {
	Name     string            `json:"name" validate:"required,max=200"`
	URL      string            `json:"url" validate:"required,http_url"`
	Events   []string          `json:"events" validate:"required,min=1,dive,event_name"`
	Secret   string            `json:"secret" validate:"max=256"`
	Headers  map[string]string `json:"headers" validate:"omitempty,dive,keys,required,endkeys"`
	IsActive *bool             `json:"is_active"`
}

type updateWebhookRequest struct {
	Name     *string            `json:"name" validate:"omitempty,max=200"`
	URL      *string            `json:"url" validate:"omitempty,http_url"`
	Events   []string           `json:"events" validate:"omitempty,min=1,dive,event_name"`
	Secret   *string            `json:"secret" validate:"omitempty,max=256"`
	Headers  *map[string]string `json:"headers"`
	IsActive *bool              `json:"is_active"`
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWebhookRequest
	if err := validator.DecodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	webhook := &models.Webhook{
		Name:     req.Name,
		URL:      req.URL,
		Events:   req.Events,
		Secret:   req.Secret,
		Headers:  req.Headers,
		IsActive: req.IsActive == nil || *req.IsActive,
	}

	if err := h.hooks.Create(r.Context(), webhook); err != nil {
		log.Error().Err(err).Msg("failed to create webhook")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Failed to create webhook", nil)
		return
	}

	log.Info().Str("webhook_id", webhook.ID).Strs("events", webhook.Events).Msg("webhook created")
	apierrors.WriteJSON(w, http.StatusCreated, webhook)
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.hooks.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list webhooks")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Failed to list webhooks", nil)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.load(w, r)
	if !ok {
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateWebhookRequest
	if err := validator.DecodeJSON(r, &req); err != nil {
		writeValidationError(w, err)
		return
	}

	webhook, ok := h.load(w, r)
	if !ok {
		return
	}

	if req.Name != nil && *req.Name != "" {
		webhook.Name = *req.Name
	}
	if req.URL != nil && *req.URL != "" {
		webhook.URL = *req.URL
	}
	if len(req.Events) > 0 {
		webhook.Events = req.Events
	}
	if req.Secret != nil {
		webhook.Secret = *req.Secret
	}
	if req.Headers != nil {
		webhook.Headers = *req.Headers
	}
	if req.IsActive != nil {
		webhook.IsActive = *req.IsActive
	}

	if err := h.hooks.Update(r.Context(), webhook); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrCodeNotFound, "Webhook not found", nil)
			return
		}
		log.Error().Err(err).Str("webhook_id", webhook.ID).Msg("failed to update webhook")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Failed to update webhook", nil)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := param(r, "webhook_id")
	if err := h.hooks.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrCodeNotFound, "Webhook not found", nil)
			return
		}
		log.Error().Err(err).Str("webhook_id", id).Msg("failed to delete webhook")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Failed to delete webhook", nil)
		return
	}

	log.Info().Str("webhook_id", id).Msg("webhook deleted")
	w.WriteHeader(http.StatusNoContent)
}

// Logs returns the delivery history of one webhook, newest first.
func (h *WebhookHandler) Logs(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.load(w, r)
	if !ok {
		return
	}

	limit := min(queryInt(r, "limit", defaultLogPageSize), h.maxPageSize)
	// keep (page-1)*limit inside a non-negative OFFSET
	page := min(queryInt(r, "page", 1), math.MaxInt32/limit+1)

	entries, err := h.logs.ListByWebhook(r.Context(), webhook.ID, limit, (page-1)*limit)
	if err != nil {
		log.Error().Err(err).Str("webhook_id", webhook.ID).Msg("failed to list delivery logs")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Failed to list delivery logs", nil)
		return
	}
	total, err := h.logs.CountByWebhook(r.Context(), webhook.ID)
	if err != nil {
		log.Error().Err(err).Str("webhook_id", webhook.ID).Msg("failed to count delivery logs")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Failed to list delivery logs", nil)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"data":  entries,
		"page":  page,
		"limit": limit,
		"total": total,
	})
}

type testDeliveryResponse struct {
	Success      bool   `json:"success"`
	StatusCode   int    `json:"status_code"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
}

// Test sends a WEBHOOK_TEST delivery and waits for its outcome.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.load(w, r)
	if !ok {
		return
	}

	out := h.dispatcher.Ping(r.Context(), webhook)
	apierrors.WriteJSON(w, http.StatusOK, testDeliveryResponse{
		Success:      out.Success,
		StatusCode:   out.StatusCode,
		ErrorMessage: out.ErrorMessage,
		DurationMs:   out.DurationMs,
	})
}

func (h *WebhookHandler) load(w http.ResponseWriter, r *http.Request) (*models.Webhook, bool) {
	id := param(r, "webhook_id")
	webhook, err := h.hooks.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrCodeNotFound, "Webhook not found", nil)
			return nil, false
		}
		log.Error().Err(err).Str("webhook_id", id).Msg("failed to load webhook")
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrCodeInternal, "Failed to load webhook", nil)
		return nil, false
	}
	return webhook, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

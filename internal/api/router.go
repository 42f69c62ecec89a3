package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "crmhooks/internal/api/context"
	"crmhooks/internal/api/handlers"
	"crmhooks/internal/api/middleware"
	"crmhooks/internal/pkg/errors"
)

type Dependencies struct {
	AuthHandler    *handlers.AuthHandler
	WebhookHandler *handlers.WebhookHandler
	EventHandler   *handlers.EventHandler
	HealthHandler  *handlers.HealthHandler
	Metrics        http.Handler
	AuthMiddleware *middleware.AuthMiddleware
	EventLimiter   *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})

	router.GET("/health", wrap(deps.HealthHandler.Check))
	if deps.Metrics != nil {
		router.Handler(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Authentication
	router.POST("/api/v1/auth/token", wrap(deps.AuthHandler.Token))

	authMid := deps.AuthMiddleware

	// Webhook subscriptions
	router.GET("/api/v1/webhooks",
		chain(deps.WebhookHandler.List, authMid.Handle))
	router.POST("/api/v1/webhooks",
		chain(deps.WebhookHandler.Create, authMid.Handle))
	router.GET("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Get, authMid.Handle))
	router.PATCH("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Update, authMid.Handle))
	router.DELETE("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Delete, authMid.Handle))
	router.GET("/api/v1/webhooks/:webhook_id/logs",
		chain(deps.WebhookHandler.Logs, authMid.Handle))
	router.POST("/api/v1/webhooks/:webhook_id/test",
		chain(deps.WebhookHandler.Test, authMid.Handle))

	// Event ingestion
	router.GET("/api/v1/events",
		chain(deps.EventHandler.List, authMid.Handle))
	router.POST("/api/v1/events",
		chain(deps.EventHandler.Emit, authMid.Handle, deps.EventLimiter.Handle))

	return middleware.RequestLogger(router)
}

// chain applies middlewares so that the first one listed runs first.
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// wrap exposes httprouter params to plain handlers through the request context.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

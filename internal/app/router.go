package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"finelth-api/internal/auth"
	"finelth-api/internal/docs"
	"finelth-api/internal/expense"
	"finelth-api/internal/maintenance"
	"finelth-api/internal/observability"
)

// NewHandler wires every route and the shared middleware chain.
func NewHandler(deps Dependencies) (http.Handler, error) {
	cfg := deps.Config
	logger := deps.Logger

	codec, err := auth.NewTokenCodec(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	authRepo := auth.NewRepository(deps.DB)
	sessions := auth.NewSessionCache(deps.Redis)
	authService := auth.NewService(authRepo, sessions, codec)
	authHandler := auth.NewHandler(authService, logger, cfg.IsProduction())
	loginLimiter := auth.NewLoginRateLimiter(deps.Redis, logger, cfg.Auth.LoginRateLimitMax, cfg.Auth.LoginRateLimitWindow()).
		WithTrustedProxy(cfg.TrustProxyHeaders)

	protect := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(authService, logger, h)
	}

	expenseHandler := expense.NewHandler(expense.NewRepository(deps.DB), logger)
	cleanupHandler := maintenance.NewCleanupHandler(authRepo, logger, cfg.CronSecret, cfg.CleanupBatchSize)
	docsHandler := docs.NewHandler()

	mux := http.NewServeMux()
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /auth/logout", protect(authHandler.Logout))

	mux.Handle("POST /expense-categories", protect(expenseHandler.Create))
	mux.Handle("GET /expense-categories", protect(expenseHandler.List))
	mux.Handle("GET /expense-categories/{id}", protect(expenseHandler.Get))
	mux.Handle("PATCH /expense-categories/{id}", protect(expenseHandler.Update))
	mux.Handle("DELETE /expense-categories/{id}", protect(expenseHandler.Delete))

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(authRepo, sessions))

	mux.HandleFunc("GET /api-docs", docsHandler.UI)
	mux.HandleFunc("GET /api-docs/openapi.yaml", docsHandler.YAML)
	mux.HandleFunc("GET /api-docs/openapi.json", docsHandler.JSON)

	return withMiddleware(logger, mux), nil
}

// withMiddleware orders the shared chain so that recovered panics still reach
// the request log with their 500 status and correlation id.
func withMiddleware(logger *observability.Logger, next http.Handler) http.Handler {
	handler := observability.RecoverMiddleware(logger, next)
	handler = observability.RequestLoggingMiddleware(logger, handler)
	return observability.CorrelationIDMiddleware(handler)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(database, redis pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := database.Ping(ctx); err != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if err := redis.Ping(ctx); err != nil {
			checks["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
		}

		body := map[string]any{
			"status": "ok",
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

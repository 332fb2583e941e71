package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"finelth-api/internal/app"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error
)

// Handler is the serverless entry point. The runtime is built on the first
// invocation and reused by warm instances.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		apiRuntime, initErr = app.Build(context.Background(), app.Options{LoadDotEnv: false, BehindProxy: true})
	})

	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  http.StatusInternalServerError,
			"error":   "INTERNAL_SERVER_ERROR",
			"message": "application bootstrap failed",
		})
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}

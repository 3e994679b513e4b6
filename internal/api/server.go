// Package api exposes the orchestrator over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/askbridge/askbridge/internal/agent"
	"github.com/askbridge/askbridge/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// maxQuestionLen caps a single question. Anything longer is almost certainly
// pasted content, not a question.
const maxQuestionLen = 2000

// Asker is the orchestrator surface the HTTP and MCP layers need.
type Asker interface {
	Ask(ctx context.Context, req agent.Request) (*agent.Result, error)
}

// UsageAdmin is the counter surface behind the admin endpoints.
// *storage.Store implements it.
type UsageAdmin interface {
	ResetUsage(ctx context.Context, identifier, day string) error
	UsageStats(ctx context.Context, day string) ([]storage.UsageRecord, error)
}

// Deps holds everything the HTTP handler needs.
type Deps struct {
	Orchestrator Asker
	Usage        UsageAdmin

	// APIKey, when set, requires Bearer auth on /api routes.
	APIKey string
	// AdminToken guards /admin routes. Empty disables them entirely.
	AdminToken string

	AllowedOrigins []string
}

// NewHandler returns the HTTP handler for the ask API and the admin surface.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if deps.APIKey != "" {
			r.Use(BearerAuth(deps.APIKey))
		}
		r.Post("/ask", handleAsk(deps.Orchestrator))
	})

	if deps.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuth(deps.AdminToken))
			r.Get("/rate-limit/stats", handleUsageStats(deps.Usage))
			r.Post("/rate-limit/reset", handleUsageReset(deps.Usage))
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

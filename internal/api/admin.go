package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/askbridge/askbridge/internal/storage"
)

// adminAuth guards the admin surface with a shared token in X-Admin-Token.
func adminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-Token")
			if got == "" {
				httpError(w, http.StatusUnauthorized, "authentication_error", "missing admin token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httpError(w, http.StatusForbidden, "authentication_error", "invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

type usageEntry struct {
	Identifier        string `json:"identifier"`
	InteractionCount  int    `json:"interaction_count"`
	LastInteractionAt string `json:"last_interaction_at"`
}

func handleUsageStats(usage UsageAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day := today()
		records, err := usage.UsageStats(r.Context(), day)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "unable to read usage stats")
			return
		}

		entries := make([]usageEntry, len(records))
		for i, rec := range records {
			entries[i] = usageEntry{
				Identifier:        rec.Identifier,
				InteractionCount:  rec.InteractionCount,
				LastInteractionAt: rec.LastInteractionAt.Format(time.RFC3339),
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"day":     day,
			"callers": entries,
		})
	}
}

func handleUsageReset(usage UsageAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req struct {
			Identifier string `json:"identifier"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body")
			return
		}
		if req.Identifier == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "identifier is required")
			return
		}

		err := usage.ResetUsage(r.Context(), req.Identifier, today())
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no usage recorded for identifier today")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "unable to reset usage")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

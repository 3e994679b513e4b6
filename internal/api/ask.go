package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/askbridge/askbridge/internal/agent"
	"github.com/askbridge/askbridge/internal/llm"
	"github.com/askbridge/askbridge/internal/ratelimit"
)

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type askResponse struct {
	Answer    string           `json:"answer"`
	Route     string           `json:"route"`
	SQLQuery  string           `json:"sql_query,omitempty"`
	Citations []agent.Citation `json:"citations,omitempty"`
	ToolTrace []string         `json:"tool_trace"`
	SessionID string           `json:"session_id"`
	RateLimit rateInfo         `json:"rate_limit"`
}

type rateInfo struct {
	Limit     int  `json:"limit"`
	UsedToday int  `json:"used_today"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited,omitempty"`
}

func toRateInfo(r ratelimit.Result) rateInfo {
	return rateInfo{
		Limit:     r.Limit,
		UsedToday: r.UsedToday,
		Remaining: r.Remaining,
		Unlimited: r.Unlimited,
	}
}

func handleAsk(orch Asker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "request body too large")
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body")
			return
		}

		if utf8.RuneCountInString(req.Question) > maxQuestionLen {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question exceeds %d characters", maxQuestionLen)
			return
		}

		res, err := orch.Ask(r.Context(), agent.Request{
			Question:  req.Question,
			SessionID: req.SessionID,
			CallerID:  clientIP(r),
		})
		if err != nil {
			writeAskError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, askResponse{
			Answer:    res.Answer,
			Route:     string(res.Route),
			SQLQuery:  res.SQLQuery,
			Citations: res.Citations,
			ToolTrace: res.ToolTrace,
			SessionID: res.SessionID,
			RateLimit: toRateInfo(res.RateLimit),
		})
	}
}

// writeAskError maps pipeline errors onto status codes. Messages stay
// generic; details live in the server log only.
func writeAskError(w http.ResponseWriter, err error) {
	var quota *agent.QuotaError
	switch {
	case errors.Is(err, agent.ErrEmptyQuestion):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
	case errors.As(err, &quota):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{
				"message": quota.Error(),
				"type":    "rate_limit_error",
			},
			"rate_limit": toRateInfo(quota.Info),
		})
	case errors.Is(err, llm.ErrUnavailable):
		httpError(w, http.StatusServiceUnavailable, "api_error", "language model temporarily unavailable")
	default:
		slog.Error("ask failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "unable to answer the question")
	}
}

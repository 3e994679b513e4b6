package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askbridge/askbridge/internal/memory"
	"github.com/askbridge/askbridge/internal/ratelimit"
)

// Request is one question from one caller.
type Request struct {
	Question  string
	SessionID string
	CallerID  string
}

// Result is the orchestrator's answer envelope.
type Result struct {
	Answer    string
	Route     Route
	SQLQuery  string
	Citations []Citation
	ToolTrace []string
	SessionID string
	RateLimit ratelimit.Result
}

// Orchestrator sequences a request through quota check, history, routing,
// the chosen pipeline, and memory.
type Orchestrator struct {
	limiter    *ratelimit.Limiter
	memory     *memory.Store
	router     *Router
	structured *StructuredPipeline
	docs       *DocsPipeline
	hybrid     *HybridPipeline
}

// NewOrchestrator wires the façade.
func NewOrchestrator(
	limiter *ratelimit.Limiter,
	mem *memory.Store,
	router *Router,
	structured *StructuredPipeline,
	docs *DocsPipeline,
	hybrid *HybridPipeline,
) *Orchestrator {
	return &Orchestrator{
		limiter:    limiter,
		memory:     mem,
		router:     router,
		structured: structured,
		docs:       docs,
		hybrid:     hybrid,
	}
}

// Ask runs the fixed sequence for one question. A denied quota check stops
// everything before any model call, store read, or memory write happens.
func (o *Orchestrator) Ask(ctx context.Context, req Request) (*Result, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	rate := o.limiter.Allow(ctx, req.CallerID)
	if !rate.Allowed {
		return nil, &QuotaError{Info: rate}
	}

	sessionID, _ := o.memory.GetOrCreate(req.SessionID)
	history := memory.FormatHistory(o.memory.History(sessionID))

	start := time.Now()
	route, fellBack := o.router.Classify(ctx, question, history)

	trace := []string{"Router decision: " + string(route)}
	if fellBack {
		trace = append(trace, "Router used keyword fallback")
	}

	result := &Result{
		Route:     route,
		SessionID: sessionID,
		RateLimit: rate,
	}

	switch route {
	case RouteStructured:
		res, err := o.structured.Run(ctx, question, history)
		if err != nil {
			return nil, err
		}
		result.Answer = res.Answer
		result.SQLQuery = res.SQLQuery
		trace = append(trace, res.Trace...)

	case RouteRetrieval:
		res, err := o.docs.Run(ctx, question, history)
		if err != nil {
			return nil, err
		}
		result.Answer = res.Answer
		result.Citations = res.Citations
		trace = append(trace, res.Trace...)

	case RouteHybrid:
		res, err := o.hybrid.Run(ctx, question, history)
		if err != nil {
			return nil, err
		}
		result.Answer = res.Answer
		result.SQLQuery = res.SQLQuery
		result.Citations = res.Citations
		trace = append(trace, res.Trace...)

	case RouteNone:
		// Out of scope: no store is touched and no model call is spent.
		result.Answer = noneAnswer

	default:
		return nil, fmt.Errorf("%w: unknown route %q", ErrPipeline, route)
	}

	result.ToolTrace = trace

	o.memory.Append(sessionID, memory.Turn{
		Question: question,
		Answer:   result.Answer,
		Route:    string(route),
	})

	slog.Info("question answered",
		"route", route,
		"session", sessionID,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}
